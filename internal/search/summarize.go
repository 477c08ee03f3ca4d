package search

import (
	"context"
	"regexp"
	"sort"
	"strings"

	"github.com/Dicklesworthstone/agentmail/internal/store"
)

const maxDigestItems = 12

// Digest is the heuristic summary produced by summarize_thread.
type Digest struct {
	ThreadID     string
	Participants []string
	KeyPoints    []string
	Actions      []string
	MessageCount int
}

// Refiner optionally post-processes a heuristic Digest, e.g. with an LLM.
// The heuristic output is authoritative; a Refiner is a pure post-processor
// and must never be required for summarize_thread/summarize_threads to
// produce a correct result.
type Refiner interface {
	Refine(ctx context.Context, d Digest) (Digest, error)
}

// NoopRefiner returns the digest unchanged. It is the default Refiner.
type NoopRefiner struct{}

func (NoopRefiner) Refine(_ context.Context, d Digest) (Digest, error) { return d, nil }

var (
	headingOrBullet = regexp.MustCompile(`^\s*(#{1,2}|-|\*)\s+(.+)$`)
	actionLine      = regexp.MustCompile(`(?i)^\s*(?:-|\*|\d+\.)?\s*(?:\[(?: |x)\]\s*)?(TODO|ACTION|FIXME|NEXT|BLOCKED)[:\-]\s*(.+)$`)
)

// SummarizeThread implements summarize_thread: a heuristic digest of every
// message sharing threadID, with participants, key points, and actions.
func SummarizeThread(ctx context.Context, s *store.Store, projectID int64, threadID string, refiner Refiner) (Digest, error) {
	msgs, err := threadMessages(ctx, s, projectID, threadID)
	if err != nil {
		return Digest{}, err
	}

	d, err := digest(ctx, s, threadID, msgs)
	if err != nil {
		return Digest{}, err
	}
	if refiner == nil {
		refiner = NoopRefiner{}
	}
	return refiner.Refine(ctx, d)
}

// SummarizeThreads implements summarize_threads: one digest per thread id.
func SummarizeThreads(ctx context.Context, s *store.Store, projectID int64, threadIDs []string, refiner Refiner) ([]Digest, error) {
	out := make([]Digest, 0, len(threadIDs))
	for _, id := range threadIDs {
		d, err := SummarizeThread(ctx, s, projectID, id, refiner)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}

// threadMessages gathers every message belonging to a thread: the root
// message (whose own external id equals threadID, and which may carry no
// thread_id of its own) plus every message whose thread_id equals threadID.
func threadMessages(ctx context.Context, s *store.Store, projectID int64, threadID string) ([]store.Message, error) {
	rest, err := s.ThreadMessages(ctx, projectID, threadID)
	if err != nil {
		return nil, err
	}

	root, err := s.MessageByExternalID(ctx, threadID)
	if err != nil {
		return rest, nil
	}
	if root.ProjectID != projectID {
		return rest, nil
	}

	for _, m := range rest {
		if m.ID == root.ID {
			return rest, nil
		}
	}
	msgs := append([]store.Message{root}, rest...)
	sort.Slice(msgs, func(i, j int) bool { return msgs[i].CreatedTs.Before(msgs[j].CreatedTs) })
	return msgs, nil
}

func digest(ctx context.Context, s *store.Store, threadID string, msgs []store.Message) (Digest, error) {
	d := Digest{ThreadID: threadID, MessageCount: len(msgs)}

	seenParticipant := make(map[int64]bool)
	seenKeyPoint := make(map[string]bool)
	seenAction := make(map[string]bool)

	for _, m := range msgs {
		if !seenParticipant[m.SenderID] {
			seenParticipant[m.SenderID] = true
			sender, err := s.AgentByID(ctx, m.SenderID)
			if err != nil {
				return Digest{}, err
			}
			d.Participants = append(d.Participants, sender.Name)
		}

		for _, line := range strings.Split(m.BodyMD, "\n") {
			if len(d.KeyPoints) < maxDigestItems {
				if hm := headingOrBullet.FindStringSubmatch(line); hm != nil {
					text := strings.TrimSpace(hm[2])
					if text != "" && !seenKeyPoint[text] {
						seenKeyPoint[text] = true
						d.KeyPoints = append(d.KeyPoints, text)
					}
				}
			}
			if len(d.Actions) < maxDigestItems {
				if am := actionLine.FindStringSubmatch(line); am != nil {
					text := strings.TrimSpace(am[2])
					if text != "" && !seenAction[text] {
						seenAction[text] = true
						d.Actions = append(d.Actions, text)
					}
				}
			}
		}
	}

	return d, nil
}
