// Package attachments implements the Attachment Pipeline: Markdown image
// extraction, transcoding to WebP, content-addressed deduplication, and
// inline/file embedding policy.
package attachments

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
	"golang.org/x/sync/semaphore"

	"github.com/Dicklesworthstone/agentmail/internal/archive"
)

// EmbedPolicy is the effective embedding decision for one image.
type EmbedPolicy string

const (
	EmbedInline EmbedPolicy = "inline"
	EmbedFile   EmbedPolicy = "file"
	EmbedAuto   EmbedPolicy = "auto"
)

// Options configures one pipeline run; callers resolve the effective policy
// (per-call override > agent policy > server default) before calling Run.
type Options struct {
	ProjectRoot         string
	Tree                archive.Tree
	Policy              EmbedPolicy
	InlineMaxBytes      int64
	KeepOriginalImages  bool
	MaxConcurrency      int64
}

// Result is the outcome of running the pipeline over one message.
type Result struct {
	BodyMD      string
	Attachments []archive.AttachmentDescriptor
}

// Pipeline ingests images referenced by Markdown and explicit
// attachment_paths, transcodes and content-addresses them, and rewrites the
// Markdown body to point at the final stored form.
type Pipeline struct {
	opts Options
	sem  *semaphore.Weighted
}

// New returns a Pipeline bounded to opts.MaxConcurrency concurrent
// transcodes (default 4).
func New(opts Options) *Pipeline {
	n := opts.MaxConcurrency
	if n <= 0 {
		n = 4
	}
	return &Pipeline{opts: opts, sem: semaphore.NewWeighted(n)}
}

// Run processes bodyMD's Markdown image references plus explicitAttachments
// (non-image file paths stored as file descriptors without transcoding).
func (p *Pipeline) Run(ctx context.Context, bodyMD string, explicitAttachments []string) (Result, error) {
	refs, err := extractImageRefs(bodyMD)
	if err != nil {
		return Result{}, fmt.Errorf("extract image refs: %w", err)
	}

	rewritten := bodyMD
	var descriptors []archive.AttachmentDescriptor

	for _, ref := range refs {
		desc, newTarget, err := p.processImage(ctx, ref.target)
		if err != nil {
			continue // unreadable/unsupported image reference: leave body untouched
		}
		descriptors = append(descriptors, desc)
		if newTarget != "" && newTarget != ref.target {
			rewritten = strings.Replace(rewritten, "]("+ref.target+")", "]("+newTarget+")", 1)
		}
	}

	for _, path := range explicitAttachments {
		desc, err := p.fileDescriptor(path)
		if err != nil {
			continue
		}
		descriptors = append(descriptors, desc)
	}

	return Result{BodyMD: rewritten, Attachments: descriptors}, nil
}

type imageRef struct {
	target string
}

// extractImageRefs walks the Markdown AST for ![alt](target) image nodes,
// per §4.5's source (1).
func extractImageRefs(bodyMD string) ([]imageRef, error) {
	md := goldmark.New()
	reader := text.NewReader([]byte(bodyMD))
	doc := md.Parser().Parse(reader)

	var refs []imageRef
	err := ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		if img, ok := n.(*ast.Image); ok {
			refs = append(refs, imageRef{target: string(img.Destination)})
		}
		return ast.WalkContinue, nil
	})
	if err != nil {
		return nil, err
	}
	return refs, nil
}

// processImage resolves target (local path or data: URI), transcodes it,
// dedups by content hash, and returns its descriptor plus the Markdown
// target it should now point at.
func (p *Pipeline) processImage(ctx context.Context, target string) (archive.AttachmentDescriptor, string, error) {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return archive.AttachmentDescriptor{}, "", err
	}
	defer p.sem.Release(1)

	raw, mediaType, ext, err := readImageSource(p.opts.ProjectRoot, target)
	if err != nil {
		return archive.AttachmentDescriptor{}, "", err
	}

	t := Transcode(raw)
	if t.ConversionFailed {
		ext = strings.TrimPrefix(ext, ".")
	} else {
		ext = "webp"
	}

	storedPath := p.opts.Tree.AttachmentPath(t.SHA1, ext)
	if _, err := os.Stat(storedPath); err != nil {
		if err := archive.WriteFileAtomic(storedPath, t.WebP, 0o644); err != nil {
			return archive.AttachmentDescriptor{}, "", fmt.Errorf("write attachment: %w", err)
		}
	}

	if p.opts.KeepOriginalImages && !t.ConversionFailed {
		origExt := strings.TrimPrefix(filepath.Ext(target), ".")
		if origExt == "" {
			origExt = "bin"
		}
		origPath := p.opts.Tree.OriginalAttachmentPath(t.SHA1, origExt)
		if _, err := os.Stat(origPath); err != nil {
			_ = archive.WriteFileAtomic(origPath, raw, 0o644)
		}
	}

	policy := p.effectivePolicy(int64(len(t.WebP)))
	rel, relErr := filepath.Rel(p.opts.Tree.Root, storedPath)
	if relErr != nil {
		rel = storedPath
	}

	// On transcode failure the stored/inlined bytes are the original,
	// untouched image (see Transcode), so the descriptor's media_type must
	// reflect that instead of claiming image/webp.
	finalMediaType := "image/webp"
	if t.ConversionFailed {
		finalMediaType = mediaType
	}

	if policy == EmbedInline {
		return archive.AttachmentDescriptor{
			Type:             "inline",
			MediaType:        finalMediaType,
			DataURI:          "data:" + finalMediaType + ";base64," + base64.StdEncoding.EncodeToString(t.WebP),
			Bytes:            int64(len(t.WebP)),
			SHA1:             t.SHA1,
			ConversionFailed: t.ConversionFailed,
		}, "", nil
	}
	return archive.AttachmentDescriptor{
		Type:             "file",
		MediaType:        finalMediaType,
		Path:             filepath.ToSlash(rel),
		Bytes:            int64(len(t.WebP)),
		SHA1:             t.SHA1,
		ConversionFailed: t.ConversionFailed,
	}, filepath.ToSlash(rel), nil
}

func (p *Pipeline) effectivePolicy(transcodedSize int64) EmbedPolicy {
	switch p.opts.Policy {
	case EmbedInline, EmbedFile:
		return p.opts.Policy
	default:
		maxBytes := p.opts.InlineMaxBytes
		if maxBytes <= 0 {
			maxBytes = 256 * 1024
		}
		if transcodedSize <= maxBytes {
			return EmbedInline
		}
		return EmbedFile
	}
}

// fileDescriptor stores a non-image attachment_paths[] entry as a plain file
// descriptor without transcoding, per §4.5.
func (p *Pipeline) fileDescriptor(path string) (archive.AttachmentDescriptor, error) {
	abs := path
	if !filepath.IsAbs(path) {
		abs = filepath.Join(p.opts.ProjectRoot, path)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return archive.AttachmentDescriptor{}, err
	}
	return archive.AttachmentDescriptor{
		Type:      "file",
		MediaType: mediaTypeFromExt(filepath.Ext(path)),
		Path:      filepath.ToSlash(path),
		Bytes:     info.Size(),
	}, nil
}

func mediaTypeFromExt(ext string) string {
	switch strings.ToLower(ext) {
	case ".pdf":
		return "application/pdf"
	case ".txt":
		return "text/plain"
	case ".json":
		return "application/json"
	case ".log":
		return "text/plain"
	default:
		return "application/octet-stream"
	}
}
