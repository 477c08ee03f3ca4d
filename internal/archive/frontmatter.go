package archive

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

const (
	frontmatterOpen  = "---json"
	frontmatterClose = "---"
)

// RenderFrontmatter serializes meta as pretty JSON wrapped in the archive's
// `---json` / `---` delimiters, followed by body.
func RenderFrontmatter(meta any, body string) ([]byte, error) {
	payload, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal frontmatter: %w", err)
	}
	var buf bytes.Buffer
	buf.WriteString(frontmatterOpen)
	buf.WriteByte('\n')
	buf.Write(payload)
	buf.WriteByte('\n')
	buf.WriteString(frontmatterClose)
	buf.WriteByte('\n')
	if body != "" {
		buf.WriteByte('\n')
		buf.WriteString(body)
		if !strings.HasSuffix(body, "\n") {
			buf.WriteByte('\n')
		}
	}
	return buf.Bytes(), nil
}

// ParseFrontmatter splits a `---json` / `---` delimited artifact into its
// raw JSON frontmatter and trailing Markdown body. It returns an error if
// the document does not open with the expected delimiter.
func ParseFrontmatter(doc []byte) (rawMeta json.RawMessage, body string, err error) {
	text := string(doc)
	if !strings.HasPrefix(text, frontmatterOpen) {
		return nil, "", fmt.Errorf("archive artifact missing %q header", frontmatterOpen)
	}
	rest := text[len(frontmatterOpen):]
	rest = strings.TrimPrefix(rest, "\n")

	closeIdx := strings.Index(rest, "\n"+frontmatterClose)
	if closeIdx < 0 {
		return nil, "", fmt.Errorf("archive artifact missing closing %q delimiter", frontmatterClose)
	}

	rawMeta = json.RawMessage(strings.TrimSpace(rest[:closeIdx]))
	after := rest[closeIdx+len("\n"+frontmatterClose):]
	// Drop the delimiter's line ending, then the blank separator line that
	// RenderFrontmatter puts before a non-empty body.
	body = strings.TrimPrefix(strings.TrimPrefix(after, "\n"), "\n")
	return rawMeta, body, nil
}

// DecodeFrontmatter parses doc and unmarshals its frontmatter into dst.
func DecodeFrontmatter(doc []byte, dst any) (body string, err error) {
	raw, body, err := ParseFrontmatter(doc)
	if err != nil {
		return "", err
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return "", fmt.Errorf("unmarshal frontmatter: %w", err)
	}
	return body, nil
}
