package attachments

import (
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// readImageSource resolves a Markdown image target, which is either a
// data: URI or a filesystem path (resolved relative to projectRoot if not
// absolute), returning its raw bytes, declared/guessed media type, and file
// extension.
func readImageSource(projectRoot, target string) (raw []byte, mediaType, ext string, err error) {
	if strings.HasPrefix(target, "data:") {
		return decodeDataURI(target)
	}

	abs := target
	if !filepath.IsAbs(target) {
		abs = filepath.Join(projectRoot, target)
	}
	raw, err = os.ReadFile(abs)
	if err != nil {
		return nil, "", "", fmt.Errorf("read image %s: %w", target, err)
	}
	ext = filepath.Ext(target)
	return raw, mediaTypeFromExt(ext), ext, nil
}

// decodeDataURI parses "data:<media-type>;base64,<payload>".
func decodeDataURI(uri string) (raw []byte, mediaType, ext string, err error) {
	rest := strings.TrimPrefix(uri, "data:")
	semi := strings.Index(rest, ";base64,")
	if semi < 0 {
		return nil, "", "", fmt.Errorf("unsupported data URI (expected ;base64,): %s", truncate(uri, 40))
	}
	mediaType = rest[:semi]
	payload := rest[semi+len(";base64,"):]
	raw, err = base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, "", "", fmt.Errorf("decode data URI payload: %w", err)
	}
	ext = extFromMediaType(mediaType)
	return raw, mediaType, ext, nil
}

func extFromMediaType(mt string) string {
	switch mt {
	case "image/png":
		return ".png"
	case "image/jpeg":
		return ".jpg"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	case "image/bmp":
		return ".bmp"
	default:
		return ""
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
