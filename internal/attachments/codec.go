package attachments

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/HugoSmits86/nativewebp"
	"golang.org/x/image/bmp"

	"github.com/Dicklesworthstone/agentmail/internal/archive"
)

// webpQuality and webpMethod mirror §4.5's "quality ≈ 80, method ≈ 6".
const (
	webpQuality = 80
	webpMethod  = 6
)

// Transcoded is the result of converting an input image to WebP.
type Transcoded struct {
	WebP             []byte
	SHA1             string
	ConversionFailed bool
	Width, Height    int
}

// Transcode decodes raw (any format registered with image.Decode, plus
// bmp) and re-encodes it as WebP. On decode failure it falls back to the
// original bytes unmodified and sets ConversionFailed, matching §4.5's
// "fall back to original bytes on decoder failure" rule.
func Transcode(raw []byte) Transcoded {
	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		img, err = bmp.Decode(bytes.NewReader(raw))
	}
	if err != nil {
		return Transcoded{WebP: raw, SHA1: archive.Sha1Hex(raw), ConversionFailed: true}
	}

	var buf bytes.Buffer
	if err := nativewebp.Encode(&buf, img, &nativewebp.Options{Quality: webpQuality, Method: webpMethod}); err != nil {
		return Transcoded{WebP: raw, SHA1: archive.Sha1Hex(raw), ConversionFailed: true}
	}

	bounds := img.Bounds()
	return Transcoded{
		WebP:   buf.Bytes(),
		SHA1:   archive.Sha1Hex(buf.Bytes()),
		Width:  bounds.Dx(),
		Height: bounds.Dy(),
	}
}

// DecodeDimensions reports the pixel dimensions of raw, used when retaining
// the original binary alongside its manifest.
func DecodeDimensions(raw []byte) (width, height int, err error) {
	cfg, _, decErr := image.DecodeConfig(bytes.NewReader(raw))
	if decErr != nil {
		return 0, 0, fmt.Errorf("decode config: %w", decErr)
	}
	return cfg.Width, cfg.Height, nil
}
