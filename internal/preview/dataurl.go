package preview

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/png"
	"strings"

	_ "image/gif"
	_ "image/jpeg"
)

const pngPrefix = "data:image/png;base64,"

var ErrNotDataURL = errors.New("not a base64 image data URL")

// EncodePNG encodes an image as a PNG data URL.
func EncodePNG(img image.Image) (string, error) {
	var buf bytes.Buffer
	buf.WriteString(pngPrefix)
	enc := base64.NewEncoder(base64.StdEncoding, &buf)
	if err := png.Encode(enc, img); err != nil {
		return "", fmt.Errorf("png encode: %w", err)
	}
	if err := enc.Close(); err != nil {
		return "", fmt.Errorf("png encode: %w", err)
	}
	return buf.String(), nil
}

// DecodeDataURL decodes a base64 image data URL. PNG, JPEG and GIF payloads
// are accepted regardless of the declared media type.
func DecodeDataURL(s string) (image.Image, error) {
	if !strings.HasPrefix(s, "data:") {
		return nil, ErrNotDataURL
	}
	idx := strings.Index(s, ";base64,")
	if idx < 0 {
		return nil, ErrNotDataURL
	}
	raw, err := base64.StdEncoding.DecodeString(s[idx+len(";base64,"):])
	if err != nil {
		return nil, fmt.Errorf("decode image payload: %w", err)
	}
	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	return img, nil
}

// Loader reports the pixel dimensions of data-URI images. Decoding happens
// inline on the calling goroutine, which keeps the editor's single-owner
// contract trivially satisfied for server-side hosts.
type Loader struct{}

func (Loader) Load(src string, done func(w, h float64, ok bool)) {
	img, err := DecodeDataURL(src)
	if err != nil {
		done(0, 0, false)
		return
	}
	b := img.Bounds()
	done(float64(b.Dx()), float64(b.Dy()), true)
}
