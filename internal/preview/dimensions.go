package preview

import (
	"bytes"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"golang.org/x/image/webp"
)

// dimensions reads width/height from image bytes, trying the stdlib
// decoders first and falling back to the webp decoder (stdlib's image
// package has no webp support). Returns (0, 0) if the format can't be read,
// matching the original's "best effort, never fatal" behavior.
func dimensions(data []byte) (width, height int) {
	if cfg, _, err := image.DecodeConfig(bytes.NewReader(data)); err == nil {
		return cfg.Width, cfg.Height
	}
	if cfg, err := webp.DecodeConfig(bytes.NewReader(data)); err == nil {
		return cfg.Width, cfg.Height
	}
	return 0, 0
}
