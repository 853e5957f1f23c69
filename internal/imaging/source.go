package imaging

import (
	"bytes"
	"fmt"
	"image"
	"net/http"

	// Register decoders for the three accepted upload formats.
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/webp"
)

// SourceImage is an in-memory image with its media type and native pixel
// dimensions. Created on upload or derived from a prior generation result.
type SourceImage struct {
	Data     []byte `json:"data"`
	MIMEType string `json:"mimeType"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
}

// Accepted upload media types. Anything else is rejected at the boundary.
var acceptedMIMETypes = map[string]bool{
	"image/png":  true,
	"image/jpeg": true,
	"image/webp": true,
}

// DetectMIME sniffs the media type from the image bytes. The filename
// extension is never trusted.
func DetectMIME(data []byte) string {
	return http.DetectContentType(data)
}

// IsAcceptedMIME reports whether the media type is one of the formats the
// upload boundary accepts (PNG, JPEG, WEBP).
func IsAcceptedMIME(mimeType string) bool {
	return acceptedMIMETypes[mimeType]
}

// NewSourceImage validates the bytes as an accepted image format and decodes
// its native dimensions without decoding pixel data.
func NewSourceImage(data []byte) (*SourceImage, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty image data")
	}

	mimeType := DetectMIME(data)
	if !IsAcceptedMIME(mimeType) {
		return nil, fmt.Errorf("unsupported media type %q: only PNG, JPEG and WEBP are accepted", mimeType)
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image header: %w", err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, fmt.Errorf("invalid image dimensions %dx%d", cfg.Width, cfg.Height)
	}

	return &SourceImage{
		Data:     data,
		MIMEType: mimeType,
		Width:    cfg.Width,
		Height:   cfg.Height,
	}, nil
}
