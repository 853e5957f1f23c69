// Package upload turns raw request bytes into a validated working image.
// It enforces the accepted formats and size cap, pulls best-effort EXIF
// metadata, and builds the preview thumbnail served back to the browser.
package upload

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"strings"
	"time"

	"github.com/evanoberholster/imagemeta"
	"github.com/rs/zerolog/log"
	"golang.org/x/image/draw"

	"github.com/thayquyendau/qd-ai-render/internal/imaging"
)

// MaxUploadBytes caps a single uploaded image.
const MaxUploadBytes = 20 << 20

// ThumbnailMaxDimension is the longest side of the preview thumbnail.
const ThumbnailMaxDimension = 1024

// Metadata is the EXIF subset worth showing for an uploaded site photo.
// Extraction is best effort; renders and screenshots carry none of it.
type Metadata struct {
	CameraMake  string    `json:"cameraMake,omitempty"`
	CameraModel string    `json:"cameraModel,omitempty"`
	DateTaken   time.Time `json:"dateTaken,omitzero"`
	Latitude    float64   `json:"latitude,omitempty"`
	Longitude   float64   `json:"longitude,omitempty"`
	HasGPS      bool      `json:"hasGps,omitempty"`
}

// Upload is a validated image ready for prompting and compositing.
type Upload struct {
	Source    *imaging.SourceImage
	Metadata  Metadata
	Thumbnail []byte
}

// Process validates data as an accepted image and assembles the upload.
// A metadata or thumbnail failure degrades the upload, never rejects it.
func Process(data []byte) (*Upload, error) {
	if len(data) > MaxUploadBytes {
		return nil, fmt.Errorf("image is %d bytes, the limit is %d", len(data), MaxUploadBytes)
	}

	src, err := imaging.NewSourceImage(data)
	if err != nil {
		return nil, err
	}

	u := &Upload{Source: src}
	u.Metadata = extractMetadata(data)

	thumb, err := Thumbnail(src, ThumbnailMaxDimension)
	if err != nil {
		log.Warn().Err(err).Msg("Thumbnail generation failed, serving without preview")
	} else {
		u.Thumbnail = thumb
	}

	log.Info().
		Str("mime_type", src.MIMEType).
		Int("width", src.Width).
		Int("height", src.Height).
		Int("bytes", len(data)).
		Bool("has_gps", u.Metadata.HasGPS).
		Msg("Upload accepted")
	return u, nil
}

// extractMetadata pulls the EXIF subset from the image bytes. Formats
// without EXIF (PNG, most WEBP) come back empty, not as errors.
func extractMetadata(data []byte) Metadata {
	exifData, err := imagemeta.Decode(bytes.NewReader(data))
	if err != nil {
		log.Debug().Err(err).Msg("No EXIF metadata in upload")
		return Metadata{}
	}

	meta := Metadata{
		CameraMake:  strings.TrimSpace(exifData.Make),
		CameraModel: strings.TrimSpace(exifData.Model),
	}
	if !exifData.DateTimeOriginal().IsZero() {
		meta.DateTaken = exifData.DateTimeOriginal()
	} else if !exifData.CreateDate().IsZero() {
		meta.DateTaken = exifData.CreateDate()
	}

	gps := exifData.GPS
	if gps.Latitude() != 0 || gps.Longitude() != 0 {
		meta.Latitude = gps.Latitude()
		meta.Longitude = gps.Longitude()
		meta.HasGPS = true
	}
	return meta
}

// Thumbnail downscales the image so its longest side is at most
// maxDimension and encodes it as PNG. Images already small enough are
// re-encoded without resizing so the preview format is uniform.
func Thumbnail(src *imaging.SourceImage, maxDimension int) ([]byte, error) {
	img, _, err := image.Decode(bytes.NewReader(src.Data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image for thumbnail: %w", err)
	}

	bounds := img.Bounds()
	width, height := thumbnailDimensions(bounds.Dx(), bounds.Dy(), maxDimension)

	if width != bounds.Dx() || height != bounds.Dy() {
		resized := image.NewRGBA(image.Rect(0, 0, width, height))
		draw.CatmullRom.Scale(resized, resized.Bounds(), img, bounds, draw.Over, nil)
		img = resized
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode thumbnail: %w", err)
	}
	return buf.Bytes(), nil
}

// thumbnailDimensions shrinks oversized dimensions preserving aspect ratio.
func thumbnailDimensions(width, height, maxDimension int) (int, int) {
	if width <= maxDimension && height <= maxDimension {
		return width, height
	}
	if width > height {
		return maxDimension, int(float64(height) * float64(maxDimension) / float64(width))
	}
	return int(float64(width) * float64(maxDimension) / float64(height)), maxDimension
}
