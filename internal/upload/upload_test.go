package upload

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"
)

// encodePNG builds a small solid PNG of the given dimensions.
func encodePNG(t *testing.T, width, height int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.RGBA{R: 200, G: 180, B: 160, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("failed to encode fixture: %v", err)
	}
	return buf.Bytes()
}

func TestProcess_AcceptsPNG(t *testing.T) {
	u, err := Process(encodePNG(t, 64, 48))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if u.Source.MIMEType != "image/png" {
		t.Errorf("detected MIME %q, want image/png", u.Source.MIMEType)
	}
	if u.Source.Width != 64 || u.Source.Height != 48 {
		t.Errorf("dimensions %dx%d, want 64x48", u.Source.Width, u.Source.Height)
	}
	if len(u.Thumbnail) == 0 {
		t.Error("expected a thumbnail for a valid upload")
	}
}

func TestProcess_AcceptsJPEG(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 32, 32))
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, nil); err != nil {
		t.Fatalf("failed to encode fixture: %v", err)
	}

	u, err := Process(buf.Bytes())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if u.Source.MIMEType != "image/jpeg" {
		t.Errorf("detected MIME %q, want image/jpeg", u.Source.MIMEType)
	}
	// A plain encoded JPEG carries no EXIF; metadata must degrade to empty.
	if u.Metadata.HasGPS || !u.Metadata.DateTaken.IsZero() {
		t.Errorf("expected empty metadata, got %+v", u.Metadata)
	}
}

func TestProcess_RejectsNonImage(t *testing.T) {
	if _, err := Process([]byte("<html>not an image</html>")); err == nil {
		t.Error("expected error for non-image payload")
	}
}

func TestProcess_RejectsOversizedPayload(t *testing.T) {
	if _, err := Process(make([]byte, MaxUploadBytes+1)); err == nil {
		t.Error("expected error for payload over the size cap")
	}
}

func TestThumbnail_DownscalesLongestSide(t *testing.T) {
	data := encodePNG(t, 400, 100)
	u, err := Process(data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	thumb, err := Thumbnail(u.Source, 200)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(thumb))
	if err != nil {
		t.Fatalf("thumbnail must decode: %v", err)
	}
	if cfg.Width != 200 || cfg.Height != 50 {
		t.Errorf("thumbnail is %dx%d, want 200x50", cfg.Width, cfg.Height)
	}
}

func TestThumbnail_SmallImageKeepsDimensions(t *testing.T) {
	data := encodePNG(t, 60, 40)
	u, err := Process(data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	thumb, err := Thumbnail(u.Source, 200)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(thumb))
	if err != nil {
		t.Fatalf("thumbnail must decode: %v", err)
	}
	if cfg.Width != 60 || cfg.Height != 40 {
		t.Errorf("thumbnail is %dx%d, want 60x40", cfg.Width, cfg.Height)
	}
}
