package gen

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"google.golang.org/genai"

	"github.com/thayquyendau/qd-ai-render/internal/imaging"
)

// newTestClient wires a fake single-request call in place of the network.
func newTestClient(fn generateFunc) *Client {
	return &Client{generate: fn}
}

func testSource() *imaging.SourceImage {
	return &imaging.SourceImage{
		Data:     []byte("source-bytes"),
		MIMEType: "image/jpeg",
		Width:    800,
		Height:   600,
	}
}

// imageResponse builds a response carrying one inline image part.
func imageResponse(data []byte) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{
				Parts: []*genai.Part{
					{Text: "here is your render"},
					{InlineData: &genai.Blob{MIMEType: "image/png", Data: data}},
				},
			},
		}},
	}
}

// textOnlyResponse builds a response with no inline image.
func textOnlyResponse(text string) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{
				Parts: []*genai.Part{{Text: text}},
			},
		}},
	}
}

func TestFanOut_DropsAbsentSlotPreservingOrder(t *testing.T) {
	results, err := fanOut(context.Background(), 4, func(ctx context.Context, slot int) (*Result, error) {
		if slot == 1 {
			return nil, nil // model declined this slot
		}
		return &Result{Data: []byte{byte(slot)}, MIMEType: "image/png"}, nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	for i, wantSlot := range []byte{0, 2, 3} {
		if results[i].Data[0] != wantSlot {
			t.Errorf("result %d came from slot %d, want slot %d", i, results[i].Data[0], wantSlot)
		}
	}
}

func TestFanOut_SlotFailureDoesNotCancelSiblings(t *testing.T) {
	results, err := fanOut(context.Background(), 3, func(ctx context.Context, slot int) (*Result, error) {
		if slot == 0 {
			return nil, errors.New("transient upstream failure")
		}
		return &Result{Data: []byte{byte(slot)}, MIMEType: "image/png"}, nil
	})
	if err != nil {
		t.Fatalf("a partial failure must not surface an error, got: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
}

func TestFanOut_AllSlotsFailedPropagatesFirstError(t *testing.T) {
	slotErr := errors.New("quota exceeded for model")
	_, err := fanOut(context.Background(), 3, func(ctx context.Context, slot int) (*Result, error) {
		return nil, fmt.Errorf("slot %d: %w", slot, slotErr)
	})
	if err == nil {
		t.Fatal("expected an error when every slot failed")
	}
	if !errors.Is(err, slotErr) {
		t.Errorf("expected the slot error to be wrapped, got: %v", err)
	}
}

func TestFanOut_AllSlotsDeclinedIsEmptyNotError(t *testing.T) {
	results, err := fanOut(context.Background(), 2, func(ctx context.Context, slot int) (*Result, error) {
		return nil, nil
	})
	if err != nil {
		t.Fatalf("declined slots are not errors, got: %v", err)
	}
	if len(results) != 0 {
		t.Fatalf("expected empty result list, got %d", len(results))
	}
}

func TestGenerate_ModelSelection(t *testing.T) {
	var mu sync.Mutex
	var models []string

	c := newTestClient(func(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
		mu.Lock()
		models = append(models, model)
		mu.Unlock()
		return imageResponse([]byte("img")), nil
	})

	if _, err := c.Generate(context.Background(), testSource(), "render it", nil, Options{Count: 1}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := c.Generate(context.Background(), testSource(), "render it", nil, Options{Count: 1, HighQuality: true}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if models[0] != ModelFlashImage {
		t.Errorf("default quality should use %s, got %s", ModelFlashImage, models[0])
	}
	if models[1] != ModelProImage {
		t.Errorf("high quality should use %s, got %s", ModelProImage, models[1])
	}
}

func TestGenerate_AspectRatioSentinelNotForwarded(t *testing.T) {
	var mu sync.Mutex
	var configs []*genai.GenerateContentConfig

	c := newTestClient(func(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
		mu.Lock()
		configs = append(configs, config)
		mu.Unlock()
		return imageResponse([]byte("img")), nil
	})

	for _, ratio := range []string{AspectRatioAuto, "", "16:9"} {
		if _, err := c.Generate(context.Background(), testSource(), "render it", nil, Options{Count: 1, AspectRatio: ratio}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	if configs[0].ImageConfig != nil {
		t.Error("aspect ratio sentinel must not be forwarded")
	}
	if configs[1].ImageConfig != nil {
		t.Error("empty aspect ratio must not be forwarded")
	}
	if configs[2].ImageConfig == nil || configs[2].ImageConfig.AspectRatio != "16:9" {
		t.Error("explicit aspect ratio must be forwarded")
	}
}

func TestGenerate_RequestsImageAndTextModalities(t *testing.T) {
	c := newTestClient(func(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
		want := []string{"TEXT", "IMAGE"}
		if len(config.ResponseModalities) != 2 || config.ResponseModalities[0] != want[0] || config.ResponseModalities[1] != want[1] {
			t.Errorf("expected response modalities %v, got %v", want, config.ResponseModalities)
		}
		return imageResponse([]byte("img")), nil
	})

	if _, err := c.Generate(context.Background(), testSource(), "render it", nil, Options{Count: 1}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestGenerate_ReferenceImageAddedBeforeInstruction(t *testing.T) {
	var captured []*genai.Content

	c := newTestClient(func(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
		captured = contents
		return imageResponse([]byte("img")), nil
	})

	ref := &imaging.SourceImage{Data: []byte("ref-bytes"), MIMEType: "image/png"}
	if _, err := c.Generate(context.Background(), testSource(), "match this style", ref, Options{Count: 1}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	parts := captured[0].Parts
	if len(parts) != 3 {
		t.Fatalf("expected source+reference+text parts, got %d", len(parts))
	}
	if parts[0].InlineData == nil || string(parts[0].InlineData.Data) != "source-bytes" {
		t.Error("first part must be the source image")
	}
	if parts[1].InlineData == nil || string(parts[1].InlineData.Data) != "ref-bytes" {
		t.Error("second part must be the reference image")
	}
	if parts[2].Text != "match this style" {
		t.Error("last part must be the instruction text")
	}
}

func TestEditMasked_PartsAndDirective(t *testing.T) {
	var captured []*genai.Content

	c := newTestClient(func(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
		captured = contents
		return imageResponse([]byte("img")), nil
	})

	maskPNG := []byte("mask-bytes")
	if _, err := c.EditMasked(context.Background(), testSource(), maskPNG, nil, "make the door red", Options{Count: 1}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	parts := captured[0].Parts
	if len(parts) != 3 {
		t.Fatalf("expected source+mask+text parts, got %d", len(parts))
	}
	if parts[1].InlineData == nil || parts[1].InlineData.MIMEType != "image/png" {
		t.Error("second part must be the PNG mask")
	}
	if !strings.Contains(parts[2].Text, "make the door red") {
		t.Errorf("directive must embed the user instruction: %q", parts[2].Text)
	}
	if strings.Contains(parts[2].Text, "reference") {
		t.Errorf("directive without a reference image must not mention one: %q", parts[2].Text)
	}
}

func TestEditMasked_ReferenceDirective(t *testing.T) {
	var captured []*genai.Content

	c := newTestClient(func(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
		captured = contents
		return imageResponse([]byte("img")), nil
	})

	ref := &imaging.SourceImage{Data: []byte("material"), MIMEType: "image/jpeg"}
	if _, err := c.EditMasked(context.Background(), testSource(), []byte("mask"), ref, "swap the cladding", Options{Count: 1}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	parts := captured[0].Parts
	if len(parts) != 4 {
		t.Fatalf("expected source+mask+reference+text parts, got %d", len(parts))
	}
	if !strings.Contains(parts[3].Text, "reference") {
		t.Errorf("directive with a reference image must mention it: %q", parts[3].Text)
	}
}

func TestExtractInlineImage(t *testing.T) {
	if got := extractInlineImage(nil); got != nil {
		t.Error("nil response must extract to nil")
	}
	if got := extractInlineImage(textOnlyResponse("sorry, no")); got != nil {
		t.Error("text-only response must extract to nil")
	}

	// A part missing bytes or media type is not a well-formed image.
	malformed := &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{
				Parts: []*genai.Part{
					{InlineData: &genai.Blob{MIMEType: "image/png"}},
					{InlineData: &genai.Blob{Data: []byte("bytes")}},
				},
			},
		}},
	}
	if got := extractInlineImage(malformed); got != nil {
		t.Error("malformed inline parts must extract to nil")
	}

	got := extractInlineImage(imageResponse([]byte("pixels")))
	if got == nil || string(got.Data) != "pixels" || got.MIMEType != "image/png" {
		t.Errorf("expected the inline image part, got %+v", got)
	}
}

func TestAnalyzeImage_ConcatenatesTextAndRejectsEmpty(t *testing.T) {
	c := newTestClient(func(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
		if len(config.ResponseModalities) != 1 || config.ResponseModalities[0] != "TEXT" {
			t.Errorf("analysis must request TEXT-only modality, got %v", config.ResponseModalities)
		}
		return &genai.GenerateContentResponse{
			Candidates: []*genai.Candidate{{
				Content: &genai.Content{
					Parts: []*genai.Part{{Text: "a modern "}, {Text: "townhouse facade"}},
				},
			}},
		}, nil
	})

	text, err := c.AnalyzeImage(context.Background(), testSource(), "describe it")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if text != "a modern townhouse facade" {
		t.Errorf("unexpected analysis text: %q", text)
	}

	empty := newTestClient(func(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
		return textOnlyResponse(""), nil
	})
	if _, err := empty.AnalyzeImage(context.Background(), testSource(), "describe it"); err == nil {
		t.Error("expected error for empty analysis response")
	}
}
