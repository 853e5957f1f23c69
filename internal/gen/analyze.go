package gen

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"google.golang.org/genai"

	"github.com/thayquyendau/qd-ai-render/internal/imaging"
	"github.com/thayquyendau/qd-ai-render/internal/prompt"
)

// AnalyzeImage sends an image with an analysis prompt to the text model and
// returns the concatenated text response. Used for auto-describe and material
// suggestions; never returns pixels.
func (c *Client) AnalyzeImage(ctx context.Context, src *imaging.SourceImage, analysisPrompt string) (string, error) {
	model := AnalyzeModelName()

	startTime := time.Now()
	log.Info().
		Str("model", model).
		Int("image_bytes", len(src.Data)).
		Str("image_mime", src.MIMEType).
		Msg("Sending image for analysis")

	contents := []*genai.Content{{
		Role: "user",
		Parts: []*genai.Part{
			{InlineData: &genai.Blob{MIMEType: src.MIMEType, Data: src.Data}},
			{Text: analysisPrompt},
		},
	}}

	config := &genai.GenerateContentConfig{
		ResponseModalities: []string{"TEXT"},
	}

	resp, err := c.generate(ctx, model, contents, config)
	if err != nil {
		return "", fmt.Errorf("analysis call failed: %w", err)
	}

	var sb strings.Builder
	if resp != nil {
		for _, candidate := range resp.Candidates {
			if candidate == nil || candidate.Content == nil {
				continue
			}
			for _, part := range candidate.Content.Parts {
				if part != nil && part.Text != "" {
					sb.WriteString(part.Text)
				}
			}
		}
	}

	text := strings.TrimSpace(sb.String())
	if text == "" {
		return "", fmt.Errorf("analysis returned an empty response")
	}

	log.Info().
		Int("response_length", len(text)).
		Dur("duration", time.Since(startTime)).
		Msg("Image analysis complete")

	return text, nil
}

// Describe asks the model to draft an editing instruction from the uploaded
// image for the given task. The result is staged as editable text and never
// auto-submitted; the handler layer only issues this once per uploaded image
// per task.
func (c *Client) Describe(ctx context.Context, src *imaging.SourceImage, task string) (string, error) {
	return c.AnalyzeImage(ctx, src, prompt.DescribePrompt(task))
}
