package gen

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
	"google.golang.org/genai"

	"github.com/thayquyendau/qd-ai-render/internal/imaging"
	"github.com/thayquyendau/qd-ai-render/internal/metrics"
	"github.com/thayquyendau/qd-ai-render/internal/prompt"
)

// ErrNoImage means the model settled without returning a single inline image.
// Distinct from transport or credential failures: the caller reports it to
// the user without retrying.
var ErrNoImage = errors.New("model returned no image")

// maxConcurrentRequests bounds the fan-out so a large requested count cannot
// open unbounded simultaneous connections.
const maxConcurrentRequests = 4

// Options control one generation submission.
type Options struct {
	// Count is the number of independent render variants to request.
	// Values below 1 are treated as 1.
	Count int
	// HighQuality selects the pro image model instead of the flash one.
	HighQuality bool
	// AspectRatio is forwarded to the API unless it equals AspectRatioAuto
	// (or is empty), in which case the source's own ratio applies.
	AspectRatio string
}

// Result is one ready-to-display generated image.
type Result struct {
	Data     []byte `json:"data"`
	MIMEType string `json:"mimeType"`
}

// Generate issues opts.Count independent generation requests for the source
// image and instruction, with an optional style/reference image, and returns
// the subset that yielded an image, in issue order. When every slot failed
// with an error, the first error is returned for classification; when the
// model simply declined everywhere, the list is empty and err is nil.
func (c *Client) Generate(ctx context.Context, src *imaging.SourceImage, instruction string, ref *imaging.SourceImage, opts Options) ([]Result, error) {
	parts := []*genai.Part{
		{InlineData: &genai.Blob{MIMEType: src.MIMEType, Data: src.Data}},
	}
	if ref != nil {
		parts = append(parts, &genai.Part{InlineData: &genai.Blob{MIMEType: ref.MIMEType, Data: ref.Data}})
	}
	parts = append(parts, &genai.Part{Text: instruction})

	return c.runImageFanOut(ctx, "generate", parts, opts)
}

// EditMasked issues opts.Count masked-edit requests. The mask marks the only
// region the model may change; with a reference image present the directive
// additionally asks the model to match the reference material.
func (c *Client) EditMasked(ctx context.Context, src *imaging.SourceImage, maskPNG []byte, ref *imaging.SourceImage, instruction string, opts Options) ([]Result, error) {
	directive := prompt.EditDirective(instruction, ref != nil)

	parts := []*genai.Part{
		{InlineData: &genai.Blob{MIMEType: src.MIMEType, Data: src.Data}},
		{InlineData: &genai.Blob{MIMEType: imaging.MaskMIMEType, Data: maskPNG}},
	}
	if ref != nil {
		parts = append(parts, &genai.Part{InlineData: &genai.Blob{MIMEType: ref.MIMEType, Data: ref.Data}})
	}
	parts = append(parts, &genai.Part{Text: directive})

	return c.runImageFanOut(ctx, "edit", parts, opts)
}

// runImageFanOut builds the shared request config and runs the fan-out.
func (c *Client) runImageFanOut(ctx context.Context, operation string, parts []*genai.Part, opts Options) ([]Result, error) {
	n := opts.Count
	if n < 1 {
		n = 1
	}

	model := ImageModelFor(opts.HighQuality)
	config := &genai.GenerateContentConfig{
		ResponseModalities: []string{"TEXT", "IMAGE"},
	}
	if opts.AspectRatio != "" && opts.AspectRatio != AspectRatioAuto {
		config.ImageConfig = &genai.ImageConfig{AspectRatio: opts.AspectRatio}
	}

	contents := []*genai.Content{{Role: "user", Parts: parts}}

	startTime := time.Now()
	log.Info().
		Str("operation", operation).
		Str("model", model).
		Int("count", n).
		Str("aspect_ratio", opts.AspectRatio).
		Msg("Starting generation fan-out")

	results, err := fanOut(ctx, n, func(ctx context.Context, slot int) (*Result, error) {
		resp, callErr := c.generate(ctx, model, contents, config)
		if callErr != nil {
			return nil, callErr
		}
		return extractInlineImage(resp), nil
	})

	elapsed := time.Since(startTime)
	metrics.New("QdRender").
		Dimension("Operation", operation).
		Dimension("Model", model).
		Metric("GenerationMs", float64(elapsed.Milliseconds()), metrics.UnitMilliseconds).
		Metric("RequestedCount", float64(n), metrics.UnitCount).
		Metric("ReturnedCount", float64(len(results)), metrics.UnitCount).
		Flush()

	if err != nil {
		return nil, err
	}

	log.Info().
		Str("operation", operation).
		Int("requested", n).
		Int("returned", len(results)).
		Dur("duration", elapsed).
		Msg("Generation fan-out complete")

	return results, nil
}

// fanOut runs n independent calls concurrently and joins them: every slot
// settles, absent or failed slots are dropped, and the survivors keep their
// issue order. A slot error never cancels siblings. If no slot produced an
// image and at least one slot errored, the first slot error (by issue order)
// is returned for classification.
func fanOut(ctx context.Context, n int, call func(ctx context.Context, slot int) (*Result, error)) ([]Result, error) {
	slots := make([]*Result, n)
	errs := make([]error, n)

	var g errgroup.Group
	g.SetLimit(maxConcurrentRequests)

	for i := 0; i < n; i++ {
		g.Go(func() error {
			res, err := call(ctx, i)
			if err != nil {
				// Dropped, not retried. Siblings keep running.
				log.Warn().Err(err).Int("slot", i).Msg("Generation slot failed")
				errs[i] = err
				return nil
			}
			if res == nil {
				log.Warn().Int("slot", i).Msg("Generation slot returned no image")
			}
			slots[i] = res
			return nil
		})
	}
	// Branches never return errors; Wait is a pure join.
	_ = g.Wait()

	results := make([]Result, 0, n)
	for _, r := range slots {
		if r != nil {
			results = append(results, *r)
		}
	}

	if len(results) == 0 {
		for _, err := range errs {
			if err != nil {
				return nil, fmt.Errorf("all %d generation slots failed: %w", n, err)
			}
		}
	}

	return results, nil
}

// extractInlineImage returns the first well-formed inline image part of a
// response, or nil when the response carries only text (or nothing). A part
// missing either bytes or a media type is not an image.
func extractInlineImage(resp *genai.GenerateContentResponse) *Result {
	if resp == nil {
		return nil
	}
	for _, candidate := range resp.Candidates {
		if candidate == nil || candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if part == nil || part.InlineData == nil {
				continue
			}
			if len(part.InlineData.Data) == 0 || part.InlineData.MIMEType == "" {
				continue
			}
			return &Result{
				Data:     part.InlineData.Data,
				MIMEType: part.InlineData.MIMEType,
			}
		}
	}
	return nil
}
