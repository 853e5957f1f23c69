// Package material asks the vision model for facade finishing options at
// three price tiers and validates the response. The selected tier's fields
// feed the facade prompt builder.
package material

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/thayquyendau/qd-ai-render/internal/gen"
	"github.com/thayquyendau/qd-ai-render/internal/imaging"
	"github.com/thayquyendau/qd-ai-render/internal/jsonutil"
	"github.com/thayquyendau/qd-ai-render/internal/prompt"
)

// Tier identifiers, fixed by contract with the suggestion prompt.
const (
	TierCheap   = "cheap"
	TierMedium  = "medium"
	TierPremium = "premium"
)

// Option is one finishing tier proposed by the model.
type Option struct {
	ID             string `json:"id"`
	Title          string `json:"title"`
	Materials      string `json:"materials"`
	DesignKeywords string `json:"designKeywords"`
	GateDesign     string `json:"gateDesign"`
	Description    string `json:"description"`
}

// expectedTiers is the required id sequence in the model's response.
var expectedTiers = []string{TierCheap, TierMedium, TierPremium}

// Suggest sends the facade image to the model and returns exactly three
// finishing tiers (cheap, medium, premium, in order). A response with any
// other shape is an error; the caller surfaces it without retrying.
func Suggest(ctx context.Context, client *gen.Client, src *imaging.SourceImage) ([]Option, error) {
	raw, err := client.AnalyzeImage(ctx, src, prompt.MaterialSuggestPrompt())
	if err != nil {
		return nil, fmt.Errorf("material suggestion call failed: %w", err)
	}

	options, err := ParseOptions(raw)
	if err != nil {
		return nil, err
	}

	log.Info().Int("tiers", len(options)).Msg("Material tier suggestions ready")
	return options, nil
}

// ParseOptions extracts and validates the tier list from a raw model
// response that may be fenced or wrapped in prose.
func ParseOptions(raw string) ([]Option, error) {
	options, err := jsonutil.ParseJSON[[]Option](raw)
	if err != nil {
		return nil, fmt.Errorf("failed to parse material tiers: %w", err)
	}

	if len(options) != len(expectedTiers) {
		return nil, fmt.Errorf("expected exactly %d material tiers, got %d", len(expectedTiers), len(options))
	}
	for i, want := range expectedTiers {
		if options[i].ID != want {
			return nil, fmt.Errorf("tier %d has id %q, want %q", i, options[i].ID, want)
		}
		if options[i].Materials == "" {
			return nil, fmt.Errorf("tier %q is missing its materials description", want)
		}
	}

	return options, nil
}

// FacadeSpecFrom maps a selected tier onto the facade prompt fields.
func FacadeSpecFrom(base prompt.FacadeSpec, tier Option) prompt.FacadeSpec {
	base.Materials = tier.Materials
	base.DesignKeywords = tier.DesignKeywords
	base.GateDesign = tier.GateDesign
	return base
}
