package material

import (
	"strings"
	"testing"

	"github.com/thayquyendau/qd-ai-render/internal/prompt"
)

const validTiersJSON = `[
  {"id": "cheap", "title": "Tiết kiệm", "materials": "painted brick, steel-framed windows", "designKeywords": "simple flat facade", "gateDesign": "painted steel gate", "description": "Budget option"},
  {"id": "medium", "title": "Tầm trung", "materials": "granite base, aluminium-framed glass", "designKeywords": "layered facade bands", "gateDesign": "powder-coated sliding gate", "description": "Mid-range option"},
  {"id": "premium", "title": "Cao cấp", "materials": "natural stone cladding, low-e curtain glass", "designKeywords": "double-height entrance, hidden lighting", "gateDesign": "automated hardwood-and-steel gate", "description": "Premium option"}
]`

func TestParseOptions_ValidResponse(t *testing.T) {
	// Models often fence the JSON; the parser must cope.
	raw := "Here are the options:\n```json\n" + validTiersJSON + "\n```"

	options, err := ParseOptions(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(options) != 3 {
		t.Fatalf("expected 3 tiers, got %d", len(options))
	}
	for i, want := range []string{TierCheap, TierMedium, TierPremium} {
		if options[i].ID != want {
			t.Errorf("tier %d id = %q, want %q", i, options[i].ID, want)
		}
	}
	if options[2].Materials == "" {
		t.Error("premium tier lost its materials description")
	}
}

func TestParseOptions_WrongCount(t *testing.T) {
	raw := `[{"id": "cheap", "materials": "brick"}]`
	if _, err := ParseOptions(raw); err == nil {
		t.Error("expected error for fewer than three tiers")
	}
}

func TestParseOptions_WrongTierOrder(t *testing.T) {
	raw := `[
	  {"id": "premium", "materials": "stone"},
	  {"id": "medium", "materials": "granite"},
	  {"id": "cheap", "materials": "brick"}
	]`
	if _, err := ParseOptions(raw); err == nil {
		t.Error("expected error for out-of-order tier ids")
	}
}

func TestParseOptions_NotJSON(t *testing.T) {
	if _, err := ParseOptions("I cannot help with that."); err == nil {
		t.Error("expected error for non-JSON response")
	}
}

func TestFacadeSpecFrom_SelectedTierDrivesPrompt(t *testing.T) {
	options, err := ParseOptions(validTiersJSON)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	base := prompt.FacadeSpec{
		HouseType:    "townhouse",
		Style:        "modern",
		FloorCount:   3,
		ColorPalette: "white and gray",
	}
	spec := FacadeSpecFrom(base, options[2])

	built := prompt.BuildFacade(spec)
	for _, want := range []string{"natural stone cladding", "double-height entrance", "automated hardwood-and-steel gate"} {
		if !strings.Contains(built, want) {
			t.Errorf("facade prompt missing tier field %q: %q", want, built)
		}
	}

	// The structured head and color clause survive the tier merge.
	if !strings.Contains(built, "3-story modern townhouse") || !strings.Contains(built, "white and gray") {
		t.Errorf("facade prompt lost base fields: %q", built)
	}
}
