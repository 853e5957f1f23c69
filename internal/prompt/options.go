package prompt

// options.go holds the derived-option reducer for the facade wizard. Choosing
// a house type and style determines which roof/shape concepts and color
// palettes the wizard offers next. The mapping is a pure function of its
// inputs so the UI can recompute it on every selection change.

// Options is the set of follow-up choices available for a house type + style
// combination.
type Options struct {
	Shapes []string `json:"shapes"`
	Colors []string `json:"colors"`
}

// House types offered by the facade wizard.
const (
	HouseTypeTownhouse = "townhouse"
	HouseTypeVilla     = "villa"
	HouseTypeGarden    = "garden-house"
)

// Styles offered by the facade wizard.
const (
	StyleModern       = "modern"
	StyleNeoclassical = "neoclassical"
	StyleIndochine    = "indochine"
	StyleMinimalist   = "minimalist"
)

// HouseTypes lists the selectable house types in wizard order.
func HouseTypes() []string {
	return []string{HouseTypeTownhouse, HouseTypeVilla, HouseTypeGarden}
}

// Styles lists the selectable styles in wizard order.
func Styles() []string {
	return []string{StyleModern, StyleNeoclassical, StyleIndochine, StyleMinimalist}
}

var defaultOptions = Options{
	Shapes: []string{"flat roof", "gable roof"},
	Colors: []string{"white", "gray", "beige"},
}

// shapesByStyle narrows the roof/shape concepts per style. Styles not listed
// fall back to the defaults.
var shapesByStyle = map[string][]string{
	StyleModern:       {"flat roof", "cantilevered block", "double-height void"},
	StyleMinimalist:   {"flat roof", "single monolithic block"},
	StyleNeoclassical: {"mansard roof", "hip roof", "symmetrical portico"},
	StyleIndochine:    {"hip roof", "deep eaves", "courtyard layout"},
}

// colorsByStyle narrows the palettes per style.
var colorsByStyle = map[string][]string{
	StyleModern:       {"white", "gray", "charcoal", "wood accent"},
	StyleMinimalist:   {"white", "light gray"},
	StyleNeoclassical: {"cream", "ivory", "champagne gold accent"},
	StyleIndochine:    {"yellow ochre", "white", "dark wood accent"},
}

// villaOnlyShapes are additional concepts that need a detached plot; they are
// offered only for villas and garden houses.
var villaOnlyShapes = []string{"L-shaped layout", "U-shaped layout"}

// OptionsFor returns the shape and color options available after selecting a
// house type and style. Unknown inputs degrade to the default option set.
func OptionsFor(houseType, style string) Options {
	opts := Options{
		Shapes: defaultOptions.Shapes,
		Colors: defaultOptions.Colors,
	}

	if shapes, ok := shapesByStyle[style]; ok {
		opts.Shapes = shapes
	}
	if colors, ok := colorsByStyle[style]; ok {
		opts.Colors = colors
	}

	if houseType == HouseTypeVilla || houseType == HouseTypeGarden {
		shapes := make([]string, 0, len(opts.Shapes)+len(villaOnlyShapes))
		shapes = append(shapes, opts.Shapes...)
		shapes = append(shapes, villaOnlyShapes...)
		opts.Shapes = shapes
	}

	return opts
}
