// Package prompt assembles the instruction text sent to the image model.
//
// Every task identifier has exactly one canonical template, stored as a text
// file under templates/ and embedded at compile time. Structured wizard input
// (house type, colors, materials) is concatenated in a fixed clause order so
// the resulting instruction is deterministic for a given set of selections.
package prompt

import (
	"bytes"
	_ "embed"
	"fmt"
	"strings"
	"text/template"
)

// Task identifiers. The web layer passes these through from the UI wizards;
// anything unknown falls back to the generic instruction.
const (
	TaskExteriorRender   = "exterior"
	TaskInteriorRender   = "interior"
	TaskFloorplanRender  = "floorplan"
	TaskColoredFloorplan = "floorplan-color"
	TaskFacadeFromLand   = "facade-from-land"
	TaskStaging          = "staging"
	TaskUpscale          = "upscale"
	TaskAngleVariation   = "angle"
)

// --- Static task prompts ---

//go:embed templates/exterior-render.txt
var exteriorRenderPrompt string

//go:embed templates/interior-render.txt
var interiorRenderPrompt string

//go:embed templates/floorplan-render.txt
var floorplanRenderPrompt string

//go:embed templates/floorplan-color.txt
var floorplanColorPrompt string

//go:embed templates/upscale.txt
var upscalePrompt string

//go:embed templates/generic.txt
var genericPrompt string

// --- Auto-describe analysis prompts ---

//go:embed templates/describe-exterior.txt
var describeExteriorPrompt string

//go:embed templates/describe-interior.txt
var describeInteriorPrompt string

// --- Dynamic templates ---

//go:embed templates/staging.txt
var stagingTemplateText string

//go:embed templates/angle.txt
var angleTemplateText string

//go:embed templates/edit-masked.txt
var editMaskedTemplateText string

//go:embed templates/edit-masked-ref.txt
var editMaskedRefTemplateText string

//go:embed templates/material-suggest.txt
var materialSuggestPrompt string

// Pre-parsed templates. template.Must panics on malformed templates, catching
// errors at program startup rather than at call time.
var (
	stagingTmpl       = template.Must(template.New("staging").Parse(stagingTemplateText))
	angleTmpl         = template.Must(template.New("angle").Parse(angleTemplateText))
	editMaskedTmpl    = template.Must(template.New("edit-masked").Parse(editMaskedTemplateText))
	editMaskedRefTmpl = template.Must(template.New("edit-masked-ref").Parse(editMaskedRefTemplateText))
)

// TaskData carries the dynamic fields for task templates that need them.
type TaskData struct {
	// Room and Items drive the staging template.
	Room  string
	Items string
	// Angle drives the camera-angle variation template.
	Angle string
}

// ForTask returns the canonical instruction for a task identifier.
// Unknown identifiers fall back to the generic instruction.
func ForTask(task string, data TaskData) string {
	switch task {
	case TaskExteriorRender:
		return strings.TrimSpace(exteriorRenderPrompt)
	case TaskInteriorRender:
		return strings.TrimSpace(interiorRenderPrompt)
	case TaskFloorplanRender:
		return strings.TrimSpace(floorplanRenderPrompt)
	case TaskColoredFloorplan:
		return strings.TrimSpace(floorplanColorPrompt)
	case TaskUpscale:
		return strings.TrimSpace(upscalePrompt)
	case TaskStaging:
		return render(stagingTmpl, data)
	case TaskAngleVariation:
		return render(angleTmpl, data)
	default:
		return strings.TrimSpace(genericPrompt)
	}
}

// DescribePrompt returns the analysis prompt used to auto-draft an
// instruction from the uploaded image for the given task. Interior tasks get
// the interior variant; everything else drafts against the exterior variant.
func DescribePrompt(task string) string {
	switch task {
	case TaskInteriorRender, TaskStaging:
		return strings.TrimSpace(describeInteriorPrompt)
	default:
		return strings.TrimSpace(describeExteriorPrompt)
	}
}

// MaterialSuggestPrompt returns the prompt that asks the model for the three
// material tiers as JSON.
func MaterialSuggestPrompt() string {
	return strings.TrimSpace(materialSuggestPrompt)
}

// editData carries the user instruction into the edit directive templates.
type editData struct {
	Instruction string
}

// EditDirective wraps a user edit instruction in the masked-region directive.
// With a reference image present the directive additionally tells the model
// to match the reference material.
func EditDirective(instruction string, withReference bool) string {
	if withReference {
		return render(editMaskedRefTmpl, editData{Instruction: instruction})
	}
	return render(editMaskedTmpl, editData{Instruction: instruction})
}

// render executes a pre-parsed template and returns the trimmed result.
func render(tmpl *template.Template, data interface{}) string {
	var buf bytes.Buffer
	// Execution errors are not expected with these simple templates; return
	// whatever was rendered.
	_ = tmpl.Execute(&buf, data)
	return strings.TrimSpace(buf.String())
}

// --- Facade prompt builder ---

// FacadeSpec is the structured wizard input for the facade-from-land and
// exterior configuration flows. Empty fields contribute no clause.
type FacadeSpec struct {
	HouseType      string
	Style          string
	FloorCount     int
	ColorPalette   string
	Materials      string
	DesignKeywords string
	GateDesign     string
}

// closingClause anchors every facade prompt: the model must leave the plot's
// surroundings (street, neighbors, sky) untouched.
const closingClause = "Keep the surrounding context — street, neighboring buildings, terrain and sky — exactly as in the source image."

// BuildFacade concatenates the facade instruction from the structured spec in
// a fixed clause order: house type/style/floors, color, materials, design
// keywords, gate design, then the closing preserve-surroundings clause.
func BuildFacade(spec FacadeSpec) string {
	var clauses []string

	head := facadeHead(spec)
	if head != "" {
		clauses = append(clauses, head)
	}
	if spec.ColorPalette != "" {
		clauses = append(clauses, fmt.Sprintf("Use a %s color palette.", spec.ColorPalette))
	}
	if spec.Materials != "" {
		clauses = append(clauses, fmt.Sprintf("Build the facade with these materials: %s.", spec.Materials))
	}
	if spec.DesignKeywords != "" {
		clauses = append(clauses, fmt.Sprintf("Design emphasis: %s.", spec.DesignKeywords))
	}
	if spec.GateDesign != "" {
		clauses = append(clauses, fmt.Sprintf("Gate and fence: %s.", spec.GateDesign))
	}
	clauses = append(clauses, closingClause)

	return strings.Join(clauses, " ")
}

// facadeHead builds the leading house type / style / floor count clause.
func facadeHead(spec FacadeSpec) string {
	var sb strings.Builder
	sb.WriteString("Design a photorealistic")
	if spec.FloorCount > 0 {
		fmt.Fprintf(&sb, " %d-story", spec.FloorCount)
	}
	if spec.Style != "" {
		fmt.Fprintf(&sb, " %s", spec.Style)
	}
	if spec.HouseType != "" {
		fmt.Fprintf(&sb, " %s", spec.HouseType)
	} else {
		sb.WriteString(" house")
	}
	sb.WriteString(" on the land plot shown in the source image.")
	return sb.String()
}
