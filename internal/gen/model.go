package gen

import "os"

// Gemini model IDs.
//
// | Model Name             | API Model ID               | Use Case                     |
// |------------------------|----------------------------|------------------------------|
// | Gemini 2.5 Flash Image | gemini-2.5-flash-image     | Fast image generation/edit   |
// | Gemini 3 Pro Image     | gemini-3-pro-image-preview | High-quality image output    |
// | Gemini 2.5 Flash       | gemini-2.5-flash           | Vision analysis, drafting    |
const (
	// ModelFlashImage is the default image generation/editing model.
	ModelFlashImage = "gemini-2.5-flash-image"

	// ModelProImage is the high-quality image model, selected by the
	// "high quality" toggle.
	ModelProImage = "gemini-3-pro-image-preview"

	// ModelAnalyze is the text model used for auto-describe and material
	// suggestions.
	ModelAnalyze = "gemini-2.5-flash"
)

// AspectRatioAuto means "use the source image's own ratio" and is never
// forwarded to the API.
const AspectRatioAuto = "auto"

// ImageModelFor resolves the image model from the quality toggle. Exactly two
// models exist; there is no third path.
func ImageModelFor(highQuality bool) string {
	if highQuality {
		return ModelProImage
	}
	return ModelFlashImage
}

// AnalyzeModelName returns the analysis model, resolved from:
//  1. RENDER_ANALYZE_MODEL environment variable (if set)
//  2. Default: gemini-2.5-flash
func AnalyzeModelName() string {
	if env := os.Getenv("RENDER_ANALYZE_MODEL"); env != "" {
		return env
	}
	return ModelAnalyze
}
