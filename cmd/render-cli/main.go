package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/thayquyendau/qd-ai-render/internal/auth"
	"github.com/thayquyendau/qd-ai-render/internal/gen"
	"github.com/thayquyendau/qd-ai-render/internal/imaging"
	"github.com/thayquyendau/qd-ai-render/internal/logging"
)

// Shared flags
var (
	outDirFlag      string
	countFlag       int
	highQualityFlag bool
	aspectRatioFlag string
	referenceFlag   string
)

var rootCmd = &cobra.Command{
	Use:   "render-cli",
	Short: "Terminal client for the AI render studio",
	Long: `Render CLI drives the render pipeline from the terminal: generate
task renders from a source image, run masked edits, draft instructions from
an image, and fetch material tier suggestions.

Examples:
  render-cli generate photo.jpg --task exterior --count 4
  render-cli generate plan.png --task floorplan --hq
  render-cli edit house.jpg --strokes strokes.json -i "replace the cladding"
  render-cli describe room.jpg --task interior
  render-cli materials plot.jpg`,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&outDirFlag, "out", "o", ".", "Directory for result images")

	rootCmd.AddCommand(generateCmd, editCmd, describeCmd, materialsCmd)

	generateCmd.Flags().StringVar(&taskFlag, "task", "exterior", "Render task id")
	generateCmd.Flags().StringVarP(&instructionFlag, "instruction", "i", "", "Prompt override (default: the task template)")
	generateCmd.Flags().IntVarP(&countFlag, "count", "n", 1, "Number of renders to request")
	generateCmd.Flags().BoolVar(&highQualityFlag, "hq", false, "Use the high-quality model")
	generateCmd.Flags().StringVar(&aspectRatioFlag, "aspect", "auto", "Aspect ratio (auto keeps the source ratio)")
	generateCmd.Flags().StringVar(&referenceFlag, "reference", "", "Reference image path")

	editCmd.Flags().StringVar(&strokesFlag, "strokes", "", "JSON stroke layer file (required)")
	editCmd.Flags().StringVarP(&instructionFlag, "instruction", "i", "", "Edit instruction (required)")
	editCmd.Flags().BoolVar(&highQualityFlag, "hq", false, "Use the high-quality model")
	editCmd.Flags().StringVar(&referenceFlag, "reference", "", "Material reference image path")

	describeCmd.Flags().StringVar(&taskFlag, "task", "exterior", "Render task id")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// setup initializes logging and returns a validated client.
func setup(ctx context.Context) *gen.Client {
	_ = godotenv.Load()
	logging.Init()

	apiKey, err := auth.GetAPIKey()
	if err != nil {
		handleValidationError(err)
	}

	client, err := gen.NewClient(ctx, apiKey)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create Gemini client")
	}
	if err := auth.ValidateAPIKey(ctx, client.Raw()); err != nil {
		handleValidationError(err)
	}
	return client
}

// loadSource reads and validates an image file.
func loadSource(path string) *imaging.SourceImage {
	data, err := os.ReadFile(path)
	if err != nil {
		log.Fatal().Err(err).Str("path", path).Msg("Failed to read image")
	}
	src, err := imaging.NewSourceImage(data)
	if err != nil {
		log.Fatal().Err(err).Str("path", path).Msg("Not a usable image")
	}
	return src
}

// loadReference loads the optional reference image flag.
func loadReference() *imaging.SourceImage {
	if referenceFlag == "" {
		return nil
	}
	return loadSource(referenceFlag)
}

// extensionByMIME maps result media types to file extensions.
var extensionByMIME = map[string]string{
	"image/png":  ".png",
	"image/jpeg": ".jpg",
	"image/webp": ".webp",
}

// writeResults saves each result under the output directory and prints the
// paths.
func writeResults(prefix string, results []gen.Result) {
	if err := os.MkdirAll(outDirFlag, 0o755); err != nil {
		log.Fatal().Err(err).Str("dir", outDirFlag).Msg("Failed to create output directory")
	}

	for i, res := range results {
		ext := extensionByMIME[res.MIMEType]
		if ext == "" {
			ext = ".bin"
		}
		path := filepath.Join(outDirFlag, fmt.Sprintf("%s-%02d%s", prefix, i+1, ext))
		if err := os.WriteFile(path, res.Data, 0o644); err != nil {
			log.Fatal().Err(err).Str("path", path).Msg("Failed to write result")
		}
		fmt.Println(path)
	}
}

// handleValidationError exits with a message matched to the failure type.
func handleValidationError(err error) {
	var validationErr *auth.ValidationError
	if errors.As(err, &validationErr) {
		switch validationErr.Type {
		case auth.ErrTypeNoKey:
			log.Fatal().Msg("No API key configured. Set GEMINI_API_KEY or save one under ~/.qd-render/credentials")
		case auth.ErrTypeInvalidKey:
			log.Fatal().Err(err).Msg("Invalid API key. Please check your API key and try again")
		case auth.ErrTypeNetworkError:
			log.Fatal().Err(err).Msg("Network error. Please check your internet connection")
		case auth.ErrTypeQuotaExceeded:
			log.Fatal().Err(err).Msg("API quota exceeded. Please try again later or check your usage limits")
		default:
			log.Fatal().Err(err).Msg("API key validation failed")
		}
	}
	log.Fatal().Err(err).Msg("API key validation failed")
}
