package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/thayquyendau/qd-ai-render/internal/gen"
	"github.com/thayquyendau/qd-ai-render/internal/imaging"
	"github.com/thayquyendau/qd-ai-render/internal/material"
	"github.com/thayquyendau/qd-ai-render/internal/prompt"
)

// Subcommand flags
var (
	taskFlag        string
	instructionFlag string
	strokesFlag     string
)

var generateCmd = &cobra.Command{
	Use:   "generate <image>",
	Short: "Render a source image with a task template or custom prompt",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		client := setup(ctx)
		src := loadSource(args[0])

		instruction := instructionFlag
		if instruction == "" {
			instruction = prompt.ForTask(taskFlag, prompt.TaskData{})
		}

		results, err := client.Generate(ctx, src, instruction, loadReference(), gen.Options{
			Count:       countFlag,
			HighQuality: highQualityFlag,
			AspectRatio: aspectRatioFlag,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("Generation failed")
		}
		if len(results) == 0 {
			log.Fatal().Msg("The model returned no image")
		}

		fmt.Printf("%d of %d renders succeeded\n", len(results), countFlag)
		writeResults("render", results)
	},
}

var editCmd = &cobra.Command{
	Use:   "edit <image>",
	Short: "Replace a painted region of the image",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		if strokesFlag == "" {
			log.Fatal().Msg("--strokes is required")
		}
		if instructionFlag == "" {
			log.Fatal().Msg("--instruction is required")
		}

		ctx := context.Background()
		client := setup(ctx)
		src := loadSource(args[0])

		strokesData, err := os.ReadFile(strokesFlag)
		if err != nil {
			log.Fatal().Err(err).Str("path", strokesFlag).Msg("Failed to read stroke layer")
		}
		var layer imaging.StrokeLayer
		if err := json.Unmarshal(strokesData, &layer); err != nil {
			log.Fatal().Err(err).Msg("Invalid stroke layer JSON")
		}
		if layer.IsEmpty() {
			log.Fatal().Msg("The stroke layer contains no strokes")
		}

		mask, err := imaging.ComposeMask(layer, src.Width, src.Height)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to compose mask")
		}
		maskPNG, err := imaging.EncodeMaskPNG(mask)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to encode mask")
		}

		results, err := client.EditMasked(ctx, src, maskPNG, loadReference(), instructionFlag, gen.Options{
			Count:       1,
			HighQuality: highQualityFlag,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("Edit failed")
		}
		if len(results) == 0 {
			log.Fatal().Msg("The model returned no image")
		}

		writeResults("edit", results)
	},
}

var describeCmd = &cobra.Command{
	Use:   "describe <image>",
	Short: "Draft an edit instruction from an image",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		client := setup(ctx)
		src := loadSource(args[0])

		text, err := client.Describe(ctx, src, taskFlag)
		if err != nil {
			log.Fatal().Err(err).Msg("Describe failed")
		}
		fmt.Println(text)
	},
}

var materialsCmd = &cobra.Command{
	Use:   "materials <image>",
	Short: "Suggest facade finishing options at three price tiers",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		client := setup(ctx)
		src := loadSource(args[0])

		options, err := material.Suggest(ctx, client, src)
		if err != nil {
			log.Fatal().Err(err).Msg("Material suggestion failed")
		}

		for _, opt := range options {
			fmt.Printf("[%s] %s\n", opt.ID, opt.Title)
			fmt.Printf("  materials: %s\n", opt.Materials)
			if opt.DesignKeywords != "" {
				fmt.Printf("  design:    %s\n", opt.DesignKeywords)
			}
			if opt.GateDesign != "" {
				fmt.Printf("  gate:      %s\n", opt.GateDesign)
			}
			if opt.Description != "" {
				fmt.Printf("  %s\n", opt.Description)
			}
		}
	},
}
