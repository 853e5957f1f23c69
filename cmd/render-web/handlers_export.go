package main

import (
	"archive/zip"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/klauspost/compress/zstd"
	"github.com/ncruces/zenity"
	"github.com/rs/zerolog/log"

	"github.com/thayquyendau/qd-ai-render/internal/history"
)

// zipMethodZstd is the ZIP compression method ID for Zstandard (APPNOTE
// 6.3.7). Registered in init() at level 12, the highest the Go library
// supports.
const zipMethodZstd uint16 = 93

func init() {
	zip.RegisterCompressor(zipMethodZstd, func(w io.Writer) (io.WriteCloser, error) {
		return zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(12)))
	})
}

// POST /api/export {feature, id, dir?} writes a history item's images into
// a ZIP in the chosen folder. With no dir, a native folder picker opens on
// the machine running the server.
func handleExport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httpError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req struct {
		Feature string `json:"feature"`
		ID      int64  `json:"id"`
		Dir     string `json:"dir,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	images, prompt, err := exportImages(req.Feature, req.ID)
	if err != nil {
		httpError(w, http.StatusNotFound, err.Error())
		return
	}

	dir := req.Dir
	if dir == "" {
		dir, err = zenity.SelectFile(
			zenity.Directory(),
			zenity.Title("Choose export folder"),
		)
		if err != nil {
			if errors.Is(err, zenity.ErrCanceled) {
				respondJSON(w, http.StatusOK, map[string]bool{"canceled": true})
				return
			}
			httpError(w, http.StatusInternalServerError, "folder picker failed: "+err.Error())
			return
		}
	}

	zipPath := filepath.Join(dir, fmt.Sprintf("render-%s-%d.zip", req.Feature, req.ID))
	size, err := writeZipBundle(zipPath, images, prompt)
	if err != nil {
		httpError(w, http.StatusInternalServerError, err.Error())
		return
	}

	log.Info().
		Str("path", zipPath).
		Int("images", len(images)).
		Int64("bytes", size).
		Msg("History item exported")

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"path":  zipPath,
		"bytes": size,
	})
}

// exportImages collects the images and prompt of one history item.
func exportImages(feature string, id int64) ([]history.Image, string, error) {
	if feature == "edit" {
		item, ok := editStore.Find(id)
		if !ok {
			return nil, "", fmt.Errorf("history item not found")
		}
		return []history.Image{item.Result}, item.Prompt, nil
	}

	store, ok := featureStore(feature)
	if !ok {
		return nil, "", fmt.Errorf("unknown feature: %s", feature)
	}
	item, ok := store.Find(id)
	if !ok {
		return nil, "", fmt.Errorf("history item not found")
	}
	return item.Images, item.Prompt, nil
}

// extensionByMIME maps stored media types to file extensions.
var extensionByMIME = map[string]string{
	"image/png":  ".png",
	"image/jpeg": ".jpg",
	"image/webp": ".webp",
}

// writeZipBundle creates a zstd-compressed ZIP holding the images plus a
// prompt.txt, and returns its size.
func writeZipBundle(path string, images []history.Image, prompt string) (int64, error) {
	f, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("create ZIP: %w", err)
	}
	defer f.Close()

	zipWriter := zip.NewWriter(f)

	for i, img := range images {
		ext := extensionByMIME[img.MIMEType]
		if ext == "" {
			ext = ".bin"
		}
		header := &zip.FileHeader{
			Name:   fmt.Sprintf("render-%02d%s", i+1, ext),
			Method: zipMethodZstd,
		}
		header.Modified = time.Now()

		writer, err := zipWriter.CreateHeader(header)
		if err != nil {
			return 0, fmt.Errorf("create ZIP entry: %w", err)
		}
		if _, err := writer.Write(img.Data); err != nil {
			return 0, fmt.Errorf("write ZIP entry: %w", err)
		}
	}

	if prompt != "" {
		writer, err := zipWriter.CreateHeader(&zip.FileHeader{
			Name:   "prompt.txt",
			Method: zip.Deflate,
		})
		if err != nil {
			return 0, fmt.Errorf("create prompt entry: %w", err)
		}
		if _, err := io.WriteString(writer, prompt); err != nil {
			return 0, fmt.Errorf("write prompt entry: %w", err)
		}
	}

	if err := zipWriter.Close(); err != nil {
		return 0, fmt.Errorf("close ZIP writer: %w", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		return 0, fmt.Errorf("stat ZIP: %w", err)
	}
	return info.Size(), nil
}
