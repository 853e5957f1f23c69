package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/thayquyendau/qd-ai-render/internal/auth"
	"github.com/thayquyendau/qd-ai-render/internal/history"
	"github.com/thayquyendau/qd-ai-render/internal/logging"
)

// CLI flags
var (
	portFlag      int
	stateDirFlag  string
	tableFlag     string
	workspaceFlag string
)

// Build identity, stamped via -ldflags "-X main.commitHash=... -X main.buildTime=...".
var (
	commitHash = "dev"
	buildTime  = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "render-web",
	Short: "Local web server for the AI render studio",
	Long: `Render Web starts a local JSON API server backing the render studio
front-end: image upload, mask-based editing, generation fan-out, material
suggestions, and per-feature history with a virtual tour.

Examples:
  render-web
  render-web --port 9090
  render-web --table qd-render-state --workspace studio-1`,
	Run: runMain,
}

func init() {
	rootCmd.Flags().IntVar(&portFlag, "port", 8080, "Port to listen on")
	rootCmd.Flags().StringVar(&stateDirFlag, "state-dir", "", "Directory for persisted history (default ~/.qd-render/state)")
	rootCmd.Flags().StringVar(&tableFlag, "table", "", "DynamoDB table for persisted history (overrides --state-dir)")
	rootCmd.Flags().StringVar(&workspaceFlag, "workspace", "default", "Workspace id scoping DynamoDB history")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runMain(cmd *cobra.Command, args []string) {
	start := time.Now()

	// .env is optional; flags and real env win.
	_ = godotenv.Load()
	logging.Init()

	startup := logging.NewStartupLogger("render-web").
		CommitHash(commitHash).
		BuildTime(buildTime)

	ctx := context.Background()
	kv, err := buildKV(ctx, startup)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize state backend")
	}
	initStores(ctx, kv)

	// A missing or invalid key is not fatal: the UI prompts for one and
	// saves it through the credentials endpoint.
	if key, err := auth.GetAPIKey(); err == nil {
		if cerr := connectGemini(ctx, key); cerr != nil {
			log.Warn().Err(cerr).Msg("Stored API key rejected, waiting for a new one")
		} else {
			startup.Feature("gemini", true)
		}
	} else {
		log.Warn().Msg("No API key configured, waiting for one from the UI")
		startup.Feature("gemini", false)
	}

	mux := http.NewServeMux()

	mux.HandleFunc("/api/upload", handleUpload)
	mux.HandleFunc("/api/generate", handleGenerate)
	mux.HandleFunc("/api/edit", handleEdit)
	mux.HandleFunc("/api/jobs/", handleJobStatus)
	mux.HandleFunc("/api/describe", handleDescribe)
	mux.HandleFunc("/api/materials", handleMaterials)
	mux.HandleFunc("/api/tasks", handleTasks)
	mux.HandleFunc("/api/options", handleOptions)
	mux.HandleFunc("/api/history", handleHistoryList)
	mux.HandleFunc("/api/history/clear", handleHistoryClear)
	mux.HandleFunc("/api/history/restore", handleHistoryRestore)
	mux.HandleFunc("/api/tour", handleTourState)
	mux.HandleFunc("/api/tour/frames", handleTourAppend)
	mux.HandleFunc("/api/tour/undo", handleTourUndo)
	mux.HandleFunc("/api/tour/redo", handleTourRedo)
	mux.HandleFunc("/api/export", handleExport)
	mux.HandleFunc("/api/credentials", handleCredentials)

	handler := withLogging(withCORS(mux))

	addr := fmt.Sprintf(":%d", portFlag)
	srv := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info().Msg("Shutting down...")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		srv.Shutdown(ctx)
	}()

	startup.Config("port", fmt.Sprintf("%d", portFlag))
	startup.InitDuration(time.Since(start))
	startup.Log()

	log.Info().Int("port", portFlag).Msg("Starting web server")
	fmt.Printf("\n  Render Studio API: http://localhost:%d\n\n", portFlag)

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal().Err(err).Msg("Server failed")
	}
}

// buildKV selects the history backend: DynamoDB when a table is configured,
// otherwise one file per key under the state directory.
func buildKV(ctx context.Context, startup *logging.StartupLogger) (history.KV, error) {
	table := tableFlag
	if table == "" {
		table = os.Getenv("RENDER_DYNAMO_TABLE")
	}
	if table != "" {
		awsCfg, err := config.LoadDefaultConfig(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to load AWS config: %w", err)
		}
		startup.DynamoTable("history", table)
		return history.NewDynamoKV(dynamodb.NewFromConfig(awsCfg), table, workspaceFlag), nil
	}

	dir := stateDirFlag
	if dir == "" {
		dir = os.Getenv("RENDER_STATE_DIR")
	}
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("cannot determine home directory: %w", err)
		}
		dir = filepath.Join(home, ".qd-render", "state")
	}
	startup.StateDir("history", dir)
	return history.NewFileKV(dir, 0)
}

// --- Middleware ---

func withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		if strings.HasPrefix(r.URL.Path, "/api/") {
			log.Info().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Dur("duration", time.Since(start)).
				Msg("API request")
		}
	})
}

func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Only allow localhost origins; this server never faces the internet.
		origin := r.Header.Get("Origin")
		if origin != "" && (strings.HasPrefix(origin, "http://localhost:") || strings.HasPrefix(origin, "http://127.0.0.1:")) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
