// Package main provides the WOA climatology HTTP server.
package main

import (
	"flag"
	"fmt"

	"github.com/sirupsen/logrus"

	"go.ngs.io/woa-api/internal/adapter/fetch"
	"go.ngs.io/woa-api/internal/adapter/store"
	"go.ngs.io/woa-api/internal/adapter/store/csv"
	"go.ngs.io/woa-api/internal/config"
	httpHandler "go.ngs.io/woa-api/internal/http"
	"go.ngs.io/woa-api/internal/usecase"
)

const version = "0.1.0"

func main() {
	// Parse command-line flags.
	showHelp := flag.Bool("help", false, "Show usage information")
	showVersion := flag.Bool("version", false, "Show version information")
	configPath := flag.String("config", "", "Path to a TOML configuration file")
	flag.Parse()

	if *showHelp {
		printUsage()
		return
	}

	if *showVersion {
		fmt.Printf("woa-api version %s\n", version)
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		logrus.Fatalf("Failed to load configuration: %v", err)
	}
	log := cfg.Logger()

	log.Info("Starting WOA API server...")
	log.WithFields(logrus.Fields{
		"port":         cfg.Port,
		"download_dir": cfg.DownloadDir,
		"offline":      cfg.Offline,
	}).Info("Configuration loaded")

	// Initialize file source. Offline mode serves only extracted archives.
	ledger := fetch.NewLedger(cfg.DownloadDir)
	var files store.FileSource
	if cfg.Offline {
		files = fetch.DirSource{Dir: cfg.DownloadDir}
		log.Info("Downloads disabled (offline mode)")
	} else {
		fetcher := fetch.NewFetcher(cfg.DownloadDir, cfg.BaseURL, log)
		ledger = fetcher.Ledger
		files = fetcher
		log.WithField("base_url", cfg.BaseURL).Info("Archives will be downloaded on demand")
	}

	// Initialize use case.
	climatologyUC := usecase.NewClimatologyUseCase(files, csv.NewGridLoader(log), ledger, log)

	// Setup router.
	router := httpHandler.SetupRouter(climatologyUC, cfg.CORSAllowedOrigins, log)

	// Start server.
	addr := fmt.Sprintf(":%s", cfg.Port)
	log.Infof("Server listening on %s", addr)
	log.Infof("Health check: http://localhost:%s/health", cfg.Port)
	log.Info("API endpoints:")
	log.Info("  - GET /v1/catalog")
	log.Info("  - GET /v1/grids/summary")
	log.Info("  - GET /v1/grids/profile")
	log.Info("  - GET /v1/grids/value")
	log.Info("  - GET /v1/citation")

	if err := router.Run(addr); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

// printUsage prints usage information.
func printUsage() {
	fmt.Printf("WOA API Server v%s\n\n", version)
	fmt.Println("USAGE:")
	fmt.Println("  woa-api [flags]")
	fmt.Println()
	fmt.Println("FLAGS:")
	fmt.Println("  -help          Show this help message")
	fmt.Println("  -version       Show version information")
	fmt.Println("  -config PATH   TOML configuration file (optional)")
	fmt.Println()
	fmt.Println("ENVIRONMENT VARIABLES (override the configuration file):")
	fmt.Println("  PORT                    Server port (default: 8080)")
	fmt.Println("  WOA_DOWNLOAD_DIR        Archive download directory (default: ./woa_downloads)")
	fmt.Println("  WOA_BASE_URL            WOA23 data root (default: NCEI)")
	fmt.Println("  WOA_OFFLINE             Serve only already extracted archives (default: false)")
	fmt.Println("  LOG_LEVEL               Log level (default: info)")
	fmt.Println("  CORS_ALLOWED_ORIGINS    Comma-separated list of allowed origins (default: all origins)")
	fmt.Println()
	fmt.Println("EXAMPLES:")
	fmt.Println("  # Start server with default settings")
	fmt.Println("  woa-api")
	fmt.Println()
	fmt.Println("  # Serve a pre-populated directory without network access")
	fmt.Println("  WOA_OFFLINE=true WOA_DOWNLOAD_DIR=/data/woa woa-api")
	fmt.Println()
	fmt.Println("API ENDPOINTS:")
	fmt.Println("  GET /health                Health check")
	fmt.Println("  GET /v1/catalog            List variable, span, resolution, field and time codes")
	fmt.Println("  GET /v1/grids/summary      Grid shape, coverage, volume means (v, t, r, field, time)")
	fmt.Println("  GET /v1/grids/profile      Nearest-node depth profile (adds lat, lon)")
	fmt.Println("  GET /v1/grids/value        Interpolated value (adds lat, lon, depth_index, time_index)")
	fmt.Println("  GET /v1/citation           WOA23 citation for a variable (v)")
	fmt.Println()
}
