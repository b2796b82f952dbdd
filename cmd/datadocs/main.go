// File path: cmd/datadocs/main.go
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"

	"github.com/zhupanlab/datadocs/internal/api"
	"github.com/zhupanlab/datadocs/internal/common"
	"github.com/zhupanlab/datadocs/internal/data/orchestrator"
	"github.com/zhupanlab/datadocs/internal/pipespec"
)

func main() {
	logger := common.Logger()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := godotenv.Load(); err != nil {
		logger.Warn("datadocs: .env file not loaded", "error", err)
	} else {
		logger.Info("datadocs: environment loaded from .env")
	}

	addr := flag.String("addr", ":8082", "listen address")
	catalogPath := flag.String("catalog", defaultCatalogPath(), "path to the SQLite catalog database")
	archivePath := flag.String("archive", defaultArchivePath(), "directory for archived manifest runs")
	dataDir := flag.String("data-dir", "", "base directory for relative pull paths")
	specPath := flag.String("spec", "", "pipeline spec to refresh before serving (empty to skip)")
	refreshOnly := flag.Bool("refresh-only", false, "run the pipeline refresh and exit without serving")
	flag.Parse()

	logger.Info("datadocs: startup initiated", "addr", *addr, "catalog", *catalogPath)

	orchCfg, err := orchestrator.LoadConfig()
	if err != nil {
		logger.Error("datadocs: orchestrator config load failed", "error", err)
		fmt.Println("orchestrator config error:", err)
		os.Exit(1)
	}
	if trimmed := strings.TrimSpace(*catalogPath); trimmed != "" {
		orchCfg.CatalogPath = trimmed
	}
	if trimmed := strings.TrimSpace(*archivePath); trimmed != "" {
		orchCfg.ArchivePath = trimmed
	}
	if trimmed := strings.TrimSpace(*dataDir); trimmed != "" {
		orchCfg.DataDir = trimmed
	}

	orch, err := orchestrator.New(ctx, orchCfg)
	if err != nil {
		logger.Error("datadocs: orchestrator initialization failed", "error", err)
		fmt.Println("orchestrator error:", err)
		os.Exit(1)
	}
	defer orch.Close()

	if trimmed := strings.TrimSpace(*specPath); trimmed != "" {
		spec, err := pipespec.Load(trimmed)
		if err != nil {
			logger.Error("datadocs: pipeline spec load failed", "path", trimmed, "error", err)
			fmt.Println("spec error:", err)
			os.Exit(1)
		}
		report, err := orch.Refresh(ctx, spec)
		if err != nil {
			logger.Error("datadocs: refresh failed", "pipeline", spec.Pipeline.ID, "error", err)
			fmt.Println("refresh error:", err)
			os.Exit(1)
		}
		logger.Info("datadocs: refresh complete",
			"pipeline", spec.Pipeline.ID,
			"run", report.RunID,
			"dataframes", len(report.Results),
			"failures", report.Failures)
		fmt.Printf("Refreshed %s: %d dataframes, %d failures (run %s)\n",
			spec.Pipeline.ID, len(report.Results), report.Failures, report.RunID)
		if *refreshOnly {
			if report.Failures > 0 {
				os.Exit(1)
			}
			return
		}
	}

	server, err := api.NewServer(orch)
	if err != nil {
		logger.Error("datadocs: server construction failed", "error", err)
		fmt.Println("server error:", err)
		os.Exit(1)
	}

	logger.Info("datadocs: server listening", "addr", *addr, "health", "/healthz")
	fmt.Printf("Serving on %s\n", *addr)
	reachable := *addr
	if strings.HasPrefix(reachable, ":") {
		reachable = "localhost" + reachable
	}
	logger.Info("datadocs: verify reachability", "suggestion", fmt.Sprintf("curl http://%s/healthz", reachable))
	if err := http.ListenAndServe(*addr, server.Router()); err != nil {
		logger.Error("datadocs: server stopped", "error", err)
		fmt.Println("server stopped:", err)
	}
}

func defaultCatalogPath() string {
	return filepath.Join("data", "catalog.db")
}

func defaultArchivePath() string {
	return filepath.Join("data", "archive")
}
