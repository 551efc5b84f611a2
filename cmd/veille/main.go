// CLAUDE:SUMMARY Entry point for the veille daemon — YAML config, cron collection, chi admin router.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hazyhaar/veille"
	"github.com/hazyhaar/veille/internal/analysis"
	"github.com/hazyhaar/veille/internal/collector"
	"github.com/hazyhaar/veille/internal/dbopen"
	"github.com/hazyhaar/veille/internal/fetch"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
	_ "modernc.org/sqlite"
)

// fileConfig is the YAML configuration file shape. Every field has a
// default; the file itself is optional when sources come from elsewhere.
type fileConfig struct {
	LogLevel  string `yaml:"log_level"`
	Database  string `yaml:"database"`
	BufferDir string `yaml:"buffer_dir"`

	// Cron expressions. Empty disables the job.
	Schedule        string `yaml:"schedule"`
	CleanupSchedule string `yaml:"cleanup_schedule"`

	// CleanupRetentionDays bounds how long unused expired cache entries
	// survive before the nightly sweep removes them.
	CleanupRetentionDays int `yaml:"cleanup_retention_days"`

	Fetch struct {
		TimeoutSeconds int    `yaml:"timeout_seconds"`
		MaxBytes       int64  `yaml:"max_bytes"`
		UserAgent      string `yaml:"user_agent"`
	} `yaml:"fetch"`

	Collector struct {
		TotalLimit          int            `yaml:"total_limit"`
		SourceLimits        map[string]int `yaml:"source_limits"`
		DefaultSourceLimit  int            `yaml:"default_source_limit"`
		Keywords            []string       `yaml:"keywords"`
		MaxAgeDays          int            `yaml:"max_age_days"`
		MinTitleLength      int            `yaml:"min_title_length"`
		DedupEnabled        *bool          `yaml:"dedup_enabled"` // off only when explicitly false
		SimilarityThreshold float64        `yaml:"similarity_threshold"`
	} `yaml:"collector"`

	Analysis struct {
		TTLHours int `yaml:"ttl_hours"`
	} `yaml:"analysis"`

	Sources []veille.SourceConfig `yaml:"sources"`
}

func loadFileConfig(path string) (*fileConfig, error) {
	var fc fileConfig
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return &fc, nil
	}
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return &fc, nil
}

// serviceConfig maps the file shape onto the service Config.
func serviceConfig(fc *fileConfig) *veille.Config {
	cfg := &veille.Config{
		Fetch: fetch.Config{
			Timeout:   time.Duration(fc.Fetch.TimeoutSeconds) * time.Second,
			MaxBytes:  fc.Fetch.MaxBytes,
			UserAgent: fc.Fetch.UserAgent,
		},
		Collector: collector.Config{
			TotalLimit:          fc.Collector.TotalLimit,
			SourceLimits:        fc.Collector.SourceLimits,
			DefaultSourceLimit:  fc.Collector.DefaultSourceLimit,
			Keywords:            fc.Collector.Keywords,
			MaxAgeDays:          fc.Collector.MaxAgeDays,
			MinTitleLength:      fc.Collector.MinTitleLength,
			DisableDedup:        fc.Collector.DedupEnabled != nil && !*fc.Collector.DedupEnabled,
			SimilarityThreshold: fc.Collector.SimilarityThreshold,
		},
		Analysis:  analysis.Config{TTL: time.Duration(fc.Analysis.TTLHours) * time.Hour},
		Sources:   fc.Sources,
		BufferDir: fc.BufferDir,
	}
	return cfg
}

func main() {
	port := env("PORT", "8086")
	configPath := env("VEILLE_CONFIG", "veille.yml")

	fc, err := loadFileConfig(configPath)
	if err != nil {
		slog.Error("config", "error", err)
		os.Exit(1)
	}

	dbPath := env("VEILLE_DB", fc.Database)
	if dbPath == "" {
		dbPath = "db/veille.db"
	}
	logLevel := env("LOG_LEVEL", fc.LogLevel)

	// Logging.
	var lvl slog.Level
	switch logLevel {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
	slog.SetDefault(logger)

	// Signal context.
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	db, err := dbopen.Open(dbPath, dbopen.WithMkdirAll())
	if err != nil {
		slog.Error("open db", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	svc, err := veille.New(db, serviceConfig(fc), logger)
	if err != nil {
		slog.Error("init service", "error", err)
		os.Exit(1)
	}
	defer svc.Close()
	slog.Info("veille: configured", "sources", svc.SourceNames(), "db", dbPath)

	// Scheduled jobs: periodic collection plus a nightly cache sweep.
	retentionDays := fc.CleanupRetentionDays
	if retentionDays <= 0 {
		retentionDays = 30
	}
	sched := cron.New()
	if spec := env("VEILLE_SCHEDULE", fc.Schedule); spec != "" {
		if _, err := sched.AddFunc(spec, func() {
			if _, err := svc.CollectAll(ctx); err != nil {
				slog.Error("scheduled collect", "error", err)
			}
		}); err != nil {
			slog.Error("schedule", "spec", spec, "error", err)
			os.Exit(1)
		}
	}
	if spec := env("VEILLE_CLEANUP_SCHEDULE", fc.CleanupSchedule); spec != "" {
		if _, err := sched.AddFunc(spec, func() {
			if _, err := svc.CleanupExpired(ctx, time.Duration(retentionDays)*24*time.Hour); err != nil {
				slog.Error("scheduled cleanup", "error", err)
			}
		}); err != nil {
			slog.Error("cleanup schedule", "spec", spec, "error", err)
			os.Exit(1)
		}
	}
	sched.Start()
	defer sched.Stop()

	r := chi.NewRouter()

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, 200, map[string]any{
			"status":  "ok",
			"sources": svc.SourceNames(),
		})
	})

	r.Get("/stats", func(w http.ResponseWriter, r *http.Request) {
		stats, err := svc.Stats(r.Context())
		if err != nil {
			writeJSON(w, 500, map[string]string{"error": err.Error()})
			return
		}
		cache, err := svc.CacheStats(r.Context())
		if err != nil {
			writeJSON(w, 500, map[string]string{"error": err.Error()})
			return
		}
		dups, err := svc.DuplicateStats(r.Context(), queryInt(r, "days", 7))
		if err != nil {
			writeJSON(w, 500, map[string]string{"error": err.Error()})
			return
		}
		writeJSON(w, 200, map[string]any{
			"store":      stats,
			"cache":      cache,
			"duplicates": dups,
		})
	})

	r.Get("/runs", func(w http.ResponseWriter, r *http.Request) {
		runs, err := svc.RunHistory(r.Context(), queryInt(r, "limit", 20))
		if err != nil {
			writeJSON(w, 500, map[string]string{"error": err.Error()})
			return
		}
		writeJSON(w, 200, runs)
	})

	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		hist, err := svc.PerformanceHistory(r.Context(), queryInt(r, "days", 30))
		if err != nil {
			writeJSON(w, 500, map[string]string{"error": err.Error()})
			return
		}
		writeJSON(w, 200, hist)
	})

	r.Post("/collect", func(w http.ResponseWriter, r *http.Request) {
		run, err := svc.CollectAll(r.Context())
		if err != nil {
			writeJSON(w, 500, map[string]string{"error": err.Error()})
			return
		}
		writeJSON(w, 200, map[string]any{
			"collected":       len(run.Items),
			"raw":             run.RawCount,
			"filtered":        run.FilteredCount,
			"unique":          run.UniqueCount,
			"near_duplicates": run.NearDuplicates,
			"duplicates":      run.DuplicatesByType,
			"elapsed_ms":      run.Elapsed.Milliseconds(),
			"errors":          run.Errors,
			"sources":         run.SourceStats,
		})
	})

	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		slog.Info("server starting", "port", port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown", "error", err)
	}
	slog.Info("server stopped")
}

func env(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func queryInt(r *http.Request, key string, def int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return def
	}
	return n
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}
