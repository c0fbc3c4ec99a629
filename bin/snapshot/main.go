package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"snapshot-matcher/internal/capture"
	"snapshot-matcher/internal/env"
	"snapshot-matcher/internal/report"
	"snapshot-matcher/internal/snapshot"
	"snapshot-matcher/internal/storage"
	"snapshot-matcher/internal/telemetry"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/playwright-community/playwright-go"
)

func main() {
	if err := godotenv.Load(env.OrDefault("ENV_FILE", ".env")); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Fatalf("failed to load env file: %v", err)
	}

	var manifestPath string
	var record bool
	var storageBackend string
	var directory string
	var scratchDirectory string
	var concurrency int
	var chromeDevtoolsProtocolURL string
	var timeout time.Duration
	var callbackURL string
	var debug bool
	flag.StringVar(&manifestPath, "manifest", env.OrDefault("MANIFEST", "snapshots.yaml"), "Manifest of snapshot cases")
	flag.BoolVar(&record, "record", env.OrDefault("SNAPSHOT_RECORD", false), "Record references instead of asserting")
	flag.StringVar(&storageBackend, "storage-backend", env.OrDefault("STORAGE_BACKEND", "file"), "Reference storage backend (file or s3)")
	flag.StringVar(&directory, "directory", env.OrDefault("DIRECTORY", ""), "Reference directory for the file backend (defaults to snapshots/ next to the manifest)")
	flag.StringVar(&scratchDirectory, "scratch-directory", env.OrDefault("SCRATCH_DIRECTORY", os.TempDir()), "Directory for mismatching snapshots and diff images")
	flag.IntVar(&concurrency, "concurrency", env.OrDefault("CONCURRENCY", 4), "Cases captured at once")
	flag.StringVar(&chromeDevtoolsProtocolURL, "chrome-devtools-protocol-url", env.OrDefault("CHROME_DEVTOOLS_PROTOCOL_URL", ""), "Connect to existing browser via Chrome DevTools Protocol URL (e.g., http://localhost:9222)")
	flag.DurationVar(&timeout, "timeout", env.OrDefault("TIMEOUT", 30*time.Second), "Navigation timeout per case")
	flag.StringVar(&callbackURL, "callback-url", env.OrDefault("CALLBACK_URL", ""), "Callback URL to send results to")
	flag.BoolVar(&debug, "debug", env.OrDefault("DEBUG", true), "Human readable logs")

	flag.Parse()

	logger, err := telemetry.NewLogger(os.Stderr, debug)
	if err != nil {
		log.Fatalf("failed to create logger: %v", err)
	}

	cases, err := LoadManifest(manifestPath)
	if err != nil {
		log.Fatalf("failed to load manifest: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var references storage.Storage
	keyFunc := snapshot.PrefixKey("")
	switch storageBackend {
	case "file":
		if directory == "" {
			directory = filepath.Join(filepath.Dir(manifestPath), "snapshots")
		}
		references, err = storage.NewFileStorage(ctx, storage.FileConfig{
			Directory: directory,
		})
		if err != nil {
			log.Fatalf("failed to create file storage backend: %v", err)
		}
	case "s3":
		references, err = storage.NewS3Storage(ctx, storage.S3Config{
			Bucket: os.Getenv("S3_BUCKET"),
			Prefix: os.Getenv("S3_PREFIX"),
		})
		if err != nil {
			log.Fatalf("failed to create S3 storage backend: %v", err)
		}
	default:
		log.Fatalf("unknown storage backend: %s", storageBackend)
	}

	scratch, err := storage.NewFileStorage(ctx, storage.FileConfig{
		Directory: scratchDirectory,
	})
	if err != nil {
		log.Fatalf("failed to create scratch storage: %v", err)
	}

	config := capture.DefaultPlaywrightConfig()
	config.Timeout = timeout
	if chromeDevtoolsProtocolURL != "" {
		config.ChromeDevtoolsProtocolURL = chromeDevtoolsProtocolURL
	} else if err := playwright.Install(&playwright.RunOptions{
		Browsers: []string{"chromium"},
	}); err != nil {
		log.Fatalf("failed to install playwright browsers: %v", err)
	}

	capturer, err := capture.NewPlaywrightCapturer(ctx, config)
	if err != nil {
		log.Fatalf("failed to initialize capturer: %v", err)
	}

	runner := &Runner{
		Capturer:    capturer,
		References:  references,
		Scratch:     scratch,
		KeyFunc:     keyFunc,
		Record:      record,
		Concurrency: concurrency,
		Logger:      logger,
	}

	summary, err := runner.Run(ctx, manifestPath, cases)
	if err != nil {
		log.Fatalf("failed to run snapshots: %v", err)
	}

	if callbackURL == "" {
		j, err := json.MarshalIndent(summary, "", "  ")
		if err != nil {
			log.Fatalf("failed to marshal result: %v", err)
		}
		fmt.Println(string(j))
	} else {
		if err := report.NewWebhook(callbackURL).Send(ctx, summary); err != nil {
			log.Fatalf("failed to send callback: %v", err)
		}
	}

	logger.Info("snapshot run finished", "passed", summary.Passed, "failed", summary.Failed, "recorded", summary.Recorded)
	if summary.Failed > 0 || summary.Recorded > 0 {
		os.Exit(1)
	}
}
