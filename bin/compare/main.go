package main

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/json"
	"flag"
	"fmt"
	"image/png"
	"log"
	"os"
	diffimage "snapshot-matcher/internal/diff/image"
	"snapshot-matcher/internal/env"
	"snapshot-matcher/internal/storage"
	"time"
)

type CompareOutput struct {
	Match      bool    `json:"match"`
	DiffPath   string  `json:"diffPath,omitempty"`
	DiffAmount float64 `json:"diffAmount"`
}

func main() {
	var directory string
	var perPixel float64
	var overall float64
	flag.StringVar(&directory, "directory", env.OrDefault("DIRECTORY", "/tmp"), "Output directory for diff images")
	flag.Float64Var(&perPixel, "per-pixel-tolerance", env.OrDefault("PER_PIXEL_TOLERANCE", diffimage.DefaultTolerance.PerPixel), "Largest tolerated channel difference as a fraction of 255")
	flag.Float64Var(&overall, "overall-tolerance", env.OrDefault("OVERALL_TOLERANCE", diffimage.DefaultTolerance.Overall), "Largest tolerated fraction of mismatching bytes")

	flag.Parse()

	args := flag.Args()
	if len(args) < 2 {
		log.Fatalf("baseline, target not specified")
	}
	baselinePath := args[0]
	targetPath := args[1]

	tolerance, err := diffimage.NewTolerance(perPixel, overall)
	if err != nil {
		log.Fatalf("Invalid tolerance: %v", err)
	}
	matcher, err := diffimage.NewToleranceMatcher(tolerance)
	if err != nil {
		log.Fatalf("Failed to create matcher: %v", err)
	}

	baselineData, err := os.ReadFile(baselinePath)
	if err != nil {
		log.Fatalf("Failed to read baseline image: %v", err)
	}
	targetData, err := os.ReadFile(targetPath)
	if err != nil {
		log.Fatalf("Failed to read target image: %v", err)
	}

	match, err := matcher.MatchEncoded(baselineData, targetData)
	if err != nil {
		log.Fatalf("Failed to compare images: %v", err)
	}

	output := CompareOutput{Match: match}
	if !match {
		ctx := context.Background()
		s, err := storage.NewFileStorage(ctx, storage.FileConfig{
			Directory: directory,
		})
		if err != nil {
			log.Fatalf("Failed to create storage backend: %v", err)
		}

		output.DiffPath, output.DiffAmount, err = writeDiff(ctx, s, tolerance, baselineData, targetData, diffKey(baselinePath, targetPath))
		if err != nil {
			log.Fatalf("Failed to write diff image: %v", err)
		}
	}

	if err := json.NewEncoder(os.Stdout).Encode(output); err != nil {
		log.Fatalf("Failed to encode result: %v", err)
	}
	if !match {
		os.Exit(1)
	}
}

func diffKey(baselinePath string, targetPath string) string {
	timestamp := time.Now().Format("20060102150405")

	h := sha256.New()
	h.Write([]byte(baselinePath + targetPath))
	hash := fmt.Sprintf("%x", h.Sum(nil))[:16]

	return fmt.Sprintf("Snapshot/diff/%s/%s.png", hash, timestamp)
}

func writeDiff(ctx context.Context, s storage.Storage, tolerance diffimage.Tolerance, baselineData []byte, targetData []byte, key string) (string, float64, error) {
	baselineImage, _, err := diffimage.Decode(baselineData)
	if err != nil {
		return "", 0, err
	}
	targetImage, _, err := diffimage.Decode(targetData)
	if err != nil {
		return "", 0, err
	}

	diffResult := diffimage.NewPixelDiff(tolerance).Calculate(baselineImage, targetImage)

	var buffer bytes.Buffer
	if err := png.Encode(&buffer, diffResult.Image); err != nil {
		return "", 0, err
	}

	path, err := s.Put(ctx, key, buffer.Bytes())
	if err != nil {
		return "", 0, err
	}
	return path, diffResult.DiffAmount, nil
}
