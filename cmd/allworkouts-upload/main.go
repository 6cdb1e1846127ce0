package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/meltforce/allworkouts/internal/upload"
)

// Version is set at build time via -ldflags.
var Version = "dev"

func main() {
	serverURL := flag.String("server", "", "AllWorkouts server URL (e.g. https://allworkouts.tail1234.ts.net)")
	plansPath := flag.String("path", "", "directory of plan text files (.txt, .md)")
	apiKey := flag.String("api-key", os.Getenv("ALLWORKOUTS_AUTH_API_KEY"), "server API key")
	dryRun := flag.Bool("dry-run", false, "check files locally but don't send to server")
	version := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *version {
		fmt.Println("allworkouts-upload", Version)
		return
	}

	log := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	if *plansPath == "" {
		fmt.Fprintf(os.Stderr, "Usage: allworkouts-upload -server <URL> -path <plans dir> [-api-key KEY] [-dry-run]\n\n")
		flag.PrintDefaults()
		os.Exit(1)
	}

	if *serverURL == "" && !*dryRun {
		fmt.Fprintf(os.Stderr, "Error: -server is required (or use -dry-run)\n")
		os.Exit(1)
	}

	// Strip trailing slash from server URL
	*serverURL = strings.TrimRight(*serverURL, "/")

	info, err := os.Stat(*plansPath)
	if err != nil || !info.IsDir() {
		log.Error("plans directory not found", "path", *plansPath)
		os.Exit(1)
	}

	// Open state database
	homeDir, err := os.UserHomeDir()
	if err != nil {
		log.Error("failed to get home directory", "error", err)
		os.Exit(1)
	}
	stateDir := filepath.Join(homeDir, ".allworkouts-upload")

	state, err := upload.OpenStateDB(stateDir)
	if err != nil {
		log.Error("failed to open state database", "error", err)
		os.Exit(1)
	}
	defer state.Close()

	// Create client (nil-safe in dry-run mode)
	var client *upload.Client
	if !*dryRun {
		client = upload.NewClient(*serverURL, *apiKey)
	}

	if *dryRun {
		log.Info("DRY RUN mode: files will be checked but not sent")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Run upload
	uploader := upload.New(client, state, *plansPath, *dryRun, log)
	stats, err := uploader.Run(ctx)
	if err != nil {
		log.Error("upload failed", "error", err)
		if stats != nil {
			printStats(stats)
		}
		os.Exit(1)
	}

	printStats(stats)
	log.Info("upload complete")
}

func printStats(stats *upload.Stats) {
	fmt.Println()
	fmt.Println("=== Upload Summary ===")
	fmt.Printf("  Files total:      %d\n", stats.FilesTotal)
	fmt.Printf("  Files submitted:  %d\n", stats.FilesSubmitted)
	fmt.Printf("  Files skipped:    %d (already submitted)\n", stats.FilesSkipped)
	fmt.Printf("  Files rejected:   %d\n", stats.FilesRejected)
	fmt.Printf("  Files errored:    %d\n", stats.FilesErrored)
	fmt.Println()
	fmt.Printf("  Exercises:        %d\n", stats.ExercisesTotal)
	fmt.Printf("  High confidence:  %d\n", stats.High)
	fmt.Printf("  Medium:           %d\n", stats.Medium)
	fmt.Printf("  Low:              %d\n", stats.Low)
	fmt.Printf("  Unmatched:        %d\n", stats.Unmatched)

	if len(stats.RejectedFiles) > 0 {
		fmt.Printf("\n  Rejected files (not valid plan text):\n")
		for _, f := range stats.RejectedFiles {
			fmt.Printf("    - %s\n", f)
		}
	}
	fmt.Println()
}
