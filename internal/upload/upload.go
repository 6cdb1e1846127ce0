package upload

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"
)

// Plan text bounds enforced by the server, checked locally to avoid
// pointless requests.
const (
	minTextLength = 10
	maxTextLength = 50000
)

// planExtensions are the file types treated as plan text.
var planExtensions = map[string]bool{".txt": true, ".md": true}

// Stats tracks upload progress.
type Stats struct {
	FilesTotal     int
	FilesSubmitted int
	FilesSkipped   int
	FilesRejected  int
	FilesErrored   int

	ExercisesTotal int
	High           int
	Medium         int
	Low            int
	Unmatched      int

	// RejectedFiles lists files refused as invalid plan text.
	RejectedFiles []string
}

// Uploader walks a directory of plan text files and submits each new or
// changed file to the AllWorkouts server for import.
type Uploader struct {
	client *Client
	state  *StateDB
	root   string
	dryRun bool
	log    *slog.Logger
	stats  Stats
}

// New creates a new Uploader. client may be nil in dry-run mode.
func New(client *Client, state *StateDB, root string, dryRun bool, log *slog.Logger) *Uploader {
	return &Uploader{
		client: client,
		state:  state,
		root:   root,
		dryRun: dryRun,
		log:    log,
	}
}

// Run executes the upload pipeline. Per-file failures are counted and logged;
// only a walk failure or cancellation aborts the run.
func (u *Uploader) Run(ctx context.Context) (*Stats, error) {
	files, err := u.planFiles()
	if err != nil {
		return &u.stats, fmt.Errorf("listing plan files: %w", err)
	}

	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return &u.stats, err
		}
		u.stats.FilesTotal++
		u.processFile(ctx, f)
	}

	return &u.stats, nil
}

// planFiles returns plan files under the root in lexical order.
func (u *Uploader) planFiles() ([]string, error) {
	var files []string
	err := filepath.WalkDir(u.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != u.root && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if planExtensions[strings.ToLower(filepath.Ext(path))] {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}

func (u *Uploader) processFile(ctx context.Context, path string) {
	relPath, _ := filepath.Rel(u.root, path)
	info, err := os.Stat(path)
	if err != nil {
		u.log.Warn("stat failed", "file", relPath, "error", err)
		u.stats.FilesErrored++
		return
	}

	hash, err := HashFile(path)
	if err != nil {
		u.log.Warn("hash failed", "file", relPath, "error", err)
		u.stats.FilesErrored++
		return
	}

	submitted, err := u.state.IsSubmitted(relPath, info.Size(), hash)
	if err != nil {
		u.log.Warn("state check failed", "file", relPath, "error", err)
		u.stats.FilesErrored++
		return
	}
	if submitted {
		u.stats.FilesSkipped++
		return
	}

	data, err := os.ReadFile(path)
	if err != nil {
		u.log.Warn("read failed", "file", relPath, "error", err)
		u.stats.FilesErrored++
		return
	}
	if !utf8.Valid(data) {
		u.reject(relPath, "not valid UTF-8")
		return
	}
	text := string(data)
	if n := utf8.RuneCountInString(strings.TrimSpace(text)); n < minTextLength {
		u.reject(relPath, fmt.Sprintf("too short (%d characters)", n))
		return
	}
	if n := utf8.RuneCountInString(text); n > maxTextLength {
		u.reject(relPath, fmt.Sprintf("too long (%d characters)", n))
		return
	}

	if u.dryRun {
		u.log.Info("dry-run: would submit", "file", relPath, "bytes", info.Size())
		u.stats.FilesSubmitted++
		return
	}

	summary, err := u.client.SubmitPlan(ctx, text)
	if err != nil {
		var rejected *RejectedError
		if errors.As(err, &rejected) {
			u.reject(relPath, rejected.Message)
			return
		}
		u.log.Warn("submit failed", "file", relPath, "error", err)
		u.stats.FilesErrored++
		return
	}

	if err := u.state.MarkSubmitted(relPath, info.Size(), hash, summary.ParsedPlan.ImportLogID); err != nil {
		u.log.Warn("failed to mark submitted", "file", relPath, "error", err)
	}
	u.stats.FilesSubmitted++
	u.stats.ExercisesTotal += summary.TotalExercises
	u.stats.High += summary.HighConfidenceCount
	u.stats.Medium += summary.MediumConfidenceCount
	u.stats.Low += summary.LowConfidenceCount
	u.stats.Unmatched += summary.UnmatchedCount

	u.log.Info("submitted plan",
		"file", relPath,
		"import_log_id", summary.ParsedPlan.ImportLogID,
		"exercises", summary.TotalExercises,
		"unmatched", summary.UnmatchedCount,
	)
}

func (u *Uploader) reject(relPath, reason string) {
	u.log.Warn("plan rejected", "file", relPath, "reason", reason)
	u.stats.FilesRejected++
	u.stats.RejectedFiles = append(u.stats.RejectedFiles, relPath)
}
