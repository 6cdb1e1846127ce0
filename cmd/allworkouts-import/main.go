package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/meltforce/allworkouts/internal/config"
	"github.com/meltforce/allworkouts/internal/extract"
	"github.com/meltforce/allworkouts/internal/importer"
	"github.com/meltforce/allworkouts/internal/llm"
	"github.com/meltforce/allworkouts/internal/matcher"
	"github.com/meltforce/allworkouts/internal/storage"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	planPath := flag.String("file", "", "path to a plan text file (required)")
	login := flag.String("user", "local", "login of the user the import is recorded for")
	createPlan := flag.Bool("create-plan", false, "materialize matched exercises into a plan after parsing")
	flag.Parse()

	log := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	if *planPath == "" {
		fmt.Fprintf(os.Stderr, "Usage: allworkouts-import -config config.yaml -file plan.txt [-user login] [-create-plan]\n")
		flag.PrintDefaults()
		os.Exit(1)
	}

	raw, err := os.ReadFile(*planPath)
	if err != nil {
		log.Error("failed to read plan file", "path", *planPath, "error", err)
		os.Exit(1)
	}

	// Load config
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	dsn := cfg.Database.DSN()

	// Run migrations
	if err := storage.RunMigrations(dsn, "migrations"); err != nil {
		log.Error("migration failed", "error", err)
		os.Exit(1)
	}
	log.Info("migrations applied")

	ctx := context.Background()

	// Connect database
	db, err := storage.New(ctx, dsn)
	if err != nil {
		log.Error("failed to connect database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	log.Info("database connected")

	userID, err := db.GetOrCreateUser(ctx, *login, *login)
	if err != nil {
		log.Error("failed to resolve user", "login", *login, "error", err)
		os.Exit(1)
	}

	llmClient, err := llm.New(ctx, llm.Config{
		Provider: cfg.LLM.Provider,
		Model:    cfg.LLM.Model,
		APIKey:   cfg.LLM.APIKey,
		Endpoint: cfg.LLM.Endpoint,
		Timeout:  cfg.LLM.Timeout(),
	})
	if err != nil {
		log.Error("failed to create llm client", "error", err)
		os.Exit(1)
	}
	defer llmClient.Close()

	ext := extract.New(llmClient, extract.Config{
		Provider:    cfg.LLM.Provider,
		Model:       cfg.LLM.Model,
		Temperature: cfg.LLM.Temperature,
		MaxTokens:   cfg.LLM.MaxTokens,
		Timeout:     cfg.LLM.Timeout(),
	}, log)

	m := matcher.New(db, cfg.Matching.Thresholds())

	// Run import
	imp := importer.New(ext, db, m, db, nil, log, importer.Options{
		TopN:             cfg.Matching.TopN,
		MatchConcurrency: cfg.Import.MatchConcurrency,
		FinalizeTimeout:  cfg.Import.FinalizeTimeout(),
	})
	res, err := imp.Run(ctx, userID, string(raw))
	if err != nil {
		log.Error("import failed", "error", err)
		os.Exit(1)
	}
	printResult(log, res)

	if !*createPlan {
		log.Info("import complete")
		return
	}

	req := importer.MaterializeRequest{
		ImportLogID: res.ImportLogID,
		Name:        res.Name,
		Description: res.Description,
	}
	for _, it := range res.Exercises {
		if it.MatchedExercise == nil {
			log.Warn("skipping unmatched exercise", "text", it.OriginalText)
			continue
		}
		req.Exercises = append(req.Exercises, importer.PlanExerciseInput{
			ExerciseID:      it.MatchedExercise.ExerciseID,
			Sequence:        it.Sequence,
			Sets:            it.Sets,
			RepsMin:         it.RepsMin,
			RepsMax:         it.RepsMax,
			RestSeconds:     it.RestSeconds,
			ConfidenceLevel: string(it.MatchedExercise.ConfidenceLevel),
		})
	}

	ref, err := importer.NewMaterializer(db, nil, log).Materialize(ctx, userID, req)
	if err != nil {
		log.Error("plan creation failed", "error", err)
		os.Exit(1)
	}
	log.Info("plan created", "plan_id", ref.ID, "name", ref.Name, "exercises", len(req.Exercises))
}

func printResult(log *slog.Logger, res *importer.Result) {
	log.Info("import stats",
		"import_log_id", res.ImportLogID,
		"plan_name", res.Name,
		"exercises", len(res.Exercises),
		"high", res.Counts.High,
		"medium", res.Counts.Medium,
		"low", res.Counts.Low,
		"unmatched", res.Counts.Unmatched,
	)
	for _, it := range res.Exercises {
		if it.MatchedExercise == nil {
			log.Info("unmatched", "sequence", it.Sequence, "text", it.OriginalText)
			continue
		}
		log.Info("matched",
			"sequence", it.Sequence,
			"text", it.OriginalText,
			"exercise", it.MatchedExercise.ExerciseName,
			"confidence", fmt.Sprintf("%.2f", it.MatchedExercise.Confidence),
			"tier", it.MatchedExercise.ConfidenceLevel,
		)
	}
}
