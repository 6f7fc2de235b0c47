package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"WaybackArchiver/internal/config"
	"WaybackArchiver/internal/console"
	"WaybackArchiver/internal/domain"
	"WaybackArchiver/internal/infrastructure/export"
	"WaybackArchiver/internal/infrastructure/storage"
	"WaybackArchiver/internal/infrastructure/wayback"
	"WaybackArchiver/internal/intake"
	"WaybackArchiver/internal/logging"
	"WaybackArchiver/internal/usecase"
)

// Application wires config to adapters, the orchestration runner, and the
// console/export sinks.
type Application struct {
	cfg     config.Config
	logger  *slog.Logger
	runner  *usecase.Runner
	tracker *usecase.Tracker
	export  *export.Writer
}

// New builds a runnable application instance.
func New(cfg config.Config, baseLogger *slog.Logger) *Application {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level)
	}

	httpClient := &http.Client{Timeout: time.Duration(cfg.Archive.CheckTimeout) + 5*time.Second}

	availability := wayback.NewAvailabilityClient(cfg.Archive.AvailabilityURL, httpClient)
	secondary := wayback.NewRecentBiased(availability)
	cdx := wayback.NewCDXClient(cfg.Archive.CDXURL, httpClient)
	save := wayback.NewSaveClient(cfg.Archive.SaveURL, cfg.Archive.WebURL, cfg.Archive.APIKey,
		&http.Client{Timeout: 30 * time.Second})

	resolver := usecase.NewResolver(availability, secondary, cfg.Archive.WebURL,
		time.Duration(cfg.Archive.CheckTimeout), baseLogger.With("component", "resolver"))
	verifier := usecase.NewVerifier(resolver)
	tracker := usecase.NewTracker()

	runner := usecase.NewRunner(usecase.RunnerDeps{
		Resolver:  resolver,
		Verifier:  verifier,
		Submitter: save,
		History:   cdx,
		Tracker:   tracker,
		Logger:    baseLogger.With("component", "runner"),
	}, usecase.RunnerConfig{
		WebURL:           cfg.Archive.WebURL,
		Pacing:           time.Duration(cfg.Batch.Pacing),
		PropagationDelay: time.Duration(cfg.Batch.PropagationDelay),
		VerifyAttempts:   cfg.Batch.VerifyAttempts,
		VerifyBaseDelay:  time.Duration(cfg.Batch.VerifyBaseDelay),
	})

	reporter := console.NewReporter(baseLogger.With("component", "batch"))
	runner.OnStatus(reporter.Status)
	tracker.OnProgress(reporter.Progress)
	tracker.OnEstimate(reporter.Estimate)

	return &Application{
		cfg:     cfg,
		logger:  baseLogger,
		runner:  runner,
		tracker: tracker,
		export:  export.NewWriter(cfg.Export.Dir),
	}
}

// Run reads the input addresses, executes the batch, exports the CSV
// report, and records the run into the optional history database. The
// first interrupt requests a cooperative stop; a second one cancels
// in-flight work.
func (a *Application) Run(ctx context.Context, inputPath string) error {
	addresses, duplicates, err := a.readInput(inputPath)
	if err != nil {
		return err
	}
	if len(addresses) == 0 {
		return errors.New("no valid addresses in input")
	}

	for _, duplicate := range duplicates {
		a.logger.Info("duplicate skipped",
			"address", duplicate.Address,
			"duplicate_of", duplicate.DuplicateOf)
	}
	a.logger.Info("batch starting", "addresses", len(addresses), "duplicates", len(duplicates))

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	signals := make(chan os.Signal, 2)
	signal.Notify(signals, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(signals)

	go func() {
		select {
		case <-signals:
		case <-ctx.Done():
			return
		}
		a.logger.Warn("stop requested, finishing the current address")
		a.runner.Stop()
		select {
		case <-signals:
			a.logger.Warn("cancelling in-flight work")
			cancel()
		case <-ctx.Done():
		}
	}()

	results := a.runner.Run(ctx, addresses)
	state := a.tracker.State()

	path, err := a.export.WriteRun(state.RunID, results, duplicates)
	if err != nil {
		a.logger.Error("export failed", "error", err)
	} else {
		a.logger.Info("report exported", "path", path)
	}

	if a.cfg.History.Enabled {
		if err := a.saveHistory(ctx, results); err != nil {
			a.logger.Error("history save failed", "error", err)
		}
	}

	a.logger.Info("batch finished",
		"processed", state.Processed,
		"total", state.Total,
		"already_archived", state.Counts[domain.OutcomeAlreadyArchived],
		"archived", state.Counts[domain.OutcomeArchived],
		"verification_failed", state.Counts[domain.OutcomeVerificationFailed],
		"errors", state.Counts[domain.OutcomeError],
		"stopped", state.Stopped)

	return nil
}

func (a *Application) readInput(inputPath string) ([]string, []domain.Duplicate, error) {
	path := inputPath
	if path == "" {
		path = a.cfg.Input.File
	}

	var addresses []string
	if path != "" {
		content, err := os.ReadFile(path)
		if err != nil {
			return nil, nil, fmt.Errorf("read input file: %w", err)
		}
		addresses = intake.ExtractFromBlob(content)
	} else {
		raw, err := io.ReadAll(os.Stdin)
		if err != nil {
			return nil, nil, fmt.Errorf("read stdin: %w", err)
		}
		addresses = intake.Parse(string(raw))
	}

	unique, duplicates := intake.Deduplicate(addresses)
	return unique, duplicates, nil
}

func (a *Application) saveHistory(ctx context.Context, results []domain.ProcessingResult) error {
	repo, err := storage.Open(a.cfg.History.Path)
	if err != nil {
		return err
	}
	defer repo.Close()

	state := a.tracker.State()
	run := domain.RunRecord{
		RunID:      state.RunID,
		StartedAt:  state.StartedAt,
		FinishedAt: state.FinishedAt,
		Total:      state.Total,
		Processed:  state.Processed,
		Stopped:    state.Stopped,
	}

	return repo.SaveRun(ctx, run, results)
}
