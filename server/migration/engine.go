package migration

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/google/uuid"

	"github.com/openparl/hansardsearch/internal/profile"
	"github.com/openparl/hansardsearch/server/internal/errors"
	"github.com/openparl/hansardsearch/store"
)

// Mode selects whether a run writes anything.
type Mode string

const (
	// ModeDryRun traverses the legacy layout and reports what an execute
	// run would do, without writing a single row.
	ModeDryRun Mode = "dry_run"
	// ModeExecute copies legacy passages into the normalized layout.
	ModeExecute Mode = "execute"
)

// State is the lifecycle state of a migration run.
type State string

const (
	StateNotStarted State = "not_started"
	StateRunning    State = "running"
	StateValidated  State = "validated"
	StateComplete   State = "complete"
	StateFailed     State = "failed"
)

const (
	defaultBatchSize  = 500
	defaultSampleSize = 10
)

// Options configures one migration run.
type Options struct {
	Mode Mode
	// BatchSize is the number of legacy passages read per batch. Zero means
	// the default of 500.
	BatchSize int
	// SampleSize is the number of migrated passages spot-checked during
	// validation. Zero means the default of 10.
	SampleSize int
}

func (o *Options) validate() error {
	if o.Mode != ModeDryRun && o.Mode != ModeExecute {
		return errors.InvalidArgument("mode", "must be dry_run or execute")
	}
	if o.BatchSize < 0 {
		return errors.InvalidArgument("batch_size", "must not be negative")
	}
	if o.BatchSize == 0 {
		o.BatchSize = defaultBatchSize
	}
	if o.SampleSize == 0 {
		o.SampleSize = defaultSampleSize
	}
	return nil
}

// Report is the outcome of one migration run.
type Report struct {
	RunID string
	Mode  Mode
	State State

	SourceCount       int64
	TargetCountBefore int64
	TargetCountAfter  int64

	BatchesProcessed int
	PassagesCopied   int
	PassagesSkipped  int

	SampleChecked int
	Discrepancies []string

	// EstimatedDuration is only set by dry runs: a projection of how long an
	// execute run would take, extrapolated from the scan.
	EstimatedDuration time.Duration

	StartedTs  int64
	FinishedTs int64
}

// Engine copies passages from the legacy layout to the normalized layout.
// Runs are idempotent: already-migrated passages are recognized by their
// carried UID and skipped, so an interrupted run can simply be re-executed.
type Engine struct {
	store *store.Store
	rng   *rand.Rand
}

func NewEngine(s *store.Store) *Engine {
	return &Engine{
		store: s,
		rng:   rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Run performs one migration pass. On validation failure the report is
// returned alongside the error so the discrepancies remain inspectable.
func (e *Engine) Run(ctx context.Context, opts *Options) (*Report, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}

	report := &Report{
		RunID:     uuid.NewString(),
		Mode:      opts.Mode,
		State:     StateRunning,
		StartedTs: time.Now().Unix(),
	}
	logger := slog.With(slog.String("run_id", report.RunID), slog.String("mode", string(opts.Mode)))
	logger.Info("starting migration run", slog.Int("batch_size", opts.BatchSize))

	var err error
	if report.SourceCount, err = e.store.CountPassages(ctx, profile.BackendLegacy); err != nil {
		return e.fail(report, err)
	}
	if report.TargetCountBefore, err = e.store.CountPassages(ctx, profile.BackendNormalized); err != nil {
		return e.fail(report, err)
	}

	if opts.Mode == ModeDryRun {
		if err := e.preview(ctx, opts, report); err != nil {
			return e.fail(report, err)
		}
		report.State = StateValidated
		report.FinishedTs = time.Now().Unix()
		logger.Info("dry run finished",
			slog.Int("would_copy", report.PassagesCopied),
			slog.Int("would_skip", report.PassagesSkipped))
		return report, nil
	}

	if err := e.copyBatches(ctx, opts, report, logger); err != nil {
		return e.fail(report, err)
	}
	if report.TargetCountAfter, err = e.store.CountPassages(ctx, profile.BackendNormalized); err != nil {
		return e.fail(report, err)
	}

	if err := e.validateRun(ctx, opts, report); err != nil {
		return e.fail(report, err)
	}
	if len(report.Discrepancies) > 0 {
		report.State = StateFailed
		report.FinishedTs = time.Now().Unix()
		return report, errors.MigrationValidation(fmt.Sprintf("%d discrepancies found", len(report.Discrepancies)))
	}

	report.State = StateComplete
	report.FinishedTs = time.Now().Unix()
	logger.Info("migration complete",
		slog.Int("copied", report.PassagesCopied),
		slog.Int("skipped", report.PassagesSkipped),
		slog.Int64("target_count", report.TargetCountAfter))
	return report, nil
}

func (e *Engine) fail(report *Report, err error) (*Report, error) {
	report.State = StateFailed
	report.FinishedTs = time.Now().Unix()
	return report, errors.Wrap(err, errors.ErrCodeStorage, "migration run failed")
}

// preview walks the source and counts what an execute run would copy and
// skip, writing nothing. The execute duration estimate is the observed scan
// cost plus a proportional allowance for the rows to be inserted.
func (e *Engine) preview(ctx context.Context, opts *Options, report *Report) error {
	scanStart := time.Now()
	for offset := 0; ; offset += opts.BatchSize {
		batch, err := e.store.ListLegacyPassages(ctx, offset, opts.BatchSize)
		if err != nil {
			return err
		}
		if len(batch) == 0 {
			break
		}
		report.BatchesProcessed++
		for _, p := range batch {
			existing, err := e.store.GetNormalizedPassageByUID(ctx, p.UID)
			if err != nil {
				return err
			}
			if existing == nil {
				report.PassagesCopied++
			} else {
				report.PassagesSkipped++
			}
		}
	}
	report.TargetCountAfter = report.TargetCountBefore

	elapsed := time.Since(scanStart)
	if scanned := report.PassagesCopied + report.PassagesSkipped; scanned > 0 {
		perPassage := elapsed / time.Duration(scanned)
		report.EstimatedDuration = elapsed + perPassage*time.Duration(report.PassagesCopied)
	}
	return nil
}

func (e *Engine) copyBatches(ctx context.Context, opts *Options, report *Report, logger *slog.Logger) error {
	for offset := 0; ; offset += opts.BatchSize {
		batch, err := e.store.ListLegacyPassages(ctx, offset, opts.BatchSize)
		if err != nil {
			return err
		}
		if len(batch) == 0 {
			return nil
		}
		inserted, err := e.store.InsertNormalizedPassages(ctx, batch)
		if err != nil {
			return err
		}
		report.BatchesProcessed++
		report.PassagesCopied += inserted
		report.PassagesSkipped += len(batch) - inserted
		logger.Info("migrated batch",
			slog.Int("batch", report.BatchesProcessed),
			slog.Int("copied", report.PassagesCopied),
			slog.Int("skipped", report.PassagesSkipped))
	}
}

// validateRun compares source and target counts, then spot-checks a random
// sample of migrated passages field by field.
func (e *Engine) validateRun(ctx context.Context, opts *Options, report *Report) error {
	if report.TargetCountAfter != report.SourceCount {
		report.Discrepancies = append(report.Discrepancies, fmt.Sprintf(
			"target count %d does not match source count %d",
			report.TargetCountAfter, report.SourceCount))
	}
	if report.SourceCount == 0 {
		return nil
	}

	sampleSize := opts.SampleSize
	if int64(sampleSize) > report.SourceCount {
		sampleSize = int(report.SourceCount)
	}
	for i := 0; i < sampleSize; i++ {
		offset := e.rng.Intn(int(report.SourceCount))
		batch, err := e.store.ListLegacyPassages(ctx, offset, 1)
		if err != nil {
			return err
		}
		if len(batch) == 0 {
			continue
		}
		source := batch[0]
		target, err := e.store.GetNormalizedPassageByUID(ctx, source.UID)
		if err != nil {
			return err
		}
		report.SampleChecked++
		if diff := comparePassages(source, target); diff != "" {
			report.Discrepancies = append(report.Discrepancies, fmt.Sprintf("passage %s: %s", source.UID, diff))
		}
	}
	return nil
}

func comparePassages(source, target *store.Passage) string {
	if target == nil {
		return "missing from normalized layout"
	}
	if target.DocumentID != source.DocumentID {
		return fmt.Sprintf("document id %d != %d", target.DocumentID, source.DocumentID)
	}
	if target.ChunkIndex != source.ChunkIndex {
		return fmt.Sprintf("chunk index %d != %d", target.ChunkIndex, source.ChunkIndex)
	}
	if target.Content != source.Content {
		return "content differs"
	}
	if len(target.Embedding) != len(source.Embedding) {
		return fmt.Sprintf("embedding dimension %d != %d", len(target.Embedding), len(source.Embedding))
	}
	for i := range source.Embedding {
		if target.Embedding[i] != source.Embedding[i] {
			return fmt.Sprintf("embedding component %d differs", i)
		}
	}
	return ""
}
