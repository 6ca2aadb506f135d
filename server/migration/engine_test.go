package migration

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/openparl/hansardsearch/internal/profile"
	apperrors "github.com/openparl/hansardsearch/server/internal/errors"
	"github.com/openparl/hansardsearch/store"
	storetest "github.com/openparl/hansardsearch/store/test"
)

const testDim = 768

func newSeededStore(t *testing.T, passageCounts ...int) *store.Store {
	ctx := context.Background()
	ts := storetest.NewTestingStore(ctx, t, profile.BackendLegacy)
	for i, count := range passageCounts {
		_, err := ts.CreateDocumentWithPassages(ctx, storetest.SampleDocument(i+1), storetest.SamplePassages(i+1, count, testDim))
		require.NoError(t, err)
	}
	return ts
}

func TestRunRejectsBadOptions(t *testing.T) {
	ctx := context.Background()
	engine := NewEngine(newSeededStore(t))

	_, err := engine.Run(ctx, &Options{Mode: "sideways"})
	require.True(t, apperrors.IsCode(err, apperrors.ErrCodeInvalidArgument))

	_, err = engine.Run(ctx, &Options{Mode: ModeExecute, BatchSize: -1})
	require.True(t, apperrors.IsCode(err, apperrors.ErrCodeInvalidArgument))
}

func TestDryRunWritesNothing(t *testing.T) {
	ctx := context.Background()
	ts := newSeededStore(t, 4, 3)
	engine := NewEngine(ts)

	report, err := engine.Run(ctx, &Options{Mode: ModeDryRun, BatchSize: 3})
	require.NoError(t, err)
	require.Equal(t, StateValidated, report.State)
	require.EqualValues(t, 7, report.SourceCount)
	require.Zero(t, report.TargetCountBefore)
	require.Equal(t, 7, report.PassagesCopied)
	require.Zero(t, report.PassagesSkipped)
	require.NotEmpty(t, report.RunID)
	require.Greater(t, report.EstimatedDuration, time.Duration(0))

	count, err := ts.CountPassages(ctx, profile.BackendNormalized)
	require.NoError(t, err)
	require.Zero(t, count)
}

func TestExecuteMigratesEverything(t *testing.T) {
	ctx := context.Background()
	ts := newSeededStore(t, 4, 3)
	engine := NewEngine(ts)

	report, err := engine.Run(ctx, &Options{Mode: ModeExecute, BatchSize: 2})
	require.NoError(t, err)
	require.Equal(t, StateComplete, report.State)
	require.EqualValues(t, 7, report.SourceCount)
	require.EqualValues(t, 7, report.TargetCountAfter)
	require.Equal(t, 7, report.PassagesCopied)
	require.Zero(t, report.PassagesSkipped)
	require.Equal(t, 4, report.BatchesProcessed)
	require.NotZero(t, report.SampleChecked)
	require.Empty(t, report.Discrepancies)
	require.GreaterOrEqual(t, report.FinishedTs, report.StartedTs)
}

func TestExecuteIsIdempotent(t *testing.T) {
	ctx := context.Background()
	ts := newSeededStore(t, 5)
	engine := NewEngine(ts)

	first, err := engine.Run(ctx, &Options{Mode: ModeExecute})
	require.NoError(t, err)
	require.Equal(t, 5, first.PassagesCopied)

	second, err := engine.Run(ctx, &Options{Mode: ModeExecute})
	require.NoError(t, err)
	require.Equal(t, StateComplete, second.State)
	require.Zero(t, second.PassagesCopied)
	require.Equal(t, 5, second.PassagesSkipped)
	require.EqualValues(t, 5, second.TargetCountBefore)
	require.EqualValues(t, 5, second.TargetCountAfter)

	count, err := ts.CountPassages(ctx, profile.BackendNormalized)
	require.NoError(t, err)
	require.EqualValues(t, 5, count)
}

func TestDryRunAfterExecuteReportsSkips(t *testing.T) {
	ctx := context.Background()
	ts := newSeededStore(t, 3)
	engine := NewEngine(ts)

	_, err := engine.Run(ctx, &Options{Mode: ModeExecute})
	require.NoError(t, err)

	report, err := engine.Run(ctx, &Options{Mode: ModeDryRun})
	require.NoError(t, err)
	require.Equal(t, StateValidated, report.State)
	require.Zero(t, report.PassagesCopied)
	require.Equal(t, 3, report.PassagesSkipped)
}

func TestValidationDetectsCountMismatch(t *testing.T) {
	ctx := context.Background()
	ts := newSeededStore(t, 3)
	engine := NewEngine(ts)

	report, err := engine.Run(ctx, &Options{Mode: ModeExecute})
	require.NoError(t, err)

	// An orphan row in the target makes the counts disagree on the next run.
	legacy, err := ts.ListLegacyPassages(ctx, 0, 1)
	require.NoError(t, err)
	orphan := *legacy[0]
	orphan.UID = "orphan-passage"
	orphan.ChunkIndex = 999
	_, err = ts.InsertNormalizedPassages(ctx, []*store.Passage{&orphan})
	require.NoError(t, err)

	report, err = engine.Run(ctx, &Options{Mode: ModeExecute})
	require.Error(t, err)
	require.True(t, apperrors.IsCode(err, apperrors.ErrCodeMigrationValidation))
	require.Equal(t, StateFailed, report.State)
	require.NotEmpty(t, report.Discrepancies)
}
