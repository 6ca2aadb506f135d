package store

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"github.com/openparl/hansardsearch/internal/profile"
)

// flakyDriver fails a configured number of calls before succeeding. Only the
// methods under test are implemented; anything else panics through the
// embedded nil Driver.
type flakyDriver struct {
	Driver
	failures    int
	listCalls   int
	createCalls int
}

func (d *flakyDriver) ListPassages(_ context.Context, _ *FindPassage) ([]*Passage, error) {
	d.listCalls++
	if d.listCalls <= d.failures {
		return nil, errors.New("connection reset")
	}
	return []*Passage{{UID: "p1"}}, nil
}

func (d *flakyDriver) CreateDocumentWithPassages(_ context.Context, _ *Document, _ []*Passage) (*Document, error) {
	d.createCalls++
	return nil, errors.New("connection reset")
}

func TestReadsRetryTransientFailures(t *testing.T) {
	driver := &flakyDriver{failures: 2}
	s := New(driver, &profile.Profile{})

	passages, err := s.ListPassages(context.Background(), &FindPassage{})
	require.NoError(t, err)
	require.Len(t, passages, 1)
	require.Equal(t, 3, driver.listCalls)
}

func TestReadsGiveUpAfterBoundedAttempts(t *testing.T) {
	driver := &flakyDriver{failures: 100}
	s := New(driver, &profile.Profile{})

	_, err := s.ListPassages(context.Background(), &FindPassage{})
	require.Error(t, err)
	require.Equal(t, readAttempts, driver.listCalls)
}

func TestReadsStopRetryingOnCancellation(t *testing.T) {
	driver := &flakyDriver{failures: 100}
	s := New(driver, &profile.Profile{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := s.ListPassages(ctx, &FindPassage{})
	require.Error(t, err)
	require.Equal(t, 1, driver.listCalls)
}

func TestWritesFailFast(t *testing.T) {
	driver := &flakyDriver{}
	s := New(driver, &profile.Profile{})

	_, err := s.CreateDocumentWithPassages(context.Background(), &Document{}, nil)
	require.Error(t, err)
	require.Equal(t, 1, driver.createCalls)
}
