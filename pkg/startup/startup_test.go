package startup

import (
	"context"
	"testing"

	"github.com/Gobusters/ectologger"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func silentLogger() ectologger.Logger {
	return ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
}

func TestStartRespectsDependsOn(t *testing.T) {
	var order []string
	s := New(silentLogger(), 1)
	s.AddDependency(Func{
		Name:     "migrations",
		Requires: []string{"database"},
		StartFn: func(_ context.Context) error {
			order = append(order, "migrations")
			return nil
		},
	})
	s.AddDependency(Func{
		Name: "database",
		StartFn: func(_ context.Context) error {
			order = append(order, "database")
			return nil
		},
	})

	require.NoError(t, s.Start(context.Background()))
	assert.Equal(t, []string{"database", "migrations"}, order)
}

func TestStartRetriesFailedDependency(t *testing.T) {
	attempts := 0
	s := New(silentLogger(), 3)
	s.AddDependency(Func{
		Name: "broker",
		StartFn: func(_ context.Context) error {
			attempts++
			if attempts < 2 {
				return errors.New("broker unavailable")
			}
			return nil
		},
	})

	require.NoError(t, s.Start(context.Background()))
	assert.Equal(t, 2, attempts)
}

func TestStartFailsAfterMaxAttempts(t *testing.T) {
	s := New(silentLogger(), 2)
	s.AddDependency(Func{
		Name: "database",
		StartFn: func(_ context.Context) error {
			return errors.New("connection refused")
		},
	})

	err := s.Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "after 2 attempts")
}

func TestStartRejectsUnregisteredDependency(t *testing.T) {
	s := New(silentLogger(), 1)
	s.AddDependency(Func{Name: "migrations", Requires: []string{"database"}})

	err := s.Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unregistered")
}

func TestStopOnlyStopsStarted(t *testing.T) {
	var stopped []string
	s := New(silentLogger(), 1)
	s.AddDependency(Func{
		Name: "database",
		StopFn: func(_ context.Context) error {
			stopped = append(stopped, "database")
			return nil
		},
	})
	s.AddDependency(Func{
		Name: "browser",
		StartFn: func(_ context.Context) error {
			return errors.New("chrome failed to start")
		},
		StopFn: func(_ context.Context) error {
			stopped = append(stopped, "browser")
			return nil
		},
	})

	require.Error(t, s.Start(context.Background()))
	s.Stop(context.Background())
	assert.Equal(t, []string{"database"}, stopped)
}
