package main

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/kneutral-org/stubguard/internal/intercept"
	"github.com/kneutral-org/stubguard/internal/lock"
	"github.com/kneutral-org/stubguard/internal/logging"
)

const soakMethod = "GetValue"

// soak keeps one stub under constant invocation while restubbing it.
type soak struct {
	mocker   *intercept.Mocker
	stub     *intercept.Stub
	invokers int
	interval time.Duration
	logger   zerolog.Logger

	calls      atomic.Int64
	restubs    atomic.Int64
	lockErrors atomic.Int64
}

// soakStats is a point-in-time view of soak progress.
type soakStats struct {
	Calls      int64 `json:"calls"`
	Restubs    int64 `json:"restubs"`
	LockErrors int64 `json:"lockErrors"`
}

func newSoak(mocker *intercept.Mocker, invokers int, interval time.Duration, logger zerolog.Logger) *soak {
	return &soak{
		mocker:   mocker,
		stub:     intercept.NewStub("value-returner"),
		invokers: invokers,
		interval: interval,
		logger:   logger,
	}
}

// Run drives the invokers and the restubber until ctx is done.
func (s *soak) Run(ctx context.Context) error {
	ctx = logging.ContextWithLogger(ctx, s.logger)
	if err := s.restub(ctx, 0); err != nil {
		if errors.Is(err, lock.ErrInterrupted) {
			return nil
		}
		return err
	}

	logger := logging.StubLogger(s.logger, s.stub.ID(), s.stub.Name())
	logger.Info().Int("invokers", s.invokers).Dur("interval", s.interval).Msg("soak started")

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < s.invokers; i++ {
		g.Go(func() error {
			return s.invokeLoop(gctx)
		})
	}
	g.Go(func() error {
		return s.restubLoop(gctx)
	})

	err := g.Wait()
	logger.Info().
		Int64("calls", s.calls.Load()).
		Int64("restubs", s.restubs.Load()).
		Int64("lockErrors", s.lockErrors.Load()).
		Msg("soak stopped")
	return err
}

// Stats returns the current counters.
func (s *soak) Stats() soakStats {
	return soakStats{
		Calls:      s.calls.Load(),
		Restubs:    s.restubs.Load(),
		LockErrors: s.lockErrors.Load(),
	}
}

func (s *soak) invokeLoop(ctx context.Context) error {
	for ctx.Err() == nil {
		_, err := s.mocker.Invoke(ctx, s.stub, soakMethod)
		switch {
		case err == nil:
			s.calls.Add(1)
		case errors.Is(err, lock.ErrInterrupted):
			return nil
		case errors.Is(err, lock.ErrReadLockTimeout):
			s.lockErrors.Add(1)
			s.logger.Warn().Err(err).Str("stub", s.stub.Name()).Msg("invocation lock timed out")
		default:
			return err
		}
	}
	return nil
}

func (s *soak) restubLoop(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for value := 1; ; value++ {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		err := s.restub(ctx, value)
		switch {
		case err == nil:
		case errors.Is(err, lock.ErrInterrupted):
			return nil
		case errors.Is(err, lock.ErrWriteLockTimeout):
			// Contention is transient; the next tick retries.
			s.lockErrors.Add(1)
		default:
			return err
		}
	}
}

// Set restubs the soaked method to return value.
func (s *soak) Set(ctx context.Context, value int) error {
	return s.restub(ctx, value)
}

func (s *soak) restub(ctx context.Context, value int) error {
	err := s.mocker.Stub(ctx, func(context.Context) error {
		s.stub.When(soakMethod, intercept.Return(value))
		return nil
	}, s.stub)
	if err == nil {
		s.restubs.Add(1)
	}
	return err
}
