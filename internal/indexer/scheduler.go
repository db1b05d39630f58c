package indexer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-co-op/gocron"

	"media-catalog/internal/logging"
)

// Scheduler runs catalog passes in the background and hands their events to
// a sink. The next scheduled pass starts one cooldown after the previous one
// returns, so a pass longer than the cooldown never queues another behind it.
type Scheduler struct {
	idx      *Indexer
	cooldown time.Duration
	sink     func(Event)

	cron   *gocron.Scheduler
	ctx    context.Context
	cancel context.CancelFunc

	// mu orders wg.Add against Stop.
	mu sync.Mutex
	wg sync.WaitGroup
}

// NewScheduler creates a scheduler. sink may be nil.
func NewScheduler(idx *Indexer, cooldown time.Duration, sink func(Event)) *Scheduler {
	if sink == nil {
		sink = func(Event) {}
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		idx:      idx,
		cooldown: cooldown,
		sink:     sink,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start schedules passes. The first one starts immediately.
func (s *Scheduler) Start() error {
	if s.cooldown <= 0 {
		return fmt.Errorf("invalid cooldown %v", s.cooldown)
	}

	s.cron = gocron.NewScheduler(time.UTC)
	if err := s.schedule(false); err != nil {
		return err
	}

	logging.Info("Starting catalog scheduler (cooldown: %v)", s.cooldown)
	s.cron.StartAsync()
	return nil
}

// Stop cancels the running pass and waits for it to return.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	s.cancel()
	s.mu.Unlock()
	if s.cron != nil {
		s.cron.Stop()
	}
	s.wg.Wait()
	logging.Info("Catalog scheduler stopped")
}

// schedule adds a single-run job for the next pass, either right away or
// after one cooldown.
func (s *Scheduler) schedule(wait bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ctx.Err() != nil {
		return nil
	}

	job := s.cron.Every(s.cooldown)
	if wait {
		job = job.WaitForSchedule()
	}
	if _, err := job.LimitRunsTo(1).Tag("catalog").Do(s.scheduledPass); err != nil {
		return fmt.Errorf("failed to schedule catalog pass: %w", err)
	}
	return nil
}

func (s *Scheduler) scheduledPass() {
	s.runPass()
	if err := s.schedule(true); err != nil {
		logging.Error("%v", err)
	}
}

// TriggerIndex starts a pass now unless one is already running.
func (s *Scheduler) TriggerIndex() {
	go s.runPass()
}

func (s *Scheduler) runPass() {
	s.mu.Lock()
	if s.ctx.Err() != nil {
		s.mu.Unlock()
		return
	}
	s.wg.Add(1)
	s.mu.Unlock()
	defer s.wg.Done()

	events := make(chan Event)
	drained := make(chan struct{})
	go func() {
		defer close(drained)
		for e := range events {
			s.sink(e)
		}
	}()

	err := s.idx.CatalogAssets(s.ctx, events)
	close(events)
	<-drained

	switch {
	case errors.Is(err, ErrIndexInProgress):
		logging.Info("Catalog pass already in progress, skipping...")
	case err != nil:
		logging.Error("Scheduled catalog pass failed: %v", err)
	}
}
