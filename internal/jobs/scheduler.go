package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/JustJay7/ecourts-extractor/pkg/logger"
	"golang.org/x/sync/errgroup"
)

// Task is a unit of periodic work.
type Task struct {
	Name  string
	Every time.Duration
	Run   func(ctx context.Context) error
}

// Scheduler runs tasks on fixed intervals.
type Scheduler struct {
	tasks  []Task
	logger *logger.Logger
}

func NewScheduler(log *logger.Logger, tasks ...Task) *Scheduler {
	return &Scheduler{tasks: tasks, logger: log}
}

// Run starts every task straight away and then once per interval, until ctx
// is done. A task never overlaps itself; a run that outlasts the interval
// delays the next one. Tasks with no interval are skipped.
func (s *Scheduler) Run(ctx context.Context) {
	var g errgroup.Group
	for _, t := range s.tasks {
		if t.Every <= 0 || t.Run == nil {
			s.logger.Info("Scheduled task disabled", "task", t.Name)
			continue
		}
		t := t
		g.Go(func() error {
			s.loop(ctx, t)
			return nil
		})
	}
	_ = g.Wait()
}

func (s *Scheduler) loop(ctx context.Context, t Task) {
	ticker := time.NewTicker(t.Every)
	defer ticker.Stop()

	s.logger.Info("Scheduled task started", "task", t.Name, "every", t.Every.String())
	for {
		s.runOnce(ctx, t)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *Scheduler) runOnce(ctx context.Context, t Task) {
	start := time.Now()
	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("panic: %v", r)
			}
		}()
		return t.Run(ctx)
	}()

	if err != nil {
		s.logger.Error("Scheduled task failed", "task", t.Name, "error", err, "duration", time.Since(start).String())
		return
	}
	s.logger.Info("Scheduled task completed", "task", t.Name, "duration", time.Since(start).String())
}
