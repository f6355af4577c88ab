package service

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

const watchDebounce = 500 * time.Millisecond

// TriggerConfig describes when batches run on their own. Both triggers are
// optional.
type TriggerConfig struct {
	Cron  string     // robfig cron expression, e.g. "0 3 * * *" or "@every 1h"
	Watch string     // file whose writes trigger a batch, normally the SQLite source
	Batch BatchInput // what each triggered batch covers
}

// ── Watchers (cron + file_watch) ──────────────────────────

// StartTriggers tears down any running triggers and starts the ones in tc.
// Batches started by a trigger run with ctx.
func (s *ReportService) StartTriggers(ctx context.Context, tc TriggerConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopWatchers()

	if tc.Cron != "" {
		c := cron.New()
		_, err := c.AddFunc(tc.Cron, func() {
			s.runTriggered(ctx, "cron", tc.Batch)
		})
		if err != nil {
			return fmt.Errorf("invalid cron expression %q: %w", tc.Cron, err)
		}
		c.Start()
		s.cronSched = c
		s.log.Info("report cron scheduled", zap.String("expr", tc.Cron))
	}

	if tc.Watch == "" {
		return nil
	}
	if err := s.startWatcher(ctx, tc); err != nil {
		s.stopWatchers()
		return err
	}
	return nil
}

func (s *ReportService) startWatcher(ctx context.Context, tc TriggerConfig) error {
	absPath, err := filepath.Abs(tc.Watch)
	if err != nil {
		return fmt.Errorf("watch path %q: %w", tc.Watch, err)
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	// Watch the directory: editors and SQLite replace or append side files.
	if err := watcher.Add(filepath.Dir(absPath)); err != nil {
		watcher.Close()
		return fmt.Errorf("watch dir of %q: %w", absPath, err)
	}
	s.watcher = watcher

	// SQLite in WAL mode commits to the -wal file first.
	targets := map[string]bool{absPath: true, absPath + "-wal": true}

	watchCtx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	s.watchCancel = cancel
	s.watchDone = done

	go func() {
		defer close(done)
		var timer *time.Timer
		defer func() {
			if timer != nil {
				timer.Stop()
			}
		}()
		for {
			select {
			case <-watchCtx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
					continue
				}
				name, _ := filepath.Abs(event.Name)
				if !targets[name] {
					continue
				}
				if timer != nil {
					timer.Stop()
				}
				timer = time.AfterFunc(watchDebounce, func() {
					s.log.Info("source changed", zap.String("path", name))
					s.runTriggered(ctx, "watch", tc.Batch)
				})
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				s.log.Warn("report watcher error", zap.Error(err))
			}
		}
	}()

	s.log.Info("report watcher started", zap.String("path", absPath))
	return nil
}

func (s *ReportService) runTriggered(ctx context.Context, trigger string, in BatchInput) {
	log := s.log.With(zap.String("trigger", trigger))
	res, err := s.RunStudies(ctx, in)
	switch {
	case errors.Is(err, ErrAlreadyRunning) && res == nil:
		log.Info("batch skipped: previous batch still running")
	case err != nil:
		log.Error("triggered batch failed", zap.Error(err))
	default:
		log.Info("triggered batch done", zap.Int("runs", len(res.Runs)))
	}
}

// Stop tears down all watchers and schedulers. Runs already started keep
// going; use WaitRunning to wait for them.
func (s *ReportService) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopWatchers()
}

func (s *ReportService) stopWatchers() {
	if s.watchCancel != nil {
		s.watchCancel()
		s.watchCancel = nil
	}
	if s.watcher != nil {
		s.watcher.Close()
		s.watcher = nil
	}
	if s.watchDone != nil {
		<-s.watchDone
		s.watchDone = nil
	}
	if s.cronSched != nil {
		<-s.cronSched.Stop().Done()
		s.cronSched = nil
	}
}
