package reminder

import (
	"context"
	"log"
	"pagobot/registry"
	"time"
)

// Scheduler runs the configured batches once a day at a fixed hour.
type Scheduler struct {
	dispatcher *Dispatcher
	clients    registry.Store
	hour       int
	offsets    []int
}

func NewScheduler(d *Dispatcher, clients registry.Store, hour int, offsets []int) *Scheduler {
	if len(offsets) == 0 {
		offsets = []int{0}
	}
	return &Scheduler{dispatcher: d, clients: clients, hour: hour, offsets: offsets}
}

// Run blocks until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	for {
		next := nextRun(time.Now(), s.hour)
		log.Printf("INFO: [Scheduler] Next reminder run at %s", next.Format(time.RFC3339))
		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			s.RunOnce(ctx)
		}
	}
}

// RunOnce runs one batch per configured offset against the current registry.
func (s *Scheduler) RunOnce(ctx context.Context) []Report {
	clients, err := s.clients.List()
	if err != nil {
		log.Printf("ERROR: [Scheduler] failed to list clients: %v", err)
		return nil
	}
	var reports []Report
	for _, off := range s.offsets {
		r := s.dispatcher.RunBatch(ctx, clients, Rule{Offset: off})
		log.Printf("INFO: [Scheduler] offset=%d sent=%d failed=%d skipped=%d", off, r.Sent, r.Failed, r.Skipped)
		reports = append(reports, r)
	}
	return reports
}

// nextRun returns the next occurrence of hour:00 strictly after now.
func nextRun(now time.Time, hour int) time.Time {
	next := time.Date(now.Year(), now.Month(), now.Day(), hour, 0, 0, 0, now.Location())
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}
