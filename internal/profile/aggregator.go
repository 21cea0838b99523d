package profile

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/conceptcatch/conceptcatch/internal/events"
)

// Aggregator drains AttemptSubmitted records from the event log into the
// profile store. Delivery is at least once: records are applied first and
// marked afterwards, and the store's idempotency ledger absorbs replays.
// A periodic sweep picks up records whose notification was lost (e.g. a
// crash between finalize and notify).
type Aggregator struct {
	log      events.Log
	store    Store
	interval time.Duration
	batch    int
	wake     chan struct{}
}

func NewAggregator(evlog events.Log, store Store, sweepInterval time.Duration) *Aggregator {
	if sweepInterval <= 0 {
		sweepInterval = 30 * time.Second
	}
	return &Aggregator{
		log:      evlog,
		store:    store,
		interval: sweepInterval,
		batch:    100,
		wake:     make(chan struct{}, 1),
	}
}

// Notify wakes the aggregator after an attempt finalizes. Never blocks; a
// lost wakeup is recovered by the next sweep.
func (a *Aggregator) Notify(string) {
	select {
	case a.wake <- struct{}{}:
	default:
	}
}

// Run processes the log until ctx is cancelled. It sweeps once at startup so
// records left over from a previous run are applied before serving traffic.
func (a *Aggregator) Run(ctx context.Context) {
	a.Sweep(ctx)
	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-a.wake:
			a.Sweep(ctx)
		case <-ticker.C:
			a.Sweep(ctx)
		}
	}
}

// Sweep applies all currently unapplied records. Errors on individual
// records are logged and retried on the next sweep.
func (a *Aggregator) Sweep(ctx context.Context) {
	for {
		recs, err := a.log.Unapplied(ctx, events.TypeAttemptSubmitted, a.batch)
		if err != nil {
			log.Printf("profile: reading event log: %v", err)
			return
		}
		if len(recs) == 0 {
			return
		}
		for _, rec := range recs {
			if err := a.applyRecord(ctx, rec); err != nil {
				log.Printf("profile: applying event %d (attempt %s): %v", rec.Offset, rec.Key, err)
				return
			}
		}
		if len(recs) < a.batch {
			return
		}
	}
}

func (a *Aggregator) applyRecord(ctx context.Context, rec events.Record) error {
	var ev events.AttemptSubmitted
	if err := json.Unmarshal([]byte(rec.DataJSON), &ev); err != nil {
		// malformed record; mark it so it cannot wedge the log
		log.Printf("profile: dropping malformed event %d: %v", rec.Offset, err)
		return a.log.MarkApplied(ctx, rec.Offset)
	}
	if _, err := a.store.Apply(ctx, ev); err != nil {
		return err
	}
	return a.log.MarkApplied(ctx, rec.Offset)
}
