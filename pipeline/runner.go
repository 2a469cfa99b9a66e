// Package pipeline moves items from a source store through a batch converter
// into one outcome store per route.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ruteri/tdf-pipeline/interfaces"
)

// DefaultPullSize is the batch size used when none is configured.
const DefaultPullSize = 10

// Config wires a Runner.
type Config struct {
	Source    interfaces.ItemStore
	Sinks     map[interfaces.Route]interfaces.ItemStore
	Converter interfaces.BatchConverter

	// PullSize caps the number of items converted per batch.
	PullSize int
	// Interval is the pause between polls of an idle source.
	Interval time.Duration
}

// Summary describes one RunOnce pass.
type Summary struct {
	Pulled int
	Routed map[interfaces.Route]int
	// Retained counts items left in the source after a fetch or store failure.
	Retained int
}

// Runner polls the source store and routes converted items.
// RunOnce must not be called concurrently.
type Runner struct {
	cfg Config
	log *slog.Logger

	// unreadable holds ids whose fetch failed; they are listed past until
	// nothing else is left in the source.
	unreadable map[string]struct{}
}

// NewRunner validates cfg and creates a Runner.
func NewRunner(log *slog.Logger, cfg Config) (*Runner, error) {
	if cfg.Source == nil {
		return nil, errors.New("pipeline: no source store")
	}
	if cfg.Converter == nil {
		return nil, errors.New("pipeline: no converter")
	}
	for _, route := range interfaces.Routes {
		if cfg.Sinks[route] == nil {
			return nil, fmt.Errorf("pipeline: no store for route %s", route)
		}
	}
	if cfg.PullSize < 0 {
		return nil, fmt.Errorf("pipeline: invalid pull size %d", cfg.PullSize)
	}
	if cfg.PullSize == 0 {
		cfg.PullSize = DefaultPullSize
	}
	if cfg.Interval <= 0 {
		cfg.Interval = time.Second
	}
	return &Runner{cfg: cfg, log: log, unreadable: make(map[string]struct{})}, nil
}

// RunOnce converts at most PullSize items. Items are deleted from the source
// only once stored in the sink of their route. A batch-level error leaves every
// item in the source.
func (r *Runner) RunOnce(ctx context.Context) (Summary, error) {
	summary := Summary{Routed: make(map[interfaces.Route]int)}

	ids, err := r.list(ctx)
	if err != nil {
		return summary, err
	}

	batch := make([]interfaces.Item, 0, len(ids))
	for _, id := range ids {
		item, err := r.cfg.Source.Fetch(ctx, id)
		if errors.Is(err, interfaces.ErrItemNotFound) {
			delete(r.unreadable, id)
			continue
		}

		var metadataErr *interfaces.MetadataError
		if errors.As(err, &metadataErr) {
			r.log.Warn("unreadable item metadata", "item", id, "store", r.cfg.Source.Name(), "err", err)
			r.route(ctx, interfaces.Outcome{Item: metadataErr.Item, Route: interfaces.RouteFailure, Err: err}, &summary)
			delete(r.unreadable, id)
			continue
		}

		if err != nil {
			r.log.Warn("could not fetch item", "item", id, "store", r.cfg.Source.Name(), "err", err)
			r.unreadable[id] = struct{}{}
			summary.Retained++
			continue
		}
		delete(r.unreadable, id)
		batch = append(batch, item)
	}
	summary.Pulled = len(batch)
	if len(batch) == 0 {
		return summary, nil
	}

	outcomes, err := r.cfg.Converter.Convert(ctx, batch)
	if err != nil {
		summary.Retained += len(batch)
		return summary, err
	}

	for _, outcome := range outcomes {
		r.route(ctx, outcome, &summary)
	}

	r.log.Info("batch routed",
		"pulled", summary.Pulled,
		"success", summary.Routed[interfaces.RouteSuccess],
		"failure", summary.Routed[interfaces.RouteFailure],
		"exceeds_size_limit", summary.Routed[interfaces.RouteSizeExceeded],
		"retained", summary.Retained)
	return summary, nil
}

// list returns up to PullSize ids, passing over ids that could not be fetched
// before. Once only such ids remain they are retried.
func (r *Runner) list(ctx context.Context) ([]string, error) {
	ids, err := r.cfg.Source.List(ctx, r.cfg.PullSize+len(r.unreadable))
	if err != nil {
		return nil, fmt.Errorf("could not list %s: %w", r.cfg.Source.Name(), err)
	}

	selected := make([]string, 0, r.cfg.PullSize)
	for _, id := range ids {
		if _, skip := r.unreadable[id]; skip {
			continue
		}
		if len(selected) == r.cfg.PullSize {
			break
		}
		selected = append(selected, id)
	}

	if len(selected) == 0 && len(ids) > 0 {
		clear(r.unreadable)
		if len(ids) > r.cfg.PullSize {
			ids = ids[:r.cfg.PullSize]
		}
		return ids, nil
	}
	return selected, nil
}

// route stores the item in the sink of its route and removes it from the source.
func (r *Runner) route(ctx context.Context, outcome interfaces.Outcome, summary *Summary) {
	sink := r.cfg.Sinks[outcome.Route]
	if err := sink.Store(ctx, outcome.Item); err != nil {
		r.log.Error("could not store item", "item", outcome.Item.ID, "route", outcome.Route, "store", sink.Name(), "err", err)
		summary.Retained++
		return
	}
	if err := r.cfg.Source.Delete(ctx, outcome.Item.ID); err != nil {
		r.log.Error("could not remove item from source", "item", outcome.Item.ID, "store", r.cfg.Source.Name(), "err", err)
	}
	summary.Routed[outcome.Route]++
}

// Run polls until ctx is done. Full batches are followed immediately by the next one.
func (r *Runner) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()

	for {
		for {
			summary, err := r.RunOnce(ctx)
			if err != nil {
				r.log.Error("batch failed", "err", err)
				break
			}
			if summary.Pulled < r.cfg.PullSize || summary.Retained > 0 {
				break
			}
			if ctx.Err() != nil {
				return nil
			}
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}
