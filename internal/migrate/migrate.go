// Package migrate drives the migration run: it walks the configured date
// range one day at a time, transforms each day's visits, and streams batched
// INSERT statements into the output script inside a single transactional
// envelope.
//
// The pipeline is deliberately single-threaded and synchronous: fetch a
// chunk, transform and buffer it, flush any full batches, repeat. Nothing
// else touches the dedup tracker or the batch writer while a run is active,
// and an interrupted run leaves an unterminated script that must be discarded
// and rerun.
package migrate

import (
	"context"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"matomo2umami/internal/config"
	"matomo2umami/internal/matomo"
	"matomo2umami/internal/metrics"
	"matomo2umami/internal/sqlgen"
	"matomo2umami/internal/transform"
)

// VisitSource supplies one day of raw visit records at a time. Implemented by
// matomo.Client; tests substitute a fake.
type VisitSource interface {
	VisitsForDay(ctx context.Context, day time.Time) ([]matomo.Visit, error)
}

// Summary holds the run totals written to the script footer and the final
// log line.
type Summary struct {
	Sessions      int
	Events        int64
	DaysProcessed int
	DaysFailed    int
	VisitsSkipped int64
}

// now is a test seam for the header timestamp.
var now = time.Now

// Run executes one full migration and writes the SQL script to out.
//
// Error policy: a failed day is counted and skipped; a malformed visit is
// logged and skipped; a write error on out is fatal and aborts the run
// immediately. Nothing is retried here.
func Run(ctx context.Context, cfg config.Config, src VisitSource, out io.Writer) (Summary, error) {
	var sum Summary

	websiteID, err := uuid.Parse(cfg.WebsiteID)
	if err != nil {
		return sum, fmt.Errorf("migrate: website id: %w", err)
	}

	if err := writeHeader(out, cfg); err != nil {
		return sum, err
	}

	writer := sqlgen.NewBatchWriter(out, cfg.BatchSize, func(table string, rows int) {
		metrics.RecordBatch(table, rows)
		log.Printf("flush: table=%s rows=%d", table, rows)
	})
	tracker := transform.NewTracker()
	tr := transform.Transformer{WebsiteID: websiteID}

	start := day(cfg.StartDate)
	end := day(cfg.EndDate)

	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		if err := ctx.Err(); err != nil {
			return sum, err
		}

		fetchStart := time.Now()
		visits, err := src.VisitsForDay(ctx, d)
		metrics.RecordStep("fetch_day", err, time.Since(fetchStart))
		if err != nil {
			if ctx.Err() != nil {
				return sum, ctx.Err()
			}
			log.Printf("fetch failed: date=%s err=%v", d.Format(config.DateLayout), err)
			sum.DaysFailed++
			metrics.RecordRows("days_failed", 1)
			continue
		}

		dayEvents := int64(0)
		for _, v := range visits {
			session, events, err := tr.VisitRows(v)
			if err != nil {
				// A malformed record never aborts the run.
				log.Printf("skip visit: id=%s date=%s err=%v", v.ID, d.Format(config.DateLayout), err)
				sum.VisitsSkipped++
				metrics.RecordRows("visits_skipped", 1)
				continue
			}

			// The tracker is consulted only after the subtree transformed
			// cleanly, so a failed first appearance does not suppress a later
			// occurrence of the same visit.
			if _, created := tracker.Ensure(string(v.ID)); created {
				if err := writer.Append(transform.SessionTable, session.Values()); err != nil {
					return sum, err
				}
				metrics.RecordRows("sessions", 1)
			}
			for _, e := range events {
				if err := writer.Append(transform.EventTable, e.Values()); err != nil {
					return sum, err
				}
			}
			dayEvents += int64(len(events))
		}

		sum.Events += dayEvents
		sum.DaysProcessed++
		metrics.RecordRows("events", dayEvents)
		log.Printf("day %s: visits=%s events=%s sessions_total=%s",
			d.Format(config.DateLayout),
			humanize.Comma(int64(len(visits))),
			humanize.Comma(dayEvents),
			humanize.Comma(int64(tracker.Len())),
		)
	}

	if err := writer.Flush(); err != nil {
		return sum, err
	}

	sum.Sessions = tracker.Len()
	if err := writeFooter(out, sum); err != nil {
		return sum, err
	}
	return sum, nil
}

// writeHeader emits the generation metadata comment block and opens the
// transaction.
func writeHeader(out io.Writer, cfg config.Config) error {
	_, err := fmt.Fprintf(out,
		"-- Generated SQL migration from Matomo to Umami\n"+
			"-- Generated on: %s\n"+
			"-- Website ID: %s\n"+
			"-- Date range: %s to %s\n"+
			"-- Matomo URL: %s\n"+
			"-- Site ID: %s\n"+
			"-- Batch size: %d\n"+
			"-- Chunk granularity: %s\n"+
			"\n"+
			"BEGIN;\n"+
			"\n"+
			"SET client_encoding = 'UTF8';\n"+
			"\n",
		now().Format("2006-01-02T15:04:05"),
		cfg.WebsiteID,
		cfg.StartDate.Format(config.DateLayout),
		cfg.EndDate.Format(config.DateLayout),
		cfg.MatomoURL,
		cfg.SiteID,
		cfg.BatchSize,
		cfg.Period,
	)
	if err != nil {
		return fmt.Errorf("migrate: write header: %w", err)
	}
	return nil
}

// writeFooter closes the transaction and records the run totals.
func writeFooter(out io.Writer, sum Summary) error {
	_, err := fmt.Fprintf(out,
		"COMMIT;\n"+
			"\n"+
			"-- Migration complete\n"+
			"-- Total sessions: %d\n"+
			"-- Total events: %d\n"+
			"-- Days processed: %d\n"+
			"-- Failed days: %d\n",
		sum.Sessions, sum.Events, sum.DaysProcessed, sum.DaysFailed,
	)
	if err != nil {
		return fmt.Errorf("migrate: write footer: %w", err)
	}
	return nil
}

// day truncates t to midnight so date arithmetic is stable across DST.
func day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
