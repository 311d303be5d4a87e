// Package config defines the run configuration for the migration CLI and a
// lightweight validator over it.
//
// Design goals:
//
//  1. Clarity: one flat struct mirroring the CLI flags; no third-party
//     configuration libraries.
//  2. Fail fast: every fatal misconfiguration (malformed website UUID,
//     inverted date range, non-positive batch size) is caught before any
//     acquisition begins.
//  3. Defaults live in one place (ApplyDefaults) so tests and the CLI agree.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// DateLayout is the CLI date format, matching the source API's date
// parameter.
const DateLayout = "2006-01-02"

// DefaultBatchSize bounds the number of rows per emitted INSERT statement.
const DefaultBatchSize = 1000

// Config is the full configuration of one migration run.
type Config struct {
	// MatomoURL is the source installation root (e.g. https://tracking.example.com).
	MatomoURL string

	// SiteID is the source site identifier.
	SiteID string

	// Token is the source API authentication token.
	Token string

	// WebsiteID is the destination website UUID the emitted rows reference.
	WebsiteID string

	// StartDate and EndDate bound the inclusive acquisition range.
	StartDate time.Time
	EndDate   time.Time

	// Output is the path of the generated SQL script.
	Output string

	// BatchSize is the per-table flush threshold for emitted INSERT statements.
	BatchSize int

	// Period is the acquisition chunk granularity. Currently only "day".
	Period string
}

// ApplyDefaults fills zero values: end date today, start date two years
// before the end date, migration.sql output, default batch size, daily
// chunks.
func (c *Config) ApplyDefaults() {
	if c.EndDate.IsZero() {
		c.EndDate = time.Now()
	}
	if c.StartDate.IsZero() {
		c.StartDate = c.EndDate.AddDate(-2, 0, 0)
	}
	if c.Output == "" {
		c.Output = "migration.sql"
	}
	if c.BatchSize == 0 {
		c.BatchSize = DefaultBatchSize
	}
	if c.Period == "" {
		c.Period = "day"
	}
}

// IssueSeverity represents the severity of a configuration issue.
type IssueSeverity string

const (
	// SeverityError indicates a configuration error that blocks execution.
	SeverityError IssueSeverity = "error"
	// SeverityWarning indicates a finding surfaced to the user that does not
	// block execution.
	SeverityWarning IssueSeverity = "warning"
)

// Issue describes a single validation finding. Path is a dotted path into the
// configuration (e.g. "website_id"); Message is human-readable.
type Issue struct {
	Severity IssueSeverity
	Path     string
	Message  string
}

// Error implements the error interface so an Issue can be treated as a single
// error where convenient.
func (i Issue) Error() string {
	return fmt.Sprintf("%s at %s: %s", i.Severity, i.Path, i.Message)
}

// Validate performs static validation of a run configuration. It does not
// mutate the config; callers decide whether warnings are fatal.
func Validate(c Config) []Issue {
	var issues []Issue

	if strings.TrimSpace(c.MatomoURL) == "" {
		issues = append(issues, Issue{SeverityError, "matomo_url", "source URL must not be empty"})
	}
	if strings.TrimSpace(c.SiteID) == "" {
		issues = append(issues, Issue{SeverityError, "site_id", "source site id must not be empty"})
	}
	if strings.TrimSpace(c.Token) == "" {
		issues = append(issues, Issue{SeverityWarning, "token", "no API token set; most Matomo installations reject anonymous Live API access"})
	}

	if strings.TrimSpace(c.WebsiteID) == "" {
		issues = append(issues, Issue{SeverityError, "website_id", "destination website id must not be empty"})
	} else if _, err := uuid.Parse(c.WebsiteID); err != nil {
		issues = append(issues, Issue{SeverityError, "website_id", fmt.Sprintf("must be a valid UUID: %v", err)})
	}

	if c.StartDate.IsZero() || c.EndDate.IsZero() {
		issues = append(issues, Issue{SeverityError, "dates", "start and end dates must be set (call ApplyDefaults first)"})
	} else if c.StartDate.After(c.EndDate) {
		issues = append(issues, Issue{SeverityError, "dates", "start date must not be after end date"})
	}

	if c.BatchSize <= 0 {
		issues = append(issues, Issue{SeverityError, "batch_size", fmt.Sprintf("batch size must be positive, got %d", c.BatchSize)})
	}

	if strings.TrimSpace(c.Output) == "" {
		issues = append(issues, Issue{SeverityError, "output", "output path must not be empty"})
	}

	// Unknown periods are warnings for forward compatibility; the orchestrator
	// only implements daily chunks today.
	if c.Period != "" && c.Period != "day" {
		issues = append(issues, Issue{SeverityWarning, "period", fmt.Sprintf("unknown chunk granularity %q; only \"day\" is implemented", c.Period)})
	}

	return issues
}

// HasError reports whether any issue in the slice is fatal.
func HasError(issues []Issue) bool {
	for _, iss := range issues {
		if iss.Severity == SeverityError {
			return true
		}
	}
	return false
}

// ParseDate parses a CLI date in YYYY-MM-DD form.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q (want YYYY-MM-DD)", s)
	}
	return t, nil
}
