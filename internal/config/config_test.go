package config

import (
	"strings"
	"testing"
	"time"
)

// validConfig returns a configuration that passes validation, for tests to
// break one field at a time.
func validConfig() Config {
	return Config{
		MatomoURL: "https://tracking.example.com",
		SiteID:    "3",
		Token:     "secret",
		WebsiteID: "a4f94e02-6d7c-4cf7-9c1a-2d3e4f5a6b7c",
		StartDate: time.Date(2024, 1, 1, 0, 0, 0, 0, time.Local),
		EndDate:   time.Date(2024, 3, 1, 0, 0, 0, 0, time.Local),
		Output:    "migration.sql",
		BatchSize: 1000,
		Period:    "day",
	}
}

// TestValidate_OK verifies a fully-specified configuration yields no issues.
func TestValidate_OK(t *testing.T) {
	t.Parallel()

	issues := Validate(validConfig())
	if len(issues) != 0 {
		t.Fatalf("unexpected issues: %v", issues)
	}
}

// TestValidate_Issues walks the fatal misconfigurations one at a time.
func TestValidate_Issues(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		mutate   func(*Config)
		path     string
		severity IssueSeverity
	}{
		{
			name:     "empty url",
			mutate:   func(c *Config) { c.MatomoURL = " " },
			path:     "matomo_url",
			severity: SeverityError,
		},
		{
			name:     "empty site id",
			mutate:   func(c *Config) { c.SiteID = "" },
			path:     "site_id",
			severity: SeverityError,
		},
		{
			name:     "missing token warns",
			mutate:   func(c *Config) { c.Token = "" },
			path:     "token",
			severity: SeverityWarning,
		},
		{
			name:     "empty website id",
			mutate:   func(c *Config) { c.WebsiteID = "" },
			path:     "website_id",
			severity: SeverityError,
		},
		{
			name:     "malformed website id",
			mutate:   func(c *Config) { c.WebsiteID = "not-a-uuid" },
			path:     "website_id",
			severity: SeverityError,
		},
		{
			name:     "inverted date range",
			mutate:   func(c *Config) { c.StartDate, c.EndDate = c.EndDate, c.StartDate },
			path:     "dates",
			severity: SeverityError,
		},
		{
			name:     "zero dates",
			mutate:   func(c *Config) { c.StartDate, c.EndDate = time.Time{}, time.Time{} },
			path:     "dates",
			severity: SeverityError,
		},
		{
			name:     "zero batch size",
			mutate:   func(c *Config) { c.BatchSize = 0 },
			path:     "batch_size",
			severity: SeverityError,
		},
		{
			name:     "negative batch size",
			mutate:   func(c *Config) { c.BatchSize = -5 },
			path:     "batch_size",
			severity: SeverityError,
		},
		{
			name:     "empty output",
			mutate:   func(c *Config) { c.Output = "" },
			path:     "output",
			severity: SeverityError,
		},
		{
			name:     "unknown period warns",
			mutate:   func(c *Config) { c.Period = "week" },
			path:     "period",
			severity: SeverityWarning,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validConfig()
			tc.mutate(&cfg)
			issues := Validate(cfg)

			found := false
			for _, iss := range issues {
				if iss.Path == tc.path && iss.Severity == tc.severity {
					found = true
				}
			}
			if !found {
				t.Fatalf("no %s issue at %q; got %v", tc.severity, tc.path, issues)
			}

			wantFatal := tc.severity == SeverityError
			if HasError(issues) != wantFatal {
				t.Fatalf("HasError = %v; want %v", HasError(issues), wantFatal)
			}
		})
	}
}

// TestApplyDefaults verifies zero-value filling: end date today, start date
// two years earlier, default output, batch size, and period.
func TestApplyDefaults(t *testing.T) {
	t.Parallel()

	var c Config
	before := time.Now()
	c.ApplyDefaults()

	if c.EndDate.Before(before) {
		t.Fatalf("EndDate = %v; want >= now", c.EndDate)
	}
	if want := c.EndDate.AddDate(-2, 0, 0); !c.StartDate.Equal(want) {
		t.Fatalf("StartDate = %v; want %v", c.StartDate, want)
	}
	if c.Output != "migration.sql" {
		t.Fatalf("Output = %q", c.Output)
	}
	if c.BatchSize != DefaultBatchSize {
		t.Fatalf("BatchSize = %d; want %d", c.BatchSize, DefaultBatchSize)
	}
	if c.Period != "day" {
		t.Fatalf("Period = %q", c.Period)
	}
}

// TestApplyDefaults_KeepsExplicitValues verifies set fields survive.
func TestApplyDefaults_KeepsExplicitValues(t *testing.T) {
	t.Parallel()

	c := validConfig()
	c.BatchSize = 50
	c.Output = "out.sql"
	c.ApplyDefaults()

	if c.BatchSize != 50 || c.Output != "out.sql" {
		t.Fatalf("explicit values overwritten: batch=%d output=%q", c.BatchSize, c.Output)
	}
	if !c.StartDate.Equal(validConfig().StartDate) {
		t.Fatalf("StartDate overwritten: %v", c.StartDate)
	}
}

// TestParseDate covers the CLI date format and its error text.
func TestParseDate(t *testing.T) {
	t.Parallel()

	got, err := ParseDate("2024-03-17")
	if err != nil {
		t.Fatalf("ParseDate: %v", err)
	}
	if got.Year() != 2024 || got.Month() != time.March || got.Day() != 17 {
		t.Fatalf("ParseDate = %v", got)
	}

	if _, err := ParseDate("17/03/2024"); err == nil {
		t.Fatal("expected error for slash date")
	} else if !strings.Contains(err.Error(), "YYYY-MM-DD") {
		t.Fatalf("error %q does not name the expected format", err)
	}
}

// TestIssueError verifies Issue satisfies error with a readable message.
func TestIssueError(t *testing.T) {
	t.Parallel()

	iss := Issue{SeverityError, "website_id", "must be a valid UUID"}
	got := iss.Error()
	for _, part := range []string{"error", "website_id", "must be a valid UUID"} {
		if !strings.Contains(got, part) {
			t.Fatalf("Error() = %q; missing %q", got, part)
		}
	}
}
