// Command matomo2umami exports Matomo visit data over the Live API and emits
// an Umami-compatible SQL migration script. The CLI layer stays thin: flags
// in, validated config, one migrate.Run call.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"time"

	"github.com/dustin/go-humanize"
	"golang.org/x/sys/unix"

	"matomo2umami/internal/config"
	"matomo2umami/internal/matomo"
	"matomo2umami/internal/metrics"
	"matomo2umami/internal/metrics/prompush"
	"matomo2umami/internal/migrate"
)

func main() {
	var (
		cfg               config.Config
		startStr          string
		endStr            string
		metricsBackendFlg string
		pushGatewayURLFlg string
		validate          bool
	)

	flag.StringVar(&cfg.MatomoURL, "matomo-url", "", "Matomo installation URL (e.g. https://tracking.example.com)")
	flag.StringVar(&cfg.SiteID, "site-id", "", "Matomo site ID")
	flag.StringVar(&cfg.Token, "token", "", "Matomo API token (falls back to env MATOMO_TOKEN)")
	flag.StringVar(&cfg.WebsiteID, "website-id", "", "Umami website UUID for the target database")
	flag.StringVar(&startStr, "start-date", "", "start date YYYY-MM-DD (default: 2 years before end date)")
	flag.StringVar(&endStr, "end-date", "", "end date YYYY-MM-DD (default: today)")
	flag.StringVar(&cfg.Output, "o", "", "output SQL file path (default: migration.sql)")
	flag.IntVar(&cfg.BatchSize, "batch-size", 0, "rows per INSERT statement (default: 1000)")
	flag.StringVar(&metricsBackendFlg, "metrics-backend", "none", "metrics backend to use (pushgateway, none)")
	flag.StringVar(&pushGatewayURLFlg, "pushgateway-url", "", "Pushgateway base URL (overrides env PUSHGATEWAY_URL)")
	flag.BoolVar(&validate, "validate", false, "validate the configuration and exit")
	verbose := flag.Bool("v", false, "enable verbose logs")

	flag.Parse()

	if cfg.Token == "" {
		cfg.Token = os.Getenv("MATOMO_TOKEN")
	}
	if startStr != "" {
		t, err := config.ParseDate(startStr)
		if err != nil {
			fatalf("start-date: %v", err)
		}
		cfg.StartDate = t
	}
	if endStr != "" {
		t, err := config.ParseDate(endStr)
		if err != nil {
			fatalf("end-date: %v", err)
		}
		cfg.EndDate = t
	}
	cfg.ApplyDefaults()

	issues := config.Validate(cfg)
	for _, iss := range issues {
		fmt.Fprintf(os.Stderr, "%s: %s: %s\n", iss.Severity, iss.Path, iss.Message)
	}
	if config.HasError(issues) {
		log.Printf("configuration is invalid")
		os.Exit(1)
	}
	if validate {
		log.Printf("configuration is valid")
		os.Exit(0)
	}

	// Decide metrics backend: flag → env → default.
	backendName := metricsBackendFlg
	if backendName == "" {
		backendName = os.Getenv("METRICS_BACKEND")
	}
	switch backendName {
	case "pushgateway":
		gwURL := pushGatewayURLFlg
		if gwURL == "" {
			gwURL = os.Getenv("PUSHGATEWAY_URL")
		}
		if gwURL == "" {
			gwURL = "http://localhost:9091"
		}
		b, err := prompush.NewBackend("matomo2umami", gwURL)
		if err != nil {
			log.Printf("metrics: failed to init prom push backend: %v; using nop", err)
		} else {
			log.Printf("metrics: url=%v backend=%v", gwURL, backendName)
			metrics.SetBackend(b)
			defer func() {
				if err := metrics.Flush(); err != nil {
					log.Printf("metrics: flush error: %v", err)
				}
			}()
		}

	case "", "none":
		if *verbose {
			log.Printf("metrics: disabled (backend=%q)", backendName)
		}

	default:
		log.Printf("metrics: unknown backend %q; metrics disabled", backendName)
	}

	// Cooperative cancellation: an interrupted run leaves a partial script
	// with an unterminated transaction; it must be discarded and rerun.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, unix.SIGTERM)
	defer stop()

	client := matomo.NewClient(matomo.Config{
		BaseURL: cfg.MatomoURL,
		SiteID:  cfg.SiteID,
		Token:   cfg.Token,
	})

	f, err := os.Create(cfg.Output)
	if err != nil {
		fatalf("open output: %v", err)
	}
	bw := bufio.NewWriterSize(f, 1<<20)

	log.Printf("run: site_id=%s website_id=%s range=%s..%s batch_size=%d output=%s",
		cfg.SiteID, cfg.WebsiteID,
		cfg.StartDate.Format(config.DateLayout), cfg.EndDate.Format(config.DateLayout),
		cfg.BatchSize, cfg.Output)

	start := time.Now()
	sum, err := migrate.Run(ctx, cfg, client, bw)
	if err != nil {
		log.Fatalf("%v", err)
	}
	if err := bw.Flush(); err != nil {
		log.Fatalf("flush output: %v", err)
	}
	if err := f.Close(); err != nil {
		log.Fatalf("close output: %v", err)
	}

	log.Printf("completed in %s", time.Since(start).Truncate(time.Millisecond))
	log.Printf("summary: sessions=%s events=%s days_processed=%d days_failed=%d visits_skipped=%d output=%s",
		humanize.Comma(int64(sum.Sessions)), humanize.Comma(sum.Events),
		sum.DaysProcessed, sum.DaysFailed, sum.VisitsSkipped, cfg.Output)
}

func fatalf(format string, a ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", a...)
	os.Exit(1)
}
