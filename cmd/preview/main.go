// Command preview imports a generated migration script into a local docker
// compose Umami stack so the result can be inspected before touching a real
// database.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"

	"golang.org/x/sys/unix"

	"matomo2umami/internal/preview"
)

func main() {
	var cfg preview.Config
	var yes bool

	flag.StringVar(&cfg.ScriptPath, "f", "migration.sql", "SQL script to import")
	flag.StringVar(&cfg.ComposeFile, "compose-file", "matomo-to-umami-preview/docker-compose.yaml", "docker compose file for the preview stack")
	flag.StringVar(&cfg.DSN, "dsn", "", "Postgres DSN of the preview database (default: compose stack local instance)")
	flag.BoolVar(&yes, "y", false, "skip the confirmation prompt")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, unix.SIGTERM)
	defer stop()

	if !yes && !confirm(cfg.ScriptPath) {
		log.Printf("import cancelled")
		return
	}

	if err := preview.Run(ctx, cfg); err != nil {
		log.Fatalf("%v", err)
	}
}

// confirm asks before importing, since the target database keeps the data
// until the stack is torn down.
func confirm(script string) bool {
	fmt.Printf("This will import %s into the preview database. Proceed? (y/N): ", script)
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	}
	return false
}
