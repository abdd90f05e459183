// Command painradar aggregates what people say about a keyword across
// several public sources and summarizes the recurring pain points.
//
// Usage:
//
//	painradar [serve]                     run the HTTP API (default)
//	painradar query -keyword <kw> [-mode] run one aggregation and print it
package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/Strob0t/painradar/internal/config"
	"github.com/Strob0t/painradar/internal/logger"
)

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo})))

	cmd, args := "serve", os.Args[1:]
	if len(args) > 0 && args[0] != "" && args[0][0] != '-' {
		cmd, args = args[0], args[1:]
	}

	var err error
	switch cmd {
	case "serve":
		err = runServe(args)
	case "query":
		err = runQuery(args)
	case "version":
		fmt.Println(version)
	case "help":
		printUsage()
	default:
		printUsage()
		err = fmt.Errorf("unknown command %q", cmd)
	}
	if err != nil {
		slog.Error("fatal", "command", cmd, "error", err)
		os.Exit(1)
	}
}

// setup loads configuration and installs the configured logger as the
// process default, writing to w. The returned closer flushes buffered log
// records.
func setup(w io.Writer) (*config.Config, logger.Closer, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("config: %w", err)
	}
	l, closer := logger.NewWithWriter(cfg.Logging, w)
	slog.SetDefault(l)
	return cfg, closer, nil
}

func printUsage() {
	fmt.Fprintln(os.Stderr, `Usage: painradar <command> [flags]

Commands:
  serve     Run the HTTP API (default)
  query     Run one aggregation and print the result
  version   Print the version

Configuration is read from painradar.yaml (or $PAINRADAR_CONFIG) and
PAINRADAR_* environment variables.`)
}
