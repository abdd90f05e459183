package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"

	"golang.org/x/term"

	"github.com/Strob0t/painradar/internal/domain/aggregate"
	"github.com/Strob0t/painradar/internal/domain/mode"
)

func runQuery(args []string) error {
	fs := flag.NewFlagSet("query", flag.ContinueOnError)
	keyword := fs.String("keyword", "", "keyword to research (required)")
	modeName := fs.String("mode", string(mode.Default), "summary mode: pain_points, opportunities or competitors")
	asJSON := fs.Bool("json", false, "print JSON even on a terminal")
	if err := fs.Parse(args); err != nil {
		return err
	}

	kw := strings.TrimSpace(*keyword)
	if kw == "" && fs.NArg() > 0 {
		kw = strings.TrimSpace(strings.Join(fs.Args(), " "))
	}
	if kw == "" {
		return errors.New("-keyword is required")
	}
	m, err := mode.Parse(*modeName)
	if err != nil {
		return err
	}

	// stdout carries the result; logs go to stderr.
	cfg, closer, err := setup(os.Stderr)
	if err != nil {
		return err
	}
	defer closer.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := buildApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	q, err := a.queries.Run(ctx, kw, m)
	if err != nil {
		return fmt.Errorf("query: %w", err)
	}

	if *asJSON || !term.IsTerminal(int(os.Stdout.Fd())) { //nolint:gosec // fd fits in int
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(q)
	}
	return printQuery(os.Stdout, q)
}

// printQuery renders a query for humans: the summary, a per-source table
// and the failures.
func printQuery(w io.Writer, q *aggregate.Query) error {
	_, _ = fmt.Fprintf(w, "Keyword: %s\nMode:    %s\n", q.Keyword, q.Mode)
	if q.ID != "" {
		_, _ = fmt.Fprintf(w, "ID:      %s\n", q.ID)
	}
	_, _ = fmt.Fprintf(w, "Took:    %dms\n\n", q.DurationMS)

	_, _ = fmt.Fprintln(w, "Summary:")
	for _, line := range strings.Split(q.Summary, "\n") {
		_, _ = fmt.Fprintf(w, "  %s\n", line)
	}
	_, _ = fmt.Fprintln(w)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "SOURCE\tITEMS\tSTATUS")
	for _, name := range q.Sources {
		status := "ok"
		if e, ok := q.Errors[name]; ok {
			status = fmt.Sprintf("%s: %s", e.Kind, e.Message)
		}
		_, _ = fmt.Fprintf(tw, "%s\t%d\t%s\n", name, len(q.PerSource[name]), status)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	for _, name := range q.Sources {
		items := q.PerSource[name]
		if len(items) == 0 {
			continue
		}
		_, _ = fmt.Fprintf(w, "\n[%s]\n", name)
		for _, it := range items {
			_, _ = fmt.Fprintf(w, "  - %s\n", it.Title)
			if it.URL != "" {
				_, _ = fmt.Fprintf(w, "    %s\n", it.URL)
			}
		}
	}
	return nil
}
