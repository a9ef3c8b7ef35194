// Command modcheck checks the mods of a game server config against the
// workshop and prints the results.
//
//	modcheck [flags] server-config.json
//
// The exit status is 1 when any mod is outdated, has missing dependencies or
// could not be checked.
package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"fortio.org/cli"
	"fortio.org/log"

	"modcheck/internal/checker"
	"modcheck/internal/config"
	"modcheck/internal/depgraph"
	"modcheck/internal/mods"
	"modcheck/internal/source"
	"modcheck/internal/store"
	"modcheck/internal/summary"
	"modcheck/internal/workshop"

	_ "modernc.org/sqlite"
)

var defaults = config.Default()

var (
	mockFlag    = flag.Bool("mock", false, "Use the built-in mock dataset instead of the live workshop")
	baseURLFlag = flag.String("base-url", defaults.BaseURL, "Workshop base `url`")
	formatFlag  = flag.String("format", "table", "Output `format`: ndjson, table or dot")
	retriesFlag = flag.Int("retries", defaults.MaxRetries, "Retries per mod after the first attempt")
	pacingFlag  = flag.Duration("pacing", defaults.PacingDelay, "Delay between mods")
	dbFlag      = flag.String("db", "", "Persist the run to this sqlite `file`")
)

var errProblems = errors.New("problems found")

func main() {
	cli.ArgsHelp = "server-config.json"
	cli.MinArgs = 1
	cli.MaxArgs = 1
	cli.Main()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("%v", err)
	}
	applyFlags(&cfg)
	if err := cfg.Validate(); err != nil {
		log.Fatalf("%v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err = run(ctx, cfg, *formatFlag, *dbFlag, flag.Arg(0), os.Stdout)
	switch {
	case errors.Is(err, errProblems):
		os.Exit(1)
	case err != nil:
		log.Fatalf("%v", err)
	}
}

// applyFlags overrides cfg with the flags given on the command line. Unset
// flags leave the environment settings alone.
func applyFlags(cfg *config.Config) {
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "mock":
			cfg.UseMockData = *mockFlag
		case "base-url":
			cfg.BaseURL = *baseURLFlag
		case "retries":
			cfg.MaxRetries = *retriesFlag
		case "pacing":
			cfg.PacingDelay = *pacingFlag
		}
	})
}

func run(ctx context.Context, cfg config.Config, format, dbPath, path string, w io.Writer) error {
	switch format {
	case "ndjson", "table", "dot":
	default:
		return fmt.Errorf("unknown format %q", format)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	list, err := mods.ParseConfig(data)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}

	client, err := workshop.NewClient(workshop.Options{
		BaseURL:      cfg.BaseURL,
		Timeout:      cfg.RequestTimeout,
		MaxRedirects: cfg.MaxRedirects,
	})
	if err != nil {
		return err
	}
	src, err := source.New(cfg, client)
	if err != nil {
		return err
	}
	runner := checker.New(src, checker.Options{
		MaxRetries:  cfg.MaxRetries,
		RetryDelay:  cfg.RetryDelay,
		PacingDelay: cfg.PacingDelay,
	})

	log.Infof("Checking %d mods from %s (%s source)", len(list), path, src.Name())
	emit := func(e checker.Event) {
		if p, ok := e.(*checker.Progress); ok {
			log.LogVf("[%d/%d] %s", p.Current, p.Total, p.ModName)
		}
	}
	if format == "ndjson" {
		enc := json.NewEncoder(w)
		emit = func(e checker.Event) {
			if err := enc.Encode(e); err != nil {
				log.Errf("write event: %v", err)
			}
		}
	}
	rep, err := runner.Run(ctx, list, emit)
	if err != nil {
		return err
	}

	if dbPath != "" {
		if err := persist(dbPath, rep); err != nil {
			return fmt.Errorf("persist run: %w", err)
		}
		log.Infof("Saved run %s to %s", rep.ID, dbPath)
	}

	switch format {
	case "table":
		err = writeTable(w, rep.Results, rep.Summary)
	case "dot":
		err = depgraph.Build(rep.Results).WriteDOT(w)
	}
	if err != nil {
		return err
	}
	log.Infof("%d mods checked in %v: %d up to date, %d need attention",
		rep.Summary.Total, rep.FinishedAt.Sub(rep.StartedAt).Round(time.Millisecond),
		rep.Summary.UpToDate, rep.Summary.Problems())
	if rep.Summary.Problems() > 0 {
		return errProblems
	}
	return nil
}

func persist(path string, rep *checker.Report) error {
	db, err := sql.Open("sqlite", fmt.Sprintf("file:%s?_busy_timeout=5000", path))
	if err != nil {
		return err
	}
	defer db.Close()
	if err := store.Init(db); err != nil {
		return err
	}
	if _, err := store.Migrate(db); err != nil {
		return err
	}
	return store.InsertRun(db, store.FromReport(rep, 0))
}

func writeTable(w io.Writer, results []mods.CheckResult, s summary.Summary) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "MOD ID\tNAME\tVERSION\tCURRENT\tSTATUS\tSIZE MB\tMESSAGE")
	for _, r := range results {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%.2f\t%s\n",
			r.ModID, r.Name, r.Version, r.CurrentVersion, r.Status, r.SizeMB, r.Message)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "\n%d mods: %d up to date, %d outdated, %d missing deps, %d outdated with missing deps, %d errors, %.2f MB\n",
		s.Total, s.UpToDate, s.Outdated, s.MissingDepsOnly, s.OutdatedMissingDeps, s.Errors, s.TotalSizeMB)
	return err
}
