package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"satload/internal/config"
	"satload/internal/logging"
	"satload/internal/metrics"
	"satload/internal/report"

	// register all backends with the storage factory.
	_ "satload/internal/storage/all"
)

// Exit codes.
const (
	exitOK      = 0
	exitAborted = 1 // at least one run aborted
	exitConfig  = 2 // bad flags or configuration
)

// main loads the pipeline config, then runs either the configured extract or
// the selected catalog annexes, one isolated run each.
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stderr, os.Getenv)
	stop()
	os.Exit(code)
}

// options are the command-line flags.
type options struct {
	cfgPath        string
	envPath        string
	annex          string
	validate       bool
	verbose        bool
	metricsBackend string
	pushgatewayURL string
}

func parseFlags(args []string, stderr io.Writer) (options, error) {
	var o options
	set := flag.NewFlagSet("satload", flag.ContinueOnError)
	set.SetOutput(stderr)
	set.StringVar(&o.cfgPath, "config", "configs/pipelines/sat.yaml", "pipeline config path (.json, .yaml or .yml)")
	set.StringVar(&o.envPath, "env", ".env", "dotenv file with credentials; missing files are ignored")
	set.StringVar(&o.annex, "annex", "", `catalog annexes to load, e.g. "1A,3C" or "all"; empty loads source.path`)
	set.BoolVar(&o.validate, "validate", false, "validate the configuration and exit")
	set.BoolVar(&o.verbose, "v", false, "enable debug logs")
	set.StringVar(&o.metricsBackend, "metrics-backend", "", "metrics backend (none, pushgateway, datadog); overrides the config")
	set.StringVar(&o.pushgatewayURL, "pushgateway-url", "", "Pushgateway base URL; overrides the config")
	err := set.Parse(args)
	return o, err
}

// run is main without the process exit, so tests can drive it.
func run(ctx context.Context, args []string, stderr io.Writer, getenv func(string) string) int {
	o, err := parseFlags(args, stderr)
	if err != nil {
		return exitConfig
	}

	if o.envPath != "" {
		if err := godotenv.Load(o.envPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
			fmt.Fprintf(stderr, "load %s: %v\n", o.envPath, err)
			return exitConfig
		}
	}
	if getenv == nil {
		getenv = os.Getenv
	}

	p, err := config.Load(o.cfgPath)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return exitConfig
	}
	p.ApplyEnv(getenv)
	if o.verbose {
		p.Log.Level = "debug"
	}
	if o.metricsBackend != "" {
		p.Metrics.Backend = o.metricsBackend
	}
	if o.pushgatewayURL != "" {
		p.Metrics.PushgatewayURL = o.pushgatewayURL
	}

	log, err := logging.New(logging.Config{Format: p.Log.Format, Level: p.Log.Level}, stderr)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return exitConfig
	}

	runs, err := plan(p, o.annex)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return exitConfig
	}

	// Validate every run before starting any of them.
	hasError := false
	for _, r := range runs {
		for _, iss := range config.ValidatePipeline(r) {
			fmt.Fprintf(stderr, "%s: %s: %s: %s\n", r.Job, iss.Severity, iss.Path, iss.Message)
			if iss.Severity == config.SeverityError {
				hasError = true
			}
		}
	}
	if hasError {
		log.Error().Str("config", o.cfgPath).Msg("configuration is invalid")
		return exitConfig
	}
	if o.validate {
		log.Info().Str("config", o.cfgPath).Int("runs", len(runs)).Msg("configuration is valid")
		return exitOK
	}

	backend := newMetricsBackend(p.Metrics, "satload", log)
	defer func() {
		if err := backend.Flush(); err != nil {
			log.Warn().Err(err).Msg("metrics: flush error")
		}
	}()

	results := executeAll(ctx, runs, o.annex != "", log, backend)
	return summarize(log, results)
}

// plan expands the config into the runs to execute: the config itself, or
// one copy per selected annex.
func plan(p config.Pipeline, annexSel string) ([]config.Pipeline, error) {
	if annexSel == "" {
		if p.Job == "" {
			p.Job = "satload"
		}
		return []config.Pipeline{p}, nil
	}
	annexes, err := config.NewCatalog(p.Catalog).ResolveAnnexes(annexSel)
	if err != nil {
		return nil, err
	}
	out := make([]config.Pipeline, len(annexes))
	for i, a := range annexes {
		out[i] = p.ForAnnex(a)
	}
	return out, nil
}

// runStatus is the outcome of one run in the consolidated summary.
type runStatus string

const (
	runCompleted runStatus = "completed"
	runAborted   runStatus = "aborted"
	runSkipped   runStatus = "skipped"
)

type runResult struct {
	job    string
	status runStatus
	snap   report.Snapshot
	err    error
}

// executeAll runs each pipeline in turn. In annex mode a missing extract is
// skipped and a failed annex does not stop the others; an operator stop
// does.
func executeAll(ctx context.Context, runs []config.Pipeline, annexMode bool, log zerolog.Logger, backend metrics.Backend) []runResult {
	results := make([]runResult, 0, len(runs))
	for _, p := range runs {
		if ctx.Err() != nil {
			results = append(results, runResult{job: p.Job, status: runSkipped, err: ctx.Err()})
			continue
		}
		if annexMode {
			if _, err := os.Stat(p.Source.Path); errors.Is(err, fs.ErrNotExist) {
				log.Warn().Str("annex", p.Job).Str("source", p.Source.Path).Msg("extract not found; skipping annex")
				results = append(results, runResult{job: p.Job, status: runSkipped, err: err})
				continue
			}
		}

		snap, err := runOne(ctx, p, log, backend)
		res := runResult{job: p.Job, status: runCompleted, snap: snap, err: err}
		if err != nil {
			res.status = runAborted
			log.Error().Err(err).Str("annex", p.Job).Msg("run aborted")
		}
		results = append(results, res)
	}
	return results
}

// summarize logs the consolidated result and returns the exit code.
func summarize(log zerolog.Logger, results []runResult) int {
	var completed, aborted, skipped int
	for _, r := range results {
		if r.status == runSkipped {
			skipped++
			log.Warn().Str("annex", r.job).Str("status", string(r.status)).AnErr("reason", r.err).Msg("run summary")
			continue
		}
		ev := log.Info()
		if r.status == runAborted {
			aborted++
			ev = log.Error().Err(r.err)
		} else {
			completed++
		}
		ev.Str("annex", r.job).Str("status", string(r.status)).
			Int64("read", r.snap.Read).Int64("inserted", r.snap.Inserted).
			Int64("rejected", r.snap.Rejected).Int64("duplicates", r.snap.Duplicates).
			Dur("elapsed", r.snap.Elapsed()).Msg("run summary")
	}
	log.Info().Int("runs", len(results)).Int("completed", completed).Int("aborted", aborted).
		Int("skipped", skipped).Msg("all runs finished")

	if aborted > 0 {
		return exitAborted
	}
	return exitOK
}
