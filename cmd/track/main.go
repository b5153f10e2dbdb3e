// Command track detects and links fluorescent tracer particles in a
// time series of confocal stacks and writes a JSON summary.
//
// Usage:
//
//	track -stack ./slices -config plan.json5 -out result.json
//
// The stack directory holds one image per (time, depth) slice named
// t<T>_z<Z>.tif, .tiff or .png.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/banshee-data/confocal.track/internal/config"
	"github.com/banshee-data/confocal.track/internal/monitoring"
	"github.com/banshee-data/confocal.track/internal/tracking"
	"github.com/banshee-data/confocal.track/internal/tracking/l1stack"
	"github.com/banshee-data/confocal.track/internal/tracking/pipeline"
	"github.com/banshee-data/confocal.track/internal/version"
)

const (
	exitOK    = 0
	exitRun   = 1
	exitUsage = 2
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("track", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", config.DefaultConfigPath, "Plan file (.json or .json5)")
	stackDir := fs.String("stack", "", "Directory of t<T>_z<Z> slice images")
	outPath := fs.String("out", "", "Write the JSON result here (default stdout)")
	withRows := fs.Bool("rows", false, "Include trajectory rows in the output")
	workers := fs.Int("workers", 0, "Projection/detection workers (0 uses the plan value)")
	logDiag := fs.Bool("log-diag", false, "Write diagnostic logs to stderr")
	logTrace := fs.Bool("log-trace", false, "Write per-frame trace logs to stderr")
	showVersion := fs.Bool("version", false, "Print version and exit")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}

	if *showVersion {
		fmt.Fprintf(stdout, "track %s\n", version.String())
		return exitOK
	}
	if *stackDir == "" {
		fmt.Fprintln(stderr, "-stack is required")
		fs.Usage()
		return exitUsage
	}

	monitoring.SetOutput(stderr)
	configureLogs(stderr, *logDiag, *logTrace)

	plan, err := tracking.LoadPlan(*configPath)
	if err != nil {
		monitoring.Logf("load plan %s (%s): %v", *configPath, errorKind(err), err)
		return exitRun
	}

	stack, err := l1stack.LoadDir(*stackDir)
	if err != nil {
		monitoring.Logf("load stack %s: %v", *stackDir, err)
		return exitRun
	}
	monitoring.Logf("loaded stack %s shape=%v", *stackDir, stack.Shape())

	res, err := pipeline.Run(ctx, stack, plan, pipeline.WithWorkers(*workers))
	if err != nil {
		monitoring.Logf("run failed (%s): %v", errorKind(err), err)
		return exitRun
	}

	data, err := res.ToJSON(*withRows)
	if err != nil {
		monitoring.Logf("encode result: %v", err)
		return exitRun
	}
	data = append(data, '\n')

	if *outPath == "" {
		if _, err := stdout.Write(data); err != nil {
			monitoring.Logf("write result: %v", err)
			return exitRun
		}
		return exitOK
	}
	if err := os.WriteFile(*outPath, data, 0o644); err != nil {
		monitoring.Logf("write result: %v", err)
		return exitRun
	}
	monitoring.Logf("run %s: %d trajectories written to %s", res.RunID, res.QualityMetrics.NTracks, *outPath)
	return exitOK
}

// configureLogs sends the ops streams to w and enables diag and trace on
// request.
func configureLogs(w io.Writer, diag, trace bool) {
	var diagW, traceW io.Writer
	if diag {
		diagW = w
	}
	if trace {
		traceW = w
	}
	tracking.SetLogWriters(tracking.LogWriters{Ops: w, Diag: diagW, Trace: traceW})
	pipeline.SetLogWriters(w, diagW, traceW)
}

func errorKind(err error) string {
	var shapeErr *tracking.ShapeError
	var cfgErr *tracking.ConfigError
	var invErr *tracking.InternalInvariantError
	switch {
	case errors.As(err, &shapeErr):
		return "shape"
	case errors.As(err, &cfgErr):
		return "config"
	case errors.As(err, &invErr):
		return "internal invariant"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "cancelled"
	default:
		return "unknown"
	}
}
