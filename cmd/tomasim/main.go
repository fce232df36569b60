// Package main provides the entry point for Tomasim.
// Tomasim is a cycle-level Tomasulo simulator with in-order commit.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"

	"github.com/go-logr/logr"
	"github.com/go-logr/logr/funcr"
	"golang.org/x/sync/errgroup"

	"github.com/sarchlab/tomasim/timing/core"
	"github.com/sarchlab/tomasim/timing/latency"
	"github.com/sarchlab/tomasim/trace"
)

var (
	configPath  = flag.String("config", "", "Path to timing configuration file (JSON or YAML)")
	policy      = flag.String("policy", "", "Commit policy, commit or writeback (overrides config)")
	maxCycles   = flag.Uint64("max-cycles", 0, "Cycle cap (overrides config)")
	verbose     = flag.Bool("v", false, "Verbose output, logs every pipeline event")
	step        = flag.Bool("step", false, "Show the machine state every cycle and wait for ENTER")
	csvPath     = flag.String("csv", "", "Write the instruction timeline to a CSV file")
	parquetPath = flag.String("parquet", "", "Write the instruction timeline to a Parquet file")
)

func main() {
	flag.Parse()

	if flag.NArg() < 1 {
		fmt.Fprintf(os.Stderr, "Usage: tomasim [options] <program.txt> [program.txt...]\n")
		fmt.Fprintf(os.Stderr, "\nOptions:\n")
		flag.PrintDefaults()
		os.Exit(1)
	}

	config, err := buildConfig(*configPath, *policy, *maxCycles)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading timing config: %v\n", err)
		os.Exit(1)
	}

	if *step && flag.NArg() > 1 {
		fmt.Fprintf(os.Stderr, "Error: -step runs a single program\n")
		os.Exit(1)
	}

	log := newLogger(os.Stderr, *verbose)
	ctx := context.Background()

	var runs []*trace.Run
	if *step {
		var run *trace.Run
		run, err = stepProgram(flag.Arg(0), config, log, os.Stdin, os.Stdout)
		if run != nil {
			runs = append(runs, run)
		}
	} else {
		runs, err = runBatch(ctx, flag.Args(), config, log)
	}

	for _, run := range runs {
		printReport(os.Stdout, run, *verbose)
	}

	if exportErr := exportRuns(ctx, runs, *csvPath, *parquetPath); exportErr != nil {
		fmt.Fprintf(os.Stderr, "Error exporting timeline: %v\n", exportErr)
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// buildConfig loads the timing configuration and applies flag overrides.
func buildConfig(path, policy string, maxCycles uint64) (*latency.TimingConfig, error) {
	config := latency.DefaultTimingConfig()
	if path != "" {
		var err error
		config, err = latency.LoadConfig(path)
		if err != nil {
			return nil, err
		}
	}

	if policy != "" {
		config.CommitPolicy = latency.CommitPolicy(policy)
	}
	if maxCycles > 0 {
		config.MaxCycles = maxCycles
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// newLogger returns a logger writing one line per record to w. Verbose
// mode enables V(1) pipeline events.
func newLogger(w io.Writer, verbose bool) logr.Logger {
	verbosity := 0
	if verbose {
		verbosity = 1
	}

	return funcr.New(func(prefix, args string) {
		if prefix != "" {
			fmt.Fprintf(w, "%s: %s\n", prefix, args)
			return
		}
		fmt.Fprintln(w, args)
	}, funcr.Options{Verbosity: verbosity})
}

// componentName names every simulator. Each run owns its engine, so the
// name does not need to be unique.
const componentName = "Tomasim"

func newSimulator(path string, config *latency.TimingConfig, log logr.Logger) (*core.Simulator, error) {
	s, err := core.NewSimulator(componentName,
		core.WithConfig(config),
		core.WithLogger(log.WithName(filepath.Base(path))),
	)
	if err != nil {
		return nil, err
	}

	if err := s.Load(path); err != nil {
		return nil, err
	}

	return s, nil
}

// runProgram simulates the program at path to completion. The returned
// run is non-nil whenever the program was loaded, even if the run aborted.
func runProgram(path string, config *latency.TimingConfig, log logr.Logger) (*trace.Run, error) {
	s, err := newSimulator(path, config, log)
	if err != nil {
		return nil, err
	}

	err = s.RunToCompletion()
	return trace.NewRun(path, s.Snapshot()), err
}

// runBatch simulates every program concurrently, each on its own
// simulator. Runs are returned in argument order; programs that failed to
// load are left out.
func runBatch(
	ctx context.Context,
	paths []string,
	config *latency.TimingConfig,
	log logr.Logger,
) ([]*trace.Run, error) {
	results := make([]*trace.Run, len(paths))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.NumCPU())

	for i, path := range paths {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}

			run, err := runProgram(path, config, log)
			results[i] = run
			if err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
			return nil
		})
	}

	err := g.Wait()

	runs := make([]*trace.Run, 0, len(results))
	for _, run := range results {
		if run != nil {
			runs = append(runs, run)
		}
	}

	return runs, err
}

// stepProgram simulates the program one cycle at a time, rendering the
// machine state after each cycle and waiting for a line on in before the
// next. Once in is exhausted the run continues without pausing.
func stepProgram(
	path string,
	config *latency.TimingConfig,
	log logr.Logger,
	in io.Reader,
	out io.Writer,
) (*trace.Run, error) {
	s, err := newSimulator(path, config, log)
	if err != nil {
		return nil, err
	}

	reader := bufio.NewReader(in)
	paced := true

	renderState(out, s.Snapshot())
	for !s.Done() {
		if paced {
			fmt.Fprint(out, "Press ENTER to advance one cycle...")
			if _, err := reader.ReadString('\n'); err != nil {
				paced = false
			}
			fmt.Fprintln(out)
		}

		err := s.AdvanceOneCycle()
		renderState(out, s.Snapshot())
		if err != nil {
			return trace.NewRun(path, s.Snapshot()), err
		}
	}

	return trace.NewRun(path, s.Snapshot()), nil
}

// exportRuns writes the merged timeline of runs to the requested files.
func exportRuns(ctx context.Context, runs []*trace.Run, csvPath, parquetPath string) error {
	if len(runs) == 0 || (csvPath == "" && parquetPath == "") {
		return nil
	}

	timeline := trace.Timeline(runs...)

	if csvPath != "" {
		f, err := os.Create(csvPath)
		if err != nil {
			return fmt.Errorf("failed to create CSV file: %w", err)
		}

		if err := trace.WriteCSV(ctx, f, timeline); err != nil {
			_ = f.Close()
			return err
		}

		if err := f.Close(); err != nil {
			return err
		}
	}

	if parquetPath != "" {
		if err := trace.WriteParquet(ctx, parquetPath, timeline); err != nil {
			return err
		}
	}

	return nil
}
