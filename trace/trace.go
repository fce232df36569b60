// Package trace turns the result of a simulation into dataframes and
// exports them as CSV or Parquet.
package trace

import (
	"context"
	"fmt"
	"io"
	"strconv"

	dataframe "github.com/rocketlaunchr/dataframe-go"
	"github.com/rocketlaunchr/dataframe-go/exports"
	"github.com/rs/xid"
	"github.com/xitongsys/parquet-go-source/local"

	"github.com/sarchlab/tomasim/emu"
	"github.com/sarchlab/tomasim/timing/pipeline"
)

// NullCycle is written in place of a stage the instruction never reached.
const NullCycle = "-"

// Run is the recorded outcome of one simulation.
type Run struct {
	// ID distinguishes rows of different runs in merged exports.
	ID       xid.ID
	Program  string
	Snapshot pipeline.Snapshot
}

// NewRun records snap as the outcome of running program.
func NewRun(program string, snap pipeline.Snapshot) *Run {
	return &Run{
		ID:       xid.New(),
		Program:  program,
		Snapshot: snap,
	}
}

// Timeline returns one row per instruction of every run with its cycle
// timestamps. Stages not reached are null.
func Timeline(runs ...*Run) *dataframe.DataFrame {
	var (
		runIDs   []interface{}
		programs []interface{}
		ids      []interface{}
		ops      []interface{}
		texts    []interface{}
		units    []interface{}
		issue    []interface{}
		start    []interface{}
		end      []interface{}
		write    []interface{}
		commit   []interface{}
		skipped  []interface{}
	)

	for _, r := range runs {
		runID := r.ID.String()
		for _, e := range r.Snapshot.Entries {
			runIDs = append(runIDs, runID)
			programs = append(programs, r.Program)
			ids = append(ids, int64(e.ID))
			ops = append(ops, e.Inst.Mnemonic)
			texts = append(texts, e.Inst.String())
			units = append(units, e.Unit)
			issue = append(issue, cycleValue(e.IssueCycle))
			start = append(start, cycleValue(e.ExecStartCycle))
			end = append(end, cycleValue(e.ExecEndCycle))
			write = append(write, cycleValue(e.WriteCycle))
			commit = append(commit, cycleValue(e.CommitCycle))
			skipped = append(skipped, strconv.FormatBool(e.Skipped))
		}
	}

	return dataframe.NewDataFrame(
		dataframe.NewSeriesString("run", nil, runIDs...),
		dataframe.NewSeriesString("program", nil, programs...),
		dataframe.NewSeriesInt64("id", nil, ids...),
		dataframe.NewSeriesString("op", nil, ops...),
		dataframe.NewSeriesString("text", nil, texts...),
		dataframe.NewSeriesString("unit", nil, units...),
		dataframe.NewSeriesInt64("issue", nil, issue...),
		dataframe.NewSeriesInt64("exec_start", nil, start...),
		dataframe.NewSeriesInt64("exec_end", nil, end...),
		dataframe.NewSeriesInt64("write", nil, write...),
		dataframe.NewSeriesInt64("commit", nil, commit...),
		dataframe.NewSeriesString("skipped", nil, skipped...),
	)
}

// Registers returns the final register file of every run, one row per
// register in natural order.
func Registers(runs ...*Run) *dataframe.DataFrame {
	var runIDs, programs, regs, values []interface{}

	for _, r := range runs {
		names := make([]string, 0, len(r.Snapshot.Registers))
		for name := range r.Snapshot.Registers {
			names = append(names, name)
		}
		emu.SortRegisterNames(names)

		for _, name := range names {
			runIDs = append(runIDs, r.ID.String())
			programs = append(programs, r.Program)
			regs = append(regs, name)
			values = append(values, r.Snapshot.Registers[name])
		}
	}

	return dataframe.NewDataFrame(
		dataframe.NewSeriesString("run", nil, runIDs...),
		dataframe.NewSeriesString("program", nil, programs...),
		dataframe.NewSeriesString("register", nil, regs...),
		dataframe.NewSeriesFloat64("value", nil, values...),
	)
}

// Memory returns the final data memory of every run, one row per address
// in ascending order.
func Memory(runs ...*Run) *dataframe.DataFrame {
	var runIDs, programs, addresses, values []interface{}

	for _, r := range runs {
		mem := emu.NewMemory(r.Snapshot.Memory)
		for _, addr := range mem.Addresses() {
			runIDs = append(runIDs, r.ID.String())
			programs = append(programs, r.Program)
			addresses = append(addresses, addr)
			values = append(values, mem.Read(addr))
		}
	}

	return dataframe.NewDataFrame(
		dataframe.NewSeriesString("run", nil, runIDs...),
		dataframe.NewSeriesString("program", nil, programs...),
		dataframe.NewSeriesInt64("address", nil, addresses...),
		dataframe.NewSeriesFloat64("value", nil, values...),
	)
}

func cycleValue(c uint64) interface{} {
	if c == 0 {
		return nil
	}
	return int64(c)
}

// WriteCSV writes df to w. Null cells are written as NullCycle.
func WriteCSV(ctx context.Context, w io.Writer, df *dataframe.DataFrame) error {
	null := NullCycle
	err := exports.ExportToCSV(ctx, w, df, exports.CSVExportOptions{
		Separator:  ',',
		NullString: &null,
	})
	if err != nil {
		return fmt.Errorf("failed to export CSV: %w", err)
	}
	return nil
}

// WriteParquet writes df to a Parquet file at path.
func WriteParquet(ctx context.Context, path string, df *dataframe.DataFrame) error {
	fw, err := local.NewLocalFileWriter(path)
	if err != nil {
		return fmt.Errorf("failed to create parquet file: %w", err)
	}

	if err := exports.ExportToParquet(ctx, fw, df); err != nil {
		_ = fw.Close()
		return fmt.Errorf("failed to export parquet: %w", err)
	}

	return fw.Close()
}
