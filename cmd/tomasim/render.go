package main

import (
	"fmt"
	"io"
	"strconv"

	"github.com/olekukonko/tablewriter"

	"github.com/sarchlab/tomasim/emu"
	"github.com/sarchlab/tomasim/insts"
	"github.com/sarchlab/tomasim/timing/pipeline"
	"github.com/sarchlab/tomasim/trace"
)

// printReport prints the outcome of a run: statistics, the instruction
// status table and the final registers and memory.
func printReport(w io.Writer, run *trace.Run, verbose bool) {
	snap := run.Snapshot
	stats := snap.Stats

	fmt.Fprintf(w, "\n")
	fmt.Fprintf(w, "Program: %s\n", run.Program)
	if verbose {
		fmt.Fprintf(w, "Run: %s\n", run.ID)
	}
	fmt.Fprintf(w, "Instructions: %d issued, %d committed of %d\n",
		stats.Issued, stats.Committed, len(snap.Entries))
	fmt.Fprintf(w, "Total Cycles: %d\n", stats.Cycles)
	fmt.Fprintf(w, "CPI: %.2f\n", stats.CPI())
	fmt.Fprintf(w, "IPC: %.2f\n", stats.IPC())
	fmt.Fprintf(w, "\n")
	fmt.Fprintf(w, "Pipeline Events:\n")
	fmt.Fprintf(w, "  Broadcasts:        %d\n", stats.Broadcasts)
	fmt.Fprintf(w, "  Structural stalls: %d\n", stats.StructuralStalls)
	fmt.Fprintf(w, "  Memory stalls:     %d\n", stats.MemoryStalls)
	fmt.Fprintf(w, "  Commit stalls:     %d\n", stats.CommitStalls)
	fmt.Fprintf(w, "  Divide by zero:    %d\n", stats.DivideByZero)
	fmt.Fprintf(w, "\n")

	renderInstructions(w, snap.Entries)
	renderRegisters(w, snap)
	renderMemory(w, snap.Memory)
}

// renderState prints the full machine state at the end of a cycle.
func renderState(w io.Writer, snap pipeline.Snapshot) {
	fmt.Fprintf(w, "\n=== Cycle %d ===\n", snap.Cycle)
	if snap.PC < len(snap.Entries) {
		fmt.Fprintf(w, "Next to issue: #%d %s\n", snap.PC, snap.Entries[snap.PC].Inst.String())
	} else {
		fmt.Fprintf(w, "Next to issue: none\n")
	}

	renderInstructions(w, snap.Entries)
	renderStations(w, "Add", snap.AddStations)
	renderStations(w, "Mult", snap.MulStations)
	renderBuffers(w, snap.Buffers)
	renderRegisters(w, snap)
}

func renderInstructions(w io.Writer, entries []pipeline.Entry) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"#", "Instruction", "Unit", "State",
		"Issue", "Exec Start", "Exec End", "Write", "Commit"})

	for _, e := range entries {
		unit := e.Unit
		if e.Skipped {
			unit = "(skipped)"
		}

		table.Append([]string{
			strconv.Itoa(e.ID),
			e.Inst.String(),
			unit,
			e.State.String(),
			cycleText(e.IssueCycle),
			cycleText(e.ExecStartCycle),
			cycleText(e.ExecEndCycle),
			cycleText(e.WriteCycle),
			cycleText(e.CommitCycle),
		})
	}

	table.Render()
}

func renderStations(w io.Writer, title string, stations []pipeline.StationView) {
	fmt.Fprintf(w, "%s reservation stations:\n", title)

	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Name", "Busy", "Op", "Vj", "Vk", "Qj", "Qk", "Remaining", "Owner"})

	for _, rs := range stations {
		if !rs.Busy {
			table.Append([]string{rs.Name, "no", "", "", "", "", "", "", ""})
			continue
		}

		vj, qj := operandText(rs.J)
		vk, qk := operandText(rs.K)
		table.Append([]string{
			rs.Name, "yes", rs.Op.String(), vj, vk, qj, qk,
			remainingText(rs.Remaining), tagText(rs.Owner),
		})
	}

	table.Render()
}

func renderBuffers(w io.Writer, buffers []pipeline.BufferView) {
	fmt.Fprintf(w, "Load/store buffers:\n")

	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Name", "Busy", "Op", "Reg", "Base", "Offset",
		"Address", "Data", "Remaining", "Owner"})

	for _, b := range buffers {
		if !b.Busy {
			table.Append([]string{b.Name, "no", "", "", "", "", "", "", "", ""})
			continue
		}

		base := joinOperand(b.Base)
		address := ""
		if b.AddressReady {
			address = strconv.FormatInt(b.Address, 10)
		}
		data := ""
		if b.Op == insts.OpSTORE {
			data = joinOperand(b.Data)
		}

		table.Append([]string{
			b.Name, "yes", b.Op.String(), b.Dest, base,
			strconv.FormatInt(b.Offset, 10), address, data,
			remainingText(b.Remaining), tagText(b.Owner),
		})
	}

	table.Render()
}

func renderRegisters(w io.Writer, snap pipeline.Snapshot) {
	producers := make(map[string]pipeline.AliasView, len(snap.Aliases))
	names := make([]string, 0, len(snap.Registers)+len(snap.Aliases))
	for name := range snap.Registers {
		names = append(names, name)
	}
	for _, a := range snap.Aliases {
		producers[a.Register] = a
		if _, ok := snap.Registers[a.Register]; !ok {
			names = append(names, a.Register)
		}
	}
	emu.SortRegisterNames(names)

	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Register", "Value", "Producer"})

	for _, name := range names {
		producer := ""
		if a, ok := producers[name]; ok {
			producer = fmt.Sprintf("%s (%s)", tagText(a.Producer), a.Unit)
		}
		table.Append([]string{name, floatText(snap.Registers[name]), producer})
	}

	table.Render()
}

func renderMemory(w io.Writer, contents map[int64]float64) {
	mem := emu.NewMemory(contents)

	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Address", "Value"})

	for _, addr := range mem.Addresses() {
		table.Append([]string{strconv.FormatInt(addr, 10), floatText(mem.Read(addr))})
	}

	table.Render()
}

func cycleText(c uint64) string {
	if c == 0 {
		return trace.NullCycle
	}
	return strconv.FormatUint(c, 10)
}

func remainingText(r int) string {
	if r < 0 {
		return ""
	}
	return strconv.Itoa(r)
}

func tagText(t pipeline.Tag) string {
	if t == pipeline.NoTag {
		return ""
	}
	return "#" + strconv.Itoa(int(t))
}

func floatText(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// operandText splits an operand into its value and producer columns.
func operandText(op pipeline.Operand) (string, string) {
	if op.Waiting {
		return "", tagText(op.Producer)
	}
	return floatText(op.Value), ""
}

func joinOperand(op pipeline.Operand) string {
	if op.Waiting {
		return tagText(op.Producer)
	}
	return floatText(op.Value)
}
