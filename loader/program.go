// Package loader provides loading of text instruction programs for the
// Tomasulo simulator.
package loader

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sarchlab/tomasim/insts"
)

// Diagnostic describes a program line that was skipped or flagged while
// loading.
type Diagnostic struct {
	// Line is the 1-based line number in the source.
	Line int
	// Text is the raw line content.
	Text string
	// Err is the reason the line was skipped or flagged.
	Err error
	// Skipped is true if the line was dropped from the program.
	Skipped bool
}

// String formats the diagnostic as "line N: reason: text".
func (d Diagnostic) String() string {
	return fmt.Sprintf("line %d: %v: %q", d.Line, d.Err, d.Text)
}

// ErrUnknownOpcode flags lines whose mnemonic is not recognized. Such lines
// are kept in the program.
var ErrUnknownOpcode = errors.New("unknown opcode")

// Program represents a loaded instruction list ready for simulation.
type Program struct {
	// Name identifies the program, usually its file path.
	Name string
	// Instructions holds the decoded instructions in program order.
	Instructions []insts.Instruction
	// Diagnostics lists skipped and flagged lines in source order.
	Diagnostics []Diagnostic
}

// Load reads and decodes the program at path. Malformed lines do not fail
// the load; they are reported in Program.Diagnostics.
func Load(path string) (*Program, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open program file: %w", err)
	}
	defer func() { _ = f.Close() }()

	prog, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read program file: %w", err)
	}
	prog.Name = path

	return prog, nil
}

// Parse decodes a program from r, one instruction per line. Lines may be
// of any length.
func Parse(r io.Reader) (*Program, error) {
	decoder := insts.NewDecoder()
	prog := &Program{}

	reader := bufio.NewReader(r)
	lineNo := 0
	for {
		line, err := reader.ReadString('\n')
		if line != "" {
			lineNo++
			prog.addLine(decoder, lineNo, strings.TrimRight(line, "\r\n"))
		}

		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
	}

	return prog, nil
}

func (p *Program) addLine(decoder *insts.Decoder, lineNo int, text string) {
	inst, err := decoder.Decode(text)
	if errors.Is(err, insts.ErrEmptyLine) {
		return
	}
	if err != nil {
		p.Diagnostics = append(p.Diagnostics, Diagnostic{
			Line:    lineNo,
			Text:    text,
			Err:     err,
			Skipped: true,
		})
		return
	}

	if inst.Op == insts.OpUnknown {
		p.Diagnostics = append(p.Diagnostics, Diagnostic{
			Line: lineNo,
			Text: text,
			Err:  fmt.Errorf("%w: %s", ErrUnknownOpcode, inst.Mnemonic),
		})
	}

	inst.Line = lineNo
	p.Instructions = append(p.Instructions, *inst)
}

// ParseString is a convenience wrapper around Parse for inline programs.
func ParseString(src string) *Program {
	prog, err := Parse(strings.NewReader(src))
	if err != nil {
		return &Program{Diagnostics: []Diagnostic{{Err: err, Skipped: true}}}
	}
	return prog
}
