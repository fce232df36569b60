package insts

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrEmptyLine is returned by Decode for blank and comment-only lines.
var ErrEmptyLine = errors.New("empty line")

// ErrMalformed is wrapped by every syntax error returned by Decode.
var ErrMalformed = errors.New("malformed instruction")

// Decoder decodes instruction text into instructions.
type Decoder struct{}

// NewDecoder creates a new instruction decoder.
func NewDecoder() *Decoder {
	return &Decoder{}
}

// Decode decodes one line of program text.
//
// Comments start with '#' and run to the end of the line. Mnemonics and
// register names are normalized to upper case. A line whose mnemonic is not
// recognized but which has the arithmetic shape decodes to an instruction
// with OpUnknown so that the pipeline can flag it.
func (d *Decoder) Decode(line string) (*Instruction, error) {
	if idx := strings.IndexByte(line, '#'); idx >= 0 {
		line = line[:idx]
	}
	line = strings.ToUpper(strings.TrimSpace(line))
	if line == "" {
		return nil, ErrEmptyLine
	}

	fields := strings.Fields(strings.ReplaceAll(line, ",", " "))
	if len(fields) == 0 {
		return nil, fmt.Errorf("%w: no mnemonic", ErrMalformed)
	}
	mnemonic, operands := fields[0], fields[1:]

	inst := &Instruction{
		Op:       ParseOp(mnemonic),
		Mnemonic: mnemonic,
	}

	var err error
	if inst.Op.IsMemory() {
		err = d.decodeMemory(inst, operands)
	} else {
		err = d.decodeArithmetic(inst, operands)
	}
	if err != nil {
		return nil, err
	}

	inst.Text = inst.String()
	return inst, nil
}

// decodeArithmetic fills DEST, SRC1, SRC2.
func (d *Decoder) decodeArithmetic(inst *Instruction, operands []string) error {
	if len(operands) != 3 {
		return fmt.Errorf("%w: %s expects 3 operands, got %d",
			ErrMalformed, inst.Mnemonic, len(operands))
	}
	for _, reg := range operands {
		if !isRegisterName(reg) {
			return fmt.Errorf("%w: invalid register %q", ErrMalformed, reg)
		}
	}

	inst.Dest = operands[0]
	inst.Src1 = operands[1]
	inst.Src2 = operands[2]
	return nil
}

// decodeMemory fills DEST, OFFSET and BASE from "REG OFFSET(BASE)".
func (d *Decoder) decodeMemory(inst *Instruction, operands []string) error {
	if len(operands) != 2 {
		return fmt.Errorf("%w: %s expects REG,OFFSET(BASE)", ErrMalformed, inst.Mnemonic)
	}
	if !isRegisterName(operands[0]) {
		return fmt.Errorf("%w: invalid register %q", ErrMalformed, operands[0])
	}

	offsetText, baseText, ok := strings.Cut(operands[1], "(")
	if !ok || !strings.HasSuffix(baseText, ")") {
		return fmt.Errorf("%w: memory operand %q is not OFFSET(BASE)",
			ErrMalformed, operands[1])
	}
	baseText = strings.TrimSuffix(baseText, ")")
	if !isRegisterName(baseText) {
		return fmt.Errorf("%w: invalid base register %q", ErrMalformed, baseText)
	}

	var offset int64
	if offsetText != "" {
		var err error
		offset, err = strconv.ParseInt(offsetText, 10, 64)
		if err != nil {
			return fmt.Errorf("%w: invalid offset %q", ErrMalformed, offsetText)
		}
	}

	inst.Dest = operands[0]
	inst.Base = baseText
	inst.Offset = offset
	return nil
}

// isRegisterName accepts a letter followed by letters or digits.
func isRegisterName(s string) bool {
	if s == "" || s[0] < 'A' || s[0] > 'Z' {
		return false
	}
	for i := 1; i < len(s); i++ {
		c := s[i]
		if (c < 'A' || c > 'Z') && (c < '0' || c > '9') {
			return false
		}
	}
	return true
}
