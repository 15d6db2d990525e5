/*
Copyright © 2022 Jeff Berkowitz (pdxjjb@gmail.com)

This program is free software: you can redistribute it and/or modify
it under the terms of the GNU Affero General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

This program is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU Affero General Public License for more details.

You should have received a copy of the GNU Affero General Public License
along with this program. If not, see <http://www.gnu.org/licenses/>.
*/

package assembler

import "regexp"

// AddressingMode is the seven operand shapes the instruction parser (C2)
// can classify an operand string into.
type AddressingMode int

const (
	Immed AddressingMode = iota
	RegDir
	RegInd
	RegInd8
	RegInd16
	Memory
	PCRelative
)

var addressingModeNames = [...]string{
	"IMMED", "REG_DIR", "REG_IND", "REG_IND_8", "REG_IND_16", "MEMORY", "PCRELATIVE",
}

func (a AddressingMode) String() string {
	if int(a) < 0 || int(a) >= len(addressingModeNames) {
		return "UNKNOWN"
	}
	return addressingModeNames[a]
}

// PswRegister is the reserved register code the flags register (psw) is
// always encoded with, regardless of how many general registers exist.
const PswRegister = 7

// PCRegister is the fixed pseudo-register code PCRELATIVE addressing
// encodes in the descriptor's reg field (it reuses REG_IND_16's shape).
const PCRegister = 6

// mnemonicInfo describes one instruction mnemonic's fixed opcode and the
// number of operands it expects.
type mnemonicInfo struct {
	opcode int
	arity  int
}

// mnemonics is the ISA's opcode table: 5-bit opcodes, 0-31. Grounded on the
// teacher's ALU opcode table style (alu.go's do_add/do_pass const groups)
// generalized to a full general-purpose instruction set matching the
// addressing-mode table spec.md §4.2 describes.
var mnemonics = map[string]mnemonicInfo{
	"nop":  {0, 0},
	"halt": {1, 0},
	"mov":  {2, 2},
	"add":  {3, 2},
	"sub":  {4, 2},
	"cmp":  {5, 2},
	"and":  {6, 2},
	"or":   {7, 2},
	"xor":  {8, 2},
	"not":  {9, 1},
	"neg":  {10, 1},
	"shl":  {11, 2},
	"shr":  {12, 2},
	"jmp":  {13, 1},
	"jz":   {14, 1},
	"jnz":  {15, 1},
	"jc":   {16, 1},
	"jnc":  {17, 1},
	"call": {18, 1},
	"ret":  {19, 0},
	"push": {20, 1},
	"pop":  {21, 1},
	"in":   {22, 2},
	"out":  {23, 2},
	"lea":  {24, 2},
	"inc":  {25, 1},
	"dec":  {26, 1},
	"test": {27, 2},
	"clc":  {28, 0},
	"sec":  {29, 0},
	"swi":  {30, 1},
	"iret": {31, 0},
}

// isMnemonic reports whether text names an instruction, ignoring an
// optional "b"/"w" operand-size suffix (e.g. "movb", "addw").
func isMnemonic(text string) bool {
	base, _ := splitSizeSuffix(text)
	_, ok := mnemonics[base]
	return ok
}

// splitSizeSuffix strips a trailing 'b' or 'w' size suffix from a
// mnemonic token, returning the bare mnemonic and the resolved operand
// size (defaulting to 2, i.e. word, when no suffix is present).
func splitSizeSuffix(text string) (string, int) {
	if n := len(text); n > 1 {
		switch text[n-1] {
		case 'b':
			if _, ok := mnemonics[text[:n-1]]; ok {
				return text[:n-1], 1
			}
		case 'w':
			if _, ok := mnemonics[text[:n-1]]; ok {
				return text[:n-1], 2
			}
		}
	}
	return text, 2
}

var (
	reRegister    = regexp.MustCompile(`^(r[0-9]+|psw)([hl]?)$`)
	reRegIndirect = regexp.MustCompile(`^\[\s*(r[0-9]+)\s*\]$`)
	reRegDisp     = regexp.MustCompile(`^\[\s*(r[0-9]+)\s*\+\s*(-?[A-Za-z0-9_]+)\s*\]$`)
	reImmedOperand = regexp.MustCompile(`^\$(.+)$`)
	rePCRelative   = regexp.MustCompile(`^%(.+)$`)
)

// Operand is one classified instruction argument: its addressing mode, the
// underlying register (for REG_DIR/REG_IND/REG_IND_*), and the raw textual
// value/displacement -- numeric or symbolic conversion is deferred to code
// generation so UST lookups still see the original token text.
type Operand struct {
	Addressing AddressingMode
	Register   int
	HighHalf   bool
	Value      string
}

// size returns the number of payload bytes Operand contributes beyond its
// one descriptor byte, given the instruction's resolved operand size.
func (o Operand) size(operandSize int) int {
	switch o.Addressing {
	case Immed:
		return operandSize
	case RegDir, RegInd:
		return 0
	case RegInd8:
		return 1
	case RegInd16, Memory, PCRelative:
		return 2
	default:
		return 0
	}
}

// Instruction is the in-flight record the instruction parser (C2)
// produces and the code generator (C8) later encodes.
type Instruction struct {
	Mnemonic    string
	Opcode      int
	OperandSize int
	Size        int
	Destination *Operand
	Source      *Operand
	Line        int
}

// registerCode parses "rN" into N, or PswRegister for "psw".
func registerCode(text string) (int, bool) {
	if text == "psw" {
		return PswRegister, true
	}
	if len(text) < 2 || text[0] != 'r' {
		return 0, false
	}
	n, err := parseImmediate(text[1:])
	if err != nil {
		return 0, false
	}
	return int(n), true
}

// classifyOperand parses one operand string into its addressing mode per
// the table in spec.md §4.2.
func classifyOperand(text string, byteOp bool) (*Operand, *AssemblerError) {
	if m := reImmedOperand.FindStringSubmatch(text); m != nil {
		return &Operand{Addressing: Immed, Value: m[1]}, nil
	}
	if m := rePCRelative.FindStringSubmatch(text); m != nil {
		return &Operand{Addressing: PCRelative, Register: PCRegister, Value: m[1]}, nil
	}
	if m := reRegDisp.FindStringSubmatch(text); m != nil {
		reg, ok := registerCode(m[1])
		if !ok {
			return nil, fileError(InvalidOperandType, "bad register in operand %q", text)
		}
		if _, err := parseImmediate(m[2]); err == nil {
			if n, _ := parseImmediate(m[2]); n >= -128 && n <= 127 {
				return &Operand{Addressing: RegInd8, Register: reg, Value: m[2]}, nil
			}
		}
		return &Operand{Addressing: RegInd16, Register: reg, Value: m[2]}, nil
	}
	if m := reRegIndirect.FindStringSubmatch(text); m != nil {
		reg, ok := registerCode(m[1])
		if !ok {
			return nil, fileError(InvalidOperandType, "bad register in operand %q", text)
		}
		return &Operand{Addressing: RegInd, Register: reg}, nil
	}
	if m := reRegister.FindStringSubmatch(text); m != nil {
		reg, ok := registerCode(m[1])
		if !ok {
			return nil, fileError(InvalidOperandType, "bad register in operand %q", text)
		}
		high := byteOp && m[2] == "h"
		return &Operand{Addressing: RegDir, Register: reg, HighHalf: high}, nil
	}
	// Bare literal or symbol: MEMORY.
	return &Operand{Addressing: Memory, Value: text}, nil
}

// parseInstruction consumes the mnemonic (already lexed) plus the
// remaining comma-split operand tokens for the line and produces a typed
// Instruction, or fails if arity or operand shapes don't match.
func parseInstruction(mnemonicTok string, operands []string, line int) (*Instruction, *AssemblerError) {
	base, size := splitSizeSuffix(mnemonicTok)
	info, ok := mnemonics[base]
	if !ok {
		return nil, newError(InvalidToken, line, "unknown mnemonic %q", mnemonicTok)
	}
	if len(operands) != info.arity {
		return nil, newError(DirectiveMissingArgument, line, "%s expects %d operand(s), got %d", base, info.arity, len(operands))
	}
	inst := &Instruction{Mnemonic: base, Opcode: info.opcode, OperandSize: size, Line: line}
	byteOp := size == 1
	total := 1
	switch info.arity {
	case 0:
	case 1:
		op, err := classifyOperand(operands[0], byteOp)
		if err != nil {
			return nil, err
		}
		inst.Destination = op
		total += 1 + op.size(size)
	case 2:
		dst, err := classifyOperand(operands[0], byteOp)
		if err != nil {
			return nil, err
		}
		src, err := classifyOperand(operands[1], byteOp)
		if err != nil {
			return nil, err
		}
		inst.Destination = dst
		inst.Source = src
		total += 1 + dst.size(size) + 1 + src.size(size)
	}
	inst.Size = total
	return inst, nil
}
