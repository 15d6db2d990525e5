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

// secondPass re-walks the line records the first pass produced, this time
// with each section's byte buffer preallocated to its finalized size, and
// writes every datum and instruction encoding at its location-counter
// offset -- an offset write rather than an append, so a section entered a
// second time overwrites its earlier bytes exactly as spec §7 item 2
// documents (intentional, not a bug).
func (a *Assembler) secondPass() *AssemblerError {
	for _, sec := range a.Sections.Ordered() {
		if sec.Flags[FlagA] {
			sec.Bytes = make([]byte, sec.finalSize)
		}
	}

	var cur *Section
	var locationCounter uint16

	for _, rec := range a.records {
		switch rec.Kind {
		case lineSection:
			cur = a.Sections.Lookup(rec.Section)
			locationCounter = 0

		case lineEqu, lineEmpty:
			// labels and .equ contribute no bytes

		case lineAlign:
			boundary := uint16(1) << uint(rec.AlignN)
			if boundary > 0 {
				if rem := locationCounter % boundary; rem != 0 {
					locationCounter += boundary - rem
				}
			}

		case lineSkip:
			n := uint16(rec.SkipN)
			if cur != nil && cur.Flags[FlagA] {
				fill := byte(rec.SkipFill)
				for i := uint16(0); i < n; i++ {
					cur.Bytes[locationCounter+i] = fill
				}
			}
			locationCounter += n

		case lineData:
			width := uint16(2)
			if rec.Directive == ".byte" {
				width = 1
			}
			for _, term := range groupExpressionTerms(rec.Operands) {
				value, relocs, err := a.evaluate(rec.Directive, term, int(width), rec.Line)
				if err != nil {
					return err
				}
				if cur != nil && cur.Flags[FlagA] {
					writeLittleEndian(cur.Bytes, locationCounter, value, int(width))
				}
				for _, r := range relocs {
					r.Section = cur.Name
					r.Offset = int(locationCounter)
					a.Relocations = append(a.Relocations, r)
				}
				locationCounter += width
			}

		case lineGlobalExtern:
			switch rec.Directive {
			case ".global":
				for _, name := range rec.Operands {
					sym := a.Symbols.Lookup(name)
					if sym == nil || !sym.Defined {
						return newError(GlobalButUndefined, rec.Line, "%q declared .global but never defined", name)
					}
				}
			case ".extern":
				for _, name := range rec.Operands {
					if sym := a.Symbols.Lookup(name); sym != nil && sym.Defined {
						return newError(ExternButDefined, rec.Line, "%q is defined in this file but flagged .extern", name)
					}
				}
			}

		case lineInstruction:
			encoded, relocs, err := a.encodeInstruction(rec.Inst, cur, locationCounter)
			if err != nil {
				return err
			}
			if cur != nil && cur.Flags[FlagA] {
				copy(cur.Bytes[locationCounter:], encoded)
			}
			for _, r := range relocs {
				r.Section = cur.Name
				a.Relocations = append(a.Relocations, r)
			}
			locationCounter += uint16(len(encoded))
		}
	}
	return nil
}

func writeLittleEndian(buf []byte, offset uint16, value int16, width int) {
	buf[offset] = byte(value)
	if width == 2 {
		buf[offset+1] = byte(value >> 8)
	}
}

// encodeInstruction renders inst into its 1..7-byte encoding per spec
// §4.8: a descriptor/opcode byte, then one descriptor+payload group per
// operand (destination before source). Relocation offsets returned are
// already section offsets (base plus the payload's position within the
// instruction); the caller only fills in the section name.
func (a *Assembler) encodeInstruction(inst *Instruction, sec *Section, base uint16) ([]byte, []Relocation, *AssemblerError) {
	buf := []byte{byte(inst.Opcode<<3 | (inst.OperandSize-1)<<2)}
	var relocs []Relocation

	pcAfter := base + uint16(inst.Size)

	encodeOne := func(op *Operand) *AssemblerError {
		desc, payload, opRelocs, err := a.encodeOperand(op, inst.OperandSize, sec, base+uint16(len(buf))+1, pcAfter, inst.Line)
		if err != nil {
			return err
		}
		buf = append(buf, desc)
		buf = append(buf, payload...)
		for _, r := range opRelocs {
			r.Offset = int(base) + len(buf) - len(payload)
			relocs = append(relocs, r)
		}
		return nil
	}

	if inst.Destination != nil {
		if err := encodeOne(inst.Destination); err != nil {
			return nil, nil, err
		}
	}
	if inst.Source != nil {
		if err := encodeOne(inst.Source); err != nil {
			return nil, nil, err
		}
	}
	return buf, relocs, nil
}

// encodeOperand renders one operand's descriptor byte and payload bytes,
// per the table in spec §4.8. payloadOffset is this operand's payload's
// absolute offset within the section (for PC-relative arithmetic);
// pcAfter is the address immediately following the whole instruction.
func (a *Assembler) encodeOperand(op *Operand, operandSize int, sec *Section, payloadOffset, pcAfter uint16, line int) (byte, []byte, []Relocation, *AssemblerError) {
	switch op.Addressing {
	case Immed:
		value, relocs, err := a.resolveOperandValue(op.Value, operandSize, line)
		if err != nil {
			return 0, nil, nil, err
		}
		if operandSize == 1 && (value > 255 || value < 0) {
			return 0, nil, nil, newError(ByteOverflow, line, "immediate %q does not fit in a byte", op.Value)
		}
		payload := make([]byte, operandSize)
		writeLittleEndian(payload, 0, value, operandSize)
		return byte(Immed) << 5, payload, relocs, nil

	case RegDir:
		h := byte(0)
		if op.HighHalf {
			h = 1
		}
		return byte(RegDir)<<5 | byte(op.Register)<<1 | h, nil, nil, nil

	case RegInd:
		return byte(RegInd)<<5 | byte(op.Register)<<1, nil, nil, nil

	case RegInd8:
		n, err := parseImmediate(op.Value)
		if err != nil {
			return 0, nil, nil, newError(InvalidOperandType, line, "invalid displacement %q", op.Value)
		}
		return byte(RegInd8)<<5 | byte(op.Register)<<1, []byte{byte(n)}, nil, nil

	case RegInd16:
		value, relocs, err := a.resolveOperandValue(op.Value, 2, line)
		if err != nil {
			return 0, nil, nil, err
		}
		payload := make([]byte, 2)
		writeLittleEndian(payload, 0, value, 2)
		return byte(RegInd16)<<5 | byte(op.Register)<<1, payload, relocs, nil

	case Memory:
		value, relocs, err := a.resolveOperandValue(op.Value, 2, line)
		if err != nil {
			return 0, nil, nil, err
		}
		payload := make([]byte, 2)
		writeLittleEndian(payload, 0, value, 2)
		return byte(Memory) << 5, payload, relocs, nil

	case PCRelative:
		value, relocs, err := a.resolvePCRelative(op.Value, sec, payloadOffset, pcAfter, line)
		if err != nil {
			return 0, nil, nil, err
		}
		payload := make([]byte, 2)
		writeLittleEndian(payload, 0, value, 2)
		return byte(PCRelative)<<5 | byte(PCRegister)<<1, payload, relocs, nil

	default:
		return 0, nil, nil, newError(InvalidOperandType, line, "unsupported addressing mode")
	}
}

// resolveOperandValue evaluates an IMMED/REG_IND_16/MEMORY payload, which
// is either a bare integer literal or a bare symbol -- never a binary
// expression, per spec §4.2's operand grammar.
func (a *Assembler) resolveOperandValue(text string, width int, line int) (int16, []Relocation, *AssemblerError) {
	tok := classify(text)
	switch tok.kind {
	case TokenOperandImmed:
		n, err := parseImmediate(text)
		if err != nil {
			return 0, nil, newError(InvalidOperandType, line, "invalid immediate %q", text)
		}
		return int16(n), nil, nil
	case TokenSymbol, TokenSectionFlags:
		lit, relocs := a.resolveSymbolTerm(text, "+", width)
		return lit, relocs, nil
	default:
		return 0, nil, newError(InvalidOperandType, line, "invalid operand %q", text)
	}
}

// resolvePCRelative evaluates a %symbol PC-relative operand, mirroring
// resolveSymbolTerm's SYMBOL case per spec §4.6/§4.8: a CONSTANT symbol is
// illegal here, and every other defined LOCAL symbol -- same section or
// not -- always contributes an R_386_PC16 relocation against its owning
// section, never a bare section-local adjustment; the linker, not this
// assembler, computes the final distance once sections are placed. A UST
// entry contributes its folded value plus one relocation per surviving
// dependency, and an unseen/EXTERN/GLOBAL name relocates against itself.
func (a *Assembler) resolvePCRelative(name string, sec *Section, payloadOffset, pcAfter uint16, line int) (int16, []Relocation, *AssemblerError) {
	adjust := int16(payloadOffset) - int16(pcAfter)

	if ust := a.UST.Lookup(name); ust != nil {
		var relocs []Relocation
		for _, dep := range ust.Dependencies {
			relocs = append(relocs, Relocation{Symbol: dep.Name, Type: relocTypeForSignKind(R_386_PC16, dep.Op)})
		}
		return ust.Value + adjust, relocs, nil
	}
	if sym := a.Symbols.Lookup(name); sym != nil && sym.Defined && sym.Scope == Local {
		if sym.Type == ConstantSymbol {
			return 0, nil, newError(PCRelativeOnConstant, line, "%q is a constant, not a valid PC-relative target", name)
		}
		return sym.Value + adjust, []Relocation{{Symbol: sym.Section, Type: R_386_PC16}}, nil
	}
	a.Symbols.GetOrCreate(name, ExternSymbol)
	return adjust, []Relocation{{Symbol: name, Type: R_386_PC16}}, nil
}
