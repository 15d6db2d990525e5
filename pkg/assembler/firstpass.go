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

// lineKind tags what a source line turned out to be, once classified
// during the first pass, so the second pass can re-walk the same list
// without re-running token classification from scratch.
type lineKind int

const (
	lineSection lineKind = iota
	lineEqu
	lineAlign
	lineSkip
	lineData
	lineInstruction
	lineGlobalExtern
	lineEmpty
)

// lineRecord is the first pass's durable account of one source line: its
// classification, the section active when it was processed, and whatever
// payload the second pass needs to re-derive the same bytes.
type lineRecord struct {
	Line       int
	Kind       lineKind
	Section    string
	Label      string
	Directive  string   // ".byte"/".word" for data lines, ".global"/".extern" for scope lines
	Operands   []string // remaining tokens after label/directive/mnemonic
	Inst       *Instruction
	AlignN     int
	SkipN      int
	SkipFill   int
	EquName    string
	EquExpr    []string
}

// firstPass walks every tokenized source line once, laying out sections,
// populating the symbol table, UST, and per-instruction operand records,
// and advancing the location counter -- without encoding a single byte.
// It mirrors Assembler::firstPass in the ported implementation.
func (a *Assembler) firstPass(lines []sourceLine) *AssemblerError {
	labelDefined := false

	for _, sl := range lines {
		toks := sl.Tokens
		if len(toks) == 0 {
			continue
		}

		if m := reLabel.FindStringSubmatch(toks[0]); m != nil {
			if labelDefined {
				return newError(DoubleLabel, sl.Line, "two labels on one line")
			}
			if a.CurrentSection == nil {
				return newError(LabelOutsideSection, sl.Line, "label %q outside any section", m[1])
			}
			if err := a.defineLabel(m[1], sl.Line); err != nil {
				return err
			}
			labelDefined = true
			toks = toks[1:]
			if len(toks) == 0 {
				continue
			}
		}
		labelDefined = false

		head := classify(toks[0])
		rest := toks[1:]

		switch head.kind {
		case TokenLabel:
			return newError(DoubleLabel, sl.Line, "two labels on one line")
		case TokenSection:
			if err := a.doSection(toks[0], rest, sl.Line); err != nil {
				return err
			}
		case TokenGlobalExtern:
			if err := a.doGlobalExternPass1(toks[0], rest, sl.Line); err != nil {
				return err
			}
		case TokenDirective:
			if err := a.doDirectivePass1(toks[0], rest, sl.Line); err != nil {
				return err
			}
		case TokenInstruction:
			if err := a.doInstructionPass1(toks[0], rest, sl.Line); err != nil {
				return err
			}
		default:
			return newError(InvalidToken, sl.Line, "unexpected token %q", toks[0])
		}
	}
	if a.CurrentSection != nil {
		a.CurrentSection.finalSize = a.LocationCounter
	}
	return nil
}

func (a *Assembler) defineLabel(name string, line int) *AssemblerError {
	if existing := a.Symbols.Lookup(name); existing != nil && existing.Defined {
		return newError(SymbolAlreadyDefined, line, "symbol %q already defined", name)
	}
	sym := a.Symbols.GetOrCreate(name, LabelSymbol)
	sym.Type = LabelSymbol
	sym.Section = a.CurrentSection.Name
	sym.Value = int16(a.LocationCounter)
	sym.Defined = true
	a.record(lineRecord{Kind: lineEmpty, Label: name, Line: line, Section: a.CurrentSection.Name})
	return nil
}

func (a *Assembler) doSection(keyword string, rest []string, line int) *AssemblerError {
	if a.CurrentSection != nil {
		a.CurrentSection.finalSize = a.LocationCounter
	}

	var name string
	var flagTok string
	if keyword == ".section" {
		if len(rest) == 0 {
			return newError(DirectiveMissingArgument, line, ".section requires a name")
		}
		nameTok := classify(rest[0])
		if nameTok.kind != TokenSectionName {
			return newError(IllegalSectionName, line, "illegal section name %q", rest[0])
		}
		name = rest[0]
		rest = rest[1:]
		if len(rest) > 0 {
			if classify(rest[0]).kind != TokenSectionFlags {
				return newError(IllegalSectionFlags, line, "illegal section flags %q", rest[0])
			}
			flagTok = rest[0]
			rest = rest[1:]
		}
		if len(rest) > 0 {
			return newError(TrailingTokens, line, "trailing tokens after .section")
		}
	} else {
		name = keyword
		if len(rest) > 0 {
			return newError(TrailingTokens, line, "trailing tokens after %s", keyword)
		}
	}

	sec := a.Sections.GetOrCreate(name, a.Symbols)
	if flagTok != "" {
		if err := sec.SetFlagsFromLetters(flagTok); err != nil {
			err.Line = line
			return err
		}
	}
	a.CurrentSection = sec
	a.LocationCounter = 0
	a.record(lineRecord{Kind: lineSection, Line: line, Section: name})
	return nil
}

func (a *Assembler) doGlobalExternPass1(keyword string, rest []string, line int) *AssemblerError {
	if len(rest) == 0 {
		return newError(DirectiveMissingArgument, line, "%s requires at least one symbol", keyword)
	}
	for _, name := range rest {
		sym := a.Symbols.Lookup(name)
		switch keyword {
		case ".global":
			if sym != nil && sym.Defined {
				sym.Scope = Global
			} else {
				a.Symbols.GetOrCreate(name, ExternSymbol)
			}
		case ".extern":
			if sym != nil && sym.Defined {
				return newError(ExternButDefined, line, "%q is already defined in this file", name)
			}
			a.Symbols.GetOrCreate(name, ExternSymbol)
		}
	}
	sect := ""
	if a.CurrentSection != nil {
		sect = a.CurrentSection.Name
	}
	a.record(lineRecord{Kind: lineGlobalExtern, Directive: keyword, Operands: rest, Line: line, Section: sect})
	return nil
}

func (a *Assembler) doDirectivePass1(directive string, rest []string, line int) *AssemblerError {
	sect := ""
	if a.CurrentSection != nil {
		sect = a.CurrentSection.Name
	}

	switch directive {
	case ".equ":
		if len(rest) < 2 {
			return newError(DirectiveMissingArgument, line, ".equ requires a name and expression")
		}
		name := rest[0]
		expr := rest[1:]
		if err := a.evaluateEQU(name, expr, line); err != nil {
			return err
		}
		a.record(lineRecord{Kind: lineEqu, EquName: name, EquExpr: expr, Line: line, Section: sect})

	case ".align":
		if len(rest) == 0 {
			return newError(DirectiveMissingArgument, line, ".align requires an argument")
		}
		n, err := parseImmediate(rest[0])
		if err != nil {
			return newError(InvalidToken, line, "invalid .align argument %q", rest[0])
		}
		boundary := uint16(1) << uint(n)
		if boundary > 0 {
			rem := a.LocationCounter % boundary
			if rem != 0 {
				a.LocationCounter += boundary - rem
			}
		}
		a.record(lineRecord{Kind: lineAlign, AlignN: int(n), Line: line, Section: sect})

	case ".skip":
		if len(rest) == 0 {
			return newError(DirectiveMissingArgument, line, ".skip requires an argument")
		}
		n, err := parseImmediate(rest[0])
		if err != nil {
			return newError(InvalidToken, line, "invalid .skip argument %q", rest[0])
		}
		fill := 0
		if len(rest) > 1 {
			f, err := parseImmediate(rest[1])
			if err != nil {
				return newError(InvalidToken, line, "invalid .skip fill %q", rest[1])
			}
			fill = int(f)
		}
		a.LocationCounter += uint16(n)
		a.record(lineRecord{Kind: lineSkip, SkipN: int(n), SkipFill: fill, Line: line, Section: sect})

	case ".byte", ".word":
		if a.CurrentSection == nil || !a.CurrentSection.Flags[FlagA] {
			return newError(MemoryInitInBSS, line, "%s in a non-allocatable section", directive)
		}
		terms := groupExpressionTerms(rest)
		width := uint16(2)
		if directive == ".byte" {
			width = 1
		}
		a.LocationCounter += uint16(len(terms)) * width
		a.record(lineRecord{Kind: lineData, Directive: directive, Operands: rest, Line: line, Section: sect})

	default:
		return newError(InvalidToken, line, "unknown directive %q", directive)
	}
	return nil
}

func (a *Assembler) doInstructionPass1(mnemonicTok string, rest []string, line int) *AssemblerError {
	if a.CurrentSection == nil || !a.CurrentSection.Flags[FlagX] {
		return newError(InstructionOutsideExecutableSection, line, "instruction outside executable section")
	}
	inst, err := parseInstruction(mnemonicTok, rest, line)
	if err != nil {
		err.Line = line
		return err
	}
	inst.Line = line
	a.LocationCounter += uint16(inst.Size)
	a.record(lineRecord{Kind: lineInstruction, Inst: inst, Line: line, Section: a.CurrentSection.Name})
	return nil
}

func (a *Assembler) record(rec lineRecord) {
	a.records = append(a.records, rec)
}
