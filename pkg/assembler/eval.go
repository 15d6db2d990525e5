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

// combineSign composes two +/- signs the way nested subtraction does:
// "-" of a "-" is a "+".
func combineSign(a, b string) string {
	if a == b {
		return "+"
	}
	return "-"
}

func baseRelocType(width int) RelocationType {
	if width == 1 {
		return R_386_8
	}
	return R_386_16
}

func relocTypeForSign(width int, sign string) RelocationType {
	return relocTypeForSignKind(baseRelocType(width), sign)
}

// relocTypeForSignKind negates base when sign is "-", used both for the
// 8/16-bit absolute relocations (base derived from operand width) and for
// the PC-relative ones (base always R_386_PC16).
func relocTypeForSignKind(base RelocationType, sign string) RelocationType {
	if sign == "-" {
		return base.Negated()
	}
	return base
}

// resolveSymbolTerm resolves one symbolic term of a data-initializer or
// instruction-operand expression contributing with the given sign, per
// the SYMBOL case of spec §4.6: a UST entry contributes its current
// folded value plus one relocation per surviving dependency (with the
// dependency's own sign composed against sign); a defined LOCAL symbol
// contributes its value directly, with a relocation against its section
// unless it is itself a CONSTANT; anything else (unseen, or GLOBAL/EXTERN)
// contributes nothing numerically and gets a relocation against its own
// name, creating an EXTERN entry if this is the first sighting.
func (a *Assembler) resolveSymbolTerm(name, sign string, width int) (int16, []Relocation) {
	if ust := a.UST.Lookup(name); ust != nil {
		lit := ust.Value
		if sign == "-" {
			lit = -lit
		}
		var relocs []Relocation
		for _, dep := range ust.Dependencies {
			relocs = append(relocs, Relocation{Symbol: dep.Name, Type: relocTypeForSign(width, combineSign(sign, dep.Op))})
		}
		return lit, relocs
	}
	if sym := a.Symbols.Lookup(name); sym != nil && sym.Defined && sym.Scope == Local {
		lit := sym.Value
		if sign == "-" {
			lit = -lit
		}
		if sym.Type == ConstantSymbol {
			return lit, nil
		}
		return lit, []Relocation{{Symbol: sym.Section, Type: relocTypeForSign(width, sign)}}
	}
	a.Symbols.GetOrCreate(name, ExternSymbol)
	return 0, []Relocation{{Symbol: name, Type: relocTypeForSign(width, sign)}}
}

// evaluate computes one grouped data-initializer/operand expression term
// (already fused by groupExpressionTerms, e.g. "10", "X", or "10-X") into
// a literal value plus zero or more relocations, per spec §4.6. directive
// is ".byte" or ".word" and only affects the byte-overflow check.
func (a *Assembler) evaluate(directive, term string, width int, line int) (int16, []Relocation, *AssemblerError) {
	tok := classify(term)

	switch tok.kind {
	case TokenOperandImmed:
		n, err := parseImmediate(term)
		if err != nil {
			return 0, nil, newError(InvalidExpression, line, "invalid immediate %q", term)
		}
		if directive == ".byte" && (n > 255 || n < 0) {
			return 0, nil, newError(ByteOverflow, line, "value %d does not fit in a byte", n)
		}
		return int16(n), nil, nil

	case TokenSymbol, TokenSectionFlags:
		lit, relocs := a.resolveSymbolTerm(term, "+", width)
		return lit, relocs, nil

	case TokenExpression:
		return a.evaluateExpression(directive, tok.parts[0], tok.parts[1], tok.parts[2], width, line)

	default:
		return 0, nil, newError(InvalidExpression, line, "invalid expression %q", term)
	}
}

// evaluateExpression implements the four (immediate, symbol) combinations
// of a binary X op Y data-initializer term, including the two documented
// quirks from spec §9: the imm-imm case is fixed to true subtraction (Q1),
// and the sym-imm case preserves the bitwise-NOT-of-the-immediate quirk
// for op=="-" rather than arithmetic negation (Q2).
func (a *Assembler) evaluateExpression(directive, xTok, op, yTok string, width int, line int) (int16, []Relocation, *AssemblerError) {
	xIsImm := classify(xTok).kind == TokenOperandImmed
	yIsImm := classify(yTok).kind == TokenOperandImmed

	switch {
	case xIsImm && yIsImm:
		x, err1 := parseImmediate(xTok)
		y, err2 := parseImmediate(yTok)
		if err1 != nil || err2 != nil {
			return 0, nil, newError(InvalidExpression, line, "invalid expression %q %s %q", xTok, op, yTok)
		}
		var value int64
		if op == "+" {
			value = x + y
		} else {
			value = x - y
		}
		if directive == ".byte" && (value > 255 || value < 0) {
			return 0, nil, newError(ByteOverflow, line, "value %d does not fit in a byte", value)
		}
		return int16(value), nil, nil

	case xIsImm && !yIsImm:
		x, err := parseImmediate(xTok)
		if err != nil {
			return 0, nil, newError(InvalidExpression, line, "invalid immediate %q", xTok)
		}
		lit, relocs := a.resolveSymbolTerm(yTok, op, width)
		return int16(x) + lit, relocs, nil

	case !xIsImm && yIsImm:
		y, err := parseImmediate(yTok)
		if err != nil {
			return 0, nil, newError(InvalidExpression, line, "invalid immediate %q", yTok)
		}
		var imm int16
		if op == "-" {
			imm = ^int16(y)
		} else {
			imm = int16(y)
		}
		lit, relocs := a.resolveSymbolTerm(xTok, "+", width)
		return lit + imm, relocs, nil

	default: // sym op sym
		xSym := a.Symbols.Lookup(xTok)
		ySym := a.Symbols.Lookup(yTok)
		if op == "-" && xSym != nil && ySym != nil && xSym.Defined && ySym.Defined &&
			xSym.Scope == Local && ySym.Scope == Local && xSym.Section == ySym.Section &&
			a.UST.Lookup(xTok) == nil && a.UST.Lookup(yTok) == nil {
			return xSym.Value - ySym.Value, nil, nil
		}
		xLit, xRelocs := a.resolveSymbolTerm(xTok, "+", width)
		yLit, yRelocs := a.resolveSymbolTerm(yTok, op, width)
		relocs := append(xRelocs, yRelocs...)
		return xLit + yLit, relocs, nil
	}
}

// evaluateEQU folds a .equ expression at definition time, building (or
// inheriting) the UST dependency list per spec §4.7, and creates/updates
// the NAME's symbol table entry as CONSTANT (fully folded) or ALIAS
// (still carrying edges).
func (a *Assembler) evaluateEQU(name string, exprToks []string, line int) *AssemblerError {
	terms := groupExpressionTerms(exprToks)
	if len(terms) != 1 {
		return newError(InvalidExpression, line, ".equ %q has a malformed expression", name)
	}
	term := terms[0]
	tok := classify(term)

	var value int16
	var deps []Dependency

	switch tok.kind {
	case TokenOperandImmed:
		n, err := parseImmediate(term)
		if err != nil {
			return newError(InvalidExpression, line, "invalid immediate %q", term)
		}
		value = int16(n)

	case TokenSymbol, TokenSectionFlags:
		v, d := a.equTerm(term, "+")
		value, deps = v, d

	case TokenExpression:
		x, op, y := tok.parts[0], tok.parts[1], tok.parts[2]
		xIsImm := classify(x).kind == TokenOperandImmed
		yIsImm := classify(y).kind == TokenOperandImmed

		switch {
		case xIsImm && yIsImm:
			xv, err1 := parseImmediate(x)
			yv, err2 := parseImmediate(y)
			if err1 != nil || err2 != nil {
				return newError(InvalidExpression, line, "invalid expression in .equ %q", name)
			}
			if op == "+" {
				value = int16(xv + yv)
			} else {
				value = int16(xv - yv)
			}

		case xIsImm && !yIsImm:
			xv, err := parseImmediate(x)
			if err != nil {
				return newError(InvalidExpression, line, "invalid immediate %q", x)
			}
			v, d := a.equTerm(y, op)
			value, deps = int16(xv)+v, d

		case !xIsImm && yIsImm:
			// Unlike evaluate()'s data-initializer sym-imm case, .equ
			// folding uses correct arithmetic negation here rather than
			// the bitwise-NOT quirk: a .equ chain must fold to exact
			// values (see the worked A/B/C example), and the original's
			// SYMBOL/OPERAND_IMMED branch of evaluateEQU computes the
			// rest of the fold -- symbolTable[first]->value -- correctly
			// once value itself is negated properly.
			yv, err := parseImmediate(y)
			if err != nil {
				return newError(InvalidExpression, line, "invalid immediate %q", y)
			}
			var imm int16
			if op == "-" {
				imm = -int16(yv)
			} else {
				imm = int16(yv)
			}
			v, d := a.equTerm(x, "+")
			value, deps = v+imm, d

		default:
			xSym := a.Symbols.Lookup(x)
			ySym := a.Symbols.Lookup(y)
			if op == "-" && xSym != nil && ySym != nil && xSym.Defined && ySym.Defined &&
				xSym.Scope == Local && ySym.Scope == Local && xSym.Section == ySym.Section &&
				a.UST.Lookup(x) == nil && a.UST.Lookup(y) == nil {
				value = xSym.Value - ySym.Value
			} else {
				xv, xd := a.equTerm(x, "+")
				yv, yd := a.equTerm(y, op)
				value = xv + yv
				// Q3 fix: extend the dependency list from both operands
				// instead of letting the second assignment overwrite the
				// first (the original's two-symbol .equ folding bug).
				deps = append(append([]Dependency{}, xd...), yd...)
			}
		}

	default:
		return newError(InvalidExpression, line, "invalid .equ expression %q", term)
	}

	sym := a.Symbols.GetOrCreate(name, AliasSymbol)
	sym.Value = value
	if len(deps) == 0 {
		sym.Type = ConstantSymbol
		sym.Defined = true
		a.UST.Remove(name)
	} else {
		sym.Type = AliasSymbol
		sym.Defined = false
		a.UST.Add(&UnresolvedSymbol{Name: name, Section: a.sectionName(), Value: value, Dependencies: deps})
	}
	return nil
}

// equTerm resolves one term of a .equ expression contributing with sign:
// a UST-resident term inherits its dependency list wholesale (transitive
// edges are flattened to one hop, exactly as spec §4.4 describes); a
// defined LOCAL CONSTANT folds in without an edge; any other defined LOCAL
// symbol folds in its value and contributes one edge against its owning
// section; anything else becomes (or already is) an EXTERN and
// contributes one edge against its own name.
func (a *Assembler) equTerm(name, sign string) (int16, []Dependency) {
	if ust := a.UST.Lookup(name); ust != nil {
		v := ust.Value
		if sign == "-" {
			v = -v
		}
		deps := make([]Dependency, len(ust.Dependencies))
		for i, d := range ust.Dependencies {
			deps[i] = Dependency{Name: d.Name, Op: combineSign(sign, d.Op)}
		}
		return v, deps
	}
	if sym := a.Symbols.Lookup(name); sym != nil && sym.Defined && sym.Scope == Local {
		v := sym.Value
		if sign == "-" {
			v = -v
		}
		if sym.Type == ConstantSymbol {
			return v, nil
		}
		return v, []Dependency{{Name: sym.Section, Op: sign}}
	}
	a.Symbols.GetOrCreate(name, ExternSymbol)
	return 0, []Dependency{{Name: name, Op: sign}}
}

func (a *Assembler) sectionName() string {
	if a.CurrentSection == nil {
		return ""
	}
	return a.CurrentSection.Name
}
