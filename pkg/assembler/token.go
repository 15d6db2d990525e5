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

import (
	"regexp"
	"strconv"
	"strings"
)

// TokenType is the fixed tag set the lexer (C1) classifies every
// whitespace/comma-separated token into.
type TokenType int

const (
	TokenInvalid TokenType = iota
	TokenLabel
	TokenSymbol
	TokenSection
	TokenSectionName
	TokenSectionFlags
	TokenDirective
	TokenGlobalExtern
	TokenInstruction
	TokenOperandImmed
	TokenExpression
)

var tokenTypeNames = map[TokenType]string{
	TokenInvalid:      "INVALID",
	TokenLabel:        "LABEL",
	TokenSymbol:       "SYMBOL",
	TokenSection:      "SECTION",
	TokenSectionName:  "SECTION_NAME",
	TokenSectionFlags: "SECTION_FLAGS",
	TokenDirective:    "DIRECTIVE",
	TokenGlobalExtern: "GLOBAL_EXTERN",
	TokenInstruction:  "INSTRUCTION",
	TokenOperandImmed: "OPERAND_IMMED",
	TokenExpression:   "EXPRESSION",
}

func (t TokenType) String() string {
	if s, ok := tokenTypeNames[t]; ok {
		return s
	}
	return "INVALID"
}

var (
	reLabel       = regexp.MustCompile(`^([A-Za-z_][A-Za-z0-9_]*):$`)
	reIdentifier  = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
	reSectionName = regexp.MustCompile(`^\.[A-Za-z_][A-Za-z0-9_]*$`)
	reSectionFlag = regexp.MustCompile(`^[WAXMSILGTE]+$`)
	reImmediate   = regexp.MustCompile(`^-?(0[xX][0-9A-Fa-f]+|0[0-7]*|[1-9][0-9]*)$`)
	reExpression  = regexp.MustCompile(`^([A-Za-z0-9_]+)([+-])([A-Za-z0-9_]+)$`)
)

var sectionKeywords = map[string]bool{
	".text": true, ".data": true, ".bss": true, ".rodata": true, ".section": true,
}

var globalExternKeywords = map[string]bool{".global": true, ".extern": true}

var plainDirectives = map[string]bool{
	".equ": true, ".align": true, ".skip": true, ".byte": true, ".word": true,
}

// token is one lexed element of an assembly source line.
type token struct {
	text  string
	kind  TokenType
	parts []string // capture groups for LABEL and EXPRESSION
}

// classify deterministically tags one already-split source token.
// Order matters: keyword sets are checked before the generic identifier
// and flags patterns so that e.g. ".text" is never mistaken for a
// SECTION_NAME and a bare "AX" is always SECTION_FLAGS, never SYMBOL --
// the same ambiguity resolution the original regex cascade relies on.
func classify(text string) token {
	if m := reLabel.FindStringSubmatch(text); m != nil {
		return token{text: text, kind: TokenLabel, parts: []string{m[1]}}
	}
	if sectionKeywords[text] {
		return token{text: text, kind: TokenSection}
	}
	if globalExternKeywords[text] {
		return token{text: text, kind: TokenGlobalExtern}
	}
	if plainDirectives[text] {
		return token{text: text, kind: TokenDirective}
	}
	if isMnemonic(text) {
		return token{text: text, kind: TokenInstruction}
	}
	if reSectionName.MatchString(text) {
		return token{text: text, kind: TokenSectionName}
	}
	if m := reExpression.FindStringSubmatch(text); m != nil {
		return token{text: text, kind: TokenExpression, parts: []string{m[1], m[2], m[3]}}
	}
	if reImmediate.MatchString(text) {
		return token{text: text, kind: TokenOperandImmed}
	}
	if reSectionFlag.MatchString(text) {
		return token{text: text, kind: TokenSectionFlags}
	}
	if reIdentifier.MatchString(text) {
		return token{text: text, kind: TokenSymbol}
	}
	return token{text: text, kind: TokenInvalid}
}

// isExpressionToken reports whether tok contributes to a data-initializer
// term under the "symbol-precedes" grouping rule (§4.5/§4.6): immediates,
// bare symbols (including flag-shaped names such as "A" or "X", which
// classify as SECTION_FLAGS) and already-fused expressions all count; bare
// "+"/"-" operator tokens and anything else do not.
func isExpressionToken(tok string) bool {
	switch classify(tok).kind {
	case TokenOperandImmed, TokenSymbol, TokenSectionFlags, TokenExpression:
		return true
	default:
		return false
	}
}

// groupExpressionTerms re-groups a raw operand-token queue into one string
// per data-initializer expression, fusing an adjacent "symbol op symbol"-
// shaped run of tokens (e.g. ["10", "-", "X"]) into a single "10-X" term
// while still splitting consecutive bare terms (e.g. ["A", "B"]) into two.
// It implements the exact sequencing both Assembler.firstPass's byte-count
// loop and Assembler.secondPass's expression-extraction loop perform in the
// original source, unified into the one pass both call sites need.
func groupExpressionTerms(tokens []string) []string {
	var out []string
	var cur strings.Builder
	symbolPreceds := false
	for _, tok := range tokens {
		if isExpressionToken(tok) {
			if symbolPreceds {
				out = append(out, cur.String())
				cur.Reset()
				symbolPreceds = false
			}
			symbolPreceds = true
		} else {
			symbolPreceds = false
		}
		cur.WriteString(tok)
	}
	if cur.Len() > 0 {
		out = append(out, cur.String())
	}
	return out
}

// parseImmediate parses an integer literal in any base strconv's generic
// parser accepts (decimal, 0x hex, 0-prefixed octal).
func parseImmediate(text string) (int64, error) {
	return strconv.ParseInt(text, 0, 64)
}
