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

import "fmt"

// ErrorKind tags the class of failure, mirroring the AssemblingException
// hierarchy of the C++ implementation this assembler is ported from.
type ErrorKind int

const (
	InvalidInputFile ErrorKind = iota
	CannotOpenFile
	InvalidToken
	LabelOutsideSection
	DoubleLabel
	DirectiveMissingArgument
	IllegalSectionName
	IllegalSectionFlags
	MemoryInitInBSS
	InstructionOutsideExecutableSection
	SymbolAlreadyDefined
	ExternButDefined
	GlobalButUndefined
	CyclicEquivalence
	ByteOverflow
	PCRelativeOnConstant
	InvalidExpression
	InvalidOperandType
	TrailingTokens
)

var errorKindNames = [...]string{
	"InvalidInputFile",
	"CannotOpenFile",
	"InvalidToken",
	"LabelOutsideSection",
	"DoubleLabel",
	"DirectiveMissingArgument",
	"IllegalSectionName",
	"IllegalSectionFlags",
	"MemoryInitInBSS",
	"InstructionOutsideExecutableSection",
	"SymbolAlreadyDefined",
	"ExternButDefined",
	"GlobalButUndefined",
	"CyclicEquivalence",
	"ByteOverflow",
	"PCRelativeOnConstant",
	"InvalidExpression",
	"InvalidOperandType",
	"TrailingTokens",
}

func (k ErrorKind) String() string {
	if int(k) < 0 || int(k) >= len(errorKindNames) {
		return "UnknownError"
	}
	return errorKindNames[k]
}

// AssemblerError is the single error type every stage of the pipeline
// returns. Line is 0 for errors that predate reading any source line
// (bad CLI arguments, I/O failures opening the input/output files), and
// for CyclicEquivalence, which resolution reports after the first pass
// without the line of any .equ on the cycle.
type AssemblerError struct {
	Kind ErrorKind
	Line int
	Msg  string
}

func (e *AssemblerError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("line %d: %s", e.Line, e.Msg)
	}
	return e.Msg
}

func newError(kind ErrorKind, line int, format string, args ...interface{}) *AssemblerError {
	return &AssemblerError{Kind: kind, Line: line, Msg: fmt.Sprintf(format, args...)}
}

func fileError(kind ErrorKind, format string, args ...interface{}) *AssemblerError {
	return newError(kind, 0, format, args...)
}
