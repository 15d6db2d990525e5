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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestEvaluateImmImmFixed exercises the Q1 fix: "10-5" must compute a
// true subtraction rather than the original's value=operand1=operand2 typo.
func TestEvaluateImmImmFixed(t *testing.T) {
	a := New()
	v, relocs, err := a.evaluate(".word", "10-5", 2, 1)
	require.Nil(t, err)
	assert.Equal(t, int16(5), v)
	assert.Empty(t, relocs)
}

// TestEvaluateSymImmQuirk exercises the Q2 preserved quirk: "X-3" with X a
// defined local symbol uses bitwise-NOT of the immediate, not negation.
func TestEvaluateSymImmQuirk(t *testing.T) {
	a := New()
	a.Symbols.Add(&Symbol{Name: "X", Value: 10, Scope: Local, Type: ConstantSymbol, Defined: true, Section: ".text"})

	v, relocs, err := a.evaluate(".word", "X-3", 2, 1)
	require.Nil(t, err)
	assert.Equal(t, int16(10)+int16(^int16(3)), v)
	assert.Empty(t, relocs, "a CONSTANT symbol term contributes no relocation")
}

func TestEvaluateByteOverflow(t *testing.T) {
	a := New()
	_, _, err := a.evaluate(".byte", "300", 1, 1)
	require.NotNil(t, err)
	assert.Equal(t, ByteOverflow, err.Kind)
}

// TestEvaluateByteOverflowNegative exercises the corrected bound: .byte
// treats any value with a non-zero high byte as an overflow, including
// every negative value, not just those below -128.
func TestEvaluateByteOverflowNegative(t *testing.T) {
	a := New()
	_, _, err := a.evaluate(".byte", "-1", 1, 1)
	require.NotNil(t, err)
	assert.Equal(t, ByteOverflow, err.Kind)
}

func TestEvaluateSymSubSymSameSectionFolds(t *testing.T) {
	a := New()
	a.Symbols.Add(&Symbol{Name: "A", Value: 10, Scope: Local, Type: LabelSymbol, Defined: true, Section: ".text"})
	a.Symbols.Add(&Symbol{Name: "B", Value: 4, Scope: Local, Type: LabelSymbol, Defined: true, Section: ".text"})

	v, relocs, err := a.evaluate(".word", "A-B", 2, 1)
	require.Nil(t, err)
	assert.Equal(t, int16(6), v)
	assert.Empty(t, relocs)
}

func TestEvaluateSubtractiveExtern(t *testing.T) {
	a := New()
	a.Symbols.GetOrCreate("X", ExternSymbol)

	v, relocs, err := a.evaluate(".word", "10-X", 2, 1)
	require.Nil(t, err)
	assert.Equal(t, int16(10), v)
	require.Len(t, relocs, 1)
	assert.Equal(t, R_386_SUB_16, relocs[0].Type)
	assert.Equal(t, "X", relocs[0].Symbol)
}

// TestEvaluateEQUChain mirrors scenario S4: A=5, B=A+3, C=B-1 all fold to
// CONSTANT with no surviving UST entries.
func TestEvaluateEQUChain(t *testing.T) {
	a := New()
	require.Nil(t, a.evaluateEQU("A", []string{"5"}, 1))
	require.Nil(t, a.evaluateEQU("B", []string{"A", "+", "3"}, 2))
	require.Nil(t, a.evaluateEQU("C", []string{"B", "-", "1"}, 3))

	require.NoError(t, asErr(a.UST.Resolve(a.Symbols)))

	assertConstant(t, a, "A", 5)
	assertConstant(t, a, "B", 8)
	assertConstant(t, a, "C", 7)
	assert.Equal(t, 0, a.UST.Len())
}

func TestEvaluateEQUTwoSymbolExtendsDependencies(t *testing.T) {
	a := New()
	a.Symbols.GetOrCreate("Y", ExternSymbol)
	require.Nil(t, a.evaluateEQU("Z", []string{"EXT1"}, 1))
	require.Nil(t, a.evaluateEQU("W", []string{"Z", "+", "Y"}, 2))

	entry := a.UST.Lookup("W")
	require.NotNil(t, entry)
	// Q3 fix: both operands' edges must survive, not just the last one
	// assigned.
	assert.Len(t, entry.Dependencies, 2)
}

func assertConstant(t *testing.T, a *Assembler, name string, value int16) {
	t.Helper()
	sym := a.Symbols.Lookup(name)
	require.NotNil(t, sym)
	assert.Equal(t, ConstantSymbol, sym.Type)
	assert.True(t, sym.Defined)
	assert.Equal(t, value, sym.Value)
}

func asErr(e *AssemblerError) error {
	if e == nil {
		return nil
	}
	return e
}
