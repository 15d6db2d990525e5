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
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestRunEmptySection mirrors scenario S1: a section with no content at all
// still gets an Assembler.Sections entry of size zero.
func TestRunEmptySection(t *testing.T) {
	a := New()
	defer dumpState(t, a)
	require.NoError(t, a.run(strings.NewReader(".text\n")))

	sec := a.Sections.Lookup(".text")
	require.NotNil(t, sec)
	assert.Equal(t, 0, sec.Size())
	assert.True(t, sec.Flags[FlagA])
	assert.True(t, sec.Flags[FlagX])
}

// TestRunForwardLocalPCRelativeGetsSectionRelocation mirrors scenario S2: a
// PC-relative jump to a label defined later in the same section still gets
// an R_386_PC16 relocation against the owning section, since only the
// linker knows the section's final placement -- a same-section reference
// is not exempt.
func TestRunForwardLocalPCRelativeGetsSectionRelocation(t *testing.T) {
	src := `
.text
start:
jmp %skip
skip:
halt
`
	a := New()
	defer dumpState(t, a)
	require.NoError(t, a.run(strings.NewReader(src)))

	require.Len(t, a.Relocations, 1)
	assert.Equal(t, ".text", a.Relocations[0].Symbol)
	assert.Equal(t, R_386_PC16, a.Relocations[0].Type)

	start := a.Symbols.Lookup("start")
	require.NotNil(t, start)
	assert.Equal(t, int16(0), start.Value)

	skip := a.Symbols.Lookup("skip")
	require.NotNil(t, skip)
	assert.Equal(t, int16(4), skip.Value)

	sec := a.Sections.Lookup(".text")
	require.NotNil(t, sec)
	assert.Equal(t, 5, sec.Size())
}

// TestRunExternCallGetsPCRelativeRelocation mirrors scenario S3: a call
// through an undefined (.extern) symbol must produce an R_386_PC16
// relocation since the linker, not this assembler, supplies the distance.
func TestRunExternCallGetsPCRelativeRelocation(t *testing.T) {
	src := `
.text
.extern myFunc
call %myFunc
`
	a := New()
	defer dumpState(t, a)
	require.NoError(t, a.run(strings.NewReader(src)))

	require.Len(t, a.Relocations, 1)
	assert.Equal(t, "myFunc", a.Relocations[0].Symbol)
	assert.Equal(t, R_386_PC16, a.Relocations[0].Type)

	sym := a.Symbols.Lookup("myFunc")
	require.NotNil(t, sym)
	assert.Equal(t, ExternSymbol, sym.Type)
	assert.False(t, sym.Defined)
}

// TestRunEquChainFoldsToConstants mirrors scenario S4: a chain of .equ
// definitions all fold to CONSTANT once every dependency is itself defined.
func TestRunEquChainFoldsToConstants(t *testing.T) {
	src := `
.text
.equ A,5
.equ B,A+3
.equ C,B-1
`
	a := New()
	defer dumpState(t, a)
	require.NoError(t, a.run(strings.NewReader(src)))

	assertConstant(t, a, "A", 5)
	assertConstant(t, a, "B", 8)
	assertConstant(t, a, "C", 7)
	assert.Equal(t, 0, a.UST.Len())
}

// TestRunEquOnDefinedLocalLabel exercises the ordinary ".equ ADDR, mylabel"
// idiom: mylabel is an already-defined, non-CONSTANT LOCAL label, so ADDR
// folds to mylabel's value with one surviving dependency on ".text" -- the
// case that used to hang Resolve forever.
func TestRunEquOnDefinedLocalLabel(t *testing.T) {
	src := `
.text
mylabel:
nop
.equ ADDR, mylabel
`
	a := New()
	defer dumpState(t, a)
	require.NoError(t, a.run(strings.NewReader(src)))

	sym := a.Symbols.Lookup("ADDR")
	require.NotNil(t, sym)
	assert.True(t, sym.Defined)
	assert.Equal(t, int16(0), sym.Value)

	entry := a.UST.Lookup("ADDR")
	require.NotNil(t, entry, "ADDR keeps its section dependency so later references relocate correctly")
	require.Len(t, entry.Dependencies, 1)
	assert.Equal(t, ".text", entry.Dependencies[0].Name)
}

// TestRunSubtractiveExternWord mirrors scenario S5: ".word 10-X" against an
// undefined extern X writes the literal 10 and records a single R_386_SUB_16
// relocation at offset 0 of .data.
func TestRunSubtractiveExternWord(t *testing.T) {
	src := `
.data
.extern X
.word 10-X
`
	a := New()
	require.NoError(t, a.run(strings.NewReader(src)))

	require.Len(t, a.Relocations, 1)
	assert.Equal(t, "X", a.Relocations[0].Symbol)
	assert.Equal(t, R_386_SUB_16, a.Relocations[0].Type)
	assert.Equal(t, ".data", a.Relocations[0].Section)
	assert.Equal(t, 0, a.Relocations[0].Offset)

	sec := a.Sections.Lookup(".data")
	require.NotNil(t, sec)
	require.Len(t, sec.Bytes, 2)
	assert.Equal(t, int16(10), int16(sec.Bytes[0])|int16(sec.Bytes[1])<<8)
}

// TestRunCyclicEquDetected mirrors scenario S6: two .equ definitions that
// depend on each other must fail with CyclicEquivalence rather than loop
// forever or silently fold to a wrong value.
func TestRunCyclicEquDetected(t *testing.T) {
	src := `
.text
.equ A,B
.equ B,A
`
	a := New()
	err := a.run(strings.NewReader(src))
	require.Error(t, err)

	aerr, ok := err.(*AssemblerError)
	require.True(t, ok)
	assert.Equal(t, CyclicEquivalence, aerr.Kind)
}

// TestRunDoubleLabelRejected exercises two consecutive bare-label lines:
// labelDefined survives from the first label-only line into the next, so a
// second label before anything else is defined is rejected.
func TestRunDoubleLabelRejected(t *testing.T) {
	src := `
.text
foo:
bar:
nop
`
	a := New()
	err := a.run(strings.NewReader(src))
	require.Error(t, err)
	aerr, ok := err.(*AssemblerError)
	require.True(t, ok)
	assert.Equal(t, DoubleLabel, aerr.Kind)
}

// TestRunDoubleLabelSameLineRejected exercises the second, independent path
// to DoubleLabel: a label token reappearing after the first is stripped
// from the same line (e.g. "foo: bar: nop"), rather than two consecutive
// label-only lines.
func TestRunDoubleLabelSameLineRejected(t *testing.T) {
	src := `
.text
foo: bar: nop
`
	a := New()
	err := a.run(strings.NewReader(src))
	require.Error(t, err)
	aerr, ok := err.(*AssemblerError)
	require.True(t, ok)
	assert.Equal(t, DoubleLabel, aerr.Kind)
}

// TestRunBareSectionKeywordRejectsTrailingToken exercises the bare-keyword
// .text/.data/.bss/.rodata branch of doSection: unlike ".section NAME
// [FLAGS]", these never take a trailing flags token, so one must be
// rejected as TrailingTokens rather than silently consumed as a flag
// override.
func TestRunBareSectionKeywordRejectsTrailingToken(t *testing.T) {
	src := `
.text AX
`
	a := New()
	err := a.run(strings.NewReader(src))
	require.Error(t, err)
	aerr, ok := err.(*AssemblerError)
	require.True(t, ok)
	assert.Equal(t, TrailingTokens, aerr.Kind)
}

// TestRunSectionExplicitFlagsLettersApplied exercises the documented
// ".section NAME FLAGS" form end to end: the lexed SECTION_FLAGS token
// (a run of letters, e.g. "AX") must translate into exactly those bit
// positions, replacing the name's defaults wholesale rather than failing
// IllegalSectionFlags on every use as the raw 10-char SetFlags check did.
func TestRunSectionExplicitFlagsLettersApplied(t *testing.T) {
	src := `
.section .mysec AX
`
	a := New()
	require.NoError(t, a.run(strings.NewReader(src)))

	sec := a.Sections.Lookup(".mysec")
	require.NotNil(t, sec)
	assert.True(t, sec.Flags[FlagA])
	assert.True(t, sec.Flags[FlagX])
	assert.False(t, sec.Flags[FlagW], "explicit flags replace the defaults, not add to them")
}

// TestRunExternThenLaterLabeledSameNameFails exercises the pass-2 re-check
// SPEC_FULL.md promises for ".extern" (ExternButDefined in both passes): a
// name declared .extern and then given a label later in the same file must
// fail even though pass 1's defineLabel silently accepted the overwrite.
func TestRunExternThenLaterLabeledSameNameFails(t *testing.T) {
	src := `
.text
.extern X
X:
nop
`
	a := New()
	err := a.run(strings.NewReader(src))
	require.Error(t, err)
	aerr, ok := err.(*AssemblerError)
	require.True(t, ok)
	assert.Equal(t, ExternButDefined, aerr.Kind)
}

func TestRunGlobalUndefinedAtPass2Fails(t *testing.T) {
	src := `
.text
.global neverDefined
`
	a := New()
	err := a.run(strings.NewReader(src))
	require.Error(t, err)
	aerr, ok := err.(*AssemblerError)
	require.True(t, ok)
	assert.Equal(t, GlobalButUndefined, aerr.Kind)
}

// TestRunSectionReentryOverwrites exercises supplemented feature #2: a
// section visited twice resets its location counter to zero rather than
// appending, so the second visit's bytes land at the same offsets as the
// first and overwrite them.
func TestRunSectionReentryOverwrites(t *testing.T) {
	src := `
.data
.word 1
.text
nop
.data
.word 2
`
	a := New()
	require.NoError(t, a.run(strings.NewReader(src)))

	sec := a.Sections.Lookup(".data")
	require.NotNil(t, sec)
	require.Len(t, sec.Bytes, 2)
	assert.Equal(t, int16(2), int16(sec.Bytes[0])|int16(sec.Bytes[1])<<8)
}
