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

import "strings"

// Section flag positions within the 10-character flag string, in the
// fixed column order the object writer and listing both rely on.
const (
	FlagW = iota // Writable
	FlagA        // Allocatable (occupies space in the image)
	FlagX        // Executable
	FlagM        // Merge
	FlagS        // Strings
	FlagI        // Info
	FlagL        // Link-order
	FlagG        // Group
	FlagT        // TLS
	FlagE        // Exclude
)

const flagOrder = "WAXMSILGTE"
const numFlags = len(flagOrder)

// Section is one entry of the section table (SECT): its flag bits, the
// byte image the second pass writes, its size as recorded by the first
// pass, its insertion-order index, and the index of the SECTION-kind
// symbol that names it in the symbol table.
type Section struct {
	Name        string
	Flags       [numFlags]bool
	Bytes       []byte
	Index       int
	SymbolIndex int
	// finalSize is the location counter value recorded when the first
	// pass finalizes this section (on leaving it, or at end of input);
	// the second pass's Bytes ends up exactly this long.
	finalSize uint16
}

// FlagString renders the section's flags back into the fixed 10-character
// form, one character per position, '1' set / '0' clear.
func (s *Section) FlagString() string {
	var b strings.Builder
	for i := 0; i < numFlags; i++ {
		if s.Flags[i] {
			b.WriteByte('1')
		} else {
			b.WriteByte('0')
		}
	}
	return b.String()
}

// SetFlags parses a 10-character '0'/'1' flag string into the section,
// returning IllegalSectionFlags if the length or characters are wrong.
// This is the wire/listing form (FlagString's own output); the lexer never
// produces it directly -- see SetFlagsFromLetters for the SECTION_FLAGS
// token form .section actually consumes.
func (s *Section) SetFlags(flags string) *AssemblerError {
	if len(flags) != numFlags {
		return fileError(IllegalSectionFlags, "section flags must be exactly %d characters, got %q", numFlags, flags)
	}
	for i := 0; i < numFlags; i++ {
		switch flags[i] {
		case '1':
			s.Flags[i] = true
		case '0':
			s.Flags[i] = false
		default:
			return fileError(IllegalSectionFlags, "invalid section flags %q", flags)
		}
	}
	return nil
}

// SetFlagsFromLetters parses a SECTION_FLAGS token (a run of letters drawn
// from flagOrder, e.g. "AX") into the section, setting exactly the named
// flags and clearing every other one -- explicit flags replace the
// defaults wholesale rather than adding to them. Returns
// IllegalSectionFlags for an empty string or a letter outside flagOrder.
func (s *Section) SetFlagsFromLetters(letters string) *AssemblerError {
	if letters == "" {
		return fileError(IllegalSectionFlags, "section flags token must not be empty")
	}
	var next [numFlags]bool
	for _, c := range letters {
		i := strings.IndexRune(flagOrder, c)
		if i < 0 {
			return fileError(IllegalSectionFlags, "invalid section flag %q", string(c))
		}
		next[i] = true
	}
	s.Flags = next
	return nil
}

// Size is the section's final size as laid out by the first pass -- the
// object file and listing report this value, independent of how many
// bytes the second pass actually wrote into Bytes (non-allocatable
// sections, e.g. .bss, never grow a Bytes buffer at all).
func (s *Section) Size() int { return int(s.finalSize) }

// defaultFlags returns the flag set a section gets when it is first
// created without an explicit SECTION_FLAGS token, matching the four
// built-in section names' conventional attributes; any other name
// (introduced via ".section NAME") defaults to read-write-executable.
func defaultFlags(name string) [numFlags]bool {
	var f [numFlags]bool
	switch name {
	case ".text":
		f[FlagA] = true
		f[FlagX] = true
	case ".data":
		f[FlagA] = true
		f[FlagW] = true
	case ".bss":
		f[FlagW] = true
	case ".rodata":
		f[FlagA] = true
	default:
		f[FlagA] = true
		f[FlagW] = true
		f[FlagX] = true
	}
	return f
}

// SectionTable preserves insertion order, the order the object writer's
// section records and section byte blobs are both emitted in.
type SectionTable struct {
	order  []string
	byName map[string]*Section
}

func NewSectionTable() *SectionTable {
	return &SectionTable{byName: make(map[string]*Section)}
}

func (t *SectionTable) Lookup(name string) *Section {
	return t.byName[name]
}

// GetOrCreate returns the named section, creating it (with default flags
// and a freshly-allocated SECTION symbol) if this is its first mention.
func (t *SectionTable) GetOrCreate(name string, symbols *SymbolTable) *Section {
	if sec, ok := t.byName[name]; ok {
		return sec
	}
	sym := symbols.Add(&Symbol{Name: name, Section: name, Type: SectionSymbol, Scope: Local, Defined: true})
	sec := &Section{Name: name, Flags: defaultFlags(name), Index: len(t.order), SymbolIndex: sym.Index}
	t.order = append(t.order, name)
	t.byName[name] = sec
	return sec
}

func (t *SectionTable) Len() int { return len(t.order) }

func (t *SectionTable) Ordered() []*Section {
	out := make([]*Section, len(t.order))
	for i, name := range t.order {
		out[i] = t.byName[name]
	}
	return out
}
