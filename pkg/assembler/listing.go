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
	"fmt"
	"io"
)

const listingColumn = 20
const bytesPerLine = 16

// WriteListing renders the human-readable .txt companion to the object
// file: a per-section hex dump, then the symbol table, section table, and
// (only when non-empty) the relocation table -- the empty-table omission
// mirrors writeText's original "if (!relocationTable.empty())" guard
// rather than printing a header over nothing.
func (a *Assembler) WriteListing(w io.Writer) error {
	for _, sec := range a.Sections.Ordered() {
		fmt.Fprintf(w, "Section %s (%d bytes)\n", sec.Name, sec.Size())
		if len(sec.Bytes) > 0 {
			dumpHex(w, sec.Bytes)
		}
		fmt.Fprintln(w)
	}

	fmt.Fprint(w, col("SYMBOL")+col("SECTION")+col("VALUE")+col("SCOPE")+col("TYPE")+col("DEFINED")+"INDEX\n")
	for _, sym := range a.Symbols.Ordered() {
		fmt.Fprint(w, col(sym.Name)+col(sym.Section)+col(fmt.Sprint(sym.Value))+col(sym.Scope.String())+col(sym.Type.String())+col(fmt.Sprint(sym.Defined))+fmt.Sprint(sym.Index)+"\n")
	}
	fmt.Fprintln(w)

	fmt.Fprint(w, col("SECTION")+col("FLAGS")+col("SIZE")+col("INDEX")+"SYMBOL_INDEX\n")
	for _, sec := range a.Sections.Ordered() {
		fmt.Fprint(w, col(sec.Name)+col(sec.FlagString())+col(fmt.Sprint(sec.Size()))+col(fmt.Sprint(sec.Index))+fmt.Sprint(sec.SymbolIndex)+"\n")
	}

	if len(a.Relocations) > 0 {
		fmt.Fprintln(w)
		fmt.Fprint(w, col("SYMBOL")+col("SECTION")+col("OFFSET")+"TYPE\n")
		for _, rel := range a.Relocations {
			fmt.Fprint(w, col(rel.Symbol)+col(rel.Section)+col(fmt.Sprint(rel.Offset))+rel.Type.String()+"\n")
		}
	}

	return nil
}

func col(s string) string {
	return fmt.Sprintf("%-*s", listingColumn, s)
}

func dumpHex(w io.Writer, data []byte) {
	fmt.Fprintf(w, "%-6s %s\n", "ADDR", "DATA")
	for offset := 0; offset < len(data); offset += bytesPerLine {
		end := offset + bytesPerLine
		if end > len(data) {
			end = len(data)
		}
		fmt.Fprintf(w, "0x%04X ", offset)
		for i := offset; i < end; i++ {
			fmt.Fprintf(w, "%02X ", data[i])
		}
		fmt.Fprintln(w)
	}
}
