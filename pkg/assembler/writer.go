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
	"bufio"
	"encoding/binary"
	"io"
)

// WriteObject serializes the symbol table, section table, and relocation
// table to w as three consecutive length-prefixed tables, in that order,
// per spec §6.3. Every multi-byte field is little-endian, a deliberate
// fix of the original format's "native byte order" for cross-platform
// reproducibility -- grounded on the teacher's own writeMem/writeWCS/
// writeALU, which all use binary.LittleEndian unconditionally.
func (a *Assembler) WriteObject(w io.Writer) error {
	bw := bufio.NewWriter(w)

	symbols := a.Symbols.Ordered()
	if err := binary.Write(bw, binary.LittleEndian, uint32(len(symbols))); err != nil {
		return fileError(CannotOpenFile, "write error: %v", err)
	}
	for _, sym := range symbols {
		if err := writeSymbolRecord(bw, sym); err != nil {
			return fileError(CannotOpenFile, "write error: %v", err)
		}
	}

	sections := a.Sections.Ordered()
	if err := binary.Write(bw, binary.LittleEndian, uint32(len(sections))); err != nil {
		return fileError(CannotOpenFile, "write error: %v", err)
	}
	for _, sec := range sections {
		if err := writeSectionRecord(bw, sec); err != nil {
			return fileError(CannotOpenFile, "write error: %v", err)
		}
	}

	if err := binary.Write(bw, binary.LittleEndian, uint32(len(a.Relocations))); err != nil {
		return fileError(CannotOpenFile, "write error: %v", err)
	}
	for _, rel := range a.Relocations {
		if err := writeRelocationRecord(bw, rel); err != nil {
			return fileError(CannotOpenFile, "write error: %v", err)
		}
	}

	return bw.Flush()
}

func writeLPString(w io.Writer, s string) error {
	if err := binary.Write(w, binary.LittleEndian, uint16(len(s))); err != nil {
		return err
	}
	_, err := w.Write([]byte(s))
	return err
}

// writeSymbolRecord writes one Symbol as:
// name-length|name|section-length|section|value(i16)|scope(u8)|type(u8)|defined(u8)|index(u16).
func writeSymbolRecord(w io.Writer, sym *Symbol) error {
	if err := writeLPString(w, sym.Name); err != nil {
		return err
	}
	if err := writeLPString(w, sym.Section); err != nil {
		return err
	}
	fields := []interface{}{
		int16(sym.Value),
		uint8(sym.Scope),
		uint8(sym.Type),
		boolToByte(sym.Defined),
		uint16(sym.Index),
	}
	for _, f := range fields {
		if err := binary.Write(w, binary.LittleEndian, f); err != nil {
			return err
		}
	}
	return nil
}

// writeSectionRecord writes one Section as:
// name|flags(10 bytes)|size(u16)|index(u16)|symbol_index(u16)|byte_count(u32)|bytes.
func writeSectionRecord(w io.Writer, sec *Section) error {
	if err := writeLPString(w, sec.Name); err != nil {
		return err
	}
	if _, err := w.Write([]byte(sec.FlagString())); err != nil {
		return err
	}
	fields := []interface{}{
		uint16(sec.Size()),
		uint16(sec.Index),
		uint16(sec.SymbolIndex),
		uint32(len(sec.Bytes)),
	}
	for _, f := range fields {
		if err := binary.Write(w, binary.LittleEndian, f); err != nil {
			return err
		}
	}
	_, err := w.Write(sec.Bytes)
	return err
}

// writeRelocationRecord writes one Relocation as:
// symbol|section|offset(u16)|type(u8).
func writeRelocationRecord(w io.Writer, rel Relocation) error {
	if err := writeLPString(w, rel.Symbol); err != nil {
		return err
	}
	if err := writeLPString(w, rel.Section); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, uint16(rel.Offset)); err != nil {
		return err
	}
	return binary.Write(w, binary.LittleEndian, uint8(rel.Type))
}

func boolToByte(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}
