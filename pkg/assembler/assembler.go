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

// Package assembler implements a two-pass assembler for a 16-bit
// instruction set: source text in, a relocatable object file plus a
// human-readable listing out.
package assembler

import (
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
)

// Assembler owns every piece of state one assembly run produces: the
// symbol table, section table, unresolved symbol table, and relocation
// list are all exclusively owned by this instance for the run's duration,
// matching the single-threaded, strictly sequential resource model this
// pipeline is specified to have.
type Assembler struct {
	Symbols     *SymbolTable
	Sections    *SectionTable
	UST         *USTable
	Relocations []Relocation

	CurrentSection  *Section
	LocationCounter uint16

	records []lineRecord

	Verbose bool
}

// New returns a freshly-initialized Assembler ready to run Assemble.
func New() *Assembler {
	return &Assembler{
		Symbols:  NewSymbolTable(),
		Sections: NewSectionTable(),
		UST:      NewUSTable(),
	}
}

// Assemble reads the assembly source at inputPath, and on success writes
// the object file at outputPath plus a sibling ".txt" listing. It mirrors
// Assembler::assemble's phase sequence: read, first pass, resolve, second
// pass, write. Any failure aborts before anything is written -- no
// partial object file is ever produced.
func Assemble(inputPath, outputPath string, verbose bool) error {
	if filepath.Ext(inputPath) != ".s" {
		return fileError(InvalidInputFile, "input file %q must have extension .s", inputPath)
	}
	if filepath.Ext(outputPath) != ".o" {
		return fileError(InvalidInputFile, "output file %q must have extension .o", outputPath)
	}

	in, err := os.Open(inputPath)
	if err != nil {
		return fileError(CannotOpenFile, "cannot open %q: %v", inputPath, err)
	}
	defer in.Close()

	a := New()
	a.Verbose = verbose
	if err := a.run(in); err != nil {
		return err
	}

	listingPath := strings.TrimSuffix(outputPath, ".o") + ".txt"

	out, err := os.Create(outputPath)
	if err != nil {
		return fileError(CannotOpenFile, "cannot create %q: %v", outputPath, err)
	}
	defer out.Close()
	if err := a.WriteObject(out); err != nil {
		return err
	}

	listing, err := os.Create(listingPath)
	if err != nil {
		return fileError(CannotOpenFile, "cannot create %q: %v", listingPath, err)
	}
	defer listing.Close()
	return a.WriteListing(listing)
}

// run drives the read / first-pass / resolve / second-pass phases over r,
// without touching any output file -- split out from Assemble so tests
// can exercise the pipeline against an in-memory source.
func (a *Assembler) run(r io.Reader) error {
	lines, err := readSource(r)
	if err != nil {
		return fileError(CannotOpenFile, "error reading source: %v", err)
	}
	if a.Verbose {
		log.Printf("read %d source lines", len(lines))
	}

	if err := a.firstPass(lines); err != nil {
		return err
	}
	if a.Verbose {
		log.Printf("first pass complete: %d symbols, %d sections, %d unresolved", a.Symbols.Len(), a.Sections.Len(), a.UST.Len())
	}

	if err := a.UST.Resolve(a.Symbols); err != nil {
		return err
	}
	if a.Verbose {
		log.Printf("resolution complete: %d unresolved remain", a.UST.Len())
	}

	if err := a.secondPass(); err != nil {
		return err
	}
	if a.Verbose {
		log.Printf("second pass complete: %d relocations", len(a.Relocations))
	}
	return nil
}
