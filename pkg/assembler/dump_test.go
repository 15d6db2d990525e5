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

	"github.com/davecgh/go-spew/spew"
)

// dumpState spews the symbol table and UST to t.Log when a test fails,
// giving a diffable struct dump instead of Go's terser %+v on failure.
func dumpState(t *testing.T, a *Assembler) {
	t.Helper()
	if !t.Failed() {
		return
	}
	t.Logf("symbols:\n%s", spew.Sdump(a.Symbols.Ordered()))
	t.Logf("sections:\n%s", spew.Sdump(a.Sections.Ordered()))
	t.Logf("unresolved:\n%s", spew.Sdump(a.UST.Ordered()))
	t.Logf("relocations:\n%s", spew.Sdump(a.Relocations))
}
