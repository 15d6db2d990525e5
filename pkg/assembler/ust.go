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

// Dependency is one edge of an UnresolvedSymbol's dependency list: the
// name it depends on (initially another symbol, later rewritten to that
// symbol's owning section once folded) and the sign it contributes with.
type Dependency struct {
	Name string
	Op   string // "+" or "-"
}

// UnresolvedSymbol is one UST entry: a .equ-defined name whose value still
// depends on at least one not-yet-defined symbol.
type UnresolvedSymbol struct {
	Name         string
	Section      string
	Value        int16
	Dependencies []Dependency
	Defined      bool
}

// USTable preserves insertion order for deterministic folding and listing,
// the same convention SymbolTable and SectionTable use.
type USTable struct {
	order  []string
	byName map[string]*UnresolvedSymbol
}

func NewUSTable() *USTable {
	return &USTable{byName: make(map[string]*UnresolvedSymbol)}
}

func (u *USTable) Lookup(name string) *UnresolvedSymbol {
	return u.byName[name]
}

// Add inserts a new UST entry; if name is already present it overwrites
// dependencies/section but keeps the original insertion slot.
func (u *USTable) Add(entry *UnresolvedSymbol) {
	if _, exists := u.byName[entry.Name]; !exists {
		u.order = append(u.order, entry.Name)
	}
	u.byName[entry.Name] = entry
}

// Remove deletes a folded entry from the table.
func (u *USTable) Remove(name string) {
	delete(u.byName, name)
	for i, n := range u.order {
		if n == name {
			u.order = append(u.order[:i], u.order[i+1:]...)
			break
		}
	}
}

func (u *USTable) Len() int { return len(u.order) }

func (u *USTable) Ordered() []*UnresolvedSymbol {
	out := make([]*UnresolvedSymbol, len(u.order))
	for i, n := range u.order {
		out[i] = u.byName[n]
	}
	return out
}

// DetectCycle runs a DFS over every UST entry's dependency edges, using
// visited + recursion-stack sets exactly as the original's hasCycle/cycle
// pair does, and returns the name of a symbol on a cycle, or "" if none.
// Symbols absent from UST are leaves (their dependencies, if any, are
// already-resolved ST values and cannot participate in a UST cycle).
func (u *USTable) DetectCycle() string {
	visited := make(map[string]bool)
	onStack := make(map[string]bool)

	var visit func(name string) string
	visit = func(name string) string {
		entry, ok := u.byName[name]
		if !ok {
			return ""
		}
		if onStack[name] {
			return name
		}
		if visited[name] {
			return ""
		}
		visited[name] = true
		onStack[name] = true
		for _, dep := range entry.Dependencies {
			if cyc := visit(dep.Name); cyc != "" {
				return cyc
			}
		}
		onStack[name] = false
		return ""
	}

	for _, name := range u.order {
		if cyc := visit(name); cyc != "" {
			return cyc
		}
	}
	return ""
}

// Resolve folds every UST entry whose dependencies are all defined in st,
// one hop at a time: because every UST entry's dependency list was already
// flattened to direct symbol references at .equ definition time (see
// evaluateEQU), a single left-to-right scan over all entries, repeated
// until no entry changes, fully resolves the table regardless of Go's map
// iteration order. An entry reaches its terminal state (invariant 2) either
// with zero surviving dependencies -- promoted to st as CONSTANT and
// removed from the UST -- or with a dependency list consisting solely of
// already-section-rewritten edges, which are relocations pass 2 still
// needs: that entry is promoted to st as ALIAS but stays in the UST so
// resolveSymbolTerm/equTerm keep emitting one relocation per edge when
// something else references it. Once an entry is terminal it is marked
// Defined and skipped on every later scan, so foldOnce never revisits it.
func (u *USTable) Resolve(st *SymbolTable) *AssemblerError {
	if cyc := u.DetectCycle(); cyc != "" {
		return fileError(CyclicEquivalence, "cyclic equivalence involving %q", cyc)
	}

	progress := true
	for progress {
		progress = false
		for _, name := range append([]string{}, u.order...) {
			entry := u.byName[name]
			if entry == nil || entry.Defined {
				continue
			}
			changed, terminal := foldOnce(entry, st)
			if changed {
				progress = true
			}
			if terminal {
				entry.Defined = true
				sym := st.GetOrCreate(entry.Name, AliasSymbol)
				sym.Value = entry.Value
				sym.Section = entry.Section
				sym.Defined = true
				if len(entry.Dependencies) == 0 {
					sym.Type = ConstantSymbol
					u.Remove(entry.Name)
				} else {
					sym.Type = AliasSymbol
				}
				progress = true
			}
		}
	}
	return nil
}

// foldOnce folds every dependency of entry that is currently defined in st
// and not itself a section reference into entry's Value, rewriting each
// folded dependency's name to its owning section (so later relocations
// point at the section, not the local label) and dropping it from the
// list. A dependency that already names a section is left untouched --
// spec invariant 2(a) treats "defined with only section-name dependencies"
// as the terminal state for such an entry, not something to keep folding:
// a section symbol's own Section field is itself, so re-folding it would
// rewrite the identical edge back into the list forever. It reports
// whether it made any change and whether every surviving dependency (zero
// or more) now names a section, i.e. the entry has reached that terminal
// state.
func foldOnce(entry *UnresolvedSymbol, st *SymbolTable) (changed bool, terminal bool) {
	var remaining []Dependency
	for _, dep := range entry.Dependencies {
		sym := st.Lookup(dep.Name)
		if sym == nil || !sym.Defined || sym.Type == SectionSymbol {
			remaining = append(remaining, dep)
			continue
		}
		if dep.Op == "-" {
			entry.Value -= sym.Value
		} else {
			entry.Value += sym.Value
		}
		changed = true
		if sym.Type != ConstantSymbol {
			remaining = append(remaining, Dependency{Name: sym.Section, Op: dep.Op})
		}
	}
	entry.Dependencies = remaining

	terminal = true
	for _, dep := range remaining {
		if sym := st.Lookup(dep.Name); sym == nil || sym.Type != SectionSymbol {
			terminal = false
			break
		}
	}
	return changed, terminal
}
