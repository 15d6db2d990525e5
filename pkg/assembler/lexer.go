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
	"io"
	"strings"
)

// sourceLine is one non-empty, comment-stripped, tokenized line of input,
// tagged with its 1-based line number for error reporting.
type sourceLine struct {
	Line   int
	Tokens []string
}

// readSource reads r line by line, strips '#' comments, splits on commas
// and whitespace, and drops lines that end up empty. Reading halts as
// soon as a line's first token is ".end", mirroring readAssembly's
// early-exit in the original: the remainder of the file, if any, is
// never tokenized.
func readSource(r io.Reader) ([]sourceLine, error) {
	scanner := bufio.NewScanner(r)
	var lines []sourceLine
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		text := scanner.Text()
		if idx := strings.IndexByte(text, '#'); idx >= 0 {
			text = text[:idx]
		}
		tokens := splitLine(text)
		if len(tokens) == 0 {
			continue
		}
		if tokens[0] == ".end" {
			break
		}
		lines = append(lines, sourceLine{Line: lineNo, Tokens: tokens})
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return lines, nil
}

// splitLine splits text on commas and whitespace, dropping empty fields.
func splitLine(text string) []string {
	return strings.FieldsFunc(text, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t' || r == '\r'
	})
}
