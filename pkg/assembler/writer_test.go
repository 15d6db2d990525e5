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
	"bytes"
	"encoding/binary"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// decodedLPString reads one length-prefixed string in the object writer's
// format, failing the test immediately on a short read.
func decodedLPString(t *testing.T, r *bytes.Reader) string {
	t.Helper()
	var n uint16
	require.NoError(t, binary.Read(r, binary.LittleEndian, &n))
	buf := make([]byte, n)
	if n > 0 {
		_, err := r.Read(buf)
		require.NoError(t, err)
	}
	return string(buf)
}

// TestWriteObjectRoundTrip exercises scenario S5's source through the full
// pipeline and then manually decodes WriteObject's byte layout, verifying
// the three length-prefixed tables land in the documented field order.
func TestWriteObjectRoundTrip(t *testing.T) {
	src := `
.data
.extern X
.word 10-X
`
	a := New()
	require.NoError(t, a.run(strings.NewReader(src)))

	var buf bytes.Buffer
	require.NoError(t, a.WriteObject(&buf))

	r := bytes.NewReader(buf.Bytes())

	var symbolCount uint32
	require.NoError(t, binary.Read(r, binary.LittleEndian, &symbolCount))
	assert.Equal(t, uint32(a.Symbols.Len()), symbolCount)

	for i := uint32(0); i < symbolCount; i++ {
		name := decodedLPString(t, r)
		section := decodedLPString(t, r)
		var value int16
		var scope, typ, defined uint8
		var index uint16
		require.NoError(t, binary.Read(r, binary.LittleEndian, &value))
		require.NoError(t, binary.Read(r, binary.LittleEndian, &scope))
		require.NoError(t, binary.Read(r, binary.LittleEndian, &typ))
		require.NoError(t, binary.Read(r, binary.LittleEndian, &defined))
		require.NoError(t, binary.Read(r, binary.LittleEndian, &index))

		want := a.Symbols.Ordered()[i]
		assert.Equal(t, want.Name, name)
		assert.Equal(t, want.Section, section)
		assert.Equal(t, want.Value, value)
		assert.Equal(t, uint8(want.Scope), scope)
		assert.Equal(t, uint8(want.Type), typ)
		assert.Equal(t, boolToByte(want.Defined), defined)
		assert.Equal(t, uint16(want.Index), index)
	}

	var sectionCount uint32
	require.NoError(t, binary.Read(r, binary.LittleEndian, &sectionCount))
	assert.Equal(t, uint32(a.Sections.Len()), sectionCount)

	for i := uint32(0); i < sectionCount; i++ {
		name := decodedLPString(t, r)
		flags := make([]byte, numFlags)
		_, err := r.Read(flags)
		require.NoError(t, err)
		var size, index, symIndex uint16
		var byteCount uint32
		require.NoError(t, binary.Read(r, binary.LittleEndian, &size))
		require.NoError(t, binary.Read(r, binary.LittleEndian, &index))
		require.NoError(t, binary.Read(r, binary.LittleEndian, &symIndex))
		require.NoError(t, binary.Read(r, binary.LittleEndian, &byteCount))
		data := make([]byte, byteCount)
		if byteCount > 0 {
			_, err := r.Read(data)
			require.NoError(t, err)
		}

		want := a.Sections.Ordered()[i]
		assert.Equal(t, want.Name, name)
		assert.Equal(t, want.FlagString(), string(flags))
		assert.Equal(t, uint16(want.Size()), size)
		assert.Equal(t, uint16(want.Index), index)
		assert.Equal(t, uint16(want.SymbolIndex), symIndex)
		assert.Equal(t, uint32(len(want.Bytes)), byteCount)
		assert.Equal(t, want.Bytes, data)
	}

	var relocCount uint32
	require.NoError(t, binary.Read(r, binary.LittleEndian, &relocCount))
	require.Equal(t, uint32(len(a.Relocations)), relocCount)
	require.Equal(t, uint32(1), relocCount)

	symbol := decodedLPString(t, r)
	section := decodedLPString(t, r)
	var offset uint16
	var relocType uint8
	require.NoError(t, binary.Read(r, binary.LittleEndian, &offset))
	require.NoError(t, binary.Read(r, binary.LittleEndian, &relocType))

	assert.Equal(t, "X", symbol)
	assert.Equal(t, ".data", section)
	assert.Equal(t, uint16(0), offset)
	assert.Equal(t, uint8(R_386_SUB_16), relocType)

	assert.Equal(t, 0, r.Len(), "writer must not emit trailing bytes")
}

func TestWriteLPStringEmpty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeLPString(&buf, ""))
	assert.Equal(t, []byte{0, 0}, buf.Bytes())
}
