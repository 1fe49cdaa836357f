// ABOUTME: Tests for the Ogg page reader
// ABOUTME: Packet reassembly across pages, continuation dropping, tail granule scan
package decode

import (
	"bytes"
	"encoding/binary"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildPage lays out one Ogg page; open marks the last packet as unfinished
// and then needs a length that is a multiple of 255
func buildPage(headerType byte, granule int64, serial uint32, packets [][]byte, open bool) []byte {
	var lacing []byte
	var body []byte
	for i, p := range packets {
		n := len(p)
		for n >= 255 {
			lacing = append(lacing, 255)
			n -= 255
		}
		if !(open && i == len(packets)-1) {
			lacing = append(lacing, byte(n))
		}
		body = append(body, p...)
	}

	h := make([]byte, oggHeaderLen)
	copy(h, "OggS")
	h[5] = headerType
	binary.LittleEndian.PutUint64(h[6:14], uint64(granule))
	binary.LittleEndian.PutUint32(h[14:18], serial)
	h[26] = byte(len(lacing))

	out := append(h, lacing...)
	return append(out, body...)
}

func TestOggPacketsAcrossPages(t *testing.T) {
	big := bytes.Repeat([]byte{7}, 510) // exactly two full segments, continues
	tail := []byte{8, 9}

	var file []byte
	file = append(file, buildPage(0, 100, 1, [][]byte{[]byte("one"), big}, true)...)
	file = append(file, buildPage(oggContinued, 200, 1, [][]byte{tail, []byte("three")}, false)...)

	o := newOggReader(bytes.NewReader(file))

	p, err := o.readPacket()
	require.NoError(t, err)
	assert.Equal(t, []byte("one"), p)

	p, err = o.readPacket()
	require.NoError(t, err)
	assert.Equal(t, append(append([]byte{}, big...), tail...), p)

	p, err = o.readPacket()
	require.NoError(t, err)
	assert.Equal(t, []byte("three"), p)
	assert.Equal(t, int64(200), o.granule)

	_, err = o.readPacket()
	assert.ErrorIs(t, err, io.EOF)
}

func TestOggSeekDropsContinuation(t *testing.T) {
	first := buildPage(0, 100, 1, [][]byte{[]byte("a"), bytes.Repeat([]byte{1}, 255)}, true)
	second := buildPage(oggContinued, 200, 1, [][]byte{[]byte("rest"), []byte("b")}, false)
	file := append(append([]byte{}, first...), second...)

	o := newOggReader(bytes.NewReader(file))
	require.NoError(t, o.seekTo(int64(len(first)), true))

	p, err := o.readPacket()
	require.NoError(t, err)
	assert.Equal(t, []byte("b"), p)
}

func TestOggHeaderScanAndSkip(t *testing.T) {
	p1 := buildPage(0, 10, 5, [][]byte{[]byte("xx")}, false)
	p2 := buildPage(0, 20, 5, [][]byte{[]byte("yyy")}, false)
	o := newOggReader(bytes.NewReader(append(append([]byte{}, p1...), p2...)))

	h, err := o.readHeader()
	require.NoError(t, err)
	assert.Equal(t, int64(10), h.granule)
	assert.Equal(t, 2, h.bodyLen)
	require.NoError(t, o.skipBody(h))

	h, err = o.readHeader()
	require.NoError(t, err)
	assert.Equal(t, int64(len(p1)), h.offset)
	assert.Equal(t, int64(20), h.granule)
}

func TestOggBadCapture(t *testing.T) {
	o := newOggReader(bytes.NewReader(bytes.Repeat([]byte{0}, 64)))
	_, err := o.readHeader()
	assert.Error(t, err)
}

func TestLastGranule(t *testing.T) {
	var file []byte
	file = append(file, buildPage(0, 960, 9, [][]byte{[]byte("p1")}, false)...)
	file = append(file, buildPage(0, 1920, 9, [][]byte{[]byte("p2")}, false)...)
	file = append(file, buildPage(0, 99999, 4, [][]byte{[]byte("other")}, false)...)

	g, err := lastGranule(bytes.NewReader(file), 9)
	require.NoError(t, err)
	assert.Equal(t, int64(1920), g)
}
