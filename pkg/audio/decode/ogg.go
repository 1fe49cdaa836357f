// ABOUTME: Minimal Ogg page reader used by the Opus backend
// ABOUTME: Reassembles packets across pages and scans pages for seeking
package decode

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

const (
	oggHeaderLen    = 27
	oggContinued    = 0x01
	oggMaxPageBytes = oggHeaderLen + 255 + 255*255
)

var oggCapture = []byte("OggS")

type oggPageHeader struct {
	offset     int64
	headerType byte
	granule    int64
	serial     uint32
	segments   []byte
	bodyLen    int
}

// oggReader pulls packets from an Ogg bitstream
type oggReader struct {
	rs       io.ReadSeeker
	offset   int64
	queue    [][]byte
	partial  []byte
	dropNext bool // first packet on the next page is the tail of an unseen packet
	granule  int64
}

func newOggReader(rs io.ReadSeeker) *oggReader {
	return &oggReader{rs: rs}
}

// readHeader reads one page header at the current offset
func (o *oggReader) readHeader() (oggPageHeader, error) {
	var h oggPageHeader
	h.offset = o.offset

	var fixed [oggHeaderLen]byte
	if _, err := io.ReadFull(o.rs, fixed[:]); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return h, io.EOF
		}
		return h, err
	}
	if !bytes.Equal(fixed[:4], oggCapture) {
		return h, fmt.Errorf("ogg: missing capture pattern at offset %d", o.offset)
	}

	h.headerType = fixed[5]
	h.granule = int64(binary.LittleEndian.Uint64(fixed[6:14]))
	h.serial = binary.LittleEndian.Uint32(fixed[14:18])

	h.segments = make([]byte, fixed[26])
	if _, err := io.ReadFull(o.rs, h.segments); err != nil {
		return h, io.EOF
	}
	for _, l := range h.segments {
		h.bodyLen += int(l)
	}
	o.offset += int64(oggHeaderLen + len(h.segments))
	return h, nil
}

// readPacket returns the next complete packet
func (o *oggReader) readPacket() ([]byte, error) {
	for len(o.queue) == 0 {
		h, err := o.readHeader()
		if err != nil {
			return nil, err
		}
		body := make([]byte, h.bodyLen)
		if _, err := io.ReadFull(o.rs, body); err != nil {
			return nil, io.EOF
		}
		o.offset += int64(h.bodyLen)
		o.absorb(h, body)
	}

	pkt := o.queue[0]
	o.queue = o.queue[1:]
	return pkt, nil
}

func (o *oggReader) absorb(h oggPageHeader, body []byte) {
	if h.headerType&oggContinued == 0 {
		o.partial = nil
	}
	drop := o.dropNext && h.headerType&oggContinued != 0
	o.dropNext = false

	cur := o.partial
	pos := 0
	for _, l := range h.segments {
		cur = append(cur, body[pos:pos+int(l)]...)
		pos += int(l)
		if l < 255 {
			if drop {
				drop = false
			} else {
				o.queue = append(o.queue, cur)
			}
			cur = nil
		}
	}
	o.partial = cur
	if drop {
		// tail spans the whole page, keep discarding
		o.partial = nil
		o.dropNext = true
	}
	if h.granule != -1 {
		o.granule = h.granule
	}
}

// seekTo positions the reader at a page boundary and discards buffered packets
func (o *oggReader) seekTo(offset int64, continued bool) error {
	if _, err := o.rs.Seek(offset, io.SeekStart); err != nil {
		return err
	}
	o.offset = offset
	o.queue = nil
	o.partial = nil
	o.dropNext = continued
	return nil
}

// skipBody advances past the body of a header just read
func (o *oggReader) skipBody(h oggPageHeader) error {
	if _, err := o.rs.Seek(int64(h.bodyLen), io.SeekCurrent); err != nil {
		return err
	}
	o.offset += int64(h.bodyLen)
	return nil
}

// lastGranule finds the granule position of the final page for serial
func lastGranule(rs io.ReadSeeker, serial uint32) (int64, error) {
	end, err := rs.Seek(0, io.SeekEnd)
	if err != nil {
		return 0, err
	}
	start := end - oggMaxPageBytes
	if start < 0 {
		start = 0
	}
	if _, err := rs.Seek(start, io.SeekStart); err != nil {
		return 0, err
	}
	tail := make([]byte, end-start)
	if _, err := io.ReadFull(rs, tail); err != nil {
		return 0, err
	}

	for i := bytes.LastIndex(tail, oggCapture); i >= 0; i = bytes.LastIndex(tail[:i], oggCapture) {
		if i+oggHeaderLen > len(tail) {
			continue
		}
		granule := int64(binary.LittleEndian.Uint64(tail[i+6 : i+14]))
		if binary.LittleEndian.Uint32(tail[i+14:i+18]) == serial && granule != -1 {
			return granule, nil
		}
	}
	return 0, nil
}
