package fswatch

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// HeaderSize is the fixed part of a packed record:
// wd int32, mask uint32, cookie uint32, len uint32.
const HeaderSize = 16

// MinBufferSize fits one record carrying a name of NAME_MAX bytes. The kernel
// rejects reads into anything smaller with EINVAL.
const MinBufferSize = HeaderSize + 255 + 1

// ReadBufferSize holds many packed records per read.
const ReadBufferSize = 1024 * (HeaderSize + 16)

// RawEvent is one decoded record. Name is empty for records that carry no
// filename, such as IN_IGNORED or IN_Q_OVERFLOW.
type RawEvent struct {
	Handle int
	Mask   EventMask
	Cookie uint32
	Name   string
}

// Decoder walks the records packed into the bytes of a single read.
// Reset it with each new read.
type Decoder struct {
	buf    []byte
	offset int
}

// Reset points the decoder at the first n bytes of buf.
func (d *Decoder) Reset(buf []byte, n int) {
	d.buf = buf[:n]
	d.offset = 0
}

// Next decodes the record at the cursor and advances past it. It returns
// false once every byte has been consumed. A record that does not fit in the
// remaining bytes yields ErrShortRecord.
func (d *Decoder) Next() (RawEvent, bool, error) {
	if d.offset >= len(d.buf) {
		return RawEvent{}, false, nil
	}
	rest := d.buf[d.offset:]
	if len(rest) < HeaderSize {
		return RawEvent{}, false, fmt.Errorf("%w: %d header bytes at offset %d", ErrShortRecord, len(rest), d.offset)
	}

	ev := RawEvent{
		Handle: int(int32(binary.NativeEndian.Uint32(rest[0:4]))),
		Mask:   EventMask(binary.NativeEndian.Uint32(rest[4:8])),
		Cookie: binary.NativeEndian.Uint32(rest[8:12]),
	}
	nameLen := int(binary.NativeEndian.Uint32(rest[12:16]))
	if nameLen > len(rest)-HeaderSize {
		return RawEvent{}, false, fmt.Errorf("%w: name length %d at offset %d", ErrShortRecord, nameLen, d.offset)
	}
	if nameLen > 0 {
		name := rest[HeaderSize : HeaderSize+nameLen]
		if i := bytes.IndexByte(name, 0); i >= 0 {
			name = name[:i]
		}
		ev.Name = string(name)
	}

	d.offset += HeaderSize + nameLen
	return ev, true, nil
}

// Offset returns the number of bytes consumed so far.
func (d *Decoder) Offset() int { return d.offset }

// AppendRecord packs ev onto buf using the same layout the kernel uses: the
// name is NUL-terminated and padded to a multiple of the header alignment.
func AppendRecord(buf []byte, ev RawEvent) []byte {
	nameLen := 0
	if ev.Name != "" {
		nameLen = (len(ev.Name) + 1 + 3) &^ 3
	}
	var hdr [HeaderSize]byte
	binary.NativeEndian.PutUint32(hdr[0:4], uint32(int32(ev.Handle)))
	binary.NativeEndian.PutUint32(hdr[4:8], uint32(ev.Mask))
	binary.NativeEndian.PutUint32(hdr[8:12], ev.Cookie)
	binary.NativeEndian.PutUint32(hdr[12:16], uint32(nameLen))
	buf = append(buf, hdr[:]...)
	if nameLen > 0 {
		buf = append(buf, ev.Name...)
		for i := len(ev.Name); i < nameLen; i++ {
			buf = append(buf, 0)
		}
	}
	return buf
}

// RecordSize returns the packed size of ev.
func RecordSize(ev RawEvent) int {
	if ev.Name == "" {
		return HeaderSize
	}
	return HeaderSize + (len(ev.Name)+1+3)&^3
}
