package classfile

import (
	"encoding/binary"
	"fmt"
)

// byteReader reads big-endian values and remembers the first overrun.
type byteReader struct {
	data []byte
	off  int
	err  error
}

func (r *byteReader) need(n int) bool {
	if r.err != nil {
		return false
	}
	if n < 0 || r.off+n > len(r.data) {
		r.err = fmt.Errorf("%w: unexpected end of data at offset %d", ErrMalformedClass, r.off)
		return false
	}
	return true
}

func (r *byteReader) u1() uint8 {
	if !r.need(1) {
		return 0
	}
	v := r.data[r.off]
	r.off++
	return v
}

func (r *byteReader) u2() uint16 {
	if !r.need(2) {
		return 0
	}
	v := binary.BigEndian.Uint16(r.data[r.off:])
	r.off += 2
	return v
}

func (r *byteReader) u4() uint32 {
	if !r.need(4) {
		return 0
	}
	v := binary.BigEndian.Uint32(r.data[r.off:])
	r.off += 4
	return v
}

func (r *byteReader) u8() uint64 {
	if !r.need(8) {
		return 0
	}
	v := binary.BigEndian.Uint64(r.data[r.off:])
	r.off += 8
	return v
}

func (r *byteReader) bytes(n int) []byte {
	if !r.need(n) {
		return nil
	}
	v := r.data[r.off : r.off+n]
	r.off += n
	return v
}

// byteWriter is the append-only counterpart of byteReader.
type byteWriter struct {
	buf []byte
}

func (w *byteWriter) u1(v uint8) { w.buf = append(w.buf, v) }

func (w *byteWriter) u2(v uint16) { w.buf = binary.BigEndian.AppendUint16(w.buf, v) }

func (w *byteWriter) u4(v uint32) { w.buf = binary.BigEndian.AppendUint32(w.buf, v) }

func (w *byteWriter) u8(v uint64) { w.buf = binary.BigEndian.AppendUint64(w.buf, v) }

func (w *byteWriter) bytes(b []byte) { w.buf = append(w.buf, b...) }

func (w *byteWriter) len() int { return len(w.buf) }

// putU2 patches a previously reserved u2.
func (w *byteWriter) putU2(at int, v uint16) { binary.BigEndian.PutUint16(w.buf[at:], v) }

func (w *byteWriter) putU4(at int, v uint32) { binary.BigEndian.PutUint32(w.buf[at:], v) }
