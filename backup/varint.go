package backup

// ReadVarint decodes a base-128 varint from the start of buf and returns its
// value and length. ok is false for a truncated varint or one that does not
// fit in 64 bits.
func ReadVarint(buf []byte) (value uint64, n int, ok bool) {
	var shift uint
	for i, b := range buf {
		value |= uint64(b&0x7f) << shift
		if b&0x80 == 0 {
			return value, i + 1, true
		}
		shift += 7
		if shift >= 64 {
			return 0, 0, false
		}
	}
	return 0, 0, false
}

const (
	wireVarint  = 0
	wireFixed64 = 1
	wireBytes   = 2
	wireFixed32 = 5
)

// field is one decoded field of a message. v holds varint values, b the
// contents of length-delimited fields.
type field struct {
	num uint64
	typ uint8
	v   uint64
	b   []byte
}

// fieldReader walks the fields of one message body. It stops at the first
// malformed field or wire type it cannot skip.
type fieldReader struct {
	buf []byte
	off int
}

func (r *fieldReader) next() (field, bool) {
	if r.off >= len(r.buf) {
		return field{}, false
	}
	tag, n, ok := ReadVarint(r.buf[r.off:])
	if !ok {
		return field{}, false
	}
	r.off += n
	f := field{num: tag >> 3, typ: uint8(tag & 0x7)}
	rest := r.buf[r.off:]
	switch f.typ {
	case wireVarint:
		v, n, ok := ReadVarint(rest)
		if !ok {
			return field{}, false
		}
		f.v = v
		r.off += n
	case wireFixed64:
		if len(rest) < 8 {
			return field{}, false
		}
		r.off += 8
	case wireBytes:
		l, n, ok := ReadVarint(rest)
		if !ok || l > uint64(len(rest)-n) {
			return field{}, false
		}
		f.b = rest[n : n+int(l)]
		r.off += n + int(l)
	case wireFixed32:
		if len(rest) < 4 {
			return field{}, false
		}
		r.off += 4
	default:
		return field{}, false
	}
	return f, true
}
