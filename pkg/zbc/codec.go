package zbc

import "encoding/binary"

// putUint16, putUint32, putUint64 write big-endian wire integers. All
// REPORT* payloads and activation descriptors go through these so no
// native-endian value reaches the wire, regardless of what host-endian
// layout the metadata image itself uses (see meta.go).
func putUint16(b []byte, v uint16) { binary.BigEndian.PutUint16(b, v) }
func putUint32(b []byte, v uint32) { binary.BigEndian.PutUint32(b, v) }
func putUint64(b []byte, v uint64) { binary.BigEndian.PutUint64(b, v) }

func getUint16(b []byte) uint16 { return binary.BigEndian.Uint16(b) }
func getUint32(b []byte) uint32 { return binary.BigEndian.Uint32(b) }
func getUint64(b []byte) uint64 { return binary.BigEndian.Uint64(b) }

// putUint48 writes the low 48 bits of v as a 6-byte big-endian field.
func putUint48(b []byte, v uint64) {
	b[0] = byte(v >> 40)
	b[1] = byte(v >> 32)
	binary.BigEndian.PutUint32(b[2:6], uint32(v))
}

// getUint48 reads a 6-byte big-endian field into the low 48 bits of a uint64.
func getUint48(b []byte) uint64 {
	hi := uint64(b[0])<<8 | uint64(b[1])
	lo := uint64(binary.BigEndian.Uint32(b[2:6]))
	return hi<<32 | lo
}

// IOVec is a single scatter/gather buffer, mirroring the shape a host
// target framework hands a handler for a command's data-in/data-out
// payload.
type IOVec struct {
	Base []byte
}

// IOVecLength returns the aggregate length of a scatter list.
func IOVecLength(iov []IOVec) int {
	n := 0
	for _, v := range iov {
		n += len(v.Base)
	}
	return n
}

// CopyToIOVec copies src into the scatter list starting at byte offset off,
// advancing across iovec boundaries, and returns the number of bytes
// actually copied (capped by the iovec's remaining capacity).
func CopyToIOVec(iov []IOVec, off int, src []byte) int {
	copied := 0
	pos := 0
	for _, v := range iov {
		if len(src) == copied {
			break
		}
		vlen := len(v.Base)
		if pos+vlen <= off {
			pos += vlen
			continue
		}
		start := 0
		if off > pos {
			start = off - pos
		}
		n := copy(v.Base[start:], src[copied:])
		copied += n
		pos += vlen
	}
	return copied
}

// CopyFromIOVec copies up to len(dst) bytes out of the scatter list starting
// at byte offset off and returns the number of bytes copied.
func CopyFromIOVec(iov []IOVec, off int, dst []byte) int {
	copied := 0
	pos := 0
	for _, v := range iov {
		if len(dst) == copied {
			break
		}
		vlen := len(v.Base)
		if pos+vlen <= off {
			pos += vlen
			continue
		}
		start := 0
		if off > pos {
			start = off - pos
		}
		n := copy(dst[copied:], v.Base[start:])
		copied += n
		pos += vlen
	}
	return copied
}
