package zbc

import "testing"

func TestUint48RoundTrip(t *testing.T) {
	buf := make([]byte, 6)
	want := uint64(0x0102030405)
	putUint48(buf, want)
	if got := getUint48(buf); got != want {
		t.Fatalf("got %x, want %x", got, want)
	}
}

func TestIOVecCopyRoundTrip(t *testing.T) {
	iov := []IOVec{{Base: make([]byte, 4)}, {Base: make([]byte, 4)}}
	src := []byte{1, 2, 3, 4, 5, 6, 7, 8}
	n := CopyToIOVec(iov, 0, src)
	if n != len(src) {
		t.Fatalf("copied %d bytes, want %d", n, len(src))
	}
	dst := make([]byte, 8)
	n = CopyFromIOVec(iov, 0, dst)
	if n != len(dst) {
		t.Fatalf("read back %d bytes, want %d", n, len(dst))
	}
	for i := range src {
		if dst[i] != src[i] {
			t.Fatalf("byte %d: got %d, want %d", i, dst[i], src[i])
		}
	}
}

func TestIOVecLength(t *testing.T) {
	iov := []IOVec{{Base: make([]byte, 3)}, {Base: make([]byte, 5)}}
	if got := IOVecLength(iov); got != 8 {
		t.Fatalf("got %d, want 8", got)
	}
}

func TestCopyToIOVecPartialOffset(t *testing.T) {
	iov := []IOVec{{Base: make([]byte, 4)}, {Base: make([]byte, 4)}}
	CopyToIOVec(iov, 2, []byte{0xAA, 0xBB, 0xCC})
	if iov[0].Base[2] != 0xAA || iov[0].Base[3] != 0xBB || iov[1].Base[0] != 0xCC {
		t.Fatalf("unexpected iovec contents: %v %v", iov[0].Base, iov[1].Base)
	}
}
