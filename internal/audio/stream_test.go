package audio

import (
	"encoding/binary"
	"io"
	"math"
	"testing"
)

type rampSource struct{ calls int }

func (s *rampSource) Process(dst []float32) {
	s.calls++
	for i := range dst {
		dst[i] = float32(i) / 10
	}
}

func TestStreamReaderEncodesWholeFrames(t *testing.T) {
	src := &rampSource{}
	r := NewStreamReader(src)
	p := make([]byte, 8*3+5)
	n, err := r.Read(p)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if n != 24 {
		t.Fatalf("n = %d, want 24", n)
	}
	for i := 0; i < 6; i++ {
		got := math.Float32frombits(binary.LittleEndian.Uint32(p[i*4:]))
		if got != float32(i)/10 {
			t.Fatalf("sample %d = %v, want %v", i, got, float32(i)/10)
		}
	}
	if n, _ := r.Read(make([]byte, 7)); n != 0 {
		t.Fatalf("partial frame read %d bytes", n)
	}
}

func TestStreamReaderEOFAfterClose(t *testing.T) {
	src := &rampSource{}
	r := NewStreamReader(src)
	if err := r.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if _, err := r.Read(make([]byte, 64)); err != io.EOF {
		t.Fatalf("err = %v, want io.EOF", err)
	}
	if src.calls != 0 {
		t.Fatalf("closed reader pulled from source")
	}
}
