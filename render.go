package keyfall

import (
	"encoding/binary"
	"errors"
	"io"
	"log/slog"
	"math"
	"time"

	intsong "github.com/cbegin/keyfall-go/internal/song"
	intsynth "github.com/cbegin/keyfall-go/internal/synth"
)

// RenderOptions controls an offline render.
type RenderOptions struct {
	SampleRate int
	Speed      float64       // 0 means 1
	Step       time.Duration // tick size, default 10ms
	Tail       time.Duration // max release tail after the last event, default 2s
	Logger     *slog.Logger
}

var ErrSampleRate = errors.New("sample rate must be positive")

// Render plays s through the monitor synth as fast as possible and returns
// interleaved stereo samples. It drives a Controller exactly as the
// interactive player does, without lead-in or play-along.
func Render(s *intsong.Song, opts RenderOptions) ([]float32, error) {
	if opts.SampleRate <= 0 {
		return nil, ErrSampleRate
	}
	if opts.Speed <= 0 {
		opts.Speed = 1
	}
	if opts.Step <= 0 {
		opts.Step = 10 * time.Millisecond
	}
	if opts.Tail <= 0 {
		opts.Tail = 2 * time.Second
	}
	sink := intsynth.NewSink(opts.SampleRate)
	cfg := NewConfig(ConfigValues{Speed: opts.Speed})
	ctlOpts := []Option{WithConsumers(sink)}
	if opts.Logger != nil {
		ctlOpts = append(ctlOpts, WithLogger(opts.Logger))
	}
	ctl, err := New(s, cfg, ctlOpts...)
	if err != nil {
		return nil, err
	}

	frames := int(int64(opts.SampleRate) * int64(opts.Step) / int64(time.Second))
	if frames < 1 {
		frames = 1
	}
	chunk := make([]float32, frames*2)
	estimate := float64(s.Duration()+opts.Tail) / opts.Speed / float64(opts.Step)
	out := make([]float32, 0, int(math.Min(estimate, 1<<20))*len(chunk))
	for {
		_, ok := ctl.Tick(opts.Step)
		sink.Process(chunk)
		out = append(out, chunk...)
		if !ok {
			break
		}
	}
	for tail := time.Duration(0); tail < opts.Tail && !sink.Idle(); tail += opts.Step {
		sink.Process(chunk)
		out = append(out, chunk...)
	}
	return out, nil
}

type wavHeader struct {
	RIFF          [4]byte
	ChunkSize     uint32
	WAVE          [4]byte
	Fmt           [4]byte
	FmtSize       uint32
	AudioFormat   uint16
	Channels      uint16
	SampleRate    uint32
	ByteRate      uint32
	BlockAlign    uint16
	BitsPerSample uint16
	Data          [4]byte
	DataSize      uint32
}

const wavFormatFloat = 3

// WriteWAV writes samples as a 32-bit float WAV file.
func WriteWAV(w io.Writer, samples []float32, sampleRate, channels int) error {
	dataSize := uint32(len(samples) * 4)
	h := wavHeader{
		RIFF:          [4]byte{'R', 'I', 'F', 'F'},
		ChunkSize:     36 + dataSize,
		WAVE:          [4]byte{'W', 'A', 'V', 'E'},
		Fmt:           [4]byte{'f', 'm', 't', ' '},
		FmtSize:       16,
		AudioFormat:   wavFormatFloat,
		Channels:      uint16(channels),
		SampleRate:    uint32(sampleRate),
		ByteRate:      uint32(sampleRate * channels * 4),
		BlockAlign:    uint16(channels * 4),
		BitsPerSample: 32,
		Data:          [4]byte{'d', 'a', 't', 'a'},
		DataSize:      dataSize,
	}
	if err := binary.Write(w, binary.LittleEndian, h); err != nil {
		return err
	}
	return binary.Write(w, binary.LittleEndian, samples)
}
