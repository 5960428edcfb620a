package synth

import (
	"encoding/binary"
	"io"
	"math"
	"sync/atomic"

	"github.com/gopxl/beep"
)

// BytesPerFrame is one stereo float32 LE frame.
const BytesPerFrame = 8

// PCMReader pulls a beep.Streamer and encodes it as interleaved stereo
// float32 little-endian, the layout the output device consumes.
type PCMReader struct {
	streamer beep.Streamer
	volume   atomic.Uint64 // float64 bits, linear
	buf      [][2]float64
	frames   atomic.Int64
}

func NewPCMReader(s beep.Streamer, volume float64) *PCMReader {
	r := &PCMReader{streamer: s}
	r.SetVolume(volume)
	return r
}

func (r *PCMReader) SetVolume(vol float64) {
	if vol < 0 {
		vol = 0
	} else if vol > 1 {
		vol = 1
	}
	r.volume.Store(math.Float64bits(vol))
}

func (r *PCMReader) Volume() float64 { return math.Float64frombits(r.volume.Load()) }

// Frames returns how many frames have been encoded.
func (r *PCMReader) Frames() int64 { return r.frames.Load() }

func (r *PCMReader) Read(p []byte) (int, error) {
	frames := len(p) / BytesPerFrame
	if frames == 0 {
		return 0, nil
	}
	if cap(r.buf) < frames {
		r.buf = make([][2]float64, frames)
	}
	buf := r.buf[:frames]
	vol := newVolume(r.streamer, r.Volume())
	n, ok := vol.Stream(buf)
	if n == 0 && !ok {
		if err := r.streamer.Err(); err != nil {
			return 0, err
		}
		return 0, io.EOF
	}
	for i := 0; i < n; i++ {
		putFrame(p, i, clip(buf[i][0]), clip(buf[i][1]))
	}
	r.frames.Add(int64(n))
	return n * BytesPerFrame, nil
}

func clip(x float64) float64 {
	if x > 1 {
		return 1
	}
	if x < -1 {
		return -1
	}
	return x
}

// putFrame writes one interleaved float32 LE frame at frame index i.
func putFrame(p []byte, i int, left, right float64) {
	off := i * BytesPerFrame
	binary.LittleEndian.PutUint32(p[off:], math.Float32bits(float32(left)))
	binary.LittleEndian.PutUint32(p[off+4:], math.Float32bits(float32(right)))
}
