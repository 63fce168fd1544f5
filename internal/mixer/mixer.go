// Package mixer accumulates per-track render.Sample buffers into a single
// song buffer and packs the result into one of the eight PCM modes a
// caller can request, mirroring the bitmask
// original_source/include/synth/synth.h's enSynthBufMode defines.
package mixer

import (
	"encoding/binary"
	"io"

	"github.com/cbegin/chipmml-go/internal/render"
)

// Mode is a PCM output format, built from three independent axes: sample
// width, channel count and signedness. The eight combined constants below
// are the valid modes (see Valid); synth.Render does not check its mode.
type Mode uint16

const (
	Bits8    Mode = 0x0001
	Bits16   Mode = 0x0002
	Chan1    Mode = 0x0010
	Chan2    Mode = 0x0020
	Unsigned Mode = 0x0100
	Signed   Mode = 0x0200

	Mono8Unsigned    = Bits8 | Chan1 | Unsigned
	Mono8Signed      = Bits8 | Chan1 | Signed
	Mono16Unsigned   = Bits16 | Chan1 | Unsigned
	Mono16Signed     = Bits16 | Chan1 | Signed
	Stereo8Unsigned  = Bits8 | Chan2 | Unsigned
	Stereo8Signed    = Bits8 | Chan2 | Signed
	Stereo16Unsigned = Bits16 | Chan2 | Unsigned
	Stereo16Signed   = Bits16 | Chan2 | Signed

	validModeMask = Bits8 | Bits16 | Chan1 | Chan2 | Unsigned | Signed
)

// Channels reports how many channels m encodes (1 or 2).
func (m Mode) Channels() int {
	if m&Chan2 != 0 {
		return 2
	}
	return 1
}

// BytesPerSample reports the per-channel sample width in bytes (1 or 2).
func (m Mode) BytesPerSample() int {
	if m&Bits16 != 0 {
		return 2
	}
	return 1
}

// Valid reports whether m sets exactly one value from each axis.
func (m Mode) Valid() bool {
	width := m & (Bits8 | Bits16)
	chans := m & (Chan1 | Chan2)
	sign := m & (Unsigned | Signed)
	return m&^validModeMask == 0 &&
		(width == Bits8 || width == Bits16) &&
		(chans == Chan1 || chans == Chan2) &&
		(sign == Unsigned || sign == Signed)
}

// Pack converts an internal 0..255 magnitude into mode's on-wire byte(s)
// for one channel-sample, per spec §4.6 step 4.
func Pack(mode Mode, amp uint8, dst []byte) {
	if mode&Bits16 != 0 {
		var v uint16
		if mode&Unsigned != 0 {
			v = uint16(amp) << 8
		} else {
			v = uint16(int16(int(amp)-128) << 8)
		}
		binary.LittleEndian.PutUint16(dst, v)
		return
	}
	if mode&Unsigned != 0 {
		dst[0] = amp
	} else {
		dst[0] = byte(int(amp) - 128)
	}
}

// DecodeFloat reads one channel-sample already packed in mode from b and
// returns it as a float32 in [-1, 1], centered on silence. Shared by
// internal/audio (live playback) and internal/effects (post-mix DSP), both
// of which need to round-trip mode's PCM encoding through float32.
func DecodeFloat(mode Mode, b []byte) float32 {
	if mode&Bits16 != 0 {
		v := int16(uint16(b[0]) | uint16(b[1])<<8)
		if mode&Unsigned != 0 {
			return (float32(uint16(v)) - 32768) / 32768
		}
		return float32(v) / 32768
	}
	if mode&Unsigned != 0 {
		return (float32(b[0]) - 128) / 128
	}
	return float32(int8(b[0])) / 128
}

// EncodeFloat is DecodeFloat's inverse: it clamps v to [-1,1] and writes
// mode's packed representation into dst.
func EncodeFloat(mode Mode, v float32, dst []byte) {
	if v > 1 {
		v = 1
	}
	if v < -1 {
		v = -1
	}
	amp := int(v*128 + 128.5)
	if amp > 255 {
		amp = 255
	}
	Pack(mode, uint8(amp), dst)
}

// saturateAdd adds two plain-int values (magnitudes, or a magnitude and a
// signed offset from the 128 midpoint) and clamps the sum to the 0..255
// magnitude range, whatever the output mode's width.
func saturateAdd(a, b int) int {
	sum := a + b
	if sum > 255 {
		return 255
	}
	if sum < 0 {
		return 0
	}
	return sum
}

// Mix sums tracks sample-for-sample with saturation, centered on silence
// (128), and returns a buffer as long as the longest track (shorter tracks
// are treated as silent past their end).
func Mix(tracks [][]render.Sample) []render.Sample {
	longest := 0
	for _, tr := range tracks {
		if len(tr) > longest {
			longest = len(tr)
		}
	}
	out := make([]render.Sample, longest)
	for i := range out {
		left, right := 128, 128
		for _, tr := range tracks {
			if i >= len(tr) {
				continue
			}
			left = saturateAdd(left, int(tr[i].Left)-128)
			right = saturateAdd(right, int(tr[i].Right)-128)
		}
		out[i] = render.Sample{Left: uint8(left), Right: uint8(right)}
	}
	return out
}

// monoDown combines a stereo frame's two channels into one mono magnitude
// per spec §4.6 step 3's "for mono output, sum the two" -- a saturating
// sum, not an average. render.panSplit guarantees Left+Right reconstructs
// the pre-split magnitude (up to rounding), so summing recovers it instead
// of silently halving it.
func monoDown(s render.Sample) uint8 {
	return uint8(saturateAdd(int(s.Left), int(s.Right)))
}

// PackSong converts mixed stereo samples into mode's packed byte stream.
func PackSong(mode Mode, samples []render.Sample) []byte {
	bps := mode.BytesPerSample()
	channels := mode.Channels()
	out := make([]byte, len(samples)*channels*bps)
	pos := 0
	for _, s := range samples {
		if channels == 1 {
			Pack(mode, monoDown(s), out[pos:])
			pos += bps
			continue
		}
		Pack(mode, s.Left, out[pos:])
		pos += bps
		Pack(mode, s.Right, out[pos:])
		pos += bps
	}
	return out
}

// PackStream writes samples to w in mode's packed format one frame at a
// time, for callers that want to avoid holding a second full-size copy of
// the song buffer in memory (e.g. a CLI writing a large WAV file).
func PackStream(w io.Writer, mode Mode, samples []render.Sample) error {
	bps := mode.BytesPerSample()
	channels := mode.Channels()
	frame := make([]byte, channels*bps)
	for _, s := range samples {
		if channels == 1 {
			Pack(mode, monoDown(s), frame)
		} else {
			Pack(mode, s.Left, frame)
			Pack(mode, s.Right, frame[bps:])
		}
		if _, err := w.Write(frame); err != nil {
			return err
		}
	}
	return nil
}
