// Package render turns a compiled song.Track into PCM samples: per-note
// waveform synthesis with envelope shaping and pan split, and whole-track
// rendering that walks the node list in reverse -- the same direction and
// the same jump_position/repeat_count recursion internal/length uses --
// writing samples backward and reusing one rendered loop-body expansion
// for every repeat via a backward memcpy, rather than resynthesizing it.
package render

import (
	"github.com/cbegin/chipmml-go/internal/length"
	"github.com/cbegin/chipmml-go/internal/lexer"
	"github.com/cbegin/chipmml-go/internal/song"
	"github.com/cbegin/chipmml-go/internal/volume"
)

// Sample is one rendered frame: an unsigned 0-255 magnitude per channel,
// the internal representation §4.6 describes before PCM-mode encoding.
// internal/mixer converts and accumulates these into the caller's chosen
// byte format.
type Sample struct {
	Left, Right uint8
}

// octave8Freq holds the integer frequency, in Hz, of each chromatic pitch
// class at octave 8 (C through B); octave k<8 divides by 2^(8-k).
var octave8Freq = [12]int{
	4186, 4435, 4699, 4978, 5274, 5588, 5920, 6272, 6645, 7040, 7459, 7902,
}

func frequencyFor(pitch lexer.Pitch, octave int) (hz int, isRest bool) {
	if pitch == lexer.PitchRest {
		return 0, true
	}
	idx := int(pitch) - int(lexer.PitchC)
	if idx < 0 || idx >= len(octave8Freq) {
		return 0, true
	}
	shift := 8 - octave
	if shift <= 0 {
		return octave8Freq[idx], false
	}
	return octave8Freq[idx] >> uint(shift), false
}

func scalePos(x uint32, total int) uint32 {
	if total <= 0 {
		return 0
	}
	return uint32((uint64(x) << 10) / uint64(total))
}

func rampToZero(amp uint8, i, keyoff, release uint32) uint8 {
	if release <= keyoff || i >= release {
		return 0
	}
	remaining := release - i
	span := release - keyoff
	return uint8(uint32(amp) * remaining / span)
}

// silenceMagnitude is the internal-domain value representing "no signal":
// the unsigned PCM midpoint (128), not the bottom rail (0) a fully-quiet
// point in an oscillating waveform reaches. A rest emits this flat, pan
// split like any other note, rather than a raw zero magnitude.
const silenceMagnitude = 128

// Note renders one compiled note (or rest) into buf, which must be exactly
// len(buf) == min(int(n.DurationSamples), cap) samples long.
func Note(n song.Note, vol *volume.Table, freqHz int, prng *PRNG, buf []Sample) {
	dur := len(buf)
	if dur == 0 {
		return
	}
	noteFreq, isRest := frequencyFor(n.Pitch, n.Octave)
	if isRest || noteFreq <= 0 || freqHz <= 0 {
		left, right := panSplit(silenceMagnitude, n.Pan)
		for i := range buf {
			buf[i] = Sample{Left: left, Right: right}
		}
		return
	}

	spc := freqHz / noteFreq
	if spc < 1 {
		spc = 1
	}
	attackPos := scalePos(n.Attack, dur)
	keyoffPos := scalePos(n.Keyoff, dur)
	releasePos := scalePos(n.Release, dur)

	for i := 0; i < dur; i++ {
		phase := uint32((uint64(i%spc) << 10) / uint64(spc))
		raw := amplitude255(n.Wave, phase, prng)

		envPos := scalePos(uint32(i), dur)
		envAmp := vol.Amplitude(n.EnvelopeIndex, envPos, attackPos, keyoffPos, releasePos)
		amp := uint8(uint32(raw) * uint32(envAmp) / 255)

		if uint32(i) >= n.Keyoff {
			amp = rampToZero(amp, uint32(i), n.Keyoff, n.Release)
		}

		left, right := panSplit(amp, n.Pan)
		buf[i] = Sample{Left: left, Right: right}
	}
}

// panSplit divides amp (a 0..255 internal magnitude) between channels per
// §4.6 step 3: left = amp*(100-pan)/100, right = amp*pan/100. Left+Right
// reconstructs amp (up to integer-division rounding), the invariant the
// mono downmix in internal/mixer relies on.
func panSplit(amp, pan uint8) (left, right uint8) {
	left = uint8(uint32(amp) * uint32(100-pan) / 100)
	right = uint8(uint32(amp) * uint32(pan) / 100)
	return left, right
}

// Track renders tr's full, loop-expanded length into a fresh buffer. prng
// must not be shared with a concurrent rendering of another track.
func Track(tr *song.Track, vol *volume.Table, freqHz int, prng *PRNG) []Sample {
	total, _ := length.Compute(tr)
	buf := make([]Sample, total)
	renderRange(tr, 0, len(tr.Nodes), buf, len(buf), vol, freqHz, prng)
	return buf
}

// renderRange renders nodes [lo,hi) backward into buf, ending at the
// exclusive position end, and returns the position immediately before the
// first sample it wrote (i.e. where a caller covering [lo,hi)'s
// predecessor should resume).
func renderRange(tr *song.Track, lo, hi int, buf []Sample, end int, vol *volume.Table, freqHz int, prng *PRNG) int {
	i := hi - 1
	for i >= lo {
		n := tr.Nodes[i]
		if !n.IsLoop {
			dur := int(n.Note.DurationSamples)
			start := end - dur
			if start < 0 {
				start = 0
			}
			Note(n.Note, vol, freqHz, prng, buf[start:end])
			end = start
			i--
			continue
		}

		bodyStart := renderRange(tr, n.JumpPosition, i, buf, end, vol, freqHz, prng)
		bodyLen := end - bodyStart
		repeat := int(n.RepeatCount)
		if repeat == 0 {
			repeat = 1
		}

		cursor := bodyStart
		for r := 1; r < repeat && bodyLen > 0; r++ {
			next := cursor - bodyLen
			if next < 0 {
				next = 0
			}
			copy(buf[next:cursor], buf[bodyStart:bodyStart+bodyLen])
			cursor = next
		}
		end = cursor
		i = n.JumpPosition - 1
	}
	return end
}
