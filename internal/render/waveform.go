package render

import "github.com/cbegin/chipmml-go/internal/song"

// amplitude255 evaluates waveform w at phase p (a [0,1024) fractional
// cycle position) and returns a raw, envelope-unshaped magnitude in
// [0,255].
func amplitude255(w song.Wave, p uint32, prng *PRNG) uint8 {
	switch w {
	case song.WavePulse12_5:
		return dutyCycle(p, 128)
	case song.WavePulse25:
		return dutyCycle(p, 256)
	case song.WaveSquare:
		return dutyCycle(p, 512)
	case song.WavePulse75:
		return dutyCycle(p, 768)
	case song.WaveTriangle:
		return triangle(p)
	case song.WaveSawtooth:
		return uint8(p * 255 / 1024)
	case song.WaveNoise:
		return noiseAmplitude(prng)
	default:
		return 0
	}
}

func dutyCycle(p, threshold uint32) uint8 {
	if p < threshold {
		return 255
	}
	return 0
}

func triangle(p uint32) uint8 {
	if p < 512 {
		return uint8(2 * p * 255 / 1024)
	}
	return uint8(2 * (1024 - p) * 255 / 1024)
}

func noiseAmplitude(prng *PRNG) uint8 {
	v := (prng.Gaussian() + 1) / 2 * 255
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v)
}
