package effects

import "github.com/cbegin/chipmml-go/internal/mixer"

// ProcessPCM runs data (already packed in mode) through c one stereo frame
// at a time and returns a newly packed buffer in the same mode. Mono
// frames are processed as L==R and the chain's stereo output is
// averaged back down -- unlike internal/mixer's mono downmix, L and R
// here are independent decoded signal amplitudes (a reverb or chorus can
// genuinely spread a mono input across the stereo field), not the two
// halves of one pan split that are known to sum back to the original
// magnitude, so averaging rather than summing is the correct reduction.
func (c *Chain) ProcessPCM(mode mixer.Mode, data []byte) []byte {
	bps := mode.BytesPerSample()
	channels := mode.Channels()
	frameBytes := channels * bps
	out := make([]byte, len(data))

	for pos := 0; pos+frameBytes <= len(data); pos += frameBytes {
		var l, r float32
		if channels == 1 {
			l = mixer.DecodeFloat(mode, data[pos:pos+bps])
			r = l
		} else {
			l = mixer.DecodeFloat(mode, data[pos:pos+bps])
			r = mixer.DecodeFloat(mode, data[pos+bps:pos+2*bps])
		}

		l, r = c.Process(l, r)

		if channels == 1 {
			mixer.EncodeFloat(mode, (l+r)/2, out[pos:pos+bps])
		} else {
			mixer.EncodeFloat(mode, l, out[pos:pos+bps])
			mixer.EncodeFloat(mode, r, out[pos+bps:pos+2*bps])
		}
	}
	return out
}
