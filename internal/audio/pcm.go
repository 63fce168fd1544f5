package audio

import "github.com/cbegin/chipmml-go/internal/mixer"

// PCMSource adapts a finished, packed PCM buffer (as internal/mixer
// produces) into the SampleSource interface StreamReader expects, so a
// pre-rendered song can be played back through the same ebiten/oto player
// the teacher's live sequencer output uses. Unlike the teacher's
// per-engine sources, a PCMSource has no notion of "ticking" -- it just
// walks a fixed buffer and reports Finished once exhausted.
type PCMSource struct {
	mode  mixer.Mode
	data  []byte
	frame int // byte offset of the next unread frame
}

// NewPCMSource wraps data, which must already be packed in mode.
func NewPCMSource(mode mixer.Mode, data []byte) *PCMSource {
	return &PCMSource{mode: mode, data: data}
}

// Process fills dst (interleaved stereo float32, [-1,1]) from the wrapped
// buffer, padding with silence once the buffer is exhausted.
func (s *PCMSource) Process(dst []float32) {
	bytesPerFrame := s.mode.Channels() * s.mode.BytesPerSample()
	frameCount := len(dst) / 2
	for i := 0; i < frameCount; i++ {
		left, right := s.readFrame(bytesPerFrame)
		dst[i*2] = left
		dst[i*2+1] = right
	}
}

func (s *PCMSource) readFrame(bytesPerFrame int) (left, right float32) {
	if s.frame+bytesPerFrame > len(s.data) {
		return 0, 0
	}
	frame := s.data[s.frame : s.frame+bytesPerFrame]
	s.frame += bytesPerFrame

	bps := s.mode.BytesPerSample()
	if s.mode.Channels() == 1 {
		v := mixer.DecodeFloat(s.mode, frame[:bps])
		return v, v
	}
	return mixer.DecodeFloat(s.mode, frame[:bps]), mixer.DecodeFloat(s.mode, frame[bps:])
}

// Finished reports whether every frame has been handed to the player.
func (s *PCMSource) Finished() bool {
	return s.frame >= len(s.data)
}
