package audio

import (
	"testing"

	"github.com/cbegin/chipmml-go/internal/mixer"
)

func TestPCMSourceDecodesMonoSilence(t *testing.T) {
	data := make([]byte, 10) // 0x80 == silence midpoint for unsigned 8-bit
	for i := range data {
		data[i] = 128
	}
	src := NewPCMSource(mixer.Mono8Unsigned, data)
	dst := make([]float32, 20) // 10 stereo frames
	src.Process(dst)
	for i, v := range dst {
		if v != 0 {
			t.Fatalf("expected silence at index %d, got %f", i, v)
		}
	}
}

func TestPCMSourcePadsWithSilenceAfterExhaustion(t *testing.T) {
	data := []byte{255, 255} // one stereo 8-bit unsigned frame, full scale
	src := NewPCMSource(mixer.Stereo8Unsigned, data)
	dst := make([]float32, 8) // 4 stereo frames requested, only 1 available
	src.Process(dst)
	if dst[0] <= 0 || dst[1] <= 0 {
		t.Fatalf("expected the first frame to carry signal, got %v", dst[:2])
	}
	for i := 2; i < len(dst); i++ {
		if dst[i] != 0 {
			t.Fatalf("expected silence past buffer exhaustion at index %d, got %f", i, dst[i])
		}
	}
	if !src.Finished() {
		t.Fatalf("expected the source to report finished after its buffer is consumed")
	}
}

func TestPCMSourceStereoKeepsChannelsDistinct(t *testing.T) {
	data := []byte{0, 255} // left at the bottom rail, right at full scale (unsigned 8-bit)
	src := NewPCMSource(mixer.Stereo8Unsigned, data)
	dst := make([]float32, 2)
	src.Process(dst)
	if dst[0] >= dst[1] {
		t.Fatalf("expected left < right, got left=%f right=%f", dst[0], dst[1])
	}
}
