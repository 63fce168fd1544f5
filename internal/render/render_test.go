package render

import (
	"testing"

	"github.com/cbegin/chipmml-go/internal/lexer"
	"github.com/cbegin/chipmml-go/internal/song"
	"github.com/cbegin/chipmml-go/internal/volume"
)

func constantEnvelope(vol *volume.Table, level uint8) uint32 {
	return vol.Intern(volume.Envelope{Kind: volume.KindConstant, Start: level})
}

func TestFrequencyForKnownPitchesAndOctaves(t *testing.T) {
	hz, isRest := frequencyFor(lexer.PitchA, 8)
	if isRest || hz != 7040 {
		t.Fatalf("expected A8=7040Hz, got %d rest=%v", hz, isRest)
	}
	// A4 is four octaves below A8: 7040 / 16 = 440, the standard tuning pitch.
	hz, isRest = frequencyFor(lexer.PitchA, 4)
	if isRest || hz != 440 {
		t.Fatalf("expected A4=440Hz, got %d rest=%v", hz, isRest)
	}
}

func TestFrequencyForRestReportsIsRest(t *testing.T) {
	hz, isRest := frequencyFor(lexer.PitchRest, 4)
	if !isRest || hz != 0 {
		t.Fatalf("expected rest to report isRest with 0Hz, got %d rest=%v", hz, isRest)
	}
}

func TestRestNoteRendersSilenceAtMidpoint(t *testing.T) {
	vol := &volume.Table{}
	n := song.Note{
		Pitch:           lexer.PitchRest,
		Octave:          4,
		DurationSamples: 100,
		Release:         100,
		Pan:             50,
		EnvelopeIndex:   constantEnvelope(vol, 255),
	}
	buf := make([]Sample, 100)
	Note(n, vol, 44100, NewPRNG(1), buf)
	// A rest emits the silence midpoint (128), pan split like any other
	// note, not a raw zero magnitude -- zero is a legitimate trough of an
	// oscillating waveform, not "no signal".
	for i, s := range buf {
		if s.Left != 64 || s.Right != 64 {
			t.Fatalf("expected pan-split silence (64,64) at sample %d, got %+v", i, s)
		}
	}
}

func TestSquareWaveGatedByConstantEnvelopeHoldsFullScale(t *testing.T) {
	vol := &volume.Table{}
	n := song.Note{
		Pitch:           lexer.PitchA,
		Octave:          4,
		DurationSamples: 1000,
		Keyoff:          1000,
		Release:         1000,
		Pan:             50,
		Wave:            song.WaveSquare,
		EnvelopeIndex:   constantEnvelope(vol, 255),
	}
	buf := make([]Sample, 1000)
	Note(n, vol, 44100, NewPRNG(1), buf)
	sawHigh, sawLow := false, false
	for _, s := range buf {
		amp := s.Left + s.Right // pan=50 splits evenly, may round down by 1
		if amp > 200 {
			sawHigh = true
		}
		if s.Left == 0 && s.Right == 0 {
			sawLow = true
		}
	}
	if !sawHigh || !sawLow {
		t.Fatalf("expected a square wave to reach both high and low magnitudes, high=%v low=%v", sawHigh, sawLow)
	}
}

func TestPanSplitFavorsRightAsPanIncreases(t *testing.T) {
	vol := &volume.Table{}
	n := song.Note{
		Pitch:           lexer.PitchC,
		Octave:          4,
		DurationSamples: 100,
		Keyoff:          100,
		Release:         100,
		Pan:             90,
		Wave:            song.WaveSquare,
		EnvelopeIndex:   constantEnvelope(vol, 255),
	}
	buf := make([]Sample, 100)
	Note(n, vol, 44100, NewPRNG(1), buf)
	found := false
	for _, s := range buf {
		if s.Left > 0 || s.Right > 0 {
			if s.Right <= s.Left {
				t.Fatalf("expected pan=90 to favor right channel, got left=%d right=%d", s.Left, s.Right)
			}
			found = true
		}
	}
	if !found {
		t.Fatalf("expected at least one non-silent sample")
	}
}

func TestReleaseRampReachesZeroAtReleasePoint(t *testing.T) {
	vol := &volume.Table{}
	n := song.Note{
		Pitch:           lexer.PitchC,
		Octave:          4,
		DurationSamples: 100,
		Keyoff:          50,
		Release:         90,
		Pan:             100, // all signal on the right channel, easy to inspect
		Wave:            song.WaveSquare,
		EnvelopeIndex:   constantEnvelope(vol, 255),
	}
	buf := make([]Sample, 100)
	Note(n, vol, 44100, NewPRNG(1), buf)
	if buf[90].Right != 0 {
		t.Fatalf("expected the sample at the release point to have ramped to zero, got %d", buf[90].Right)
	}
	if buf[49].Right == 0 {
		t.Fatalf("expected sound still present right at keyoff")
	}
}

func TestTrackPlainSequenceRendersExpectedLength(t *testing.T) {
	vol := &volume.Table{}
	env := constantEnvelope(vol, 255)
	tr := &song.Track{
		LoopPoint: -1,
		Nodes: []song.Node{
			{Note: song.Note{Pitch: lexer.PitchC, Octave: 4, DurationSamples: 100, Keyoff: 100, Release: 100, Wave: song.WaveSquare, EnvelopeIndex: env, Pan: 50}},
			{Note: song.Note{Pitch: lexer.PitchD, Octave: 4, DurationSamples: 200, Keyoff: 200, Release: 200, Wave: song.WaveSquare, EnvelopeIndex: env, Pan: 50}},
		},
	}
	buf := Track(tr, vol, 44100, NewPRNG(1))
	if len(buf) != 300 {
		t.Fatalf("expected 300 rendered samples, got %d", len(buf))
	}
}

func TestTrackLoopBodyIsReusedNotReresynthesized(t *testing.T) {
	vol := &volume.Table{}
	env := constantEnvelope(vol, 255)
	note := song.Note{Pitch: lexer.PitchA, Octave: 4, DurationSamples: 50, Keyoff: 50, Release: 50, Wave: song.WaveSquare, EnvelopeIndex: env, Pan: 50}
	tr := &song.Track{
		LoopPoint: -1,
		Nodes: []song.Node{
			{Note: note},
			{IsLoop: true, JumpPosition: 0, RepeatCount: 3},
		},
	}
	buf := Track(tr, vol, 44100, NewPRNG(7))
	if len(buf) != 150 {
		t.Fatalf("expected 3x50=150 samples, got %d", len(buf))
	}
	// Every 50-sample repetition should be byte-identical, since the loop
	// body is rendered once and copied backward rather than resynthesized
	// with a fresh (and differently seeded) noise draw each time.
	first := buf[0:50]
	for rep := 1; rep < 3; rep++ {
		seg := buf[rep*50 : rep*50+50]
		for i := range first {
			if seg[i] != first[i] {
				t.Fatalf("expected repeat %d to match the first rendering at sample %d: %+v vs %+v", rep, i, seg[i], first[i])
			}
		}
	}
}

func TestTrackNestedLoopsComposeCorrectLength(t *testing.T) {
	vol := &volume.Table{}
	env := constantEnvelope(vol, 255)
	mk := func(samples uint32) song.Node {
		return song.Node{Note: song.Note{Pitch: lexer.PitchC, Octave: 4, DurationSamples: samples, Keyoff: samples, Release: samples, Wave: song.WaveSquare, EnvelopeIndex: env, Pan: 50}}
	}
	tr := &song.Track{
		LoopPoint: -1,
		Nodes: []song.Node{
			mk(10),
			mk(20),
			mk(5),
			{IsLoop: true, JumpPosition: 2, RepeatCount: 2}, // inner: 5*2=10
			{IsLoop: true, JumpPosition: 1, RepeatCount: 3}, // outer body: 20+10=30, *3=90
		},
	}
	buf := Track(tr, vol, 44100, NewPRNG(3))
	if len(buf) != 100 {
		t.Fatalf("expected nested-loop total 100, got %d", len(buf))
	}
}

func TestPRNGGaussianStaysWithinExpectedRange(t *testing.T) {
	g := NewPRNG(42)
	for i := 0; i < 10000; i++ {
		v := g.Gaussian()
		if v < -1.5 || v > 1.5 {
			t.Fatalf("gaussian draw %d out of expected range: %f", i, v)
		}
	}
}

func TestPRNGIsDeterministicForASeed(t *testing.T) {
	a := NewPRNG(123)
	b := NewPRNG(123)
	for i := 0; i < 100; i++ {
		if a.Uint32() != b.Uint32() {
			t.Fatalf("expected identical seeds to produce identical sequences at step %d", i)
		}
	}
}

func TestAmplitude255DutyCycles(t *testing.T) {
	cases := []struct {
		wave      song.Wave
		lowPhase  uint32
		highPhase uint32
	}{
		{song.WavePulse12_5, 64, 200},
		{song.WavePulse25, 100, 400},
		{song.WaveSquare, 400, 600},
		{song.WavePulse75, 700, 900},
	}
	for _, c := range cases {
		if amplitude255(c.wave, c.lowPhase, nil) != 255 {
			t.Fatalf("wave %v: expected high magnitude at phase %d", c.wave, c.lowPhase)
		}
		if amplitude255(c.wave, c.highPhase, nil) != 0 {
			t.Fatalf("wave %v: expected zero magnitude at phase %d", c.wave, c.highPhase)
		}
	}
}

func TestTriangleWavePeaksAtMidCycle(t *testing.T) {
	if triangle(0) != 0 {
		t.Fatalf("expected triangle to start at 0")
	}
	peak := triangle(512)
	if peak < 250 {
		t.Fatalf("expected triangle to peak near mid-cycle, got %d", peak)
	}
	if triangle(1023) > 5 {
		t.Fatalf("expected triangle to return near 0 at cycle end, got %d", triangle(1023))
	}
}

// buildMultiMinuteTrack builds a track long enough (at 44.1kHz) to cover
// several minutes of playback, to measure the reverse-walk renderer's
// steady-state per-sample cost rather than one-off setup.
func buildMultiMinuteTrack(vol *volume.Table, noteCount int) *song.Track {
	env := constantEnvelope(vol, 200)
	nodes := make([]song.Node, noteCount)
	pitches := []lexer.Pitch{lexer.PitchC, lexer.PitchD, lexer.PitchE, lexer.PitchG, lexer.PitchA}
	for i := range nodes {
		nodes[i] = song.Node{Note: song.Note{
			Pitch:           pitches[i%len(pitches)],
			Octave:          4,
			DurationSamples: 2205, // 50ms at 44.1kHz
			Keyoff:          2000,
			Release:         2205,
			Wave:            song.WaveSquare,
			EnvelopeIndex:   env,
			Pan:             50,
		}}
	}
	return &song.Track{LoopPoint: -1, Nodes: nodes}
}

func BenchmarkTrackMultiMinute(b *testing.B) {
	vol := &volume.Table{}
	tr := buildMultiMinuteTrack(vol, 4000) // ~3m min at 50ms/note
	prng := NewPRNG(1)
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		Track(tr, vol, 44100, prng)
	}
}
