package song

import (
	"testing"

	"github.com/cbegin/chipmml-go/internal/arena"
	"github.com/cbegin/chipmml-go/internal/lexer"
)

func TestContextInstrumentHandlesAreStable(t *testing.T) {
	c := NewContext(arena.New(64, 64, 64, 64, 64))
	h1 := c.AddInstrument(DefaultInstrument(0))
	h2 := c.AddInstrument(Instrument{Wave: WaveNoise, Pan: 75})
	if c.Instrument(h1).Wave != WaveSquare {
		t.Fatalf("expected first instrument to remain WaveSquare after a later add")
	}
	if c.Instrument(h2).Wave != WaveNoise || c.Instrument(h2).Pan != 75 {
		t.Fatalf("expected second instrument to keep its own fields")
	}
}

func TestTrackLengthCache(t *testing.T) {
	tr := &Track{LoopPoint: -1}
	if tr.HasLengthCache() {
		t.Fatalf("expected a fresh track to have no length cache")
	}
	tr.CacheLength(44100, 0)
	if !tr.HasLengthCache() {
		t.Fatalf("expected length cache to be set")
	}
	if tr.TotalSamples() != 44100 || tr.IntroSamples() != 0 {
		t.Fatalf("unexpected cached lengths: total=%d intro=%d", tr.TotalSamples(), tr.IntroSamples())
	}
}

func TestContextSongHandles(t *testing.T) {
	c := NewContext(arena.New(64, 64, 64, 64, 64))
	h := c.AddSong(Song{BPM: 120, TimeSignature: 0x100, Definitions: map[string]string{}})
	if c.Song(h).BPM != 120 {
		t.Fatalf("expected stored BPM 120, got %d", c.Song(h).BPM)
	}
	if c.SongCount() != 1 {
		t.Fatalf("expected 1 song, got %d", c.SongCount())
	}
}

func TestCommitWritesNodesIntoTrackRegion(t *testing.T) {
	a := arena.New(64, 64, 64, 64, 64)
	tr := &Track{
		LoopPoint: -1,
		Nodes: []Node{
			{Note: Note{Pitch: lexer.PitchC, Octave: 4, DurationSamples: 100, Pan: 50}},
			{IsLoop: true, JumpPosition: 0, RepeatCount: 3},
		},
	}
	if a.Used(arena.RegionTracks) != 0 {
		t.Fatalf("expected an empty track region before any Commit")
	}
	if err := tr.Commit(a); err != nil {
		t.Fatalf("unexpected error committing: %v", err)
	}
	if !tr.Committed() {
		t.Fatalf("expected Committed() to report true after Commit")
	}
	if got := a.Used(arena.RegionTracks); got != uint32(len(tr.Nodes))*nodeRecordSize {
		t.Fatalf("expected the track region to record %d bytes used, got %d", len(tr.Nodes)*nodeRecordSize, got)
	}
	if tr.Nodes[0].Note.Pitch != lexer.PitchC || tr.Nodes[0].Note.DurationSamples != 100 {
		t.Fatalf("expected the plain note to round-trip through the arena unchanged, got %+v", tr.Nodes[0])
	}
	if !tr.Nodes[1].IsLoop || tr.Nodes[1].RepeatCount != 3 {
		t.Fatalf("expected the loop node to round-trip unchanged, got %+v", tr.Nodes[1])
	}
}

// TestCommitNodesSurviveArenaExpand exercises the §8 "arena relocation
// safety" invariant directly against a committed track: the node bytes
// read back by offset must be unchanged after the region they live in is
// relocated to a larger buffer.
func TestCommitNodesSurviveArenaExpand(t *testing.T) {
	a := arena.New(64, 64, 64, 64, 64) // deliberately tiny: Commit must Expand to fit
	tr := &Track{
		LoopPoint: -1,
		Nodes: []Node{
			{Note: Note{Pitch: lexer.PitchC, Octave: 4, DurationSamples: 100}},
			{Note: Note{Pitch: lexer.PitchD, Octave: 5, DurationSamples: 200, Pan: 75}},
			{IsLoop: true, JumpPosition: 0, RepeatCount: 2},
		},
	}
	if err := tr.Commit(a); err != nil {
		t.Fatalf("unexpected error committing: %v", err)
	}
	before := make([]Node, len(tr.Nodes))
	copy(before, tr.Nodes)
	offset := tr.NodesOffset()

	if err := a.Expand(128, 128, a.Cap(arena.RegionTracks)*4, 128, 128); err != nil {
		t.Fatalf("unexpected error expanding: %v", err)
	}
	for i, want := range before {
		b := a.Bytes(arena.RegionTracks, offset+uint32(i)*nodeRecordSize, nodeRecordSize)
		if got := decodeNode(b); got != want {
			t.Fatalf("node %d changed across Expand: got %+v, want %+v", i, got, want)
		}
	}
}
