// Package song holds the compiled object model the parser produces:
// instruments, notes, loop nodes, tracks and songs. A track's notes are
// the arena's RegionTracks, written and read back via Track.Commit; songs
// and instruments are held in growable slices inside a Context and
// referenced by arena.Handle -- never by Go pointer, so that no reference
// is invalidated by a later append or arena Expand.
package song

import (
	"encoding/binary"
	"errors"

	"github.com/cbegin/chipmml-go/internal/arena"
	"github.com/cbegin/chipmml-go/internal/lexer"
	"github.com/cbegin/chipmml-go/internal/volume"
)

var errTrackRegionExhausted = errors.New("song: track region exhausted after expand")

// Wave names a waveform generator. Order matches the duty-cycle table.
type Wave int

const (
	WaveSquare Wave = iota // 50% duty cycle
	WavePulse12_5
	WavePulse25
	WavePulse75
	WaveTriangle
	WaveSawtooth
	WaveNoise
)

// Instrument is the parser's notion of "current instrument": the set of
// note-shaping fields a mod_stmt can change, copied into the context's
// instrument slice on first mutation within a track (copy-on-write).
type Instrument struct {
	Wave          Wave
	Pan           uint8 // 0-100
	AttackPct     uint8 // 0-100, percent of note duration
	KeyoffPct     uint8
	ReleasePct    uint8
	EnvelopeIndex uint32 // index into the context's volume.Table
}

// DefaultInstrument is the instrument every new track starts with absent
// any mod_stmt.
func DefaultInstrument(envelope uint32) Instrument {
	return Instrument{
		Wave:       WaveSquare,
		Pan:        50,
		AttackPct:  0,
		KeyoffPct:  100,
		ReleasePct: 100,
		EnvelopeIndex: envelope,
	}
}

// Note is a single compiled note (or rest). DurationUnits is in 6-bit
// fixed-point compass units; DurationSamples, Attack, Keyoff and Release
// are filled in once the owning song's BPM/time-signature let duration be
// converted to samples, with the invariant
// 0 <= Attack <= Keyoff <= Release <= DurationSamples.
type Note struct {
	Pitch         lexer.Pitch
	Octave        int
	DurationUnits uint16

	DurationSamples uint32
	Attack          uint32
	Keyoff          uint32
	Release         uint32

	Pan           uint8
	Wave          Wave
	EnvelopeIndex uint32
}

// Node is one element of a track's node list: either a plain note or a
// loop marker. IsLoop distinguishes the two; only the relevant fields are
// meaningful.
type Node struct {
	IsLoop bool

	Note Note

	// Loop-only fields.
	RepeatCount  uint16 // 0 means infinite; only legal as a track's final node
	JumpPosition int    // node index < the loop node's own index
}

// nodeRecordSize is the fixed byte width of one encoded Node in the
// arena's RegionTracks: 13 fields, each stored as a 4-byte little-endian
// word regardless of its Go-level width, so offsets are a plain
// index*nodeRecordSize computation.
const nodeRecordSize = 13 * 4

func encodeNode(n Node, dst []byte) {
	boolWord := func(b bool) uint32 {
		if b {
			return 1
		}
		return 0
	}
	binary.LittleEndian.PutUint32(dst[0:4], boolWord(n.IsLoop))
	binary.LittleEndian.PutUint32(dst[4:8], uint32(int32(n.Note.Pitch)))
	binary.LittleEndian.PutUint32(dst[8:12], uint32(int32(n.Note.Octave)))
	binary.LittleEndian.PutUint32(dst[12:16], uint32(n.Note.DurationUnits))
	binary.LittleEndian.PutUint32(dst[16:20], n.Note.DurationSamples)
	binary.LittleEndian.PutUint32(dst[20:24], n.Note.Attack)
	binary.LittleEndian.PutUint32(dst[24:28], n.Note.Keyoff)
	binary.LittleEndian.PutUint32(dst[28:32], n.Note.Release)
	binary.LittleEndian.PutUint32(dst[32:36], uint32(n.Note.Pan))
	binary.LittleEndian.PutUint32(dst[36:40], uint32(int32(n.Note.Wave)))
	binary.LittleEndian.PutUint32(dst[40:44], n.Note.EnvelopeIndex)
	binary.LittleEndian.PutUint32(dst[44:48], uint32(n.RepeatCount))
	binary.LittleEndian.PutUint32(dst[48:52], uint32(int32(n.JumpPosition)))
}

func decodeNode(b []byte) Node {
	return Node{
		IsLoop: binary.LittleEndian.Uint32(b[0:4]) != 0,
		Note: Note{
			Pitch:           lexer.Pitch(int32(binary.LittleEndian.Uint32(b[4:8]))),
			Octave:          int(int32(binary.LittleEndian.Uint32(b[8:12]))),
			DurationUnits:   uint16(binary.LittleEndian.Uint32(b[12:16])),
			DurationSamples: binary.LittleEndian.Uint32(b[16:20]),
			Attack:          binary.LittleEndian.Uint32(b[20:24]),
			Keyoff:          binary.LittleEndian.Uint32(b[24:28]),
			Release:         binary.LittleEndian.Uint32(b[28:32]),
			Pan:             uint8(binary.LittleEndian.Uint32(b[32:36])),
			Wave:            Wave(int32(binary.LittleEndian.Uint32(b[36:40]))),
			EnvelopeIndex:   binary.LittleEndian.Uint32(b[40:44]),
		},
		RepeatCount:  uint16(binary.LittleEndian.Uint32(b[44:48])),
		JumpPosition: int(int32(binary.LittleEndian.Uint32(b[48:52]))),
	}
}

// Track is an ordered node list plus an optional loop point. Length is
// cached lazily by internal/length; see HasLengthCache.
//
// Nodes is the parser's working copy, appended to statement by statement
// while a track is being parsed. Commit writes that copy into the arena's
// RegionTracks -- the relocation-safe storage that is this track's
// compiled object, per §3 -- and replaces Nodes with the decoded result of
// reading it back, so every consumer downstream of Commit (length, render)
// is reading what actually lives in the arena, not the parser's scratch
// slice.
type Track struct {
	Nodes     []Node
	LoopPoint int // node index, or -1 if the track never declares one

	nodesOffset uint32 // region-relative offset into RegionTracks, set by Commit
	committed   bool

	lengthCached bool
	totalSamples uint32
	introSamples uint32
}

// Commit copies t.Nodes into a.RegionTracks and reloads Nodes by decoding
// that block back out, so the track's notes are backed by the arena from
// this point on. Growing the region follows the same
// alloc-then-expand-then-retry idiom internal/lexer uses for its string
// stack. A zero-node track (legal only transiently; parseTrack rejects it
// before Commit runs in practice) commits a zero-length, valid handle.
func (t *Track) Commit(a *arena.Arena) error {
	n := uint32(len(t.Nodes)) * nodeRecordSize
	off, ok := a.Alloc(arena.RegionTracks, n)
	if !ok {
		err := a.Expand(
			a.Cap(arena.RegionInstruments),
			a.Cap(arena.RegionSongs),
			a.Cap(arena.RegionTracks)*2+n,
			a.Cap(arena.RegionStrings),
			a.Cap(arena.RegionStack),
		)
		if err != nil {
			return err
		}
		off, ok = a.Alloc(arena.RegionTracks, n)
		if !ok {
			return errTrackRegionExhausted
		}
	}
	dst := a.Bytes(arena.RegionTracks, off, n)
	for i, node := range t.Nodes {
		encodeNode(node, dst[uint32(i)*nodeRecordSize:])
	}

	decoded := make([]Node, len(t.Nodes))
	for i := range decoded {
		decoded[i] = decodeNode(dst[uint32(i)*nodeRecordSize : uint32(i+1)*nodeRecordSize])
	}
	t.Nodes = decoded
	t.nodesOffset = off
	t.committed = true
	return nil
}

// NodesOffset reports the region-relative byte offset Commit stored this
// track's nodes at, for tests that want to confirm relocation safety by
// re-decoding directly out of the arena after an Expand.
func (t *Track) NodesOffset() uint32 { return t.nodesOffset }

// Committed reports whether Commit has run.
func (t *Track) Committed() bool { return t.committed }

// HasLengthCache reports whether TotalSamples/IntroSamples already hold a
// computed value.
func (t *Track) HasLengthCache() bool { return t.lengthCached }

// CacheLength records the track's total and intro lengths in samples.
func (t *Track) CacheLength(total, intro uint32) {
	t.totalSamples = total
	t.introSamples = intro
	t.lengthCached = true
}

// TotalSamples and IntroSamples return the cached lengths. Callers must
// check HasLengthCache (or call internal/length.Compute) first.
func (t *Track) TotalSamples() uint32 { return t.totalSamples }
func (t *Track) IntroSamples() uint32 { return t.introSamples }

// Song is an ordered list of tracks plus global playback parameters.
type Song struct {
	Tracks []Track

	BPM            uint16 // 6-255
	TimeSignature  uint16 // 6-bit fixed-point units; 4/4 == 0x100
	UseNewEnvelope bool   // set by #ENVELOPE5{...}; rendering does not read it (each envelope's Kind picks its shape)

	// Definitions holds free-form, non-phonic directive text (e.g.
	// #TITLE{...}, #EFFECTn{...}) that doesn't fit the note/track model.
	Definitions map[string]string
}

// Context owns every compiled object produced while parsing one or more
// sources: the shared volume table, the instrument slice, and the song
// slice. Strings referenced by macro/load directives live in the arena's
// stack region.
type Context struct {
	Arena   *arena.Arena
	Volumes volume.Table

	instruments []Instrument
	songs       []Song
}

// NewContext creates an empty compile context backed by a.
func NewContext(a *arena.Arena) *Context {
	return &Context{Arena: a}
}

// AddInstrument stores i and returns a stable handle to it.
func (c *Context) AddInstrument(i Instrument) arena.Handle {
	c.instruments = append(c.instruments, i)
	return arena.Handle{Region: arena.RegionInstruments, Index: uint32(len(c.instruments) - 1)}
}

// Instrument returns a pointer to the instrument h refers to. The pointer
// is only valid until the next AddInstrument call.
func (c *Context) Instrument(h arena.Handle) *Instrument {
	return &c.instruments[h.Index]
}

// AddSong stores s and returns a stable handle to it.
func (c *Context) AddSong(s Song) arena.Handle {
	c.songs = append(c.songs, s)
	return arena.Handle{Region: arena.RegionSongs, Index: uint32(len(c.songs) - 1)}
}

// Song returns a pointer to the song h refers to. The pointer is only
// valid until the next AddSong call.
func (c *Context) Song(h arena.Handle) *Song {
	return &c.songs[h.Index]
}

// SongCount reports how many songs the context holds.
func (c *Context) SongCount() int { return len(c.songs) }
