// Package synth is the public entry point: it wires the lexer, parser,
// length computer, renderer and mixer together behind a Compile/Render
// pair, and re-exports the closed error catalog as synth.Kind/synth.Error
// so callers never need to import internal/syntherr directly.
package synth

import (
	"github.com/cbegin/chipmml-go/internal/arena"
	"github.com/cbegin/chipmml-go/internal/length"
	"github.com/cbegin/chipmml-go/internal/mixer"
	"github.com/cbegin/chipmml-go/internal/parser"
	"github.com/cbegin/chipmml-go/internal/render"
	"github.com/cbegin/chipmml-go/internal/song"
	"github.com/cbegin/chipmml-go/internal/syntherr"
)

// Kind and Error are aliases for internal/syntherr's types: every
// Compile/Render error is one of these under the hood, but callers of
// this package see them at this import path only.
type (
	Kind  = syntherr.Kind
	Error = syntherr.Error
)

const (
	KindOK                     = syntherr.KindOK
	KindBadParam               = syntherr.KindBadParam
	KindMem                    = syntherr.KindMem
	KindOpenFile               = syntherr.KindOpenFile
	KindInvalidToken           = syntherr.KindInvalidToken
	KindEOF                    = syntherr.KindEOF
	KindEOS                    = syntherr.KindEOS
	KindUnexpectedToken        = syntherr.KindUnexpectedToken
	KindValueRange             = syntherr.KindValueRange
	KindEmptySequence          = syntherr.KindEmptySequence
	KindCompassOverflow        = syntherr.KindCompassOverflow
	KindBadLoopStart           = syntherr.KindBadLoopStart
	KindBadLoopEnd             = syntherr.KindBadLoopEnd
	KindBadLoopPoint           = syntherr.KindBadLoopPoint
	KindInvalidIndex           = syntherr.KindInvalidIndex
	KindComplexLoopPoint       = syntherr.KindComplexLoopPoint
	KindNotLoopable            = syntherr.KindNotLoopable
	KindFunctionNotImplemented = syntherr.KindFunctionNotImplemented
)

// defaultRegionCapacities seeds the arena generously enough that a typical
// song compiles without triggering a single Expand; Expand still handles
// anything larger transparently. Every value is a byte length.
// RegionTracks holds every track's committed note list
// (song.Track.Commit) at 52 bytes/node, so its 16384 bytes fit 315 nodes.
const (
	defaultInstruments = 16
	defaultSongs       = 4
	defaultTracks      = 16384
	defaultStrings     = 4096
	defaultStack       = 4096
)

// Context owns one compiled arena plus every song parsed into it. A
// Context is not safe for concurrent Compile/Render calls; callers
// rendering multiple songs concurrently should use one Context per
// goroutine.
type Context struct {
	songs     *song.Context
	synthFreq int
}

// NewContext creates a Context that renders at synthFreq samples per
// second (e.g. 44100).
func NewContext(synthFreq int) *Context {
	a := arena.New(defaultInstruments, defaultSongs, defaultTracks, defaultStrings, defaultStack)
	return &Context{songs: song.NewContext(a), synthFreq: synthFreq}
}

// Compile parses src and appends the resulting song to the context,
// returning a handle to it for later Render calls.
func (c *Context) Compile(src string) (arena.Handle, error) {
	p := parser.New(c.songs, c.synthFreq)
	return p.Parse(src)
}

// Render synthesizes every track of the song h refers to, mixes them into
// a single stereo buffer, and packs the result into mode's PCM encoding.
// Each track gets its own PRNG seeded from its index so that rendering is
// deterministic across calls for the same song.
func (c *Context) Render(h arena.Handle, mode mixer.Mode) []byte {
	s := c.songs.Song(h)
	tracks := make([][]render.Sample, len(s.Tracks))
	for i := range s.Tracks {
		prng := render.NewPRNG(uint32(i) + 1)
		tracks[i] = render.Track(&s.Tracks[i], &c.songs.Volumes, c.synthFreq, prng)
	}
	mixed := mixer.Mix(tracks)
	return mixer.PackSong(mode, mixed)
}

// CanSongLoop reports whether the song h refers to can be combined into
// a single synchronized loop across all of its tracks (§4.5): KindOK if
// every track declares a loop point and their intro lengths agree,
// KindNotLoopable if any track never declares one, and
// KindComplexLoopPoint if they declare loop points at incompatible
// intro lengths.
func (c *Context) CanSongLoop(h arena.Handle) Kind {
	return length.CanLoop(c.songs.Song(h))
}

// Song returns a pointer to the compiled song h refers to, letting a
// caller inspect BPM, track count or Definitions (e.g. #EFFECTn{...})
// before rendering.
func (c *Context) Song(h arena.Handle) *song.Song {
	return c.songs.Song(h)
}
