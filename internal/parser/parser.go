// Package parser implements the recursive-descent compiler from token
// stream to a compiled song.Song: header, then one track per END-separated
// segment, with inline semantic checks (octave range, duration shape,
// envelope percent-to-sample conversion, loop-point/loop-bracket
// bookkeeping, compass overflow) performed as each statement is consumed,
// matching the single-pass style of the original tokenizer it sits on top
// of.
package parser

import (
	"github.com/cbegin/chipmml-go/internal/arena"
	"github.com/cbegin/chipmml-go/internal/lexer"
	"github.com/cbegin/chipmml-go/internal/song"
	"github.com/cbegin/chipmml-go/internal/syntherr"
	"github.com/cbegin/chipmml-go/internal/volume"
)

const (
	wholeNoteUnits  = 64 // a whole note is 0x40 compass units
	quarterUnits    = wholeNoteUnits / 4
	defaultOctave   = 4
	defaultBPM      = 120
	maxLoopDepth    = 1 // macro expansion may not recurse
)

var durationDenoms = map[uint16]bool{1: true, 2: true, 4: true, 8: true, 16: true, 32: true, 64: true}

// Parser compiles one source string into a song.Song stored in a caller-
// supplied song.Context.
type Parser struct {
	ctx       *song.Context
	synthFreq int

	lex *lexer.Lexer
	cur lexer.Token

	macros     map[string]string
	macroDepth int
}

// New creates a parser that appends its compiled song into ctx, rendering
// sample-domain fields (duration, attack, keyoff, release) for a target
// sample rate of synthFreq Hz.
func New(ctx *song.Context, synthFreq int) *Parser {
	return &Parser{ctx: ctx, synthFreq: synthFreq}
}

// trackState carries the copy-on-write instrument and positional
// bookkeeping threaded through one track's statements.
type trackState struct {
	tr   *song.Track
	inst song.Instrument
	// instDirty is true once a modification statement in this track has
	// copied inst into a fresh context slot (instHandle); later
	// modifications in the same track change inst without copying again.
	instDirty bool
	instHandle arena.Handle

	octave        int
	durationUnits uint16 // default note duration, in compass units
	bpm           uint16
	timeSig       uint16 // overflow check uses timeSig/4, see compass comment below

	compassSum   uint16
	loopPointSet bool
}

// Parse compiles src into a new song.Song appended to the parser's
// context, returning a handle to it.
func (p *Parser) Parse(src string) (arena.Handle, error) {
	cleaned, defs, macros := preprocess(src)
	p.macros = macros

	p.lex = lexer.New(cleaned, p.ctx.Arena)
	if err := p.advance(); err != nil {
		return arena.Handle{}, err
	}

	bpm, timeSig, err := p.parseHeader()
	if err != nil {
		return arena.Handle{}, err
	}

	// There's no dedicated grammar token for the five-point envelope
	// opt-in (see the Open Question on envelope shape in DESIGN.md), so
	// it rides along as a directive: #ENVELOPE5{1}.
	_, useNewEnvelope := defs["ENVELOPE5"]
	s := song.Song{BPM: bpm, TimeSignature: timeSig, UseNewEnvelope: useNewEnvelope, Definitions: defs}

	for {
		ts := p.newTrackState(bpm, timeSig)
		if err := p.parseTrack(ts); err != nil {
			return arena.Handle{}, err
		}
		// Commit moves the track's notes into the arena's RegionTracks --
		// their real, relocation-safe home per §3 -- before the track is
		// handed off; length and render read nodes back out of that
		// committed copy, never the parser's scratch slice.
		if err := ts.tr.Commit(p.ctx.Arena); err != nil {
			return arena.Handle{}, p.errHere(syntherr.KindMem)
		}
		s.Tracks = append(s.Tracks, *ts.tr)

		if p.cur.Kind == lexer.KindEndOfTrack {
			if err := p.advance(); err != nil {
				return arena.Handle{}, err
			}
			if p.cur.Kind == lexer.KindEndOfInput {
				break
			}
			continue
		}
		break
	}

	return p.ctx.AddSong(s), nil
}

func (p *Parser) newTrackState(bpm, timeSig uint16) *trackState {
	constantFull := p.ctx.Volumes.Intern(volume.Envelope{Kind: volume.KindConstant, Start: 0xFF})
	inst := song.DefaultInstrument(constantFull)
	return &trackState{
		tr:            &song.Track{LoopPoint: -1},
		inst:          inst,
		octave:        defaultOctave,
		durationUnits: quarterUnits,
		bpm:           bpm,
		timeSig:       timeSig,
	}
}

func (p *Parser) advance() error {
	tok, err := p.lex.Next()
	p.cur = tok
	if err != nil {
		return p.wrapLexError(err)
	}
	return nil
}

func (p *Parser) wrapLexError(err error) error {
	lexErr, ok := err.(*lexer.Error)
	if !ok {
		return &syntherr.Error{Kind: syntherr.KindInvalidToken, LineContext: p.lex.LineContext()}
	}
	if lexErr.Kind == lexer.ErrEOS {
		return &syntherr.Error{Kind: syntherr.KindEOS, LineContext: p.lex.LineContext()}
	}
	return &syntherr.Error{Kind: syntherr.KindInvalidToken, MaxValue: lexErr.MaxValue, LineContext: p.lex.LineContext()}
}

func (p *Parser) errHere(kind syntherr.Kind) error {
	return &syntherr.Error{Kind: kind, LineContext: p.lex.LineContext()}
}

func (p *Parser) errRange(maxValue int) error {
	return &syntherr.Error{Kind: syntherr.KindValueRange, MaxValue: maxValue, LineContext: p.lex.LineContext()}
}

func (p *Parser) unexpected(expected string) error {
	return &syntherr.Error{Kind: syntherr.KindUnexpectedToken, Expected: expected, LineContext: p.lex.LineContext()}
}

// parseHeader consumes the optional MML keyword, BPM and time signature.
// header := (MML)? (BPM NUMBER)? (KEY NUMBER '/' NUMBER)?
func (p *Parser) parseHeader() (bpm, timeSig uint16, err error) {
	bpm = defaultBPM
	timeSig = numerator4x4

	if p.cur.Kind == lexer.KindMML {
		if err = p.advance(); err != nil {
			return
		}
	}
	if p.cur.Kind == lexer.KindBPM {
		if err = p.advance(); err != nil {
			return
		}
		if p.cur.Kind != lexer.KindNumber {
			err = p.unexpected("NUMBER")
			return
		}
		bpm = p.cur.Number
		if err = p.advance(); err != nil {
			return
		}
	}
	if p.cur.Kind == lexer.KindTimeSignature {
		if err = p.advance(); err != nil {
			return
		}
		if p.cur.Kind != lexer.KindNumber {
			err = p.unexpected("NUMBER")
			return
		}
		num := p.cur.Number
		if err = p.advance(); err != nil {
			return
		}
		if p.cur.Kind != lexer.KindSlash {
			err = p.unexpected("/")
			return
		}
		if err = p.advance(); err != nil {
			return
		}
		if p.cur.Kind != lexer.KindNumber {
			err = p.unexpected("NUMBER")
			return
		}
		den := p.cur.Number
		if den == 0 {
			err = p.errRange(0xFFFF)
			return
		}
		if err = p.advance(); err != nil {
			return
		}
		timeSig = num * (256 / den)
	}
	return
}

// numerator4x4 is the time-signature encoding for the default (and most
// common) 4/4 meter, matching the illustrative 4/4 == 0x100 convention.
const numerator4x4 = 0x100

// parseTrack consumes statements until it reaches ';' or end of input.
// track := (stmt)* (LOOP_POINT (stmt)*)?
func (p *Parser) parseTrack(ts *trackState) error {
	for {
		switch p.cur.Kind {
		case lexer.KindEndOfTrack, lexer.KindEndOfInput:
			goto done
		case lexer.KindRepeat:
			if ts.loopPointSet {
				return p.errHere(syntherr.KindBadLoopPoint)
			}
			ts.loopPointSet = true
			ts.tr.LoopPoint = len(ts.tr.Nodes)
			ts.compassSum = 0
			if err := p.advance(); err != nil {
				return err
			}
		case lexer.KindLoopEnd:
			return p.errHere(syntherr.KindBadLoopEnd)
		default:
			if err := p.parseStmt(ts); err != nil {
				return err
			}
		}
	}
done:
	if len(ts.tr.Nodes) == 0 {
		return p.errHere(syntherr.KindEmptySequence)
	}
	hasNote := false
	for _, n := range ts.tr.Nodes {
		if !n.IsLoop {
			hasNote = true
			break
		}
	}
	if !hasNote {
		return p.errHere(syntherr.KindEmptySequence)
	}
	return nil
}

// parseStmt dispatches one statement, appending to ts.tr.Nodes as needed.
// stmt := note_stmt | mod_stmt | loop_stmt | macro_call
func (p *Parser) parseStmt(ts *trackState) error {
	switch p.cur.Kind {
	case lexer.KindNote:
		return p.parseNoteStmt(ts)
	case lexer.KindLoopStart:
		return p.parseLoopStmt(ts)
	case lexer.KindMacro, lexer.KindLoad:
		return p.parseMacroCall(ts)
	case lexer.KindOctave, lexer.KindIncreaseOctave, lexer.KindDecreaseOctave,
		lexer.KindDefaultDuration, lexer.KindInstrument, lexer.KindWave,
		lexer.KindPanning, lexer.KindAttack, lexer.KindKeyoff, lexer.KindRelease,
		lexer.KindEnvelope, lexer.KindTempo:
		return p.parseModStmt(ts)
	case lexer.KindComment:
		return p.advance()
	default:
		return p.unexpected("statement")
	}
}

func clampU8(v int) uint8 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return uint8(v)
}

func (p *Parser) dirtyInstrument(ts *trackState) {
	if ts.instDirty {
		return
	}
	ts.instHandle = p.ctx.AddInstrument(ts.inst)
	ts.instDirty = true
}

// parseModStmt handles every instrument/track-state mutating token.
func (p *Parser) parseModStmt(ts *trackState) error {
	kind := p.cur.Kind
	if err := p.advance(); err != nil {
		return err
	}
	needNumber := func() (uint16, error) {
		if p.cur.Kind != lexer.KindNumber {
			return 0, p.unexpected("NUMBER")
		}
		v := p.cur.Number
		return v, p.advance()
	}

	switch kind {
	case lexer.KindIncreaseOctave:
		ts.octave++
		if ts.octave > 8 {
			ts.octave = 8
		}
		return nil
	case lexer.KindDecreaseOctave:
		ts.octave--
		if ts.octave < 1 {
			ts.octave = 1
		}
		return nil
	case lexer.KindOctave:
		v, err := needNumber()
		if err != nil {
			return err
		}
		if v < 1 || v > 8 {
			return p.errRange(8)
		}
		ts.octave = int(v)
		return nil
	case lexer.KindDefaultDuration:
		v, err := needNumber()
		if err != nil {
			return err
		}
		if !durationDenoms[v] {
			return p.errRange(64)
		}
		ts.durationUnits = wholeNoteUnits / v
		return nil
	case lexer.KindTempo:
		v, err := needNumber()
		if err != nil {
			return err
		}
		ts.bpm = v
		return nil
	case lexer.KindInstrument:
		v, err := needNumber()
		if err != nil {
			return err
		}
		p.dirtyInstrument(ts)
		ts.inst.Wave = song.Wave(v % 7)
		return nil
	case lexer.KindWave:
		v, err := needNumber()
		if err != nil {
			return err
		}
		p.dirtyInstrument(ts)
		ts.inst.Wave = song.Wave(v % 7)
		return nil
	case lexer.KindPanning:
		v, err := needNumber()
		if err != nil {
			return err
		}
		p.dirtyInstrument(ts)
		ts.inst.Pan = clampU8(int(v))
		return nil
	case lexer.KindAttack:
		v, err := needNumber()
		if err != nil {
			return err
		}
		p.dirtyInstrument(ts)
		ts.inst.AttackPct = clampU8(int(v))
		return nil
	case lexer.KindKeyoff:
		v, err := needNumber()
		if err != nil {
			return err
		}
		p.dirtyInstrument(ts)
		ts.inst.KeyoffPct = clampU8(int(v))
		return nil
	case lexer.KindRelease:
		v, err := needNumber()
		if err != nil {
			return err
		}
		p.dirtyInstrument(ts)
		ts.inst.ReleasePct = clampU8(int(v))
		return nil
	case lexer.KindEnvelope:
		return p.parseEnvelope(ts)
	}
	return p.unexpected("statement")
}

// parseEnvelope handles `v NUMBER (',' NUMBER)*`: one argument selects a
// constant envelope, two a linear START,END ramp, and five the five-point
// shape (PRE_ATTACK, HOLD, DECAY, RELEASE, POST_RELEASE); any other count
// is BAD_PARAM. The five-point shape is used whether or not the song sets
// UseNewEnvelope.
func (p *Parser) parseEnvelope(ts *trackState) error {
	if p.cur.Kind != lexer.KindNumber {
		return p.unexpected("NUMBER")
	}
	args := []uint16{p.cur.Number}
	if err := p.advance(); err != nil {
		return err
	}
	for p.cur.Kind == lexer.KindComma {
		if err := p.advance(); err != nil {
			return err
		}
		if p.cur.Kind != lexer.KindNumber {
			return p.unexpected("NUMBER")
		}
		args = append(args, p.cur.Number)
		if err := p.advance(); err != nil {
			return err
		}
	}

	var env volume.Envelope
	switch len(args) {
	case 1:
		env = volume.Envelope{Kind: volume.KindConstant, Start: uint8(args[0])}
	case 2:
		env = volume.Envelope{Kind: volume.KindLinear, Start: uint8(args[0]), End: uint8(args[1])}
	case 5:
		env = volume.Envelope{
			Kind:        volume.KindFivePoint,
			PreAttack:   uint8(args[0]),
			Hold:        uint8(args[1]),
			Decay:       uint8(args[2]),
			Release:     uint8(args[3]),
			PostRelease: uint8(args[4]),
		}
	default:
		return p.errHere(syntherr.KindBadParam)
	}
	p.dirtyInstrument(ts)
	ts.inst.EnvelopeIndex = p.ctx.Volumes.Intern(env)
	return nil
}

// parseNoteStmt consumes NOTE, its optional explicit duration, dotted
// extensions, and any tied '^' continuations, then emits one compiled
// song.Note.
// note_stmt := NOTE (NUMBER)? (HALF_DURATION)* (NOTE_EXTENSION (NUMBER)? (HALF_DURATION)*)*
func (p *Parser) parseNoteStmt(ts *trackState) error {
	pitch := p.cur.Pitch
	octave := ts.octave
	switch pitch {
	case lexer.PitchCb:
		// Cb is enharmonically B one octave down.
		pitch = lexer.PitchB
		octave--
	case lexer.PitchBs:
		// B# is enharmonically C one octave up.
		pitch = lexer.PitchC
		octave++
	}
	if octave < 1 {
		octave = 1
	}
	if octave > 8 {
		octave = 8
	}

	if err := p.advance(); err != nil {
		return err
	}
	units, err := p.parseDurationRun(ts)
	if err != nil {
		return err
	}

	for p.cur.Kind == lexer.KindNoteExtension {
		if err := p.advance(); err != nil {
			return err
		}
		tied, err := p.parseDurationRun(ts)
		if err != nil {
			return err
		}
		units += tied
	}

	if err := p.addCompass(ts, units); err != nil {
		return err
	}

	durationSamples := p.toSamples(ts, units)
	attack := scalePct(durationSamples, ts.inst.AttackPct)
	keyoff := scalePct(durationSamples, ts.inst.KeyoffPct)
	release := scalePct(durationSamples, ts.inst.ReleasePct)
	if keyoff < attack {
		keyoff = attack
	}
	if release < keyoff {
		release = keyoff
	}
	if release > durationSamples {
		release = durationSamples
	}

	note := song.Note{
		Pitch:           pitch,
		Octave:          octave,
		DurationUnits:   units,
		DurationSamples: durationSamples,
		Attack:          attack,
		Keyoff:          keyoff,
		Release:         release,
		Pan:             ts.inst.Pan,
		Wave:            ts.inst.Wave,
		EnvelopeIndex:   ts.inst.EnvelopeIndex,
	}
	ts.tr.Nodes = append(ts.tr.Nodes, song.Node{Note: note})
	return nil
}

// parseDurationRun consumes an optional explicit denominator followed by
// zero or more dotted extensions, returning the resulting duration in
// compass units. An absent denominator uses the track's current default.
func (p *Parser) parseDurationRun(ts *trackState) (uint16, error) {
	denomUnits := ts.durationUnits
	if p.cur.Kind == lexer.KindNumber {
		v := p.cur.Number
		if !durationDenoms[v] {
			return 0, p.errRange(64)
		}
		denomUnits = wholeNoteUnits / v
		if err := p.advance(); err != nil {
			return 0, err
		}
	}
	units := uint32(denomUnits)
	half := units
	for p.cur.Kind == lexer.KindHalfDuration {
		half /= 2
		units += half
		if err := p.advance(); err != nil {
			return 0, err
		}
	}
	if units > 0xFFFF {
		units = 0xFFFF
	}
	return uint16(units), nil
}

func scalePct(total uint32, pct uint8) uint32 {
	return total * uint32(pct) / 100
}

func (p *Parser) toSamples(ts *trackState, units uint16) uint32 {
	bpm := uint32(ts.bpm)
	if bpm == 0 {
		bpm = 1
	}
	// A quarter note (quarterUnits compass units) lasts 60/BPM seconds.
	return uint32(units) * uint32(p.synthFreq) * 60 / (bpm * quarterUnits)
}

// addCompass enforces the running-sum bar check: a flat run of notes with
// no intervening structural break (loop bracket, loop point, new track)
// must never exceed one bar. Reaching exactly one bar is legal and simply
// leaves the sum there -- it does not grant a fresh bar's worth of
// capacity to whatever note follows, matching the reference "five quarter
// notes in 4/4 overflow on the fifth" behavior.
func (p *Parser) addCompass(ts *trackState, units uint16) error {
	barUnits := ts.timeSig / 4
	if barUnits == 0 {
		return nil
	}
	if uint32(ts.compassSum)+uint32(units) > uint32(barUnits) {
		return p.errHere(syntherr.KindCompassOverflow)
	}
	ts.compassSum += units
	return nil
}

// parseLoopStmt handles a bracketed loop body.
// loop_stmt := LOOP_START stmt+ LOOP_END (NUMBER)?
func (p *Parser) parseLoopStmt(ts *trackState) error {
	start := len(ts.tr.Nodes)
	if err := p.advance(); err != nil {
		return err
	}

	outerSum := ts.compassSum
	ts.compassSum = 0

	count := 0
	for p.cur.Kind != lexer.KindLoopEnd {
		if p.cur.Kind == lexer.KindEndOfInput || p.cur.Kind == lexer.KindEndOfTrack {
			return p.errHere(syntherr.KindBadLoopStart)
		}
		if err := p.parseStmt(ts); err != nil {
			return err
		}
		count++
	}
	if count == 0 {
		return p.errHere(syntherr.KindEmptySequence)
	}
	if err := p.advance(); err != nil {
		return err
	}

	repeat := uint16(2)
	if p.cur.Kind == lexer.KindNumber {
		repeat = p.cur.Number
		if err := p.advance(); err != nil {
			return err
		}
	}
	ts.tr.Nodes = append(ts.tr.Nodes, song.Node{IsLoop: true, JumpPosition: start, RepeatCount: repeat})
	ts.compassSum = outerSum
	return nil
}

// parseMacroCall expands a previously #DEFINE'd macro body in place. LOAD
// and MACRO are accepted as synonyms: the grammar gives both an identical
// shape (token STRING), and the directive preprocessor is the only
// definition mechanism, so there is nothing left to distinguish them by.
// macro_call := LOAD STRING | MACRO STRING
func (p *Parser) parseMacroCall(ts *trackState) error {
	if err := p.advance(); err != nil {
		return err
	}
	if p.cur.Kind != lexer.KindString {
		return p.unexpected("STRING")
	}
	name := string(p.ctx.Arena.Bytes(arena.RegionStack, p.cur.StringOffset, p.cur.StringLen))
	if err := p.advance(); err != nil {
		return err
	}

	body, ok := p.macros[name]
	if !ok {
		return p.errHere(syntherr.KindInvalidIndex)
	}
	if p.macroDepth >= maxLoopDepth {
		return p.errHere(syntherr.KindBadParam)
	}

	savedLex, savedCur := p.lex, p.cur
	p.lex = lexer.New(body, p.ctx.Arena)
	p.macroDepth++
	if err := p.advance(); err != nil {
		p.macroDepth--
		p.lex, p.cur = savedLex, savedCur
		return err
	}

	var err error
	for p.cur.Kind != lexer.KindEndOfInput {
		if err = p.parseStmt(ts); err != nil {
			break
		}
	}

	p.macroDepth--
	p.lex, p.cur = savedLex, savedCur
	return err
}
