// Package volume implements the deduplicated amplitude-envelope table: a
// dense, append-only array of envelope records shared by every note that
// asks for the same shape, looked up by equality rather than by identity.
package volume

// Kind distinguishes the three envelope shapes a table entry can hold.
type Kind int

const (
	KindConstant Kind = iota
	KindLinear
	KindFivePoint
)

// Envelope is one entry of the table. Start/End are used by Constant and
// Linear; PreAttack, Hold, Decay, Release and PostRelease are used by
// FivePoint. canonicalize zeroes the fields Constant and Linear entries do
// not use, so comparison ignores those; a FivePoint entry is compared as given.
type Envelope struct {
	Kind Kind

	Start uint8
	End   uint8

	PreAttack   uint8
	Hold        uint8
	Decay       uint8
	Release     uint8
	PostRelease uint8
}

// canonicalize forces constant entries to compare equal regardless of what
// their unused End field holds, per spec: "constants canonicalize as
// start==end; linear stays linear even when start==end". A linear entry
// with start==end is deliberately NOT folded into a constant -- that
// would break the intentionally conservative dedup rule.
func canonicalize(e Envelope) Envelope {
	if e.Kind == KindConstant {
		e.End = e.Start
		e.PreAttack, e.Hold, e.Decay, e.Release, e.PostRelease = 0, 0, 0, 0, 0
	}
	if e.Kind == KindLinear {
		e.PreAttack, e.Hold, e.Decay, e.Release, e.PostRelease = 0, 0, 0, 0, 0
	}
	return e
}

// Table is a dense, never-compacted array of envelopes. Index stability is
// an invariant: once assigned, an index is never reused for a different
// entry and never shifts.
type Table struct {
	entries []Envelope
}

// Intern returns e's index in the table, appending a new entry only if no
// equal entry (after canonicalization) already exists.
func (t *Table) Intern(e Envelope) uint32 {
	canon := canonicalize(e)
	for i, existing := range t.entries {
		if existing == canon {
			return uint32(i)
		}
	}
	t.entries = append(t.entries, canon)
	return uint32(len(t.entries) - 1)
}

// Len reports how many distinct envelopes have been interned.
func (t *Table) Len() int { return len(t.entries) }

// Get returns the envelope stored at idx.
func (t *Table) Get(idx uint32) Envelope { return t.entries[idx] }

func lerp(from, to uint8, num, den uint32) uint8 {
	if den == 0 {
		return to
	}
	delta := int32(to) - int32(from)
	return uint8(int32(from) + (delta*int32(num))/int32(den))
}

// Amplitude evaluates the envelope at idx for fractional note position p
// in [0,1024). attack/keyoff/release are the note's lifecycle points
// expressed in the same [0,1024) fractional space as p; they only matter
// for FivePoint entries, where they mark the three interior breakpoints
// (the outer two are p=0 and p=1024).
func (t *Table) Amplitude(idx uint32, p, attack, keyoff, release uint32) uint8 {
	e := t.entries[idx]
	switch e.Kind {
	case KindConstant:
		return e.Start
	case KindLinear:
		return lerp(e.Start, e.End, p, 1024)
	case KindFivePoint:
		switch {
		case p < attack:
			return lerp(e.PreAttack, e.Hold, p, attack)
		case p < keyoff:
			return lerp(e.Hold, e.Decay, p-attack, keyoff-attack)
		case p < release:
			return lerp(e.Decay, e.Release, p-keyoff, release-keyoff)
		default:
			return lerp(e.Release, e.PostRelease, p-release, 1024-release)
		}
	default:
		return 0
	}
}
