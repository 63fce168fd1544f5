// Package length computes a track's total and intro lengths in samples by
// walking its node list in reverse, exactly as the renderer later renders
// it -- so a loop node can resolve its jump_position and fold the
// already-summed body length before the outer walk continues past it.
package length

import (
	"github.com/cbegin/chipmml-go/internal/song"
	"github.com/cbegin/chipmml-go/internal/syntherr"
)

// Compute returns tr's total length in samples and its intro length (the
// prefix preceding LoopPoint, or equal to total when LoopPoint is -1).
// Both are cached on tr; a second call is O(1).
func Compute(tr *song.Track) (total, intro uint32) {
	if tr.HasLengthCache() {
		return tr.TotalSamples(), tr.IntroSamples()
	}
	total = walk(tr, 0, len(tr.Nodes))
	if tr.LoopPoint >= 0 {
		intro = walk(tr, 0, tr.LoopPoint)
	} else {
		intro = total
	}
	tr.CacheLength(total, intro)
	return total, intro
}

// CanLoop reports whether s's tracks can be combined into a single
// synchronized loop (§4.5): every track must declare a loop point, and
// all of their intro lengths (the prefix preceding the loop point) must
// agree exactly, so that restarting every track's body at the same
// rendered sample keeps them in phase. A song with no looping track at
// all is reported NOT_LOOPABLE rather than OK, since "loop" is then a
// vacuous no-op rather than an actual guarantee the caller can rely on.
func CanLoop(s *song.Song) syntherr.Kind {
	if len(s.Tracks) == 0 {
		return syntherr.KindNotLoopable
	}
	var introRef uint32
	for i := range s.Tracks {
		tr := &s.Tracks[i]
		if tr.LoopPoint < 0 {
			return syntherr.KindNotLoopable
		}
		_, intro := Compute(tr)
		if i == 0 {
			introRef = intro
			continue
		}
		if intro != introRef {
			return syntherr.KindComplexLoopPoint
		}
	}
	return syntherr.KindOK
}

// walk sums the sample length of nodes in [lo, hi), scanning from hi-1
// down to lo. A loop node folds in its repeated body -- found by
// recursing over [JumpPosition, own index) -- multiplied by RepeatCount,
// then the scan resumes before JumpPosition, skipping the body nodes
// already accounted for.
func walk(tr *song.Track, lo, hi int) uint32 {
	var sum uint32
	i := hi - 1
	for i >= lo {
		n := tr.Nodes[i]
		if !n.IsLoop {
			sum += n.Note.DurationSamples
			i--
			continue
		}
		bodyLen := walk(tr, n.JumpPosition, i)
		repeat := uint32(n.RepeatCount)
		if repeat == 0 {
			// Infinite repeat, only legal as a track's final node: the
			// length computer reports a single expansion since there is
			// no finite total to report, and the renderer's caller is
			// expected to loop playback at the device layer instead.
			repeat = 1
		}
		sum += bodyLen * repeat
		i = n.JumpPosition - 1
	}
	return sum
}
