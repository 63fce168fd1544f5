package effects

import (
	"strconv"
	"strings"
)

// BuildChain parses up to eight #EFFECTn{type param1,param2,...} song
// directives (n in 0..7) out of defs and assembles them into a Chain in
// directive order. bpm is the song's tempo, used only by a bare
// "{delay}" directive (no parameters) to sync its echo to the song's
// own beat instead of a fixed millisecond default. Returns nil if no
// #EFFECTn directive named a recognized effect type, so callers can skip
// the post-mix pass entirely.
func BuildChain(defs map[string]string, sampleRate int, bpm uint16) *Chain {
	chain := NewChain()
	added := false
	for i := 0; i < 8; i++ {
		raw, ok := defs["EFFECT"+strconv.Itoa(i)]
		if !ok {
			continue
		}
		raw = strings.TrimSpace(raw)
		raw = strings.TrimPrefix(raw, "{")
		raw = strings.TrimSuffix(raw, "}")
		raw = strings.TrimSpace(raw)

		parts := strings.SplitN(raw, " ", 2)
		effectType := strings.ToLower(strings.TrimSpace(parts[0]))
		var params []float64
		if len(parts) > 1 {
			for _, p := range strings.Split(parts[1], ",") {
				p = strings.TrimSpace(p)
				if v, err := strconv.ParseFloat(p, 64); err == nil {
					params = append(params, v)
				}
			}
		}
		if eff := createEffect(effectType, params, sampleRate, bpm); eff != nil {
			chain.Add(eff)
			added = true
		}
	}
	if !added {
		return nil
	}
	return chain
}

func createEffect(effectType string, params []float64, sampleRate int, bpm uint16) Effector {
	getParam := func(idx int, def float64) float64 {
		if idx < len(params) {
			return params[idx]
		}
		return def
	}
	switch effectType {
	case "delay":
		if len(params) == 0 {
			return NewDelayForTempo(sampleRate, bpm, 8, 0.4, 0.2, 0.3)
		}
		return NewDelay(sampleRate,
			getParam(0, 250),
			float32(getParam(1, 0.4)),
			float32(getParam(2, 0.2)),
			float32(getParam(3, 0.3)),
		)
	case "reverb":
		return NewReverb(sampleRate,
			float32(getParam(0, 0.5)),
			float32(getParam(1, 0.7)),
			float32(getParam(2, 0.25)),
		)
	case "chorus":
		return NewChorus(sampleRate,
			float32(getParam(0, 15)),
			float32(getParam(1, 0.3)),
			float32(getParam(2, 3)),
			float32(getParam(3, 1.5)),
			float32(getParam(4, 0.4)),
		)
	case "dist", "distortion":
		return NewDistortion(sampleRate,
			float32(getParam(0, 4)),
			float32(getParam(1, 0.5)),
			float32(getParam(2, 8000)),
		)
	case "eq":
		return NewEQ3Band(sampleRate,
			float32(getParam(0, 1.0)),
			float32(getParam(1, 1.0)),
			float32(getParam(2, 1.0)),
			float32(getParam(3, 300)),
			float32(getParam(4, 3000)),
		)
	case "eq5":
		return NewEQ5Band(sampleRate)
	case "comp", "compressor":
		return NewCompressor(sampleRate,
			float32(getParam(0, -20)),
			float32(getParam(1, 4)),
			float32(getParam(2, 5)),
			float32(getParam(3, 100)),
			float32(getParam(4, 6)),
		)
	}
	return nil
}
