// Command mmlsynth compiles an MML source file into PCM audio: a
// recursive-descent parser turns note/track/song statements into compiled
// song objects, a renderer and mixer turn those into PCM bytes, and this
// binary's job is just flag parsing, I/O and wiring, the same division of
// labor as the teacher's cmd/play_mml.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/cbegin/chipmml-go/internal/audio"
	"github.com/cbegin/chipmml-go/internal/effects"
	"github.com/cbegin/chipmml-go/internal/mixer"
	"github.com/cbegin/chipmml-go/internal/synth"
)

const defaultMML = "MML B120 K4/4 l8 c d e f g a b o5 c;"

func main() {
	var (
		mmlPath   = flag.String("file", "", "path to an MML file")
		mmlInline = flag.String("mml", "", "inline MML string")
		rate      = flag.Int("rate", 44100, "synth frequency in Hz")
		modeName  = flag.String("mode", "2ch16signed", "PCM mode: 1ch8unsigned|1ch8signed|1ch16unsigned|1ch16signed|2ch8unsigned|2ch8signed|2ch16unsigned|2ch16signed")
		outPath   = flag.String("out", "", "write a RIFF/WAVE file here (omit to skip)")
		play      = flag.Bool("play", false, "play the rendered buffer")
		useFx     = flag.Bool("effects", false, "honor #EFFECTn{...} directives")
	)
	flag.Parse()

	mmlText, err := resolveMMLInput(*mmlPath, *mmlInline)
	if err != nil {
		log.Fatal(err)
	}
	mode, err := parseMode(*modeName)
	if err != nil {
		log.Fatal(err)
	}

	ctx := synth.NewContext(*rate)
	h, err := ctx.Compile(mmlText)
	if err != nil {
		reportCompileError(err)
		os.Exit(1)
	}

	pcm := ctx.Render(h, mode)

	if *useFx {
		s := ctx.Song(h)
		if chain := effects.BuildChain(s.Definitions, *rate, s.BPM); chain != nil {
			pcm = chain.ProcessPCM(mode, pcm)
		}
	}

	if *outPath != "" {
		wav := mixer.EncodeWAV(mode, pcm, *rate)
		if err := os.WriteFile(*outPath, wav, 0o644); err != nil {
			log.Fatalf("writing %s: %v", *outPath, err)
		}
		fmt.Printf("wrote %s (%d bytes PCM)\n", *outPath, len(pcm))
	}

	if *play {
		source := audio.NewPCMSource(mode, pcm)
		pl, err := audio.NewPlayer(*rate, source)
		if err != nil {
			log.Fatal(err)
		}
		pl.Play()
		for pl.IsPlaying() {
			time.Sleep(50 * time.Millisecond)
		}
		pl.Stop()
	}
}

func resolveMMLInput(path, inline string) (string, error) {
	if strings.TrimSpace(inline) != "" {
		return inline, nil
	}
	if strings.TrimSpace(path) != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return "", err
		}
		return string(data), nil
	}
	return defaultMML, nil
}

func parseMode(name string) (mixer.Mode, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "1ch8unsigned":
		return mixer.Mono8Unsigned, nil
	case "1ch8signed":
		return mixer.Mono8Signed, nil
	case "1ch16unsigned":
		return mixer.Mono16Unsigned, nil
	case "1ch16signed":
		return mixer.Mono16Signed, nil
	case "2ch8unsigned":
		return mixer.Stereo8Unsigned, nil
	case "2ch8signed":
		return mixer.Stereo8Signed, nil
	case "2ch16unsigned":
		return mixer.Stereo16Unsigned, nil
	case "2ch16signed":
		return mixer.Stereo16Signed, nil
	default:
		return 0, fmt.Errorf("invalid -mode %q", name)
	}
}

func reportCompileError(err error) {
	if se, ok := err.(*synth.Error); ok {
		fmt.Fprintf(os.Stderr, "%s: %s\n", se.Kind, se.Error())
		return
	}
	fmt.Fprintln(os.Stderr, err)
}
