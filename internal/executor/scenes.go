package executor

import (
	"math"
	"strings"
	"unicode"

	"github.com/luzdodia/api/internal/model"
)

const (
	// WordsPerMinute is the narration pace used to time scenes.
	WordsPerMinute = 130
	// SceneWords is the target word count of a locally split scene.
	SceneWords  = 28
	minSceneSec = 2.0
)

// SplitScript breaks a script into scene narrations at paragraph and
// sentence boundaries, grouping sentences up to about SceneWords words.
func SplitScript(script string) []string {
	var scenes []string
	for _, para := range strings.Split(strings.ReplaceAll(script, "\r\n", "\n"), "\n\n") {
		para = strings.Join(strings.Fields(para), " ")
		if para == "" {
			continue
		}

		var current []string
		words := 0
		for _, sentence := range sentences(para) {
			n := len(strings.Fields(sentence))
			if words > 0 && words+n > SceneWords {
				scenes = append(scenes, strings.Join(current, " "))
				current, words = nil, 0
			}
			current = append(current, sentence)
			words += n
		}
		if len(current) > 0 {
			scenes = append(scenes, strings.Join(current, " "))
		}
	}
	return scenes
}

func sentences(para string) []string {
	var out []string
	start := 0
	runes := []rune(para)
	for i, r := range runes {
		if r != '.' && r != '!' && r != '?' {
			continue
		}
		if i+1 < len(runes) && !unicode.IsSpace(runes[i+1]) {
			continue
		}
		if s := strings.TrimSpace(string(runes[start : i+1])); s != "" {
			out = append(out, s)
		}
		start = i + 1
	}
	if s := strings.TrimSpace(string(runes[start:])); s != "" {
		out = append(out, s)
	}
	return out
}

// ScenesFromScript splits and times a script.
func ScenesFromScript(script string, targetSec int) []model.Scene {
	parts := SplitScript(script)
	scenes := make([]model.Scene, len(parts))
	for i, p := range parts {
		scenes[i] = model.Scene{Index: i, Narration: p}
	}
	TimeScenes(scenes, nil, targetSec)
	return scenes
}

// TimeScenes assigns Start/End in seconds. A positive durations[i] is used
// as is; otherwise the duration follows the narration word count at
// WordsPerMinute. When targetSec is positive the timeline is scaled to it.
func TimeScenes(scenes []model.Scene, durations []float64, targetSec int) {
	if len(scenes) == 0 {
		return
	}

	lengths := make([]float64, len(scenes))
	var total float64
	for i, sc := range scenes {
		d := 0.0
		if i < len(durations) {
			d = durations[i]
		}
		if d <= 0 {
			d = float64(len(strings.Fields(sc.Narration))) * 60 / WordsPerMinute
		}
		if d < minSceneSec {
			d = minSceneSec
		}
		lengths[i] = d
		total += d
	}

	scale := 1.0
	if targetSec > 0 {
		scale = float64(targetSec) / total
	}

	var t float64
	for i := range scenes {
		scenes[i].Index = i
		scenes[i].Start = round2(t)
		t += lengths[i] * scale
		scenes[i].End = round2(t)
	}
	if targetSec > 0 {
		scenes[len(scenes)-1].End = float64(targetSec)
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
