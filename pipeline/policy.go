package pipeline

import (
	"strings"

	"github.com/mrsingh-rishi/voice-translate/model"
)

// SynthesisPolicy selects which translation results get synthesized audio.
type SynthesisPolicy string

const (
	// SynthesizeAll requests audio for every result that differs from the
	// source language.
	SynthesizeAll SynthesisPolicy = "all"
	// SynthesizePrimary requests audio only for the first such result.
	SynthesizePrimary SynthesisPolicy = "primary"
	// SynthesizeEvery requests audio for every result, source language
	// included.
	SynthesizeEvery SynthesisPolicy = "every"
	SynthesizeNone  SynthesisPolicy = "none"
)

// ParsePolicy parses a policy name. Blank selects def.
func ParsePolicy(value string, def SynthesisPolicy) (SynthesisPolicy, error) {
	switch p := SynthesisPolicy(strings.ToLower(strings.TrimSpace(value))); p {
	case "":
		return def, nil
	case SynthesizeAll, SynthesizePrimary, SynthesizeEvery, SynthesizeNone:
		return p, nil
	default:
		return "", model.Invalid("unknown synthesis policy %q", value)
	}
}

// wantsAudio reports, per target in order, whether audio is requested.
func (p SynthesisPolicy) wantsAudio(source string, targets []string) []bool {
	want := make([]bool, len(targets))
	if p == SynthesizeNone {
		return want
	}
	for i, target := range targets {
		if p != SynthesizeEvery && model.SameLanguage(target, source) {
			continue
		}
		want[i] = true
		if p == SynthesizePrimary {
			break
		}
	}
	return want
}

func (p SynthesisPolicy) any(source string, targets []string) bool {
	for _, w := range p.wantsAudio(source, targets) {
		if w {
			return true
		}
	}
	return false
}
