package core

import (
	"sort"
	"strings"
)

// Tone selects the style used for enhancement and speech.
type Tone string

const (
	ToneFriendly     Tone = "friendly"
	ToneProfessional Tone = "professional"
	ToneCasual       Tone = "casual"
	TonePersuasive   Tone = "persuasive"
	ToneAngry        Tone = "angry"
	ToneExcited      Tone = "excited"
	ToneSarcastic    Tone = "sarcastic"
)

// DefaultTone is used whenever a tone is missing or unknown.
const DefaultTone = ToneFriendly

var knownTones = map[Tone]struct{}{
	ToneFriendly:     {},
	ToneProfessional: {},
	ToneCasual:       {},
	TonePersuasive:   {},
	ToneAngry:        {},
	ToneExcited:      {},
	ToneSarcastic:    {},
}

// ParseTone is case-insensitive. Unknown values map to DefaultTone.
func ParseTone(s string) Tone {
	t := Tone(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := knownTones[t]; ok {
		return t
	}
	return DefaultTone
}

// ToneNames lists every known tone, sorted.
func ToneNames() []string {
	names := make([]string, 0, len(knownTones))
	for t := range knownTones {
		names = append(names, string(t))
	}
	sort.Strings(names)
	return names
}

// Upper is the form the enhancement backend expects.
func (t Tone) Upper() string { return strings.ToUpper(string(t)) }
