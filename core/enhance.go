package core

import (
	"context"
	"fmt"
)

// Enhancement is the result of polishing one finalized sentence.
type Enhancement struct {
	Original         string `json:"original"`
	GrammarCorrected string `json:"grammar_corrected"`
	ToneAdjusted     string `json:"tone_adjusted"`
	Tone             Tone   `json:"tone"`
	// Fallback is set when the enhancer failed and the original text was used.
	Fallback bool   `json:"fallback,omitempty"`
	Reason   string `json:"reason,omitempty"`
}

// FallbackEnhancement uses the raw sentence for both corrected and enhanced text.
func FallbackEnhancement(original string, tone Tone, err error) Enhancement {
	reason := ""
	if err != nil {
		reason = err.Error()
	}
	return Enhancement{
		Original:         original,
		GrammarCorrected: original,
		ToneAdjusted:     original,
		Tone:             tone,
		Fallback:         true,
		Reason:           reason,
	}
}

// TextEnhancer turns a raw sentence into grammar-corrected and tone-adjusted text.
type TextEnhancer interface {
	Enhance(ctx context.Context, text string, tone Tone) (Enhancement, error)
}

// EnhancerSystemPrompt instructs LLM-backed enhancers.
const EnhancerSystemPrompt = `You are a helpful language assistant. Your job is to improve the clarity, grammar, and tone of short texts.

Instructions:
- First, correct any spelling or grammatical issues.
- Then, if requested, rewrite the sentence using the specified tone.
- Do not add or remove meaning from the original text.
- Only respond with the corrected or rewritten sentence, no explanations.`

var tonePrompts = map[Tone]string{
	ToneFriendly:     "Make this sound extremely friendly and approachable: ",
	ToneProfessional: "Make this sound formal and professional for business communication: ",
	ToneCasual:       "Make this sound casual and conversational: ",
	TonePersuasive:   "Make this more persuasive and compelling: ",
	ToneAngry:        "Make this sound angry and frustrated: ",
	ToneExcited:      "Make this sound excited and enthusiastic: ",
	ToneSarcastic:    "Make this sound sarcastic and ironic: ",
}

// TonePrompt returns the user prompt asking an LLM to restyle text.
func TonePrompt(tone Tone, text string) string {
	instruction, ok := tonePrompts[tone]
	if !ok {
		instruction = tonePrompts[DefaultTone]
	}
	return fmt.Sprintf("%s%s", instruction, text)
}
