package prompts

import (
	"fmt"
	"strings"
)

// FallbackReply is spoken when the language model is unavailable. It stays
// in character so a stage failure never ends the conversation.
const FallbackReply = "Ho ho ho! Santa is busy feeding the reindeer right now. Ask me again in a moment!"

// Reprompt is returned when the uploaded audio produced no usable transcript.
const Reprompt = "Ho ho ho! Santa didn't quite catch that. Could you say it again?"

// Santa builds the persona system prompt for a child of the given name and age.
// Tone shifts by age band: younger children get simpler, more exuberant
// language, older children warmer and more nuanced replies.
func Santa(name string, age int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are Santa Claus on a phone call with %s, who is %d years old. ", name, age)
	b.WriteString("Always reply warmly, joyfully, and kindly. Never break character. ")
	b.WriteString("Keep replies short enough to speak aloud in under twenty seconds. ")

	switch {
	case age <= 6:
		b.WriteString("Use very simple, short, magical sentences full of excitement.")
	case age <= 10:
		b.WriteString("Be playful, a little silly, and add small details about the North Pole.")
	default:
		b.WriteString("Be warm, wise, and full of festive cheer without being babyish.")
	}

	return b.String()
}

// Greeting builds the text Santa speaks when the call connects. The spoken
// name should be the phonetic spelling when the profile has one.
func Greeting(spokenName string) string {
	if spokenName == "" {
		return "Ho ho ho! Hello there! It's Santa Claus calling from the North Pole!"
	}
	return fmt.Sprintf("Ho ho ho! Hello %s! It's Santa Claus calling all the way from the North Pole!", spokenName)
}
