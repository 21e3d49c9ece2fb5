package personas

import "fmt"

const topicSuffix = "\n\nYou are participating in a debate about: '%s'. Stay in character and provide thoughtful, engaging arguments from your unique perspective."

// Instructions builds the system prompt of a persona for a debate. The topic
// suffix is appended to every template so each persona is topic-aware.
func Instructions(definition Definition, topic string) string {
	return definition.PromptTemplate + fmt.Sprintf(topicSuffix, topic)
}

// IntroductionInstructions is the one-shot instruction used for the
// introduction phase.
func IntroductionInstructions(name, topic string) string {
	return fmt.Sprintf("Introduce yourself as %s and briefly state your perspective on the debate topic: '%s'.", name, topic)
}
