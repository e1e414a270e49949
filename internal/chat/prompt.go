package chat

import (
	"fmt"
	"strings"
)

// promptTemplate frames every model call. The retrieved portfolio
// context is the only source of truth the model may draw on; anything
// outside it gets redirected to the contact email.
const promptTemplate = `You are %s, speaking about your own work on your personal portfolio website.

Answer the visitor's question in the first person, as yourself. Base your answer only on the portfolio information below. Be concise, friendly, and specific.

If the portfolio information does not cover the question, say so briefly and invite the visitor to reach out directly at %s instead of guessing.

Portfolio information:
%s

Visitor's question: %s`

// BuildPrompt assembles the model prompt from the owner identity, the
// selected portfolio context, and the visitor's question. The question
// is trimmed; the context is inserted verbatim.
func BuildPrompt(ownerName, contactEmail, context, question string) string {
	return fmt.Sprintf(promptTemplate, ownerName, contactEmail, context, strings.TrimSpace(question))
}
