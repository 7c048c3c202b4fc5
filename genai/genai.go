// Package genai wraps the generative backend the chat endpoint answers with.
// The moderation gate never depends on this package; generation happens only
// after a message is admitted.
package genai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ihub-edu/hallpass/knowledge"
)

// Completer produces a conversational answer for an admitted chat message.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// ErrSafetyBlocked means the backend refused the prompt on its own safety
// filters. Callers substitute SafetyFallbackResponse rather than surfacing
// the error.
var ErrSafetyBlocked = errors.New("response blocked by backend safety filters")

// SafetyFallbackResponse is shown when the backend's safety filters refuse a
// prompt that passed the gate.
const SafetyFallbackResponse = "I apologize, but I can't provide a response to that request. Please ask me about school resources, tools, or educational assistance."

const systemPrompt = `You are a helpful assistant for students at a school. You help them find tools, locations, and information.`

// BuildPrompt assembles the full prompt for one chat turn: system
// instructions, the retrieved resource context, and the student's question.
func BuildPrompt(userMessage string, tools []knowledge.Result) string {
	var b strings.Builder
	b.WriteString(systemPrompt)
	b.WriteString("\n\n")

	if len(tools) > 0 {
		b.WriteString("Here are some relevant tools/resources I found:\n\n")
		for _, tool := range tools {
			fmt.Fprintf(&b, "**%s** (%s)\n", tool.Name, tool.Category)
			fmt.Fprintf(&b, "Location: %s\n", tool.Location)
			fmt.Fprintf(&b, "Description: %s\n", tool.Description)
			fmt.Fprintf(&b, "Availability: %s\n", tool.Availability)
			fmt.Fprintf(&b, "Training Required: %s\n", yesNo(tool.TrainingRequired))
			fmt.Fprintf(&b, "Contact: %s\n\n", tool.Contact)
		}
	}

	fmt.Fprintf(&b, "User question: %s\n\n", userMessage)
	b.WriteString("Please provide a helpful response based on the information above. If you found relevant tools, mention them specifically. Be conversational and helpful.")
	return b.String()
}

func yesNo(v bool) string {
	if v {
		return "Yes"
	}
	return "No"
}

// FallbackResponse is the canned answer used when no backend is configured
// or the backend call failed: it lists whatever the resource search found.
func FallbackResponse(tools []knowledge.Result) string {
	if len(tools) == 0 {
		return "I couldn't find any specific tools matching your request. You might want to contact the main office at ext. 0000 for more information, or try rephrasing your question with different keywords."
	}

	var b strings.Builder
	b.WriteString("I found some relevant resources for you:\n\n")
	for i, tool := range tools {
		fmt.Fprintf(&b, "%d. **%s** - %s\n", i+1, tool.Name, tool.Description)
		fmt.Fprintf(&b, "   Location: %s\n", tool.Location)
		fmt.Fprintf(&b, "   %s\n", tool.Availability)
		if tool.TrainingRequired {
			fmt.Fprintf(&b, "   Training required - Contact: %s\n", tool.Contact)
		}
		b.WriteString("\n")
	}
	b.WriteString("Would you like more specific information about any of these resources?")
	return b.String()
}
