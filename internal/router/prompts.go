package router

import (
	"fmt"
	"strings"
)

// maxDocumentExcerpt bounds the document text included in prompts.
const maxDocumentExcerpt = 3500

const baseSystemPrompt = `You are Vocora, a friendly voice assistant.

Your responses are converted to speech, so write naturally as you would
speak: short sentences, clear transitions, a conversational tone. Use
contractions. Reference remembered context naturally ("You mentioned...").
Never prefix your response with your own name. Never use robotic phrases
like "As an AI".`

// classInstruction returns the reply-shaping instruction for a class.
func classInstruction(class Class) string {
	switch class {
	case ClassGreeting:
		return "Respond warmly and naturally in 20-40 words (2-3 sentences). Be direct and friendly."
	case ClassSimple:
		return "Answer clearly and naturally in 40-70 words (3-4 sentences)."
	case ClassComplex:
		return "Provide a thorough, well-structured response in 120-180 words (8-12 sentences). Organize information logically and vary your sentence starters."
	case ClassDocument:
		return "Provide a clear, structured response (80-120 words) with specific facts and details from the document above. Be natural and conversational."
	default:
		return "Provide a helpful, natural response in 70-110 words (5-7 sentences)."
	}
}

// systemPrompt assembles the system instruction for a class.
func systemPrompt(class Class, hasDocument bool) string {
	sys := baseSystemPrompt
	if hasDocument {
		sys += "\n\nA document has been provided. Extract key facts and reference it naturally."
	}
	if class == ClassComplex {
		sys += "\n\nComplex query: give a thorough, well-structured explanation with clear transitions."
	}
	return sys
}

// buildPrompt assembles the bounded user prompt for one request.
func buildPrompt(class Class, in Input) string {
	var b strings.Builder

	if ctx := strings.TrimSpace(in.MemoryContext); ctx != "" {
		fmt.Fprintf(&b, "Context:\n%s\n\n", ctx)
	}

	if class == ClassDocument && in.DocumentText != "" {
		excerpt := in.DocumentText
		if len(excerpt) > maxDocumentExcerpt {
			excerpt = excerpt[:maxDocumentExcerpt]
		}
		fmt.Fprintf(&b, "DOCUMENT CONTENT:\n%s\n\nUSER REQUEST: %s\n\n", excerpt, in.Utterance)
	} else {
		fmt.Fprintf(&b, "User: %s\n\n", in.Utterance)
	}

	b.WriteString(classInstruction(class))
	return b.String()
}
