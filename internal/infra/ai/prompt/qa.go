package prompt

import "fmt"

// InsufficientContextAnswer is returned without a model call when retrieval
// produced nothing to ground an answer on.
const InsufficientContextAnswer = "The document does not contain enough context to answer this question."

// QASystemPrompt keeps answers grounded in the retrieved excerpts.
func QASystemPrompt() string {
	return `You answer questions about a legal document using only the provided context.

Instructions:
- Answer strictly from the context; if the exact answer is not present, give the most relevant information the context does contain.
- If no answer can be found at all, clearly explain why.
- Do not use outside knowledge about the parties or the document.
- Be concise and precise.`
}

// QAUserPrompt pairs the retrieved context with one question.
func QAUserPrompt(context, question string) string {
	return fmt.Sprintf("Document context:\n%s\n\nQuestion: %s", context, question)
}
