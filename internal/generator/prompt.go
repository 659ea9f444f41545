// Package generator produces answers grounded in retrieved document context.
package generator

import "fmt"

const promptTemplate = `You are a helpful research assistant. Use the following context to answer the question.
If the context doesn't contain relevant information, say so. Don't make up information.

Context:
%s

Question:
%s

Please provide a concise and accurate answer based on the context:`

// BuildPrompt embeds the question and context in the fixed instruction.
func BuildPrompt(question, contextText string) string {
	return fmt.Sprintf(promptTemplate, contextText, question)
}
