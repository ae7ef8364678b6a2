package rag

import (
	"fmt"
	"strings"

	"github.com/quillctx/quill/ai/llm"
)

const answerSystemPrompt = `You are a helpful assistant that answers questions based on the provided context.
Use ONLY the information from the context to answer. If the context doesn't contain
enough information to answer the question, say "I don't have enough information to
answer that question."

Always cite which part of the context you used by mentioning the source document.`

const hydePromptTemplate = `Write a short paragraph that would be a perfect answer to the following question.
Write it as if it came from an authoritative document on the topic.
Do not include phrases like "the answer is" - just write the content directly.

Question: %s

Paragraph:`

const expandPromptTemplate = `Generate %d alternative phrasings of the following question.
Each phrasing should capture the same intent but use different words.
Return only the questions, one per line, without numbering.

Question: %s

Alternative phrasings:`

const rewritePromptTemplate = `Rewrite the following question to be more specific and detailed for document search.
Add relevant keywords and technical terms that might appear in documents.
Return only the rewritten question.

Original: %s

Rewritten:`

// contextSeparator joins retrieved passages in the user message.
const contextSeparator = "\n\n---\n\n"

// buildContextBlock renders retrieved results as citation-tagged passages in
// rank order.
func buildContextBlock(results []*SearchResult) string {
	parts := make([]string, len(results))
	for i, r := range results {
		page := "N/A"
		if r.PageNumber != nil {
			page = fmt.Sprintf("%d", *r.PageNumber)
		}
		parts[i] = fmt.Sprintf("[Source: %s, Page: %s]\n%s", r.Filename, page, r.Context)
	}
	return strings.Join(parts, contextSeparator)
}

// buildAnswerMessages assembles the chat messages for grounded generation.
func buildAnswerMessages(question string, results []*SearchResult) []llm.Message {
	return []llm.Message{
		llm.SystemPrompt(answerSystemPrompt),
		llm.UserMessage(fmt.Sprintf("Context:\n%s\n\nQuestion: %s", buildContextBlock(results), question)),
	}
}
