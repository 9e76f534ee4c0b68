package pipeline

import (
	"context"
	"fmt"
	"time"

	"astro/internal/rag/interfaces"
	"astro/internal/rag/schema"
	"astro/pkg/logger"
)

const systemPromptTemplate = `You are a helpful assistant. Answer the user's question based only on the
provided context. If the context doesn't contain enough information to fully
answer the question, say so clearly.

The context may include different types of items:
- Documents: uploaded files and their content
- Notes: user-created notes
- Action items: tasks/to-dos that may be OPEN or COMPLETED, optionally marked
  as HOT (urgent), with due dates and categories. When the user asks about
  "action items", "tasks", or "to-dos", refer to these.

Context:
%s`

const directSystemPrompt = `You are a helpful assistant.`

// AnswerResult carries a generated answer and the model that produced it.
type AnswerResult struct {
	Answer string `json:"answer"`
	Model  string `json:"model"`
}

// Answerer runs one grounded chat turn: retrieve context, assemble the system
// prompt, call the chat model. Provider errors surface verbatim; there is no
// retry and no partial-success state.
type Answerer struct {
	retriever interfaces.Retriever
	chat      interfaces.ChatModel
	topK      int
	log       *logger.Logger
}

// NewAnswerer creates a new Answerer.
func NewAnswerer(retriever interfaces.Retriever, chat interfaces.ChatModel, topK int, log *logger.Logger) *Answerer {
	return &Answerer{retriever: retriever, chat: chat, topK: topK, log: log}
}

// Answer responds to a question, optionally grounding it in retrieved context.
// userTimezone, when valid, localizes the date stamped into the system prompt.
func (a *Answerer) Answer(ctx context.Context, question string, history []schema.ChatMessage, useContext bool, universeID uint, model, userTimezone string) (*AnswerResult, error) {
	var system string
	if useContext {
		docs, err := a.retriever.Retrieve(ctx, question, universeID, a.topK)
		if err != nil {
			return nil, err
		}
		a.log.Info(fmt.Sprintf("Retrieved %d chunk(s) for universe %d", len(docs), universeID))
		system = fmt.Sprintf(systemPromptTemplate, FormatContext(docs))
	} else {
		system = directSystemPrompt
	}
	system += todayBlurb(userTimezone)

	answer, usedModel, err := a.chat.Chat(ctx, model, system, history, question)
	if err != nil {
		return nil, err
	}
	if usedModel == "" {
		usedModel = model
	}
	return &AnswerResult{Answer: answer, Model: usedModel}, nil
}

// todayBlurb returns a short system-prompt snippet with today's date,
// rendered in the user's timezone when one is given and loadable.
func todayBlurb(userTimezone string) string {
	if userTimezone != "" {
		if loc, err := time.LoadLocation(userTimezone); err == nil {
			return fmt.Sprintf("\n\nToday's date is %s (user's timezone: %s).",
				time.Now().In(loc).Format("2006-01-02"), userTimezone)
		}
	}
	return fmt.Sprintf("\n\nToday's date is %s.", time.Now().Format("2006-01-02"))
}
