package chat

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/unclecode/doc2talk/internal/llm"
)

// Decision classifies how a question relates to the current context.
type Decision string

const (
	// DecisionNew replaces the current context entirely.
	DecisionNew Decision = "new"
	// DecisionAdditional appends to the current context.
	DecisionAdditional Decision = "additional"
	// DecisionNone answers from the existing context.
	DecisionNone Decision = "none"
)

// decisionPrompt is the fixed classification prompt. The response must
// be a JSON object wrapped in <response> tags.
const decisionPrompt = `Your task is to classify whether we need extra context and knowledge based on a user's question in a chat session with an AI agent. The goal is to optimize and avoid continuously adding new context. Therefore, be very precise in determining if we need new context and classify it into a new category. "New" means that the entire current knowledge context should replace the existing one. However, in many situations, we need both the previous context and the additional one, so you should classify them as "in addition." If there is no need for context related to time, questions, or follow-up questions, classify them as "no context." The goal is to minimize the need for new context. Only when user questions require knowledge referencing back to the codebase should we consider it necessary. Wrap your JSON response in <response> tags.

Analyze if the new question requires:
- NEW context (if needs completely different info)
- ADDITIONAL context (if needs more details)
- NO context (if answerable with existing context)

Current Contexts:
<context>
{contexts}
</context>

Last Question: {last_question}
New Question: {new_question}

Respond ONLY with <response>{"decision":"new|additional|none"}</response>`

// Decider asks the LLM to classify a question against the current
// context. Any parse or transport failure falls back to DecisionNew.
type Decider struct {
	client llm.Client
	cfg    llm.Config
}

// NewDecider creates a decider using cfg for the decision call.
func NewDecider(client llm.Client, cfg llm.Config) *Decider {
	return &Decider{client: client, cfg: cfg}
}

// Decide classifies newQuestion against the session state.
func (d *Decider) Decide(ctx context.Context, contexts, lastQuestion, newQuestion string) Decision {
	prompt := strings.NewReplacer(
		"{contexts}", contexts,
		"{last_question}", lastQuestion,
		"{new_question}", newQuestion,
	).Replace(decisionPrompt)

	raw, err := d.client.Complete(ctx, d.cfg, []llm.Message{
		{Role: llm.RoleSystem, Content: prompt},
	})
	if err != nil {
		slog.Warn("decision_call_failed", slog.String("error", err.Error()))
		return DecisionNew
	}

	decision, ok := parseDecision(raw)
	if !ok {
		slog.Warn("decision_parse_failed", slog.String("raw", raw))
		return DecisionNew
	}
	return decision
}

// parseDecision extracts the decision from a <response>-wrapped JSON
// object.
func parseDecision(raw string) (Decision, bool) {
	start := strings.Index(raw, "<response>")
	if start < 0 {
		return "", false
	}
	rest := raw[start+len("<response>"):]
	end := strings.Index(rest, "</response>")
	if end < 0 {
		return "", false
	}

	var payload struct {
		Decision string `json:"decision"`
	}
	if err := json.Unmarshal([]byte(strings.TrimSpace(rest[:end])), &payload); err != nil {
		return "", false
	}

	switch Decision(payload.Decision) {
	case DecisionNew, DecisionAdditional, DecisionNone:
		return Decision(payload.Decision), true
	}
	return "", false
}
