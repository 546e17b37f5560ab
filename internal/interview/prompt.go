package interview

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/nytrohq/interview-screener/internal/ai"
	"github.com/nytrohq/interview-screener/internal/rubric"

	"go.uber.org/zap"
)

type directive string

const (
	directiveProbe   directive = "probe"
	directiveAdvance directive = "advance"

	// historyWindow bounds how many transcript entries are replayed to the
	// model on each call.
	historyWindow = 20
)

var directiveSchema = []byte(`{
  "type": "object",
  "properties": {
    "directive": {"type": "string", "enum": ["probe", "advance"]},
    "reason": {"type": "string"}
  },
  "required": ["directive"],
  "additionalProperties": false
}`)

// decide asks the gateway whether to probe the current skill again or move
// on. The contract is a closed set of directives; anything else, including a
// gateway failure, resolves to advance so transitions stay deterministic.
func (e *Engine) decide(ctx context.Context, session *Session, skill *rubric.Skill, answer string) directive {
	req := &ai.Request{
		SystemPrompt: e.systemPrompt(session),
		History:      session.history(),
		Instruction:  decideInstruction(skill, answer),
	}

	raw, err := e.gateway.GenerateJSON(ctx, req, directiveSchema)
	if err != nil {
		e.logger.Warn("directive call failed, advancing",
			zap.String("session_id", session.ID),
			zap.String("skill", skill.ID),
			zap.Error(err),
		)
		return directiveAdvance
	}

	return parseDirective(raw)
}

// generateFollowUp asks the gateway for a single follow-up question on the
// current skill. Returns "" on failure; the caller falls back to advance.
func (e *Engine) generateFollowUp(ctx context.Context, session *Session, skill *rubric.Skill, answer string) string {
	req := &ai.Request{
		SystemPrompt: e.systemPrompt(session),
		History:      session.history(),
		Instruction: fmt.Sprintf(
			"The candidate's last answer about %q was:\n%s\n\nAsk exactly one concise follow-up question that probes for specifics (numbers, tools, their own actions, outcomes). Reply with the question only.",
			skill.Name, answer,
		),
	}

	question, err := e.gateway.GenerateText(ctx, req)
	if err != nil {
		e.logger.Warn("follow-up generation failed, advancing",
			zap.String("session_id", session.ID),
			zap.String("skill", skill.ID),
			zap.Error(err),
		)
		return ""
	}

	return strings.TrimSpace(question)
}

func (e *Engine) systemPrompt(session *Session) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are a screening interviewer for the %s position at %s.\n", e.rubric.Role, e.rubric.Company)
	if e.rubric.Context != "" {
		fmt.Fprintf(&b, "Role context: %s\n", e.rubric.Context)
	}
	fmt.Fprintf(&b, "Current phase: %s.\n", session.Phase)
	if session.Profile.Name != "" {
		fmt.Fprintf(&b, "Candidate: %s.\n", session.Profile.Name)
	}
	b.WriteString("Ask one question at a time, keep responses concise, never reveal scoring.")
	return b.String()
}

func decideInstruction(skill *rubric.Skill, answer string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are assessing the competency %q: %s\n", skill.Name, skill.Description)

	if len(skill.KeyIndicators) > 0 {
		b.WriteString("Indicators of a strong answer:\n")
		for _, in := range skill.KeyIndicators {
			fmt.Fprintf(&b, "- %s\n", in)
		}
	}

	if len(skill.RedFlags) > 0 {
		b.WriteString("Red flags:\n")
		for _, rf := range skill.RedFlags {
			fmt.Fprintf(&b, "- %s\n", rf)
		}
	}

	fmt.Fprintf(&b, "\nThe candidate just answered:\n%s\n\n", answer)
	b.WriteString(`Decide whether to probe this competency further or advance to the next one. Probe only when the answer is vague, contradictory or unsubstantiated. Respond with JSON: {"directive": "probe"} or {"directive": "advance"}.`)

	return b.String()
}

func parseDirective(raw string) directive {
	var payload struct {
		Directive string `json:"directive"`
	}

	if err := json.Unmarshal([]byte(extractJSON(raw)), &payload); err != nil {
		return directiveAdvance
	}

	if directive(strings.ToLower(strings.TrimSpace(payload.Directive))) == directiveProbe {
		return directiveProbe
	}

	return directiveAdvance
}

// extractJSON strips markdown fences the model sometimes wraps around JSON.
func extractJSON(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "```") {
		raw = strings.TrimPrefix(raw, "```json")
		raw = strings.TrimPrefix(raw, "```")
		raw = strings.TrimSpace(raw)
		if idx := strings.LastIndex(raw, "```"); idx != -1 {
			raw = raw[:idx]
		}
	}
	raw = strings.Trim(raw, "`")
	return strings.TrimSpace(raw)
}

func (s *Session) history() []ai.Turn {
	entries := s.Transcript
	if len(entries) > historyWindow {
		entries = entries[len(entries)-historyWindow:]
	}

	turns := make([]ai.Turn, 0, len(entries)*2)
	for _, e := range entries {
		turns = append(turns,
			ai.Turn{Role: "interviewer", Content: e.Question},
			ai.Turn{Role: "candidate", Content: e.Answer},
		)
	}
	return turns
}
