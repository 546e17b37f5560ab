package followup

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/nytrohq/interview-screener/internal/evaluation"
	"github.com/nytrohq/interview-screener/internal/interview"
	"github.com/nytrohq/interview-screener/internal/rubric"

	"go.uber.org/zap"
)

// focusRatingCeiling marks the rating at and below which a skill becomes a
// follow-up focus area.
const focusRatingCeiling = 2

// FocusArea is a skill the human follow-up interview should concentrate on.
type FocusArea struct {
	SkillID   string `json:"skill_id"`
	SkillName string `json:"skill_name"`
	Weight    int    `json:"weight"`
	Reason    string `json:"reason"`
}

// Guide aids the human interviewer running the follow-up round. It is a
// derived artifact: regenerable at any time, never authoritative state.
type Guide struct {
	SessionID          string      `json:"session_id"`
	FocusAreas         []FocusArea `json:"focus_areas"`
	SuggestedQuestions []string    `json:"suggested_questions"`
	Overview           string      `json:"overview"`
}

// Generator derives follow-up guides from stored evaluations.
type Generator struct {
	rubric      *rubric.Rubric
	evaluations evaluation.Store
	sessions    interview.Store
	logger      *zap.Logger
}

func NewGenerator(r *rubric.Rubric, evaluations evaluation.Store, sessions interview.Store, logger *zap.Logger) *Generator {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Generator{
		rubric:      r,
		evaluations: evaluations,
		sessions:    sessions,
		logger:      logger,
	}
}

// Guide builds a follow-up guide for an evaluated session. Fails with
// evaluation.ErrNoEvaluation when the session never completed evaluation.
func (g *Generator) Guide(ctx context.Context, sessionID string) (*Guide, error) {
	result, err := g.evaluations.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	session, err := g.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	focus := focusAreas(result)

	guide := &Guide{
		SessionID:          sessionID,
		FocusAreas:         focus,
		SuggestedQuestions: g.suggestedQuestions(session, focus),
		Overview:           g.overview(result, focus),
	}

	g.logger.Debug("follow-up guide generated",
		zap.String("session_id", sessionID),
		zap.Int("focus_areas", len(focus)),
	)

	return guide, nil
}

// focusAreas selects skills rated at or below the ceiling, or flagged low
// confidence, ordered by weight descending.
func focusAreas(result *evaluation.Result) []FocusArea {
	var focus []FocusArea
	for _, score := range result.Scores {
		reason := ""
		switch {
		case score.Rating <= focusRatingCeiling:
			reason = fmt.Sprintf("rated %d/5", score.Rating)
		case score.LowConfidence:
			reason = "low-confidence score"
		default:
			continue
		}

		focus = append(focus, FocusArea{
			SkillID:   score.SkillID,
			SkillName: score.SkillName,
			Weight:    score.Weight,
			Reason:    reason,
		})
	}

	sort.SliceStable(focus, func(i, j int) bool { return focus[i].Weight > focus[j].Weight })
	return focus
}

// suggestedQuestions draws from each focus skill's example questions,
// excluding anything already asked during the interview.
func (g *Generator) suggestedQuestions(session *interview.Session, focus []FocusArea) []string {
	asked := session.AskedQuestions()
	name := session.Profile.Name
	if name == "" {
		name = "there"
	}

	var questions []string
	for _, area := range focus {
		skill := g.rubric.Skill(area.SkillID)
		if skill == nil {
			continue
		}

		for _, q := range skill.ExampleQuestions {
			templated := strings.ReplaceAll(q, "{name}", name)
			if asked[strings.TrimSpace(q)] || asked[strings.TrimSpace(templated)] {
				continue
			}
			questions = append(questions, q)
		}
	}

	return questions
}

func (g *Generator) overview(result *evaluation.Result, focus []FocusArea) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Candidate scored %.1f/5.0 (%s).", result.Composite, result.Tier.Label)

	if result.Degraded {
		b.WriteString(" Automatic scoring was unavailable; review the transcript manually.")
	}

	if len(focus) == 0 {
		b.WriteString(" No weak areas were identified.")
		return b.String()
	}

	names := make([]string, 0, len(focus))
	for _, area := range focus {
		names = append(names, area.SkillName)
	}
	fmt.Fprintf(&b, " Concentrate the follow-up on: %s.", strings.Join(names, ", "))

	return b.String()
}

// Render formats the guide as a plain-text handout for the interviewer.
func (guide *Guide) Render() string {
	var b strings.Builder
	line := strings.Repeat("=", 60)

	fmt.Fprintf(&b, "%s\nFOLLOW-UP INTERVIEW GUIDE\n%s\n\n", line, line)
	fmt.Fprintf(&b, "%s\n\n", guide.Overview)

	b.WriteString("FOCUS AREAS\n")
	if len(guide.FocusAreas) == 0 {
		b.WriteString("  (none)\n")
	}
	for _, area := range guide.FocusAreas {
		fmt.Fprintf(&b, "  - %s (%s)\n", area.SkillName, area.Reason)
	}

	b.WriteString("\nSUGGESTED QUESTIONS\n")
	if len(guide.SuggestedQuestions) == 0 {
		b.WriteString("  (none)\n")
	}
	for i, q := range guide.SuggestedQuestions {
		fmt.Fprintf(&b, "  %d. %s\n", i+1, q)
	}

	return b.String()
}
