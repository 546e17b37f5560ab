package evaluation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/nytrohq/interview-screener/internal/ai"
	"github.com/nytrohq/interview-screener/internal/interview"
	"github.com/nytrohq/interview-screener/internal/rubric"
	"github.com/nytrohq/interview-screener/internal/utils"

	"github.com/xeipuuv/gojsonschema"
	"go.uber.org/zap"
)

const (
	defaultBackoff = 2 * time.Second

	unavailableRationale = "scoring unavailable"
)

var scoreSchema = []byte(`{
  "type": "object",
  "properties": {
    "rating": {"type": "integer", "minimum": 1, "maximum": 5},
    "evidence": {"type": "array", "items": {"type": "string"}},
    "rationale": {"type": "string"}
  },
  "required": ["rating", "evidence", "rationale"],
  "additionalProperties": false
}`)

// Deps aggregates the engine's collaborators.
type Deps struct {
	Gateway ai.Gateway
	Store   Store
	Logger  *zap.Logger
	Backoff time.Duration
}

// Engine scores completed interview sessions. It implements
// interview.Evaluator.
type Engine struct {
	rubric  *rubric.Rubric
	gateway ai.Gateway
	store   Store
	logger  *zap.Logger
	backoff time.Duration
}

func NewEngine(r *rubric.Rubric, deps Deps) *Engine {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	backoff := deps.Backoff
	if backoff <= 0 {
		backoff = defaultBackoff
	}

	return &Engine{
		rubric:  r,
		gateway: deps.Gateway,
		store:   deps.Store,
		logger:  logger,
		backoff: backoff,
	}
}

// Evaluate scores every skill the session reached, computes the weighted
// composite and resolves the recommendation tier. A second call for the same
// session fails with ErrAlreadyEvaluated and leaves the first result intact.
func (e *Engine) Evaluate(ctx context.Context, session *interview.Session) error {
	if session == nil || !session.Complete() {
		return ErrSessionNotComplete
	}

	if _, err := e.store.Get(ctx, session.ID); err == nil {
		return ErrAlreadyEvaluated
	} else if !errors.Is(err, ErrNoEvaluation) {
		return err
	}

	reached := e.reachedSkills(session)
	scores, degraded := e.scoreAll(ctx, session, reached)

	composite := composite(scores)
	result := &Result{
		SessionID:   session.ID,
		Profile:     session.Profile,
		Scores:      scores,
		Composite:   composite,
		Tier:        e.rubric.TierFor(composite),
		Degraded:    degraded,
		EvaluatedAt: time.Now().UTC(),
	}

	if err := e.store.Put(ctx, result); err != nil {
		return err
	}

	e.logger.Info("session evaluated",
		zap.String("session_id", session.ID),
		zap.Float64("composite", composite),
		zap.String("tier", result.Tier.Name),
		zap.Bool("degraded", degraded),
	)

	return nil
}

// Result returns the stored evaluation for a session.
func (e *Engine) Result(ctx context.Context, sessionID string) (*Result, error) {
	return e.store.Get(ctx, sessionID)
}

// Results returns all stored evaluations.
func (e *Engine) Results(ctx context.Context) ([]*Result, error) {
	return e.store.List(ctx)
}

// reachedSkills returns the skills with at least one transcript entry, in
// rubric order. Skills an early-terminated session never reached are
// excluded from scoring entirely.
func (e *Engine) reachedSkills(session *interview.Session) []rubric.Skill {
	var reached []rubric.Skill
	for _, skill := range e.rubric.Skills {
		if len(session.SkillEntries(skill.ID)) > 0 {
			reached = append(reached, skill)
		}
	}
	return reached
}

func (e *Engine) scoreAll(ctx context.Context, session *interview.Session, reached []rubric.Skill) ([]SkillScore, bool) {
	scores := make([]SkillScore, 0, len(reached))

	for _, skill := range reached {
		score, err := e.scoreSkill(ctx, session, &skill)
		if err != nil {
			e.logger.Warn("scoring degraded",
				zap.String("session_id", session.ID),
				zap.String("skill", skill.ID),
				zap.Error(err),
			)
			return e.midpointScores(reached), true
		}
		scores = append(scores, score)
	}

	return scores, false
}

// midpointScores is the degraded outcome: the gateway was unavailable, every
// skill gets the rubric midpoint and the candidate is not blocked.
func (e *Engine) midpointScores(reached []rubric.Skill) []SkillScore {
	scores := make([]SkillScore, 0, len(reached))
	for _, skill := range reached {
		scores = append(scores, SkillScore{
			SkillID:       skill.ID,
			SkillName:     skill.Name,
			Weight:        skill.Weight,
			Rating:        rubric.RatingMidpoint,
			Rationale:     unavailableRationale,
			LowConfidence: true,
		})
	}
	return scores
}

func (e *Engine) scoreSkill(ctx context.Context, session *interview.Session, skill *rubric.Skill) (SkillScore, error) {
	if e.gateway == nil {
		return SkillScore{}, fmt.Errorf("%w: gateway is not configured", ai.ErrGateway)
	}

	req := &ai.Request{
		SystemPrompt: e.scoringSystemPrompt(),
		Instruction:  e.scoringInstruction(session, skill),
	}

	raw, err := e.gateway.GenerateJSON(ctx, req, scoreSchema)
	if err != nil && ai.IsRecoverable(err) {
		// One retry with backoff before degrading the whole evaluation.
		if waitErr := utils.WaitFor(ctx, e.backoff); waitErr != nil {
			return SkillScore{}, waitErr
		}
		raw, err = e.gateway.GenerateJSON(ctx, req, scoreSchema)
	}
	if err != nil {
		return SkillScore{}, err
	}

	return parseScore(raw, skill), nil
}

func (e *Engine) scoringSystemPrompt() string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are evaluating a candidate interview for the %s position at %s.\n", e.rubric.Role, e.rubric.Company)
	b.WriteString("Score strictly on evidence from the transcript. Scoring rubric:\n")
	for _, level := range e.rubric.Levels {
		fmt.Fprintf(&b, "%d - %s: %s\n", level.Score, level.Label, level.Description)
	}
	return b.String()
}

func (e *Engine) scoringInstruction(session *interview.Session, skill *rubric.Skill) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Competency: %s (weight %d)\nDescription: %s\n", skill.Name, skill.Weight, skill.Description)

	if len(skill.KeyIndicators) > 0 {
		b.WriteString("Looking for:\n")
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

	b.WriteString("\nCandidate answers on this competency:\n")
	for _, entry := range session.SkillEntries(skill.ID) {
		fmt.Fprintf(&b, "Q: %s\nA: %s\n", entry.Question, entry.Answer)
	}

	b.WriteString("\nRate the competency 1-5, quote evidence from the answers and give a short rationale.")
	return b.String()
}

type scorePayload struct {
	Rating    float64  `json:"rating"`
	Evidence  []string `json:"evidence"`
	Rationale string   `json:"rationale"`
}

// parseScore turns the gateway payload into a SkillScore. A malformed or
// out-of-range payload never fails the evaluation: the rating is clamped and
// the score flagged low confidence.
func parseScore(raw string, skill *rubric.Skill) SkillScore {
	score := SkillScore{
		SkillID:   skill.ID,
		SkillName: skill.Name,
		Weight:    skill.Weight,
	}

	cleaned := stripFences(raw)

	var payload scorePayload
	if err := json.Unmarshal([]byte(cleaned), &payload); err != nil {
		score.Rating = rubric.RatingMidpoint
		score.Rationale = "malformed scoring payload"
		score.LowConfidence = true
		return score
	}

	validation, err := gojsonschema.Validate(
		gojsonschema.NewBytesLoader(scoreSchema),
		gojsonschema.NewStringLoader(cleaned),
	)
	if err != nil || !validation.Valid() {
		score.LowConfidence = true
	}

	rating := int(math.Round(payload.Rating))
	if rating < rubric.MinRating {
		rating = rubric.MinRating
		score.LowConfidence = true
	}
	if rating > rubric.MaxRating {
		rating = rubric.MaxRating
		score.LowConfidence = true
	}

	score.Rating = rating
	score.Evidence = payload.Evidence
	score.Rationale = payload.Rationale
	return score
}

func stripFences(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "```") {
		raw = strings.TrimPrefix(raw, "```json")
		raw = strings.TrimPrefix(raw, "```")
		raw = strings.TrimSpace(raw)
		if idx := strings.LastIndex(raw, "```"); idx != -1 {
			raw = raw[:idx]
		}
	}
	return strings.Trim(strings.TrimSpace(raw), "`")
}

// composite is the weight-normalized average over the scored skills,
// rounded to one decimal place.
func composite(scores []SkillScore) float64 {
	totalWeight := 0
	weightedSum := 0
	for _, s := range scores {
		weightedSum += s.Rating * s.Weight
		totalWeight += s.Weight
	}

	if totalWeight == 0 {
		return 0
	}

	return math.Round(float64(weightedSum)/float64(totalWeight)*10) / 10
}
