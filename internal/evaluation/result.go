package evaluation

import (
	"errors"
	"time"

	"github.com/nytrohq/interview-screener/internal/interview"
	"github.com/nytrohq/interview-screener/internal/rubric"
)

var (
	// ErrAlreadyEvaluated guards idempotence: a session is evaluated
	// exactly once and the first result is never recomputed.
	ErrAlreadyEvaluated = errors.New("session already evaluated")
	// ErrNoEvaluation is returned when no evaluation exists for a session.
	ErrNoEvaluation = errors.New("no evaluation for session")
	// ErrSessionNotComplete rejects evaluation of an unfinished session.
	ErrSessionNotComplete = errors.New("session is not complete")
)

// SkillScore is the rubric-scored outcome for one skill.
type SkillScore struct {
	SkillID   string   `json:"skill_id"`
	SkillName string   `json:"skill_name"`
	Weight    int      `json:"weight"`
	Rating    int      `json:"rating"`
	Evidence  []string `json:"evidence,omitempty"`
	Rationale string   `json:"rationale,omitempty"`
	// LowConfidence marks scores recovered from an out-of-range rating or
	// a malformed gateway payload.
	LowConfidence bool `json:"low_confidence,omitempty"`
}

// Result is the immutable evaluation of a completed session.
type Result struct {
	SessionID string            `json:"session_id"`
	Profile   interview.Profile `json:"profile"`
	Scores    []SkillScore      `json:"scores"`
	Composite float64           `json:"composite"`
	Tier      rubric.Tier       `json:"tier"`
	// Degraded is set when the gateway was unavailable and every skill was
	// scored at the rubric midpoint.
	Degraded    bool      `json:"degraded,omitempty"`
	EvaluatedAt time.Time `json:"evaluated_at"`
}

// Score returns the score for a skill id, or nil.
func (r *Result) Score(skillID string) *SkillScore {
	for i := range r.Scores {
		if r.Scores[i].SkillID == skillID {
			return &r.Scores[i]
		}
	}
	return nil
}
