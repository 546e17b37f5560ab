package interview

import (
	"strings"
	"time"
)

// Phase is a stage of the interview flow. Transitions are strictly forward.
type Phase string

const (
	PhaseIntroduction Phase = "introduction"
	PhaseCollectInfo  Phase = "collect_info"
	PhaseSkills       Phase = "skills_assessment"
	PhaseClosing      Phase = "closing"
	PhaseComplete     Phase = "complete"
)

var phaseOrder = map[Phase]int{
	PhaseIntroduction: 0,
	PhaseCollectInfo:  1,
	PhaseSkills:       2,
	PhaseClosing:      3,
	PhaseComplete:     4,
}

// Rank returns the position of the phase in the flow. Unknown phases rank
// below introduction.
func (p Phase) Rank() int {
	if r, ok := phaseOrder[p]; ok {
		return r
	}
	return -1
}

// Profile holds the candidate fields collected during collect_info.
type Profile struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Location string `json:"location"`
	// EmailFlagged marks a best-effort email value that did not look valid.
	// The value is kept for downstream reconciliation instead of rejected.
	EmailFlagged bool `json:"email_flagged,omitempty"`
}

// Entry is a single question/answer pair in the transcript. SkillID is empty
// for entries that did not target a skill.
type Entry struct {
	SkillID  string    `json:"skill_id,omitempty"`
	Question string    `json:"question"`
	Answer   string    `json:"answer"`
	AskedAt  time.Time `json:"asked_at"`
}

// Session is the authoritative per-candidate interview state. It is mutated
// exclusively by the Engine and becomes immutable once Phase reaches complete.
type Session struct {
	ID      string  `json:"id"`
	Phase   Phase   `json:"phase"`
	Profile Profile `json:"profile"`

	Transcript    []Entry        `json:"transcript"`
	AskedPerSkill map[string]int `json:"asked_per_skill"`

	// Cursors into the rubric-defined flow.
	ProfileIndex int `json:"profile_index"`
	SkillIndex   int `json:"skill_index"`
	ClosingIndex int `json:"closing_index"`

	// PendingQuestion is the question awaiting an answer; it is re-issued
	// when an empty answer is rejected.
	PendingQuestion string `json:"pending_question"`

	// Version increments on every committed mutation and backs the
	// optimistic concurrency check around gateway calls.
	Version int `json:"version"`

	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// Complete reports whether the session reached its terminal phase.
func (s *Session) Complete() bool {
	return s.Phase == PhaseComplete
}

// SkillEntries returns the transcript entries tagged with the given skill,
// in order.
func (s *Session) SkillEntries(skillID string) []Entry {
	var entries []Entry
	for _, e := range s.Transcript {
		if e.SkillID == skillID {
			entries = append(entries, e)
		}
	}
	return entries
}

// AskedQuestions returns every question asked so far, for duplicate checks.
func (s *Session) AskedQuestions() map[string]bool {
	asked := make(map[string]bool, len(s.Transcript))
	for _, e := range s.Transcript {
		asked[strings.TrimSpace(e.Question)] = true
	}
	return asked
}

// clone returns a deep copy so gateway calls can run on a snapshot while
// the live session stays owned by the store.
func (s *Session) clone() *Session {
	cp := *s
	cp.Transcript = make([]Entry, len(s.Transcript))
	copy(cp.Transcript, s.Transcript)
	cp.AskedPerSkill = make(map[string]int, len(s.AskedPerSkill))
	for k, v := range s.AskedPerSkill {
		cp.AskedPerSkill[k] = v
	}
	if s.CompletedAt != nil {
		t := *s.CompletedAt
		cp.CompletedAt = &t
	}
	return &cp
}

// Reply is the engine's answer to a transport call.
type Reply struct {
	SessionID  string `json:"session_id"`
	Message    string `json:"message"`
	Phase      Phase  `json:"phase"`
	IsComplete bool   `json:"is_complete"`
}

// Progress is a read-only view of how far a session has come.
// EstimatedTotal is the upper bound: one introduction exchange, one question
// per profile field, every skill at its probe cap and all closing questions.
type Progress struct {
	Phase             Phase `json:"phase"`
	QuestionsAnswered int   `json:"questions_answered"`
	EstimatedTotal    int   `json:"estimated_total"`
}
