package interview

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/nytrohq/interview-screener/internal/ai"
	"github.com/nytrohq/interview-screener/internal/logger"
	"github.com/nytrohq/interview-screener/internal/rubric"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Evaluator scores a completed session. Invoked synchronously at the
// closing -> complete transition.
type Evaluator interface {
	Evaluate(ctx context.Context, session *Session) error
}

// Deps aggregates the engine's collaborators.
type Deps struct {
	Store     Store
	Gateway   ai.Gateway
	Evaluator Evaluator
	Logger    *zap.Logger
}

// Engine drives the interview state machine. Each session is single-writer:
// a per-session lock serializes submissions, and a version counter detects
// commits that raced with an in-flight gateway call.
type Engine struct {
	rubric    *rubric.Rubric
	store     Store
	gateway   ai.Gateway
	evaluator Evaluator
	logger    *zap.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewEngine builds an engine for the given rubric.
func NewEngine(r *rubric.Rubric, deps Deps) *Engine {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Engine{
		rubric:    r,
		store:     deps.Store,
		gateway:   deps.Gateway,
		evaluator: deps.Evaluator,
		logger:    logger,
		locks:     make(map[string]*sync.Mutex),
	}
}

func (e *Engine) lockFor(id string) *sync.Mutex {
	e.mu.Lock()
	defer e.mu.Unlock()

	lock, ok := e.locks[id]
	if !ok {
		lock = &sync.Mutex{}
		e.locks[id] = lock
	}
	return lock
}

// releaseLock drops the session's lock entry. Completed sessions are
// immutable, so the entry would otherwise linger for the process lifetime.
func (e *Engine) releaseLock(id string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	delete(e.locks, id)
}

// StartSession creates a fresh session in the introduction phase. The
// opening message is templated, never model-generated.
func (e *Engine) StartSession(ctx context.Context) (*Reply, error) {
	if e.rubric == nil {
		return nil, &rubric.ConfigurationError{Reason: "rubric is not loaded"}
	}

	session := &Session{
		ID:              uuid.NewString(),
		Phase:           PhaseIntroduction,
		AskedPerSkill:   make(map[string]int),
		PendingQuestion: e.rubric.Interview.OpeningMessage,
		Version:         1,
		StartedAt:       time.Now().UTC(),
	}

	if err := e.store.Put(ctx, session); err != nil {
		return nil, err
	}

	e.logger.Info("session started", zap.String("session_id", session.ID))

	return &Reply{
		SessionID: session.ID,
		Message:   session.PendingQuestion,
		Phase:     session.Phase,
	}, nil
}

// SubmitAnswer records the candidate's answer and returns the next message.
// The whole transition commits atomically or not at all.
func (e *Engine) SubmitAnswer(ctx context.Context, sessionID, answer string) (*Reply, error) {
	lock := e.lockFor(sessionID)
	lock.Lock()

	session, err := e.store.Get(ctx, sessionID)
	if err != nil {
		lock.Unlock()
		return nil, err
	}

	if session.Complete() {
		lock.Unlock()
		e.releaseLock(sessionID)
		return nil, ErrSessionClosed
	}

	if strings.TrimSpace(answer) == "" {
		reprompt := session.PendingQuestion
		lock.Unlock()
		return nil, &ValidationError{Reason: "answer must not be empty", Reprompt: reprompt}
	}

	switch session.Phase {
	case PhaseIntroduction:
		defer lock.Unlock()
		return e.advanceFromIntroduction(ctx, session, answer)
	case PhaseCollectInfo:
		defer lock.Unlock()
		return e.collectProfileField(ctx, session, answer)
	case PhaseSkills:
		// The skills transition consults the gateway; the lock is released
		// for the duration of the call and the commit re-checks the version.
		return e.assessSkillAnswer(ctx, session, answer, lock)
	case PhaseClosing:
		return e.advanceClosing(ctx, session, answer, lock)
	default:
		lock.Unlock()
		return nil, ErrSessionClosed
	}
}

// Progress returns a read-only view of the session. Never mutates state.
func (e *Engine) Progress(ctx context.Context, sessionID string) (*Progress, error) {
	session, err := e.store.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	total := 1 + len(e.rubric.Interview.ProfileFields) +
		len(e.rubric.Skills)*(1+e.rubric.FollowUpCap()) +
		len(e.rubric.Interview.ClosingQuestions)

	return &Progress{
		Phase:             session.Phase,
		QuestionsAnswered: len(session.Transcript),
		EstimatedTotal:    total,
	}, nil
}

// Session exposes the stored session, for evaluation and export.
func (e *Engine) Session(ctx context.Context, sessionID string) (*Session, error) {
	return e.store.Get(ctx, sessionID)
}

func (e *Engine) advanceFromIntroduction(ctx context.Context, session *Session, answer string) (*Reply, error) {
	session.record("", answer)
	session.Phase = PhaseCollectInfo
	session.PendingQuestion = e.rubric.Interview.ProfileFields[0].Question

	if err := e.commit(ctx, session); err != nil {
		return nil, err
	}

	return session.reply(), nil
}

func (e *Engine) collectProfileField(ctx context.Context, session *Session, answer string) (*Reply, error) {
	field := e.rubric.Interview.ProfileFields[session.ProfileIndex]
	session.record("", answer)

	value := strings.TrimSpace(answer)
	switch field.Field {
	case "name":
		session.Profile.Name = value
	case "email":
		session.Profile.Email = value
		if !looksLikeEmail(value) {
			// Best-effort parsing downstream reconciles flagged values;
			// the interview is not blocked on a typo.
			session.Profile.EmailFlagged = true
			e.logger.Warn("email answer flagged",
				zap.String("session_id", session.ID),
			)
		}
	case "location":
		session.Profile.Location = value
	}

	session.ProfileIndex++

	if session.ProfileIndex < len(e.rubric.Interview.ProfileFields) {
		session.PendingQuestion = session.template(e.rubric.Interview.ProfileFields[session.ProfileIndex].Question)
	} else {
		session.Phase = PhaseSkills
		first := e.rubric.Skills[0]
		session.AskedPerSkill[first.ID] = 1
		session.PendingQuestion = session.template(first.ExampleQuestions[0])
	}

	if err := e.commit(ctx, session); err != nil {
		return nil, err
	}

	return session.reply(), nil
}

func (e *Engine) assessSkillAnswer(ctx context.Context, session *Session, answer string, lock *sync.Mutex) (*Reply, error) {
	skill := e.rubric.Skills[session.SkillIndex]
	asked := session.AskedPerSkill[skill.ID]
	baseVersion := session.Version
	pending := session.PendingQuestion
	snapshot := session

	// Consult the gateway without holding the session lock.
	lock.Unlock()

	directive := directiveAdvance
	followUp := ""
	if asked < 1+e.rubric.FollowUpCap() && e.gateway != nil {
		directive = e.decide(ctx, snapshot, &skill, answer)
		if directive == directiveProbe {
			followUp = e.generateFollowUp(ctx, snapshot, &skill, answer)
			if followUp == "" {
				directive = directiveAdvance
			}
		}
	}

	lock.Lock()
	defer lock.Unlock()

	fresh, err := e.store.Get(ctx, session.ID)
	if err != nil {
		return nil, err
	}

	if fresh.Complete() {
		return nil, ErrSessionClosed
	}

	if fresh.Version != baseVersion {
		return nil, ErrConflict
	}

	fresh.PendingQuestion = pending
	fresh.record(skill.ID, answer)

	if directive == directiveProbe {
		fresh.AskedPerSkill[skill.ID]++
		fresh.PendingQuestion = followUp
	} else {
		fresh.SkillIndex++
		if fresh.SkillIndex < len(e.rubric.Skills) {
			next := e.rubric.Skills[fresh.SkillIndex]
			fresh.AskedPerSkill[next.ID] = 1
			fresh.PendingQuestion = fresh.template(next.ExampleQuestions[0])
		} else {
			fresh.Phase = PhaseClosing
			fresh.ClosingIndex = 0
			fresh.PendingQuestion = e.rubric.Interview.ClosingQuestions[0]
		}
	}

	if err := e.commit(ctx, fresh); err != nil {
		return nil, err
	}

	e.logger.Debug("skill answer processed",
		zap.String("session_id", fresh.ID),
		zap.String("skill", skill.ID),
		zap.String("directive", string(directive)),
		zap.String("answer", logger.TruncateForLog(answer, 120)),
	)

	return fresh.reply(), nil
}

func (e *Engine) advanceClosing(ctx context.Context, session *Session, answer string, lock *sync.Mutex) (*Reply, error) {
	session.record("", answer)
	session.ClosingIndex++

	if session.ClosingIndex < len(e.rubric.Interview.ClosingQuestions) {
		defer lock.Unlock()

		session.PendingQuestion = e.rubric.Interview.ClosingQuestions[session.ClosingIndex]
		if err := e.commit(ctx, session); err != nil {
			return nil, err
		}

		return session.reply(), nil
	}

	now := time.Now().UTC()
	session.Phase = PhaseComplete
	session.CompletedAt = &now
	session.PendingQuestion = ""

	if err := e.commit(ctx, session); err != nil {
		lock.Unlock()
		return nil, err
	}

	lock.Unlock()
	e.releaseLock(session.ID)

	// Evaluation runs synchronously but outside the session lock; a scoring
	// failure degrades inside the evaluator and never blocks completion.
	if e.evaluator != nil {
		if err := e.evaluator.Evaluate(ctx, session); err != nil {
			e.logger.Error("evaluation failed",
				zap.String("session_id", session.ID),
				zap.Error(err),
			)
		}
	}

	return &Reply{
		SessionID:  session.ID,
		Message:    session.template(e.rubric.Interview.ClosingMessage),
		Phase:      session.Phase,
		IsComplete: true,
	}, nil
}

func (e *Engine) commit(ctx context.Context, session *Session) error {
	session.Version++
	return e.store.Put(ctx, session)
}

func (s *Session) record(skillID, answer string) {
	s.Transcript = append(s.Transcript, Entry{
		SkillID:  skillID,
		Question: s.PendingQuestion,
		Answer:   answer,
		AskedAt:  time.Now().UTC(),
	})
}

func (s *Session) reply() *Reply {
	return &Reply{
		SessionID:  s.ID,
		Message:    s.PendingQuestion,
		Phase:      s.Phase,
		IsComplete: s.Complete(),
	}
}

func (s *Session) template(text string) string {
	name := s.Profile.Name
	if name == "" {
		name = "there"
	}
	return strings.ReplaceAll(text, "{name}", name)
}

// looksLikeEmail applies the minimal check the state machine cares about:
// an "@" with a dotted domain segment after it.
func looksLikeEmail(value string) bool {
	at := strings.Index(value, "@")
	if at <= 0 || at == len(value)-1 {
		return false
	}
	domain := value[at+1:]
	if !strings.Contains(domain, ".") {
		return false
	}
	return !strings.Contains(value, " ")
}
