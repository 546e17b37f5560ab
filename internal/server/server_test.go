package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/nytrohq/interview-screener/internal/ai"
	"github.com/nytrohq/interview-screener/internal/evaluation"
	"github.com/nytrohq/interview-screener/internal/followup"
	"github.com/nytrohq/interview-screener/internal/interview"
	"github.com/nytrohq/interview-screener/internal/rubric"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type stubGateway struct{}

func (stubGateway) GenerateText(_ context.Context, _ *ai.Request) (string, error) {
	return "Which metrics did you track?", nil
}

func (stubGateway) GenerateJSON(_ context.Context, _ *ai.Request, _ []byte) (string, error) {
	return `{"directive": "advance", "rating": 4, "evidence": [], "rationale": "solid"}`, nil
}

func testRubric() *rubric.Rubric {
	return &rubric.Rubric{
		Company: "Acme",
		Role:    "Backend Engineer",
		Skills: []rubric.Skill{
			{ID: "go", Name: "Go", Weight: 5, ExampleQuestions: []string{"Tell me about a Go service you shipped.", "How do you test concurrent code?"}},
		},
		Levels: []rubric.Level{
			{Score: 1}, {Score: 2}, {Score: 3}, {Score: 4}, {Score: 5},
		},
		Tiers: []rubric.Tier{
			{Name: "strong_yes", MinScore: 4.0, Label: "Strong yes"},
			{Name: "no", MinScore: 0, Label: "No"},
		},
		Interview: rubric.Interview{
			OpeningMessage:   "Welcome! Ready to begin?",
			ClosingMessage:   "Thanks {name}.",
			ClosingQuestions: []string{"Any questions?"},
			ProfileFields: []rubric.ProfileField{
				{Field: "name", Question: "Name?"},
				{Field: "email", Question: "Email?"},
				{Field: "location", Question: "Location?"},
			},
		},
	}
}

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()

	r := testRubric()
	gateway := stubGateway{}
	sessions := interview.NewMemoryStore()
	results := evaluation.NewMemoryStore()

	evaluations := evaluation.NewEngine(r, evaluation.Deps{
		Gateway: gateway,
		Store:   results,
		Logger:  zap.NewNop(),
	})

	interviews := interview.NewEngine(r, interview.Deps{
		Store:     sessions,
		Gateway:   gateway,
		Evaluator: evaluations,
		Logger:    zap.NewNop(),
	})

	guides := followup.NewGenerator(r, results, sessions, zap.NewNop())

	return New(interviews, evaluations, guides, zap.NewNop()).Router()
}

func doJSON(t *testing.T, router *gin.Engine, method, path string, body any) (*httptest.ResponseRecorder, *APIResponse) {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("encoding request: %v", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	var envelope APIResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decoding response %q: %v", rec.Body.String(), err)
	}

	return rec, &envelope
}

func startSession(t *testing.T, router *gin.Engine) string {
	t.Helper()

	rec, envelope := doJSON(t, router, http.MethodPost, "/api/interview/start", nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	data := envelope.Data.(map[string]any)
	id, _ := data["session_id"].(string)
	if id == "" {
		t.Fatalf("expected a session id in %v", envelope.Data)
	}
	return id
}

func TestHealthz(t *testing.T) {
	router := newTestRouter(t)

	rec, envelope := doJSON(t, router, http.MethodGet, "/healthz", nil)
	if rec.Code != http.StatusOK || !envelope.Success {
		t.Fatalf("unexpected health response: %d %s", rec.Code, rec.Body.String())
	}
}

func TestStartInterview(t *testing.T) {
	router := newTestRouter(t)

	rec, envelope := doJSON(t, router, http.MethodPost, "/api/interview/start", nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}

	data := envelope.Data.(map[string]any)
	if data["message"] != "Welcome! Ready to begin?" {
		t.Fatalf("unexpected opening message: %v", data["message"])
	}
	if data["phase"] != "introduction" {
		t.Fatalf("unexpected phase: %v", data["phase"])
	}
}

func TestSubmitAnswerAdvancesPhase(t *testing.T) {
	router := newTestRouter(t)
	id := startSession(t, router)

	rec, envelope := doJSON(t, router, http.MethodPost, "/api/interview/"+id+"/answer", gin.H{"answer": "Ready!"})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	data := envelope.Data.(map[string]any)
	if data["phase"] != "collect_info" {
		t.Fatalf("expected collect_info, got %v", data["phase"])
	}
	if data["message"] != "Name?" {
		t.Fatalf("expected the first profile question, got %v", data["message"])
	}
}

func TestSubmitEmptyAnswerReturns422WithReprompt(t *testing.T) {
	router := newTestRouter(t)
	id := startSession(t, router)

	rec, envelope := doJSON(t, router, http.MethodPost, "/api/interview/"+id+"/answer", gin.H{"answer": "  "})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rec.Code)
	}
	if envelope.Success {
		t.Fatalf("expected a failure envelope")
	}
	if envelope.Reprompt != "Welcome! Ready to begin?" {
		t.Fatalf("expected the pending question as reprompt, got %q", envelope.Reprompt)
	}
}

func TestSubmitAnswerMalformedBody(t *testing.T) {
	router := newTestRouter(t)
	id := startSession(t, router)

	req := httptest.NewRequest(http.MethodPost, "/api/interview/"+id+"/answer", strings.NewReader("{not json"))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestUnknownSessionIs404(t *testing.T) {
	router := newTestRouter(t)

	rec, _ := doJSON(t, router, http.MethodPost, "/api/interview/nope/answer", gin.H{"answer": "hi"})
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}

	rec, _ = doJSON(t, router, http.MethodGet, "/api/evaluations/nope", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for a missing evaluation, got %d", rec.Code)
	}

	rec, _ = doJSON(t, router, http.MethodGet, "/api/evaluations/nope/followup-guide", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for a missing guide, got %d", rec.Code)
	}
}

// runInterview drives a session through the API until completion.
func runInterview(t *testing.T, router *gin.Engine) string {
	t.Helper()

	id := startSession(t, router)
	answers := []string{
		"Ready!",
		"Jordan Reyes",
		"jordan@example.com",
		"Lisbon",
		"I built an order pipeline in Go.",
		"No questions, thanks!",
	}

	for _, answer := range answers {
		rec, envelope := doJSON(t, router, http.MethodPost, "/api/interview/"+id+"/answer", gin.H{"answer": answer})
		if rec.Code != http.StatusOK {
			t.Fatalf("answering %q: %d %s", answer, rec.Code, rec.Body.String())
		}
		_ = envelope
	}

	return id
}

func TestFullInterviewOverHTTP(t *testing.T) {
	router := newTestRouter(t)
	id := runInterview(t, router)

	rec, envelope := doJSON(t, router, http.MethodGet, "/api/interview/"+id+"/progress", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	progress := envelope.Data.(map[string]any)
	if progress["phase"] != "complete" {
		t.Fatalf("expected complete, got %v", progress["phase"])
	}

	rec, envelope = doJSON(t, router, http.MethodGet, "/api/evaluations/"+id, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected an evaluation, got %d: %s", rec.Code, rec.Body.String())
	}
	result := envelope.Data.(map[string]any)
	if result["composite"].(float64) != 4.0 {
		t.Fatalf("expected composite 4.0, got %v", result["composite"])
	}

	rec, envelope = doJSON(t, router, http.MethodGet, "/api/evaluations", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	list := envelope.Data.([]any)
	if len(list) != 1 {
		t.Fatalf("expected 1 evaluation, got %d", len(list))
	}

	rec, envelope = doJSON(t, router, http.MethodGet, "/api/evaluations/"+id+"/followup-guide", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected a guide, got %d: %s", rec.Code, rec.Body.String())
	}
	guide := envelope.Data.(map[string]any)
	if guide["session_id"] != id {
		t.Fatalf("unexpected guide session: %v", guide["session_id"])
	}

	// A closed session rejects further answers.
	rec, _ = doJSON(t, router, http.MethodPost, "/api/interview/"+id+"/answer", gin.H{"answer": "more"})
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 for a closed session, got %d", rec.Code)
	}
}
