package server

import (
	"errors"
	"net/http"

	"github.com/nytrohq/interview-screener/internal/evaluation"
	"github.com/nytrohq/interview-screener/internal/followup"
	"github.com/nytrohq/interview-screener/internal/interview"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// APIResponse is the envelope for every JSON response.
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
	// Reprompt carries the question to re-ask after a rejected answer.
	Reprompt string `json:"reprompt,omitempty"`
}

// Server exposes the interview core over HTTP. The core itself is
// transport-agnostic; this layer only maps calls and errors.
type Server struct {
	interviews  *interview.Engine
	evaluations *evaluation.Engine
	guides      *followup.Generator
	logger      *zap.Logger
}

func New(interviews *interview.Engine, evaluations *evaluation.Engine, guides *followup.Generator, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Server{
		interviews:  interviews,
		evaluations: evaluations,
		guides:      guides,
		logger:      logger,
	}
}

// Router builds the gin engine with all routes registered.
func (s *Server) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/healthz", s.health)

	api := router.Group("/api")
	{
		api.POST("/interview/start", s.startInterview)
		api.POST("/interview/:id/answer", s.submitAnswer)
		api.GET("/interview/:id/progress", s.progress)

		api.GET("/evaluations", s.listEvaluations)
		api.GET("/evaluations/:id", s.getEvaluation)
		api.GET("/evaluations/:id/followup-guide", s.followUpGuide)
	}

	return router
}

// Run starts the HTTP listener.
func (s *Server) Run(addr string) error {
	s.logger.Info("http server listening", zap.String("addr", addr))
	return s.Router().Run(addr)
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, APIResponse{Success: true, Data: gin.H{"status": "ok"}})
}

func (s *Server) startInterview(c *gin.Context) {
	reply, err := s.interviews.StartSession(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}

	c.JSON(http.StatusCreated, APIResponse{Success: true, Data: reply})
}

type answerRequest struct {
	Answer string `json:"answer"`
}

func (s *Server) submitAnswer(c *gin.Context) {
	var req answerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, APIResponse{Success: false, Error: "invalid request body"})
		return
	}

	reply, err := s.interviews.SubmitAnswer(c.Request.Context(), c.Param("id"), req.Answer)
	if err != nil {
		s.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, APIResponse{Success: true, Data: reply})
}

func (s *Server) progress(c *gin.Context) {
	progress, err := s.interviews.Progress(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, APIResponse{Success: true, Data: progress})
}

func (s *Server) listEvaluations(c *gin.Context) {
	results, err := s.evaluations.Results(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, APIResponse{Success: true, Data: results})
}

func (s *Server) getEvaluation(c *gin.Context) {
	result, err := s.evaluations.Result(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, APIResponse{Success: true, Data: result})
}

func (s *Server) followUpGuide(c *gin.Context) {
	guide, err := s.guides.Guide(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, APIResponse{Success: true, Data: guide})
}

// fail maps the core error taxonomy onto HTTP statuses.
func (s *Server) fail(c *gin.Context, err error) {
	if ve, ok := interview.AsValidation(err); ok {
		c.JSON(http.StatusUnprocessableEntity, APIResponse{
			Success:  false,
			Error:    ve.Error(),
			Reprompt: ve.Reprompt,
		})
		return
	}

	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, interview.ErrSessionNotFound), errors.Is(err, evaluation.ErrNoEvaluation):
		status = http.StatusNotFound
	case errors.Is(err, interview.ErrSessionClosed),
		errors.Is(err, interview.ErrConflict),
		errors.Is(err, evaluation.ErrAlreadyEvaluated),
		errors.Is(err, evaluation.ErrSessionNotComplete):
		status = http.StatusConflict
	}

	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", zap.Error(err))
	}

	c.JSON(status, APIResponse{Success: false, Error: err.Error()})
}
