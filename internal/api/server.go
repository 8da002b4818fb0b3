// Package api exposes the engine's minimal REST+SSE surface (spec.md
// §6: "exposed, minimal — no authentication or session management").
// Grounded on the teacher's gin-based HTTP layer (internal/api_legacy
// patterns visible across the teacher's cmd/* tools), but stripped of
// every auth/session middleware since that surface is explicitly out
// of scope.
package api

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/paperdesk/trader-engine/internal/domain"
	"github.com/paperdesk/trader-engine/internal/eventbus"
	"github.com/paperdesk/trader-engine/internal/ledgerstore"
	"github.com/paperdesk/trader-engine/internal/logging"
	"github.com/paperdesk/trader-engine/internal/scheduler"
)

// Server wires the engine's Store/Engine/Bus into a gin router.
type Server struct {
	store   ledgerstore.Store
	engine  *scheduler.Engine
	bus     *eventbus.Bus
	log     *logging.Logger
	router  *gin.Engine
}

func New(store ledgerstore.Store, engine *scheduler.Engine, bus *eventbus.Bus, corsOrigins []string, log *logging.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(cors.New(cors.Config{
		AllowOrigins:     corsOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE"},
		AllowHeaders:     []string{"Content-Type"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}))

	s := &Server{store: store, engine: engine, bus: bus, log: log, router: r}
	s.routes()
	return s
}

func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) routes() {
	traders := s.router.Group("/traders")
	traders.POST("", s.createTrader)
	traders.GET("", s.listTraders)
	traders.GET("/:id", s.getTrader)
	traders.PUT("/:id/personality", s.updatePersonality)
	traders.DELETE("/:id", s.deleteTrader)
	traders.POST("/:id/start", s.startTrader)
	traders.POST("/:id/stop", s.stopTrader)
	traders.POST("/:id/pause", s.pauseTrader)
	traders.POST("/:id/resume", s.resumeTrader)
	traders.POST("/:id/learn", s.triggerLearning)
	traders.GET("/:id/decisions", s.listDecisions)
	traders.GET("/:id/reports/:date", s.getDailyReport)
	traders.GET("/:id/stream", s.stream)

	s.router.POST("/instance/pause", s.pauseAll)
	s.router.POST("/instance/resume", s.resumeAll)
}

func (s *Server) createTrader(c *gin.Context) {
	var body struct {
		Name        string             `json:"name" binding:"required"`
		Personality domain.Personality `json:"personality"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	personality := body.Personality
	if personality.Capital.InitialBudget == 0 {
		personality = domain.DefaultPersonality()
	}
	if err := personality.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	now := time.Now()
	t := &domain.Trader{
		ID:          uuid.New(),
		Name:        body.Name,
		Personality: personality,
		State:       domain.TraderStopped,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.store.SaveTrader(c.Request.Context(), t); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, t)
}

func (s *Server) listTraders(c *gin.Context) {
	list, err := s.store.ListTraders(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, list)
}

func (s *Server) getTrader(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid trader id"})
		return
	}
	t, err := s.store.GetTrader(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, t)
}

func (s *Server) updatePersonality(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid trader id"})
		return
	}
	t, err := s.store.GetTrader(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	var personality domain.Personality
	if err := c.ShouldBindJSON(&personality); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := personality.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	t.Personality = personality
	t.UpdatedAt = time.Now()
	if err := s.store.SaveTrader(c.Request.Context(), t); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, t)
}

func (s *Server) deleteTrader(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid trader id"})
		return
	}
	s.engine.StopTrader(id)
	if err := s.store.DeleteTrader(c.Request.Context(), id); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) startTrader(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid trader id"})
		return
	}
	t, err := s.store.GetTrader(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	if err := t.Personality.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	t.State = domain.TraderRunning
	t.UpdatedAt = time.Now()
	if err := s.store.SaveTrader(c.Request.Context(), t); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if err := s.engine.StartTrader(c.Request.Context(), t); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, t)
}

func (s *Server) stopTrader(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid trader id"})
		return
	}
	s.engine.StopTrader(id)
	t, err := s.store.GetTrader(c.Request.Context(), id)
	if err == nil {
		t.State = domain.TraderStopped
		t.UpdatedAt = time.Now()
		s.store.SaveTrader(c.Request.Context(), t)
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) pauseTrader(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid trader id"})
		return
	}
	s.engine.PauseTrader(id)
	c.Status(http.StatusNoContent)
}

func (s *Server) resumeTrader(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid trader id"})
		return
	}
	s.engine.ResumeTrader(id)
	c.Status(http.StatusNoContent)
}

// triggerLearning runs one adaptive-learning pass on demand for a
// running trader (spec.md §10.3: manual adaptive-learning trigger),
// independent of the nightly market-close schedule.
func (s *Server) triggerLearning(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid trader id"})
		return
	}
	if err := s.engine.TriggerLearning(c.Request.Context(), id); err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) pauseAll(c *gin.Context) {
	s.engine.PauseAll()
	c.Status(http.StatusNoContent)
}

func (s *Server) resumeAll(c *gin.Context) {
	s.engine.ResumeAll()
	c.Status(http.StatusNoContent)
}

func (s *Server) listDecisions(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid trader id"})
		return
	}
	since := time.Now().Add(-30 * 24 * time.Hour)
	decisions, err := s.store.ListDecisions(c.Request.Context(), id, since, 500)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, decisions)
}

func (s *Server) getDailyReport(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid trader id"})
		return
	}
	date, err := time.Parse("2006-01-02", c.Param("date"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid date, expected YYYY-MM-DD"})
		return
	}
	report, err := s.store.GetDailyReport(c.Request.Context(), id, date)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, report)
}
