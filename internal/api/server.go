package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/pulsewatch/internal/alert"
	"github.com/pulsewatch/internal/events"
	"github.com/pulsewatch/internal/models"
	"github.com/pulsewatch/internal/store"
)

type Server struct {
	rules       *store.RuleStore
	samples     *store.MetricStore
	projects    *store.ProjectStore
	machine     *alert.StateMachine
	lifecycle   *alert.LifecyclePublisher
	broadcaster *events.Broadcaster
	router      *gin.Engine
}

func NewServer(
	rules *store.RuleStore,
	samples *store.MetricStore,
	projects *store.ProjectStore,
	machine *alert.StateMachine,
	lifecycle *alert.LifecyclePublisher,
	broadcaster *events.Broadcaster,
) *Server {
	server := &Server{
		rules:       rules,
		samples:     samples,
		projects:    projects,
		machine:     machine,
		lifecycle:   lifecycle,
		broadcaster: broadcaster,
		router:      gin.Default(),
	}

	server.setupRoutes()
	return server
}

func (s *Server) setupRoutes() {
	s.router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := s.router.Group("/api/v1")

	api.GET("/projects", s.listProjects)
	api.POST("/projects", s.createProject)

	rules := api.Group("/rules")
	{
		rules.GET("", s.listRules)
		rules.GET("/:id", s.getRule)
		rules.POST("", s.createRule)
		rules.PUT("/:id", s.updateRule)
		rules.DELETE("/:id", s.deleteRule)
		rules.PUT("/:id/enable", s.enableRule)
		rules.PUT("/:id/disable", s.disableRule)
		rules.GET("/export", s.exportRules)
		rules.POST("/import", s.importRules)
	}

	api.GET("/alerts", s.listAlerts)
	api.POST("/alerts/:id/acknowledge", s.acknowledgeAlert)

	api.POST("/metrics", s.ingestSample)
	api.GET("/events", s.streamEvents)
}

// Router exposes the handler for serving and tests.
func (s *Server) Router() http.Handler {
	return s.router
}

func (s *Server) Start(port int) error {
	return s.router.Run(fmt.Sprintf(":%d", port))
}

// ruleRequest is the external create/update contract.
type ruleRequest struct {
	ProjectID            uint                  `json:"projectId"`
	Name                 string                `json:"name"`
	Description          string                `json:"description"`
	MetricType           string                `json:"metricType"`
	Condition            models.ConditionType  `json:"condition"`
	Threshold            float64               `json:"threshold"`
	DurationSeconds      *int                  `json:"durationSeconds"`
	Severity             models.Severity       `json:"severity"`
	CooldownMinutes      int                   `json:"cooldownMinutes"`
	NotificationChannels []string              `json:"notificationChannels"`
	NotificationConfig   *models.ChannelConfig `json:"notificationConfig"`
	Enabled              *bool                 `json:"enabled"`
}

func (s *Server) createRule(c *gin.Context) {
	var req ruleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	rule, err := models.NewAlert(req.ProjectID, req.Name, req.MetricType, req.Condition, req.Threshold, req.Severity)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	rule.Description = req.Description
	rule.CooldownMinutes = req.CooldownMinutes
	rule.NotificationChannels = req.NotificationChannels
	rule.NotificationConfig = req.NotificationConfig
	if req.DurationSeconds != nil {
		rule.DurationSeconds = *req.DurationSeconds
	}
	if req.Enabled != nil {
		rule.Enabled = *req.Enabled
	}

	if err := s.rules.Create(rule); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, rule)
}

func (s *Server) updateRule(c *gin.Context) {
	rule, ok := s.findRule(c)
	if !ok {
		return
	}

	var req ruleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if req.Name != "" {
		rule.Name = req.Name
	}
	rule.Description = req.Description
	if req.MetricType != "" {
		rule.MetricType = req.MetricType
	}
	if req.Condition != "" {
		rule.Condition = req.Condition
	}
	rule.UpdateThreshold(req.Threshold)
	if req.Severity != "" {
		if err := rule.UpdateSeverity(req.Severity); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}
	rule.CooldownMinutes = req.CooldownMinutes
	if req.DurationSeconds != nil {
		rule.DurationSeconds = *req.DurationSeconds
	}
	if req.NotificationChannels != nil {
		rule.NotificationChannels = req.NotificationChannels
	}
	if req.NotificationConfig != nil {
		rule.NotificationConfig = req.NotificationConfig
	}
	if req.Enabled != nil {
		rule.Enabled = *req.Enabled
	}

	if err := rule.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := s.rules.Save(rule); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, rule)
}

func (s *Server) deleteRule(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	if err := s.rules.Delete(id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "ALERT_NOT_FOUND"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	// Debounce state for a deleted rule is dropped explicitly, not
	// garbage-collected.
	s.machine.Forget(id)
	c.Status(http.StatusNoContent)
}

func (s *Server) getRule(c *gin.Context) {
	rule, ok := s.findRule(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, rule)
}

func (s *Server) listRules(c *gin.Context) {
	var enabled *bool
	if v := c.Query("enabled"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid enabled filter"})
			return
		}
		enabled = &b
	}
	rules, err := s.rules.List(enabled)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, rules)
}

func (s *Server) enableRule(c *gin.Context) {
	s.setRuleEnabled(c, true)
}

func (s *Server) disableRule(c *gin.Context) {
	s.setRuleEnabled(c, false)
}

func (s *Server) setRuleEnabled(c *gin.Context, enabled bool) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	if err := s.rules.SetEnabled(id, enabled); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "ALERT_NOT_FOUND"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if !enabled {
		s.machine.Forget(id)
	}
	c.JSON(http.StatusOK, gin.H{"enabled": enabled})
}

func (s *Server) exportRules(c *gin.Context) {
	rules, err := s.rules.List(nil)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, rules)
}

func (s *Server) importRules(c *gin.Context) {
	var rules []models.Alert
	if err := c.ShouldBindJSON(&rules); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := s.rules.Import(rules); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"imported": len(rules)})
}

func (s *Server) listAlerts(c *gin.Context) {
	rules, err := s.rules.List(nil)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	firing := make([]models.Alert, 0)
	for _, r := range rules {
		if r.Status == models.AlertStatusActive || r.Status == models.AlertStatusAcknowledged {
			firing = append(firing, r)
		}
	}
	c.JSON(http.StatusOK, firing)
}

func (s *Server) acknowledgeAlert(c *gin.Context) {
	rule, ok := s.findRule(c)
	if !ok {
		return
	}

	var req struct {
		Actor string `json:"actor"`
	}
	_ = c.ShouldBindJSON(&req)

	if err := s.lifecycle.Acknowledge(c.Request.Context(), rule, req.Actor, time.Now()); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, rule)
}

func (s *Server) ingestSample(c *gin.Context) {
	var sample models.MetricSample
	if err := c.ShouldBindJSON(&sample); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if sample.Timestamp.IsZero() {
		sample.Timestamp = time.Now()
	}
	if err := s.samples.Insert(&sample); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, sample)
}

func (s *Server) listProjects(c *gin.Context) {
	projects, err := s.projects.List()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, projects)
}

func (s *Server) createProject(c *gin.Context) {
	var project models.Project
	if err := c.ShouldBindJSON(&project); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if project.Name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "project name must not be empty"})
		return
	}
	if err := s.projects.Create(&project); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, project)
}

// streamEvents bridges the broadcaster onto an SSE stream, optionally
// scoped to one project's room.
func (s *Server) streamEvents(c *gin.Context) {
	room := events.GlobalRoom
	if v := c.Query("project_id"); v != "" {
		id, err := strconv.ParseUint(v, 10, 32)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid project_id"})
			return
		}
		room = events.ProjectRoom(uint(id))
	}

	ch, cancel := s.broadcaster.Subscribe(room)
	defer cancel()

	c.Stream(func(w io.Writer) bool {
		select {
		case ev, open := <-ch:
			if !open {
				return false
			}
			c.SSEvent(string(ev.Type), ev)
			return true
		case <-c.Request.Context().Done():
			return false
		}
	})
}

func (s *Server) findRule(c *gin.Context) (*models.Alert, bool) {
	id, ok := paramID(c)
	if !ok {
		return nil, false
	}
	rule, err := s.rules.Get(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "ALERT_NOT_FOUND"})
		} else {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}
		return nil, false
	}
	return rule, true
}

func paramID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return 0, false
	}
	return uint(id), true
}
