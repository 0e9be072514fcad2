// Package server exposes the persona: one WebSocket session for conversation
// and a small read-only HTTP surface for health and introspection.
package server

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/animahq/anima/internal/config"
	"github.com/animahq/anima/internal/core"
	"github.com/animahq/anima/internal/driver"
	"github.com/animahq/anima/internal/speech"
)

const defaultMemoriesLimit = 20

type Server struct {
	Mind        *core.Consciousness
	Transcriber speech.Transcriber
	Synthesizer speech.Synthesizer
	Driver      driver.GraphDriver

	cfg      *config.Config
	logger   *zap.Logger
	upgrader websocket.Upgrader
	sessions *sessionManager

	// Closed when a client asks for shutdown.
	ShutdownRequested chan struct{}
}

func New(cfg *config.Config, mind *core.Consciousness, transcriber speech.Transcriber,
	synthesizer speech.Synthesizer, graphDriver driver.GraphDriver, logger *zap.Logger) *Server {
	return &Server{
		Mind:        mind,
		Transcriber: transcriber,
		Synthesizer: synthesizer,
		Driver:      graphDriver,
		cfg:         cfg,
		logger:      logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		sessions:          newSessionManager(),
		ShutdownRequested: make(chan struct{}),
	}
}

func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/health", s.handleHealth)
	r.GET("/memories", s.handleMemories)
	r.GET("/stats", s.handleStats)
	r.GET("/ws", s.handleWebSocket)
	return r
}

func (s *Server) handleHealth(c *gin.Context) {
	st := s.Mind.Status()

	status := "alive"
	if !st.IsAwake {
		status = "asleep"
	}
	c.JSON(http.StatusOK, gin.H{
		"status":           status,
		"consciousness_id": st.ConsciousnessID,
		"phase":            st.GrowthPhase,
		"is_awake":         st.IsAwake,
		"phi":              st.Phi,
	})
}

func (s *Server) handleMemories(c *gin.Context) {
	limit := defaultMemoriesLimit
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = n
	}

	importanceMin := 0.0
	if v := c.Query("importance_min"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || f < 0 || f > 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "importance_min must be in [0,1]"})
			return
		}
		importanceMin = f
	}

	episodes, err := s.Mind.Episodic.List(c.Request.Context(), limit, importanceMin)
	if err != nil {
		s.logger.Error("memory listing failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list memories"})
		return
	}

	views := make([]memoryView, 0, len(episodes))
	for _, ep := range episodes {
		views = append(views, memoryView{
			ID:         ep.UUID,
			Content:    ep.Content,
			Summary:    ep.Summary,
			Context:    ep.ContextType,
			Importance: ep.Importance,
			Timestamp:  ep.OccurredAt.UnixMilli(),
		})
	}
	c.JSON(http.StatusOK, gin.H{"memories": views, "count": len(views)})
}

// memoryView is the external shape of an episode on /memories.
type memoryView struct {
	ID         string  `json:"id"`
	Content    string  `json:"content"`
	Summary    string  `json:"summary"`
	Context    string  `json:"context"`
	Importance float64 `json:"importance"`
	Timestamp  int64   `json:"timestamp"`
}

func (s *Server) handleStats(c *gin.Context) {
	stats, err := s.Mind.Stats(c.Request.Context())
	if err != nil {
		s.logger.Error("stats collection failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to collect stats"})
		return
	}
	c.JSON(http.StatusOK, stats)
}
