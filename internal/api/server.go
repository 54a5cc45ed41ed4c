// Package api provides the local control/status HTTP API: a small
// machine-readable surface exposing round/progress snapshots and the
// engine's control verbs. It is not the web dashboard.
package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tos-network/tos-miner/internal/config"
	"github.com/tos-network/tos-miner/internal/util"
)

// StatusResponse is the /status response.
type StatusResponse struct {
	Height         uint64  `json:"height"`
	ReadFraction   float64 `json:"readFraction"`
	VerifyFraction float64 `json:"verifyFraction"`
	BestDeadline   uint64  `json:"bestDeadline"`
	Processing     bool    `json:"processing"`
	UpstreamHealth bool    `json:"upstreamHealthy"`
}

// Controller is the engine-side surface this API drives. The concrete
// implementation lives with the process wiring (cmd/tos-miner), not here,
// so this package has no dependency on the engine/poller/plot packages.
type Controller interface {
	Status() StatusResponse
	Stop()
	Restart() error
	Rescan() error
	SetMiningIntensity(n int) error
	SetMaxPlotReaders(n int) error
	SetMaxBufferSize(bytes int64) error
}

// Server is the local control/status API server.
type Server struct {
	cfg        *config.APIConfig
	controller Controller
	router     *gin.Engine
	server     *http.Server
}

// NewServer creates an API server bound to controller.
func NewServer(cfg *config.APIConfig, controller Controller) *Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	s := &Server{
		cfg:        cfg,
		controller: controller,
		router:     router,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.GET("/status", s.handleStatus)

	control := s.router.Group("/control")
	{
		control.POST("/stop", s.handleStop)
		control.POST("/restart", s.handleRestart)
		control.POST("/rescan", s.handleRescan)
		control.PUT("/intensity", s.handleSetIntensity)
		control.PUT("/max-plot-readers", s.handleSetMaxPlotReaders)
		control.PUT("/max-buffer-size", s.handleSetMaxBufferSize)
	}

	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
}

func (s *Server) handleStatus(c *gin.Context) {
	c.JSON(http.StatusOK, s.controller.Status())
}

func (s *Server) handleStop(c *gin.Context) {
	s.controller.Stop()
	c.JSON(http.StatusOK, gin.H{"result": "stopping"})
}

func (s *Server) handleRestart(c *gin.Context) {
	if err := s.controller.Restart(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"result": "restarted"})
}

func (s *Server) handleRescan(c *gin.Context) {
	if err := s.controller.Rescan(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"result": "rescanned"})
}

type intensityRequest struct {
	Value int `json:"value"`
}

func (s *Server) handleSetIntensity(c *gin.Context) {
	var req intensityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := s.controller.SetMiningIntensity(req.Value); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"result": "ok"})
}

type countRequest struct {
	Value int `json:"value"`
}

func (s *Server) handleSetMaxPlotReaders(c *gin.Context) {
	var req countRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := s.controller.SetMaxPlotReaders(req.Value); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"result": "ok"})
}

type bufferSizeRequest struct {
	Bytes int64 `json:"bytes"`
}

func (s *Server) handleSetMaxBufferSize(c *gin.Context) {
	var req bufferSizeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := s.controller.SetMaxBufferSize(req.Bytes); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"result": "ok"})
}

// Start begins serving the control/status API, if enabled.
func (s *Server) Start() error {
	if !s.cfg.Enabled {
		return nil
	}

	s.server = &http.Server{
		Addr:    s.cfg.Bind,
		Handler: s.router,
	}

	util.Infof("control API listening on %s", s.cfg.Bind)

	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			util.Errorf("control API server error: %v", err)
		}
	}()

	return nil
}

// Stop shuts down the API server.
func (s *Server) Stop() error {
	if s.server != nil {
		return s.server.Close()
	}
	return nil
}
