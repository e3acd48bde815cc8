package server

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/danmuck/pdcpmux/internal/auth"
	"github.com/danmuck/pdcpmux/internal/config"
	"github.com/danmuck/pdcpmux/internal/pdcp"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const version = "0.1.0"

func (s *Server) RegisterRoutes() {
	r := s.router

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"uptime":  time.Since(s.Appeared).String(),
			"service": s.ID,
			"version": version,
		})
	})

	r.GET("/ready", func(c *gin.Context) {
		status := http.StatusOK
		ready := !s.mux.Stopped()
		if !ready {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{
			"ready":   ready,
			"uptime":  time.Since(s.Appeared).String(),
			"service": s.ID,
			"version": version,
		})
	})

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.GET("/bearers", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"primary_data_bearer": s.mux.PrimaryDataBearer(),
			"bearers":             s.mux.Bearers(),
		})
	})

	r.GET("/bearers/:lcid", s.getBearer)

	r.GET("/pdcp/metrics", func(c *gin.Context) {
		body := gin.H{
			"primary_data_bearer": s.mux.PrimaryDataBearer(),
			"metrics":             s.mux.Metrics(),
		}
		if s.throughput != nil {
			body["aggregation"] = s.throughput()
		}
		c.JSON(http.StatusOK, body)
	})

	guarded := r.Group("/", auth.Require(s.validator))

	guarded.POST("/reset", func(c *gin.Context) {
		s.mux.Reset()
		s.log.Info().Msg("server.admin reset")
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	guarded.POST("/reestablish", func(c *gin.Context) {
		s.mux.Reestablish()
		s.log.Info().Msg("server.admin reestablish")
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	guarded.PUT("/tuning", s.putTuning)
}

// getBearer reports one slot. ?table=mch selects the multicast table.
func (s *Server) getBearer(c *gin.Context) {
	raw, err := strconv.ParseUint(c.Param("lcid"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "lcid must be an unsigned integer"})
		return
	}
	lcid := uint32(raw)
	multicast := c.Query("table") == "mch"

	check := s.mux.CheckLCID
	if multicast {
		check = s.mux.CheckMCHLCID
	}
	err = check(lcid)
	if errors.Is(err, pdcp.ErrLCIDOutOfRange) {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	out := pdcp.BearerStatus{LCID: lcid, Multicast: multicast, Active: err == nil}
	for _, b := range s.mux.Bearers() {
		if b.LCID == lcid && b.Multicast == multicast {
			out.Name = b.Name
			break
		}
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) putTuning(c *gin.Context) {
	var req config.TuningConfig
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := config.ValidateTuning(req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	config.ApplyTuning(s.mux, req)
	s.log.Info().Interface("tuning", req).Msg("server.admin tuning applied")
	c.JSON(http.StatusOK, gin.H{"status": "ok", "primary_data_bearer": s.mux.PrimaryDataBearer()})
}
