package adminapi

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
)

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) status(c *gin.Context) {
	c.JSON(http.StatusOK, s.ctrl.Status())
}

func (s *Server) stats(c *gin.Context) {
	stats := s.store.Statistics(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{
		"total_posts":  stats.TotalPosts,
		"total_clicks": stats.TotalClicks,
		"avg_score":    stats.AvgScore,
		"top_products": stats.TopProducts,
		"categories":   s.store.CategoryMetrics(c.Request.Context()),
	})
}

func (s *Server) hourlyStats(c *gin.Context) {
	c.JSON(http.StatusOK, s.ctrl.HourlyStats())
}

func (s *Server) pause(c *gin.Context) {
	s.ctrl.Pause()
	slog.Info("adminapi: posting paused.")
	c.JSON(http.StatusOK, gin.H{"paused": true})
}

func (s *Server) resume(c *gin.Context) {
	s.ctrl.Resume()
	slog.Info("adminapi: posting resumed.")
	c.JSON(http.StatusOK, gin.H{"paused": false})
}

type frequencyRequest struct {
	MinPerHour int `json:"min_per_hour" binding:"required"`
	MaxPerHour int `json:"max_per_hour" binding:"required"`
}

func (s *Server) frequency(c *gin.Context) {
	var req frequencyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := s.ctrl.AdjustFrequency(req.MinPerHour, req.MaxPerHour); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	slog.Info("adminapi: frequency adjusted.", "min", req.MinPerHour, "max", req.MaxPerHour)
	c.JSON(http.StatusOK, gin.H{"min_per_hour": req.MinPerHour, "max_per_hour": req.MaxPerHour})
}

type forcePostRequest struct {
	ProductID string `json:"product_id" binding:"required"`
}

func (s *Server) forcePost(c *gin.Context) {
	var req forcePostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	ctx := c.Request.Context()
	p, err := s.source.FetchDetails(ctx, req.ProductID)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	if p == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "product not found"})
		return
	}
	score := s.scorer.Score(ctx, *p)
	s.poster.ForcePostNow(ctx, *p, score)
	slog.Info("adminapi: force post executed.", "id", p.ID, "score", score)
	c.JSON(http.StatusOK, gin.H{"product_id": p.ID, "score": score})
}

func (s *Server) emergencyStop(c *gin.Context) {
	n := s.ctrl.EmergencyStop()
	slog.Warn("adminapi: emergency stop requested.", "cancelled", n)
	c.JSON(http.StatusOK, gin.H{"cancelled_jobs": n})
}

// redirect counts a click and forwards to the affiliate link. Unknown ids get
// 404 rather than an open redirect.
func (s *Server) redirect(c *gin.Context) {
	id := c.Param("id")
	ctx := c.Request.Context()
	url, err := s.store.AffiliateURL(ctx, id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if url == "" {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown product"})
		return
	}
	if err := s.store.RecordClick(ctx, id); err != nil {
		slog.Warn("adminapi: click not recorded.", "id", id, "error", err)
	}
	c.Redirect(http.StatusFound, url)
}
