// Package api exposes the read-only article surface plus the manual refresh
// trigger. It has no authentication; the daemon is meant to sit behind a
// reverse proxy or on a private interface.
package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"oddspress/internal/orchestrator"
	"oddspress/internal/store"
	"oddspress/internal/types"
)

// Server wires the HTTP routes to storage and the pipeline.
type Server struct {
	backend store.Backend
	orch    *orchestrator.Orchestrator
}

// NewRouter builds the gin engine with all routes registered.
func NewRouter(backend store.Backend, orch *orchestrator.Orchestrator) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.Default()

	s := &Server{backend: backend, orch: orch}

	api := r.Group("/api")
	{
		api.GET("/articles", s.listArticles)
		api.GET("/articles/:id", s.getArticle)
		api.POST("/refresh", s.refresh)
	}

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	return r
}

// listArticles returns the stored collection, most recent first, bounded by
// the backend's cap.
func (s *Server) listArticles(c *gin.Context) {
	articles, err := s.backend.ListArticles(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if articles == nil {
		articles = []types.Article{}
	}
	c.JSON(http.StatusOK, articles)
}

func (s *Server) getArticle(c *gin.Context) {
	article, found, err := s.backend.GetArticleByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if !found {
		c.JSON(http.StatusNotFound, gin.H{"error": "article not found"})
		return
	}
	c.JSON(http.StatusOK, article)
}

// refresh runs a generation cycle synchronously and reports how many new
// articles were stored.
func (s *Server) refresh(c *gin.Context) {
	generated, err := s.orch.RunGeneration(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"generated": generated})
}
