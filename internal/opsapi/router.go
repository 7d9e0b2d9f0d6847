// Package opsapi is the ops HTTP surface: a health check, a Prometheus
// /metrics endpoint, and a JWT-gated admin group exposing worker and
// queue status. It is a read-only
// window onto task rows and articulum state for humans, not a control
// plane. Grounded on internal/server.NewRouter's wiring (gin +
// gin-contrib/cors).
package opsapi

import (
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/avitoscout/orchestrator/internal/opsapi/apierr"
	opsmiddleware "github.com/avitoscout/orchestrator/internal/opsapi/middleware"
	"github.com/avitoscout/orchestrator/internal/opsapi/reqctx"
	"github.com/avitoscout/orchestrator/internal/repos"
)

type RouterConfig struct {
	Auth            *opsmiddleware.AuthMiddleware
	Proxies         repos.ProxyRepo
	CatalogDB       repos.CatalogTaskRepo
	ObjectDB        repos.ObjectTaskRepo
	Articulums      repos.ArticulumRepo
	WorkerLease     repos.WorkerLeaseRepo
	MetricsRegistry *prometheus.Registry
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.Default()

	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST"},
		AllowHeaders:     []string{"Authorization", "Content-Type"},
		AllowCredentials: false,
	}))
	router.Use(requestIDMiddleware)

	router.GET("/healthz", handleHealthz)
	if cfg.MetricsRegistry != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(cfg.MetricsRegistry, promhttp.HandlerOpts{})))
	}

	admin := router.Group("/admin")
	admin.Use(cfg.Auth.RequireAdmin())
	admin.GET("/workers", handleListWorkers(cfg))
	admin.GET("/queues", handleQueueStatus(cfg))

	return router
}

func handleQueueStatus(cfg RouterConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		buffer, err := cfg.ObjectDB.CountPendingForValidatedArticulums(c.Request.Context())
		if err != nil {
			writeAPIError(c, apierr.New(http.StatusInternalServerError, "queue_status_failed", err))
			return
		}
		c.JSON(http.StatusOK, gin.H{"catalog_buffer": buffer})
	}
}

func handleHealthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func handleListWorkers(cfg RouterConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		rows, err := cfg.WorkerLease.ListAll(c.Request.Context())
		if err != nil {
			writeAPIError(c, apierr.New(http.StatusInternalServerError, "list_workers_failed", err))
			return
		}
		c.JSON(http.StatusOK, gin.H{"workers": rows})
	}
}

// requestIDMiddleware stamps every request with an ID, echoed back on the
// response and folded into any error body so an operator can correlate a
// failed admin call with the orchestrator's logs.
func requestIDMiddleware(c *gin.Context) {
	id := uuid.NewString()
	c.Request = c.Request.WithContext(reqctx.WithRequestID(c.Request.Context(), id))
	c.Header("X-Request-Id", id)
	c.Next()
}

func writeAPIError(c *gin.Context, apiErr *apierr.Error) {
	c.JSON(apiErr.Status, apierr.Body{
		Error:     apiErr.Error(),
		Code:      apiErr.Code,
		RequestID: reqctx.RequestID(c.Request.Context()),
	})
}
