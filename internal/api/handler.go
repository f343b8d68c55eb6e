package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"tx-coordinator/internal/models"
	"tx-coordinator/internal/service"
	"tx-coordinator/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handler contains HTTP handlers. The HTTP layer stays thin: it marshals the
// orchestration call and the query surface, nothing more.
type Handler struct {
	coordinator *service.Coordinator
	query       *service.QueryService
}

// NewHandler creates a new HTTP handler
func NewHandler(coordinator *service.Coordinator, query *service.QueryService) *Handler {
	return &Handler{
		coordinator: coordinator,
		query:       query,
	}
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(prometheusMiddleware())
	router.Use(gin.Logger())

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	{
		v1.POST("/transactions", h.executeTransaction)
		v1.GET("/transactions/:id", h.getTransaction)
		v1.GET("/orders", h.listOrders)
		v1.GET("/payments", h.listPayments)
		v1.GET("/stats", h.getStats)
	}
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// readinessCheck handles readiness check requests
func (h *Handler) readinessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"time":   time.Now().Unix(),
	})
}

// executeTransaction runs one saga and returns its terminal result.
func (h *Handler) executeTransaction(c *gin.Context) {
	var req models.OrderRequest

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	result, err := h.coordinator.Execute(c.Request.Context(), &req)
	if err != nil {
		if errors.Is(err, models.ErrInvalidRequest) || errors.Is(err, models.ErrQuantityLimit) {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":   "Invalid order request",
				"details": err.Error(),
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to execute transaction",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, result)
}

// getTransaction returns the saga record with its step log.
func (h *Handler) getTransaction(c *gin.Context) {
	record, err := h.query.GetTransaction(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{
			"error":   "Transaction not found",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, record)
}

// listOrders handles paginated order listing
func (h *Handler) listOrders(c *gin.Context) {
	limit, offset := pagination(c)

	orders, err := h.query.ListOrders(c.Request.Context(), limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to list orders",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"orders": orders})
}

// listPayments handles paginated payment listing
func (h *Handler) listPayments(c *gin.Context) {
	limit, offset := pagination(c)

	payments, err := h.query.ListPayments(c.Request.Context(), limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to list payments",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"payments": payments})
}

// getStats returns dashboard aggregates.
func (h *Handler) getStats(c *gin.Context) {
	stats, err := h.query.Stats(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to compute stats",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, stats)
}

func pagination(c *gin.Context) (limit, offset int) {
	limit, _ = strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ = strconv.Atoi(c.DefaultQuery("offset", "0"))
	return limit, offset
}

// prometheusMiddleware collects HTTP metrics
func prometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())

		util.HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Observe(duration)

		util.HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Inc()
	}
}
