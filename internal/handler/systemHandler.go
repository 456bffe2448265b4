package handler

import (
	"net/http"

	"github.com/aman-churiwal/quotagate/internal/circuitbreaker"
	"github.com/gin-gonic/gin"
)

// Handles the counter backend's breaker endpoints
type SystemHandler struct {
	breaker *circuitbreaker.CircuitBreaker
}

// breaker may be nil when the backend is not guarded
func NewSystemHandler(breaker *circuitbreaker.CircuitBreaker) *SystemHandler {
	return &SystemHandler{
		breaker: breaker,
	}
}

// Returns the state of the counter store breaker
func (h *SystemHandler) CircuitBreakerStatus(c *gin.Context) {
	if h.breaker == nil {
		c.JSON(http.StatusOK, gin.H{
			"enabled": false,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"enabled": true,
		"breaker": h.breaker.Snapshot(),
	})
}

// Manually closes the counter store breaker
func (h *SystemHandler) ResetCircuitBreaker(c *gin.Context) {
	if h.breaker == nil {
		c.JSON(http.StatusNotFound, gin.H{
			"error": "Circuit breaker not enabled",
		})
		return
	}

	h.breaker.Reset()

	c.JSON(http.StatusOK, gin.H{
		"message": "Circuit breaker reset successfully",
	})
}
