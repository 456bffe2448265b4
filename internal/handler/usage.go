package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/aman-churiwal/quotagate/internal/ratelimit"
	"github.com/gin-gonic/gin"
)

// UsageHandler reports current counter usage without consuming quota
type UsageHandler struct {
	limiters map[string]*ratelimit.Limiter
	now      func() time.Time
}

func NewUsageHandler(limiters map[string]*ratelimit.Limiter) *UsageHandler {
	return &UsageHandler{
		limiters: limiters,
		now:      time.Now,
	}
}

type windowUsage struct {
	Window    string `json:"window"`
	Limit     int32  `json:"limit"`
	Current   int32  `json:"current"`
	Remaining int32  `json:"remaining"`
	Reset     int64  `json:"reset"`
}

// GET /admin/usage/:service?identity=<value>
func (h *UsageHandler) Get(c *gin.Context) {
	service := c.Param("service")
	limiter, ok := h.limiters[service]
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{
			"error": "Service not found",
		})
		return
	}

	identity := c.Query("identity")
	if identity == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "identity query parameter is required",
		})
		return
	}

	now := h.now()
	b := ratelimit.Truncate(now)
	verdict, err := limiter.Usage(c.Request.Context(), ratelimit.Identity{Scope: service, Value: identity}, now)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, ratelimit.ErrStoreFault) {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{
			"error": "Failed to read usage",
		})
		return
	}

	windows := make([]windowUsage, 0, len(verdict.Usages))
	for _, w := range ratelimit.Windows {
		usage, ok := verdict.Usages[w]
		if !ok {
			continue
		}
		windows = append(windows, windowUsage{
			Window:    w.String(),
			Limit:     usage.Limit,
			Current:   usage.Current,
			Remaining: max(0, usage.Remaining),
			Reset:     b.Reset(w),
		})
	}

	resp := gin.H{
		"service":  service,
		"identity": identity,
		"blocked":  verdict.Blocked(),
		"windows":  windows,
	}
	if verdict.Blocked() {
		resp["blocking_window"] = verdict.Blocking.String()
	}
	c.JSON(http.StatusOK, resp)
}
