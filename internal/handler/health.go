package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type HealthHandler struct {
	DB *gorm.DB
}

func (h *HealthHandler) Register(r *gin.Engine) {
	r.GET("/healthz", h.healthz)
}

func (h *HealthHandler) healthz(c *gin.Context) {
	if h.DB != nil {
		sqldb, err := h.DB.DB()
		if err == nil {
			err = sqldb.PingContext(c.Request.Context())
		}
		if err != nil {
			Error(c, http.StatusServiceUnavailable, "db unreachable", nil)
			return
		}
	}
	Ok(c, gin.H{"status": "up"}, nil)
}
