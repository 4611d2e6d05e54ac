// Package endpoint provides the service's operational endpoints.
package endpoint

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/skillsenselab/voiceid/provider"
	"github.com/skillsenselab/voiceid/version"
)

const probeTimeout = 2 * time.Second

// ModelStatus reports the availability of one external model backend.
type ModelStatus struct {
	Name      string `json:"name"`
	Available bool   `json:"available"`
}

// Health returns a handler that reports service health including the
// availability of each external model. An unavailable model degrades its
// endpoints to 503; it does not make the whole service unhealthy.
func Health(serviceName string, providers ...provider.Provider) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), probeTimeout)
		defer cancel()

		status := "healthy"
		models := make([]ModelStatus, 0, len(providers))
		for _, p := range providers {
			available := p.IsAvailable(ctx)
			if !available {
				status = "degraded"
			}
			models = append(models, ModelStatus{Name: p.Name(), Available: available})
		}

		c.JSON(http.StatusOK, gin.H{
			"status":    status,
			"service":   serviceName,
			"version":   version.Get(),
			"timestamp": time.Now().UTC().Format(time.RFC3339),
			"models":    models,
		})
	}
}
