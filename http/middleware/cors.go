package middlewares

import (
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/tnqbao/gau-document-gateway/config"
)

// CORSMiddleware allows the comma separated ALLOWED_DOMAINS, or every origin
// when none are configured.
func CORSMiddleware(config *config.EnvConfig) gin.HandlerFunc {
	corsConfig := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Content-Length", "Authorization", "Accept"},
		ExposeHeaders:    []string{"Content-Length", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}

	var origins []string
	for _, domain := range strings.Split(config.CORS.AllowDomains, ",") {
		if domain = strings.TrimSpace(domain); domain != "" {
			origins = append(origins, domain)
		}
	}

	if len(origins) == 0 {
		corsConfig.AllowCredentials = false
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = origins
	}

	return cors.New(corsConfig)
}
