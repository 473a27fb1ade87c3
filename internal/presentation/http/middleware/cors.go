package middleware

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	appconfig "github.com/homevault/homevault-go/pkg/config"
)

// CORSMiddleware configures CORS from the ALLOWED_ORIGINS setting
func CORSMiddleware() gin.HandlerFunc {
	config := cors.Config{
		AllowMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders: []string{
			"Origin", "Content-Type", "Accept", "Authorization",
			"X-Owner-ID", "X-Requested-With", "Cache-Control",
		},
		ExposeHeaders: []string{"Content-Type", "Cache-Control"},
	}
	if len(appconfig.AllowedOrigins) == 1 && appconfig.AllowedOrigins[0] == "*" {
		config.AllowAllOrigins = true
	} else {
		config.AllowOrigins = appconfig.AllowedOrigins
		config.AllowCredentials = true
	}
	return cors.New(config)
}
