package middleware

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/yeisme/ingestvault/pkg/configs"
)

// CORSMiddleware CORS中间件.
func CORSMiddleware(cfg configs.ServerConfig) gin.HandlerFunc {
	config := cors.DefaultConfig()
	config.AllowAllOrigins = true

	config.AllowWebSockets = true
	config.AllowFiles = true

	if cfg.Debug {
		config.AllowPrivateNetwork = true
	}

	return cors.New(config)
}
