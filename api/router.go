package api

import (
	_ "embed"
	"net/http"
	"slices"
	"time"

	"github.com/Domenick1991/zeromonos/config"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	httpSwagger "github.com/swaggo/http-swagger"
)

//go:embed openapi.json
var openAPIDoc []byte

// NewRouter builds the gin engine serving the citizen and staff endpoints.
func NewRouter(cfg config.HTTPConfig, logger zerolog.Logger, bookings *BookingHandler, municipalities *MunicipalityHandler) *gin.Engine {
	router := gin.New()
	router.Use(RequestID(), AccessLog(logger), Recovery())
	if len(cfg.AllowOrigins) > 0 {
		router.Use(cors.New(corsConfig(cfg.AllowOrigins)))
	}

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "OK"})
	})

	apiGroup := router.Group("/api")
	municipalities.Register(apiGroup)

	var mutating []gin.HandlerFunc
	if cfg.RateLimitRPS > 0 {
		mutating = append(mutating, NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst).Middleware())
	}
	bookings.Register(apiGroup.Group("/bookings"), mutating...)

	if cfg.SwaggerEnabled {
		router.GET("/docs/openapi.json", func(c *gin.Context) {
			c.Data(http.StatusOK, "application/json", openAPIDoc)
		})
		router.GET("/swagger/*any", gin.WrapH(httpSwagger.Handler(httpSwagger.URL("/docs/openapi.json"))))
	}

	return router
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", requestIDHeader},
		ExposeHeaders: []string{"Content-Length", "Content-Disposition", requestIDHeader},
		MaxAge:        12 * time.Hour,
	}
	if slices.Contains(origins, "*") {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
	}
	return cfg
}
