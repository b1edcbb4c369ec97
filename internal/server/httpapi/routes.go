package httpapi

import (
	"strings"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/dmitrijs2005/docattest/internal/api"
)

func attachRoutes(r *gin.Engine, h *handlers, origins string) {
	r.Use(cors.New(corsConfig(origins)))

	r.GET("/healthz", h.health)

	v1 := r.Group("/v1")
	{
		v1.POST("/uploads", h.upload)
		v1.GET("/uploads/:hash", h.contentURL)

		v1.POST("/documents", h.publish)
		v1.GET("/documents/check", h.check)
		v1.GET("/documents/:id", h.getDocument)
		v1.POST("/documents/:id/signatures", h.submit)
		v1.POST("/documents/:id/finalize", h.finalize)

		v1.POST("/signatures", h.submit)
		v1.POST("/identity/verify", h.verify)
	}
}

func corsConfig(origins string) cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", api.RequestIDHeader},
		ExposeHeaders: []string{"Content-Length", api.RequestIDHeader},
	}

	var list []string
	for _, o := range strings.Split(origins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			list = append(list, o)
		}
	}
	if len(list) == 0 || (len(list) == 1 && list[0] == "*") {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = list
	}
	return cfg
}
