package handler

import (
	"net/http"

	"github.com/SergeiKhy/linkbox/internal/middleware"
	"github.com/SergeiKhy/linkbox/internal/service"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func NewRouter(
	linkService service.LinkService,
	logger *zap.Logger,
	corsOrigins []string,
) *gin.Engine {
	if logger == nil {
		logger = zap.NewNop()
	}

	router := gin.New()
	router.Use(middleware.RequestLogger(logger))
	router.Use(middleware.Recovery(logger))
	router.Use(middleware.CORS(corsOrigins))

	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, ErrorResponse{
			Error:   "not_found",
			Message: "Route not found",
		})
	})

	linkHandler := NewLinkHandler(linkService, logger)

	router.GET("/health", HealthCheck)

	links := router.Group("/links")
	{
		links.POST("", linkHandler.CreateLink)
		links.GET("", linkHandler.ListLinks)
		// статический сегмент имеет приоритет над :shortCode
		links.GET("/export", linkHandler.ExportLinks)
		links.GET("/:shortCode", linkHandler.ResolveLink)
		links.DELETE("/:shortCode", linkHandler.DeleteLink)
		links.PATCH("/:shortCode/access", linkHandler.IncrementAccess)
	}

	router.GET("/exports", linkHandler.RecentExports)

	AddSwaggerRoutes(router)

	return router
}

// HealthCheck godoc
// @Summary Health check
// @Description Liveness probe
// @Tags health
// @Produce json
// @Success 200 {object} map[string]string
// @Router /health [get]
func HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"service": "linkbox",
	})
}
