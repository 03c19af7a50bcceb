package handler

import (
	"net/http"

	"github.com/SergeiKhy/linkbox/docs"
	"github.com/gin-gonic/gin"
)

// SwaggerUI serves the Swagger UI HTML page
// @Summary Swagger UI
// @Description Interactive API documentation
// @Tags documentation
// @Produce html
// @Success 200 {string} string "Swagger UI HTML page"
// @Router /docs [get]
func SwaggerUI(c *gin.Context) {
	c.Data(http.StatusOK, "text/html; charset=utf-8", docs.SwaggerUI)
}

// SwaggerJSON serves the Swagger JSON specification
// @Summary Swagger JSON
// @Description Swagger API specification
// @Tags documentation
// @Produce json
// @Success 200 {string} string "Swagger JSON specification"
// @Router /docs/swagger.json [get]
func SwaggerJSON(c *gin.Context) {
	c.Data(http.StatusOK, "application/json; charset=utf-8", docs.SwaggerJSON)
}

// AddSwaggerRoutes registers the documentation routes
func AddSwaggerRoutes(router *gin.Engine) {
	router.GET("/docs", SwaggerUI)
	router.GET("/docs/swagger.json", SwaggerJSON)
}
