// Package docs содержит OpenAPI-описание HTTP API и страницу Swagger UI.
package docs

import _ "embed"

//go:embed swagger.json
var SwaggerJSON []byte

//go:embed swagger-ui.html
var SwaggerUI []byte
