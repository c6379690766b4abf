package openapi

import (
	"html/template"
	"net/http"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/nimburion/movies/pkg/server/router"
)

// Default mount points.
const (
	DocsPath = "/api-docs"
	SpecPath = "/api-docs/openapi.json"
)

// Handler serves a generated document and the Swagger UI that renders it.
// The document is encoded once, when the handler is created.
type Handler struct {
	spec    []byte
	specURL string
}

// NewHandler encodes doc as JSON.
func NewHandler(doc *openapi3.T) (*Handler, error) {
	data, err := Marshal(doc, FormatJSON)
	if err != nil {
		return nil, err
	}
	return &Handler{spec: data, specURL: SpecPath}, nil
}

// RegisterRoutes mounts the UI and the document.
func (h *Handler) RegisterRoutes(r router.Router) {
	r.GET(DocsPath, h.ServeSwaggerUI)
	r.GET(SpecPath, h.ServeSpec)
}

// ServeSpec writes the JSON document.
func (h *Handler) ServeSpec(c router.Context) error {
	c.Response().Header().Set("Content-Type", "application/json")
	c.Response().Header().Set("Cache-Control", "public, max-age=300")
	c.Response().WriteHeader(http.StatusOK)
	_, err := c.Response().Write(h.spec)
	return err
}

// ServeSwaggerUI renders the Swagger UI page.
func (h *Handler) ServeSwaggerUI(c router.Context) error {
	c.Response().Header().Set("Content-Type", "text/html; charset=utf-8")
	c.Response().WriteHeader(http.StatusOK)
	return swaggerUI.Execute(c.Response(), map[string]string{"SpecURL": h.specURL})
}

var swaggerUI = template.Must(template.New("swagger").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>API Documentation - Swagger UI</title>
    <link rel="stylesheet" type="text/css" href="https://unpkg.com/swagger-ui-dist@5.10.0/swagger-ui.css">
</head>
<body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@5.10.0/swagger-ui-bundle.js"></script>
    <script>
        window.onload = function() {
            window.ui = SwaggerUIBundle({
                url: "{{.SpecURL}}",
                dom_id: '#swagger-ui',
                deepLinking: true,
                presets: [SwaggerUIBundle.presets.apis]
            });
        };
    </script>
</body>
</html>
`))
