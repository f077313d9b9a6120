package swagger

import (
	"html/template"
	"io/fs"
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/filesystem"
)

// =============================================================================
// API Reference
// =============================================================================
// Serves an OpenAPI document and a browser viewer for it:
//
//	swagger.Mount(app, swagger.Config{
//	    SpecFS:   handler.OpenAPI,
//	    SpecFile: "admin.yaml",
//	    Title:    "Bot Admin API",
//	})
//
// GET /docs            viewer (Swagger UI, or Redoc when Renderer is "redoc")
// GET /docs/spec/*     raw spec files from SpecFS
// =============================================================================

const (
	RendererSwagger = "swagger"
	RendererRedoc   = "redoc"
)

type Config struct {
	// SpecFS holds the spec files. Its root is served under BasePath/spec.
	SpecFS fs.FS

	// SpecFile is the document the viewer opens.
	SpecFile string

	Title    string
	BasePath string
	Renderer string
}

func (c *Config) setDefaults() {
	if c.Title == "" {
		c.Title = "API Documentation"
	}
	if c.BasePath == "" {
		c.BasePath = "/docs"
	}
	c.BasePath = "/" + strings.Trim(c.BasePath, "/")
	if c.Renderer == "" {
		c.Renderer = RendererSwagger
	}
}

// SpecURL is the path the viewer loads the document from.
func (c Config) SpecURL() string {
	return c.BasePath + "/spec/" + strings.TrimLeft(c.SpecFile, "/")
}

// Mount registers the viewer and the spec files on app.
func Mount(app fiber.Router, config Config) {
	config.setDefaults()

	app.Get(config.BasePath, Handler(config))
	app.Use(config.BasePath+"/spec", filesystem.New(filesystem.Config{
		Root:   http.FS(config.SpecFS),
		Browse: false,
		MaxAge: 300,
	}))
}

var swaggerPage = template.Must(template.New("swagger").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>{{.Title}}</title>
    <link rel="stylesheet" type="text/css" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css">
    <style>
        body { margin: 0; background: #fafafa; }
        .swagger-ui .topbar { display: none; }
    </style>
</head>
<body>
    <div id="swagger-ui" data-spec="{{.SpecURL}}"></div>
    <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js"></script>
    <script>
        window.onload = function() {
            var el = document.getElementById('swagger-ui');
            SwaggerUIBundle({
                url: el.dataset.spec,
                dom_id: '#swagger-ui',
                deepLinking: true,
                persistAuthorization: true,
                displayRequestDuration: true
            });
        };
    </script>
</body>
</html>`))

var redocPage = template.Must(template.New("redoc").Parse(`<!DOCTYPE html>
<html>
<head>
    <title>{{.Title}}</title>
    <meta charset="utf-8"/>
    <meta name="viewport" content="width=device-width, initial-scale=1">
    <style>body { margin: 0; padding: 0; }</style>
</head>
<body>
    <redoc spec-url="{{.SpecURL}}"></redoc>
    <script src="https://cdn.redoc.ly/redoc/latest/bundles/redoc.standalone.js"></script>
</body>
</html>`))

// Handler renders the viewer page.
func Handler(config Config) fiber.Handler {
	config.setDefaults()

	page := swaggerPage
	if config.Renderer == RendererRedoc {
		page = redocPage
	}
	data := struct{ Title, SpecURL string }{config.Title, config.SpecURL()}

	return func(c *fiber.Ctx) error {
		c.Set(fiber.HeaderContentType, fiber.MIMETextHTMLCharsetUTF8)
		return page.Execute(c.Response().BodyWriter(), data)
	}
}
