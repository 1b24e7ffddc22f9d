package server

import (
	"embed"
	"html/template"
)

//go:embed templates/index.html
var templateFS embed.FS

//go:embed static
var staticFS embed.FS

// homeTemplate is parsed once at startup. The file is embedded, so a parse
// failure is a build defect and panics immediately.
var homeTemplate = template.Must(template.ParseFS(templateFS, "templates/index.html"))
