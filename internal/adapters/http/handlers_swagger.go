package http

import (
	_ "embed"
	"fmt"
	"net/http"
)

const openAPIPath = "/swagger/openapi.yaml"

//go:embed docs/openapi.yaml
var openAPIYAML []byte

// apiDocsPage loads Swagger UI from the public CDN and points it at the
// embedded document.
var apiDocsPage = fmt.Sprintf(`<!doctype html>
<html lang="en">
<head>
  <meta charset="utf-8" />
  <title>Commerce Auth API</title>
  <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css" />
</head>
<body>
  <div id="docs"></div>
  <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js"></script>
  <script>
    SwaggerUIBundle({ url: %q, dom_id: "#docs", withCredentials: true });
  </script>
</body>
</html>`, openAPIPath)

func (h *Handler) apiDocs(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	_, _ = w.Write([]byte(apiDocsPage))
}

func (h *Handler) openAPIDocument(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/yaml; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	_, _ = w.Write(openAPIYAML)
}
