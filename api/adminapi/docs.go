package adminapi

import (
	"embed"
	"net"
	neturl "net/url"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/eduverify/credtrust/internal/version"
)

//go:embed swagger.html openapi.yaml
var assets embed.FS

// adaptServerURLPort sets the port of serverURL; unparsable urls are
// returned unchanged
func adaptServerURLPort(serverURL string, port int) string {
	if port <= 0 {
		return serverURL
	}
	u, err := neturl.Parse(serverURL)
	if err != nil || u.Host == "" {
		return serverURL
	}
	u.Host = net.JoinHostPort(u.Hostname(), strconv.Itoa(port))
	return u.String()
}

func yamlMap(parent map[string]any, key string) map[string]any {
	m, ok := parent[key].(map[string]any)
	if !ok {
		m = map[string]any{}
		parent[key] = m
	}
	return m
}

// renderOpenAPI adapts the bundled document to this instance: it points
// the servers at serverURL, stamps the running version and declares HTTP
// Basic auth as the global security requirement.
func renderOpenAPI(raw []byte, serverURL string) ([]byte, error) {
	var doc map[string]any
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, errors.Wrap(err, "invalid openapi document")
	}
	if serverURL != "" {
		doc["servers"] = []map[string]any{
			{
				"url":         serverURL,
				"description": "This instance",
			},
		}
	}
	yamlMap(doc, "info")["version"] = version.VERSION
	schemes := yamlMap(yamlMap(doc, "components"), "securitySchemes")
	if _, ok := schemes["basicAuth"]; !ok {
		schemes["basicAuth"] = map[string]any{
			"type":   "http",
			"scheme": "basic",
		}
	}
	if _, ok := doc["security"]; !ok {
		doc["security"] = []map[string]any{{"basicAuth": []any{}}}
	}
	out, err := yaml.Marshal(doc)
	return out, errors.WithStack(err)
}

func sendAsset(contentType string, data []byte) fiber.Handler {
	return func(c *fiber.Ctx) error {
		c.Set(fiber.HeaderContentType, contentType)
		return c.Send(data)
	}
}

// registerDocs serves the openapi document and a swagger ui rendering it
func registerDocs(r fiber.Router, serverURL string) error {
	raw, err := assets.ReadFile("openapi.yaml")
	if err != nil {
		return errors.Wrap(err, "adminapi: failed to read openapi.yaml")
	}
	doc, err := renderOpenAPI(raw, serverURL)
	if err != nil {
		return errors.Wrap(err, "adminapi")
	}
	swaggerHTML, err := assets.ReadFile("swagger.html")
	if err != nil {
		return errors.Wrap(err, "adminapi: failed to read swagger.html")
	}
	r.Get("/openapi.yaml", sendAsset("application/yaml", doc))
	r.Get("/docs", sendAsset(fiber.MIMETextHTML, swaggerHTML))
	return nil
}
