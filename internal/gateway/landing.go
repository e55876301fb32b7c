// ABOUTME: Landing page rendered from embedded Markdown with goldmark
// ABOUTME: Shows the MCP endpoint, transport mode and tool catalog

package gateway

import (
	"bytes"
	_ "embed"
	"html/template"
	"net/http"
	texttemplate "text/template"

	"github.com/gin-gonic/gin"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/Muhammad525444/hubspot-mcp-server/internal/tools"
)

//go:embed landing.md
var landingMarkdown string

var landingSource = texttemplate.Must(texttemplate.New("landing.md").Parse(landingMarkdown))

var landingPage = template.Must(template.New("landing").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>{{.Title}}</title>
<style>
body { font-family: system-ui, sans-serif; max-width: 48rem; margin: 2rem auto; padding: 0 1rem; line-height: 1.5; }
pre { background: #f4f4f5; padding: 0.75rem; overflow-x: auto; }
code { font-size: 0.95em; }
</style>
</head>
<body>
{{.Content}}
</body>
</html>
`))

var markdown = goldmark.New(goldmark.WithExtensions(extension.GFM))

type landingData struct {
	Name         string
	Version      string
	Endpoint     string
	Transport    string
	AuthRequired bool
	MetricsPath  string
	Tools        []landingTool
}

type landingTool struct {
	Name        string
	Description string
}

// renderLanding produces the full HTML landing page.
func (g *Gateway) renderLanding() ([]byte, error) {
	data := landingData{
		Name:         g.config.MCP.ServerName,
		Version:      g.config.MCP.ServerVersion,
		Endpoint:     g.mcpEndpoint,
		Transport:    g.config.MCP.Transport,
		AuthRequired: g.config.Auth.BearerToken != "",
	}
	if g.metrics != nil {
		data.MetricsPath = g.config.Metrics.Path
	}
	for _, t := range tools.Catalog(nil) {
		data.Tools = append(data.Tools, landingTool{Name: t.Tool.Name, Description: t.Tool.Description})
	}

	var md bytes.Buffer
	if err := landingSource.Execute(&md, data); err != nil {
		return nil, err
	}

	var content bytes.Buffer
	if err := markdown.Convert(md.Bytes(), &content); err != nil {
		return nil, err
	}

	var page bytes.Buffer
	err := landingPage.Execute(&page, struct {
		Title   string
		Content template.HTML
	}{
		Title:   data.Name,
		Content: template.HTML(content.String()),
	})
	if err != nil {
		return nil, err
	}
	return page.Bytes(), nil
}

func (g *Gateway) handleLanding(c *gin.Context) {
	page, err := g.renderLanding()
	if err != nil {
		g.logger.Error("failed to render landing page", "error", err)
		c.String(http.StatusInternalServerError, "failed to render landing page")
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", page)
}
