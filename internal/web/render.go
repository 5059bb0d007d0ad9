package web

import (
	"bytes"
	stderrors "errors"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"go.uber.org/zap"

	"github.com/hpungsan/larder/internal/errors"
	"github.com/hpungsan/larder/internal/ledger"
)

// PageData contains common fields used across all page templates.
type PageData struct {
	Title   string
	Version string
}

// ReportPageData is the template data for the daily report page.
type ReportPageData struct {
	PageData
	Day          *ledger.Day
	RenderedHTML template.HTML
	Entries      int
}

// ErrorPageData is the template data for the error page.
type ErrorPageData struct {
	PageData
	StatusCode int
	Message    string
}

// Renderer manages template parsing and rendering.
type Renderer struct {
	templates map[string]*template.Template
	version   string
	logger    *zap.Logger
}

// NewRenderer creates a Renderer by parsing templates from the given FS.
func NewRenderer(templateFS fs.FS, version string, logger *zap.Logger) *Renderer {
	funcMap := template.FuncMap{
		"formatTime": formatTime,
		"kcal":       func(v float64) string { return fmt.Sprintf("%.0f", v) },
	}

	layoutTmpl := template.Must(template.New("layout").Funcs(funcMap).ParseFS(templateFS, "layout.html"))

	pages := map[string]string{
		"report": "report.html",
		"error":  "error.html",
	}

	templates := make(map[string]*template.Template, len(pages))
	for name, file := range pages {
		t := template.Must(layoutTmpl.Clone())
		template.Must(t.ParseFS(templateFS, file))
		templates[name] = t
	}

	return &Renderer{
		templates: templates,
		version:   version,
		logger:    logger,
	}
}

// renderPage renders a named page template with the given status code.
func (r *Renderer) renderPage(c *gin.Context, status int, name string, data any) {
	t, ok := r.templates[name]
	if !ok {
		r.logger.Error("template not found", zap.String("template", name))
		c.String(http.StatusInternalServerError, "internal server error")
		return
	}

	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "layout", data); err != nil {
		r.logger.Error("template execution error", zap.String("template", name), zap.Error(err))
		c.String(http.StatusInternalServerError, "internal server error")
		return
	}

	c.Data(status, "text/html; charset=utf-8", buf.Bytes())
}

// renderError renders an error response with content negotiation: JSON for
// API callers, a full error page for browsers.
func (r *Renderer) renderError(c *gin.Context, err error) {
	lErr := r.toLarderError(err)

	if !strings.Contains(c.GetHeader("Accept"), "text/html") {
		writeError(c, lErr)
		return
	}

	r.renderPage(c, lErr.Status, "error", ErrorPageData{
		PageData: PageData{
			Title:   fmt.Sprintf("Error %d", lErr.Status),
			Version: r.version,
		},
		StatusCode: lErr.Status,
		Message:    lErr.Message,
	})
}

// toLarderError maps err to a LarderError. Internal failures are logged and
// their message replaced so storage details never reach a client.
func (r *Renderer) toLarderError(err error) *errors.LarderError {
	var lErr *errors.LarderError
	if !stderrors.As(err, &lErr) {
		lErr = errors.NewInternal(err)
	}
	if lErr.Status >= http.StatusInternalServerError {
		r.logger.Error("internal error", zap.Error(err))
		return &errors.LarderError{
			Code:    errors.ErrInternal,
			Status:  http.StatusInternalServerError,
			Message: "internal server error",
		}
	}
	return lErr
}

// writeError writes the JSON error envelope.
func writeError(c *gin.Context, lErr *errors.LarderError) {
	c.AbortWithStatusJSON(lErr.Status, gin.H{
		"error": gin.H{
			"code":    string(lErr.Code),
			"message": lErr.Message,
			"status":  lErr.Status,
		},
	})
}

var markdown = goldmark.New(goldmark.WithExtensions(extension.Table))

// renderMarkdown converts markdown text to HTML using goldmark.
func renderMarkdown(md string) template.HTML {
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(md), &buf); err != nil {
		return template.HTML(template.HTMLEscapeString(md))
	}
	return template.HTML(buf.String())
}

// formatTime formats a Unix millisecond timestamp as "2006-01-02 15:04" UTC.
func formatTime(unixMs int64) string {
	return time.UnixMilli(unixMs).UTC().Format("2006-01-02 15:04")
}
