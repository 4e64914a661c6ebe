// Package web serves the upload page and report API over gin.
package web

import (
	"context"
	"embed"
	"encoding/base64"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gin-gonic/gin"

	"github.com/jgoulah/energytracker/internal/chart"
	"github.com/jgoulah/energytracker/internal/config"
	"github.com/jgoulah/energytracker/internal/ctxlog"
	"github.com/jgoulah/energytracker/internal/ingest"
	"github.com/jgoulah/energytracker/internal/render"
	"github.com/jgoulah/energytracker/internal/tracker"
	"github.com/jgoulah/energytracker/pkg/models"
)

//go:embed templates/page.html
var templates embed.FS

const pageTemplate = "page.html"

// Server is the HTTP front end over the usage pipeline
type Server struct {
	cfg    *config.Config
	log    *slog.Logger
	router *gin.Engine
}

// New builds the server and registers its routes
func New(cfg *config.Config, logger *slog.Logger) (*Server, error) {
	tmpl, err := template.New("").Funcs(template.FuncMap{
		"kwh":  render.FormatKWh,
		"cost": render.FormatCost,
	}).ParseFS(templates, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parsing templates: %w", err)
	}

	router := gin.New()
	router.MaxMultipartMemory = cfg.GetMaxUploadBytes()
	router.SetHTMLTemplate(tmpl)
	router.Use(gin.Recovery(), requestLogger(logger))

	s := &Server{cfg: cfg, log: logger, router: router}
	s.registerRoutes()
	return s, nil
}

func (s *Server) registerRoutes() {
	s.router.GET("/", s.index)
	s.router.GET("/healthz", s.health)

	limited := s.router.Group("/", s.limitBody)
	{
		limited.POST("/report", s.htmlReport)
		limited.POST("/api/report", s.apiReport)
	}
}

// Handler exposes the router, mainly for tests
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run listens on the configured address until ctx is cancelled
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		s.log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

// requestLogger logs each request and attaches the logger to the request context
func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Request = c.Request.WithContext(ctxlog.WithLogger(c.Request.Context(), logger))

		c.Next()

		logger.Info("request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start))
	}
}

func (s *Server) limitBody(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.cfg.GetMaxUploadBytes())
	c.Next()
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// page is the data behind page.html
type page struct {
	Currency   string
	Rate       float64
	Prompt     string
	Error      string
	Warning    string
	Preview    *models.Preview
	Report     *models.Report
	Columns    []string
	Chart      template.URL
	TotalUsage string
	TotalCost  string
}

func (s *Server) newPage(rate float64) page {
	return page{
		Currency: s.cfg.GetCurrency(),
		Rate:     rate,
		Columns:  render.SummaryColumns,
	}
}

func (s *Server) index(c *gin.Context) {
	p := s.newPage(s.cfg.GetRate())
	p.Prompt = render.UploadPrompt
	c.HTML(http.StatusOK, pageTemplate, p)
}

// outcome is the result of handling one upload
type outcome struct {
	status  int
	rate    float64
	prompt  bool
	errMsg  string
	warning string
	preview *models.Preview
	report  *models.Report
}

func (s *Server) analyze(c *gin.Context) outcome {
	out := outcome{status: http.StatusOK, rate: s.cfg.GetRate()}
	log := ctxlog.FromContext(c.Request.Context())

	fh, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.Is(err, http.ErrMissingFile), errors.Is(err, http.ErrNotMultipart):
			out.prompt = true
		case errors.As(err, &tooLarge):
			out.status = http.StatusRequestEntityTooLarge
			out.errMsg = fmt.Sprintf("upload exceeds the %s limit", humanize.IBytes(uint64(tooLarge.Limit)))
		default:
			out.status = http.StatusBadRequest
			out.errMsg = fmt.Sprintf("reading upload: %v", err)
		}
		return out
	}

	if raw := strings.TrimSpace(c.PostForm("rate")); raw != "" {
		rate, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			out.status = http.StatusBadRequest
			out.errMsg = fmt.Sprintf("invalid rate %q", raw)
			return out
		}
		out.rate = rate
	}

	f, err := fh.Open()
	if err != nil {
		out.status = http.StatusBadRequest
		out.errMsg = fmt.Sprintf("opening upload: %v", err)
		return out
	}
	defer f.Close()

	log.Info("received upload", "filename", fh.Filename, "size", humanize.Bytes(uint64(fh.Size)))

	ds, err := ingest.Parse(f)
	if err != nil {
		out.status = http.StatusBadRequest
		out.errMsg = err.Error()
		return out
	}
	preview := ds.Preview(s.cfg.GetPreviewRows())
	out.preview = &preview

	report, err := tracker.Analyze(c.Request.Context(), ds, tracker.Options{
		Rate:        out.rate,
		Currency:    s.cfg.GetCurrency(),
		PreviewRows: s.cfg.GetPreviewRows(),
	})
	switch {
	case errors.Is(err, tracker.ErrNoActiveDevices):
		out.warning = tracker.NoActiveDevicesWarning
	case errors.Is(err, tracker.ErrInvalidRate), errors.Is(err, tracker.ErrOverflow):
		out.status = http.StatusBadRequest
		out.errMsg = err.Error()
	case err != nil:
		log.Error("analyzing upload", "error", err)
		out.status = http.StatusInternalServerError
		out.errMsg = "failed to analyze upload"
	default:
		out.report = report
	}
	return out
}

func (s *Server) htmlReport(c *gin.Context) {
	out := s.analyze(c)

	p := s.newPage(out.rate)
	p.Error = out.errMsg
	p.Warning = out.warning
	p.Preview = out.preview
	if out.prompt {
		p.Prompt = render.UploadPrompt
	}

	if r := out.report; r != nil {
		p.Report = r
		p.TotalUsage = render.TotalUsageLine(r)
		p.TotalCost = render.TotalCostLine(r)

		png, err := chart.PNG(r)
		if err != nil {
			ctxlog.FromContext(c.Request.Context()).Warn("rendering chart", "error", err)
		} else {
			p.Chart = template.URL("data:image/png;base64," + base64.StdEncoding.EncodeToString(png))
		}
	}

	c.HTML(out.status, pageTemplate, p)
}

func (s *Server) apiReport(c *gin.Context) {
	out := s.analyze(c)

	switch {
	case out.prompt:
		c.JSON(out.status, gin.H{"prompt": render.UploadPrompt})
	case out.errMsg != "":
		c.JSON(out.status, gin.H{"error": out.errMsg})
	case out.warning != "":
		c.JSON(out.status, gin.H{"warning": out.warning, "preview": out.preview})
	default:
		c.JSON(out.status, gin.H{"report": out.report})
	}
}
