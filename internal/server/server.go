package server

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/yuin/goldmark"

	"github.com/TobiSchelling/nexus/internal/access"
	"github.com/TobiSchelling/nexus/internal/audit"
	"github.com/TobiSchelling/nexus/internal/config"
	"github.com/TobiSchelling/nexus/internal/content"
	"github.com/TobiSchelling/nexus/internal/editor"
	"github.com/TobiSchelling/nexus/internal/keywordsync"
	"github.com/TobiSchelling/nexus/internal/links"
	"github.com/TobiSchelling/nexus/internal/logger"
	"github.com/TobiSchelling/nexus/internal/meta"
	"github.com/TobiSchelling/nexus/internal/seoscore"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static/*
var staticFS embed.FS

//go:embed docs.md
var docsMarkdown string

var md = goldmark.New()

// APIKeyHeader carries the shared secret of the read API.
const APIKeyHeader = "X-API-Key"

// Server is the admin UI and read API.
type Server struct {
	store    content.Store
	access   access.Checker
	cfg      *config.Config
	apiKey   string
	log      *logger.Logger
	resolver *seoscore.Resolver
	audit    *audit.Engine
	links    *links.Projector
	sync     *keywordsync.Engine
	editor   *editor.Editor
	pages    map[string]*template.Template
	mux      *http.ServeMux
}

// New creates a Server over store. Services are built once here and shared
// by every request.
func New(store content.Store, cfg *config.Config, checker access.Checker, log *logger.Logger) (*Server, error) {
	log = logger.OrDiscard(log)

	funcMap := template.FuncMap{
		"markdown":  renderMarkdown,
		"typeLabel": func(t meta.NexusType) string { return t.Label() },
		"issues":    func(r seoscore.Record) string { return strings.Join(r.Issues, "\n") },
		"add":       func(a, b int) int { return a + b },
	}

	// Parse base template first
	base, err := template.New("base.html").Funcs(funcMap).ParseFS(templateFS, "templates/base.html")
	if err != nil {
		return nil, fmt.Errorf("parsing base template: %w", err)
	}

	// For each page template, clone the base and parse the page into the clone.
	// This gives each page its own {{define "content"}} and {{define "title"}}.
	pageNames := []string{"dashboard.html", "sitemap.html", "audit.html", "item.html"}
	pages := make(map[string]*template.Template, len(pageNames))
	for _, name := range pageNames {
		clone, err := base.Clone()
		if err != nil {
			return nil, fmt.Errorf("cloning base for %s: %w", name, err)
		}
		_, err = clone.ParseFS(templateFS, "templates/"+name)
		if err != nil {
			return nil, fmt.Errorf("parsing template %s: %w", name, err)
		}
		pages[name] = clone
	}

	projector, err := links.NewProjector(store, cfg.Site.Charset)
	if err != nil {
		return nil, err
	}

	sync := keywordsync.New(store, checker, log)
	s := &Server{
		store:    store,
		access:   checker,
		cfg:      cfg,
		apiKey:   cfg.APIKey(),
		log:      log,
		resolver: seoscore.NewResolver(meta.NewAccessor(store)),
		audit: audit.NewEngine(store, audit.Options{
			SiteURL:           cfg.Site.URL,
			LowScoreThreshold: cfg.Audit.LowScoreThreshold,
			PageSize:          cfg.Audit.PerPage,
		}, log),
		links:  projector,
		sync:   sync,
		editor: editor.New(store, checker, sync, cfg.Editor.PerPage, log),
		pages:  pages,
		mux:    http.NewServeMux(),
	}
	s.routes()
	return s, nil
}

// Handler returns the HTTP handler for the server.
func (s *Server) Handler() http.Handler {
	return s.withTimeout(s.mux)
}

func (s *Server) routes() {
	// Static files
	staticSub, _ := fs.Sub(staticFS, "static")
	s.mux.Handle("/static/", http.StripPrefix("/static/", http.FileServer(http.FS(staticSub))))

	// Admin
	s.mux.HandleFunc("/", s.handleDashboard)
	s.mux.HandleFunc("/sync", s.handleSync)
	s.mux.HandleFunc("/bulk-update", s.handleBulkUpdate)
	s.mux.HandleFunc("/sitemap", s.handleSitemap)
	s.mux.HandleFunc("/audit", s.handleAudit)
	s.mux.HandleFunc("/items/", s.handleItem)
	s.mux.HandleFunc("/ajax/keywords", s.handleKeywords)

	// Read API
	s.mux.HandleFunc("/api/v1/links", s.handleLinks)
}

// withTimeout bounds every request's Content Store work by the configured deadline.
func (s *Server) withTimeout(next http.Handler) http.Handler {
	timeout := s.cfg.RequestTimeout()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) render(w http.ResponseWriter, name string, data map[string]any) {
	tmpl, ok := s.pages[name]
	if !ok {
		s.log.Error("template not found", "template", name)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	data["SiteName"] = s.cfg.Site.Name

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "base.html", data); err != nil {
		s.log.Error("rendering template", "template", name, "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(buf.Bytes())
}

// fail logs a Content Store failure and answers 500.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	s.log.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	http.Error(w, "Internal server error", http.StatusInternalServerError)
}

func renderMarkdown(text string) template.HTML {
	var buf bytes.Buffer
	if err := md.Convert([]byte(text), &buf); err != nil {
		return template.HTML(template.HTMLEscapeString(text))
	}
	return template.HTML(buf.String()) //nolint: gosec
}

// ListenAndServe serves on 127.0.0.1:port until the server fails.
func (s *Server) ListenAndServe(port int) error {
	addr := fmt.Sprintf("127.0.0.1:%d", port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ErrorLog:          slog.NewLogLogger(s.log.Slog().Handler(), slog.LevelError),
	}
	s.log.Info("server listening", "url", "http://"+addr)
	return srv.ListenAndServe()
}
