package server

import (
	"errors"
	"io"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"

	"go.uber.org/zap"
)

const (
	// NotFoundBody is returned when the mapped file does not exist.
	NotFoundBody = "Couldn't find your URL..."
	// ServerErrorBody is returned when the mapped file cannot be read.
	ServerErrorBody = "Failed to load something...try again later?"
)

// StaticRoute maps a request path to a file and the content type it is served with.
type StaticRoute struct {
	File        string
	ContentType string
}

// DefaultStaticRoutes returns the built-in path table: the server and client
// sources as plain text.
func DefaultStaticRoutes() map[string]StaticRoute {
	return map[string]StaticRoute{
		"/server": {File: "cmd/server/main.go", ContentType: "text/plain"},
		"/client": {File: "web/client.html", ContentType: "text/plain"},
	}
}

// DefaultStaticFallback is served for every path not in the route table.
func DefaultStaticFallback() StaticRoute {
	return StaticRoute{File: "web/client.html", ContentType: "text/html"}
}

// StaticResponder serves a fixed set of files from a root directory.
type StaticResponder struct {
	root     string
	routes   map[string]StaticRoute
	fallback StaticRoute
	logger   *zap.Logger
}

// NewStaticResponder creates a responder resolving route files relative to root.
func NewStaticResponder(root string, routes map[string]StaticRoute, fallback StaticRoute, logger *zap.Logger) *StaticResponder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StaticResponder{
		root:     root,
		routes:   routes,
		fallback: fallback,
		logger:   logger,
	}
}

func (s *StaticResponder) lookup(path string) StaticRoute {
	if route, ok := s.routes[path]; ok {
		return route
	}
	return s.fallback
}

// ServeHTTP writes the mapped file, a 404 when it is missing or not a regular
// file, or a 500 on any other filesystem error.
func (s *StaticResponder) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.logger.Info("got request", zap.String("method", r.Method), zap.String("url", r.URL.String()))

	route := s.lookup(r.URL.Path)
	name := filepath.Join(s.root, route.File)

	info, err := os.Stat(name)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		s.notFound(w, r.URL.Path)
		return
	case err != nil:
		s.serverError(w, err)
		return
	case !info.Mode().IsRegular():
		s.notFound(w, r.URL.Path)
		return
	}

	f, err := os.Open(name)
	if err != nil {
		s.serverError(w, err)
		return
	}
	defer func() { _ = f.Close() }()

	w.Header().Set("Content-Type", route.ContentType)
	w.WriteHeader(http.StatusOK)
	if r.Method == http.MethodHead {
		return
	}
	if _, err := io.Copy(w, f); err != nil {
		s.logger.Warn("error streaming static file", zap.String("file", name), zap.Error(err))
	}
}

func (s *StaticResponder) notFound(w http.ResponseWriter, path string) {
	s.logger.Info("unknown request", zap.String("path", path))
	w.Header().Set("Content-Type", "text/html")
	w.WriteHeader(http.StatusNotFound)
	_, _ = io.WriteString(w, NotFoundBody)
}

func (s *StaticResponder) serverError(w http.ResponseWriter, err error) {
	s.logger.Error("error reading static file", zap.Error(err))
	w.Header().Set("Content-Type", "text/html")
	w.WriteHeader(http.StatusInternalServerError)
	_, _ = io.WriteString(w, ServerErrorBody)
}
