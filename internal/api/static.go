package api

import (
	"embed"
	"io"
	"io/fs"
	"net/http"
	"os"
	"path"
	"strings"

	"github.com/yegors/arrival-board/pkg/logger"
)

//go:embed web
var builtinWeb embed.FS

// StaticFileHandler serves the kiosk page without caching, either from a
// directory on disk or from the page built into the binary
type StaticFileHandler struct {
	files  fs.FS
	source string
	logger *logger.Logger
}

// NewStaticFileHandler creates a new static file handler. An empty staticDir
// serves the built-in page.
func NewStaticFileHandler(staticDir string, log *logger.Logger) *StaticFileHandler {
	h := &StaticFileHandler{
		source: staticDir,
		logger: log.Named("static-handler"),
	}
	if staticDir == "" {
		sub, err := fs.Sub(builtinWeb, "web")
		if err != nil {
			// web is embedded at compile time, so this cannot fail
			panic(err)
		}
		h.files = sub
		h.source = "built-in"
	} else {
		h.files = os.DirFS(staticDir)
	}
	return h
}

// ServeHTTP serves static files dynamically
func (h *StaticFileHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimPrefix(path.Clean("/"+r.URL.Path), "/")
	if name == "" {
		name = "index.html"
	}

	// fs.FS rejects "..", so requests cannot leave the root
	if !fs.ValidPath(name) {
		h.logger.Warn("Rejected static path", logger.String("requested_path", r.URL.Path))
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}

	info, err := fs.Stat(h.files, name)
	if err == nil && info.IsDir() {
		name = path.Join(name, "index.html")
		info, err = fs.Stat(h.files, name)
	}
	if err != nil {
		h.logger.Debug("File not found",
			logger.String("path", name),
			logger.String("source", h.source))
		http.NotFound(w, r)
		return
	}

	f, err := h.files.Open(name)
	if err != nil {
		h.logger.Error("Failed to open static file", logger.Error(err), logger.String("path", name))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	defer f.Close()

	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	w.Header().Set("Pragma", "no-cache")
	w.Header().Set("Expires", "0")

	h.logger.Debug("Serving static file",
		logger.String("requested_path", r.URL.Path),
		logger.String("file_path", name),
		logger.String("source", h.source))

	if rs, ok := f.(io.ReadSeeker); ok {
		http.ServeContent(w, r, info.Name(), info.ModTime(), rs)
		return
	}
	http.Error(w, "Internal Server Error", http.StatusInternalServerError)
}
