package handlers

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"videoEditor/api/middleware"
)

// DownloadHandler serves published results from the local storage backend.
// With the s3 backend result URLs are presigned and point at the object
// store, so this route is never hit.
type DownloadHandler struct {
	outputsDir string
	logger     *zap.Logger
}

func NewDownloadHandler(storageRoot string, logger *zap.Logger) *DownloadHandler {
	return &DownloadHandler{
		outputsDir: filepath.Join(storageRoot, "outputs"),
		logger:     logger,
	}
}

func (h *DownloadHandler) Download(w http.ResponseWriter, r *http.Request) {
	traceID := middleware.GetTraceID(r.Context())

	filename := strings.TrimPrefix(r.URL.Path, "/api/v1/download/")
	if filename == "" {
		http.Error(w, "filename is required", http.StatusBadRequest)
		return
	}
	// Flatten to the base name so a crafted path cannot leave outputs/.
	filename = filepath.Base(filename)

	path := filepath.Join(h.outputsDir, filename)
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		http.NotFound(w, r)
		return
	}

	h.logger.Info("serving download",
		zap.String("trace_id", traceID),
		zap.String("filename", filename),
		zap.Int64("bytes", info.Size()),
	)

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	w.Header().Set("Cache-Control", "no-cache")
	http.ServeFile(w, r, path)
}
