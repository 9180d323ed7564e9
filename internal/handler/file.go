package handler

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/templui/sharebox/internal/model"
	"github.com/templui/sharebox/internal/service"
	"github.com/templui/sharebox/internal/validation"
)

type fileHandler struct {
	fileService   *service.FileService
	uploadService *service.UploadService
	maxChunkBytes int64
}

func NewFileHandler(fileService *service.FileService, uploadService *service.UploadService, maxChunkBytes int64) *fileHandler {
	return &fileHandler{
		fileService:   fileService,
		uploadService: uploadService,
		maxChunkBytes: maxChunkBytes,
	}
}

func (h *fileHandler) List(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")

	entries, err := h.fileService.ListDirectory(r.Context(), currentUser(r), path)
	if err != nil {
		handleError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"path":    path,
		"entries": entries,
	})
}

func (h *fileHandler) Details(w http.ResponseWriter, r *http.Request) {
	details, err := h.fileService.Details(r.Context(), currentUser(r), r.URL.Query().Get("path"))
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, details)
}

type createFolderRequest struct {
	Parent string `json:"parent"`
	Name   string `json:"name" validate:"required"`
}

func (h *fileHandler) CreateFolder(w http.ResponseWriter, r *http.Request) {
	var req createFolderRequest
	err := decodeJSON(w, r, &req)
	if err != nil {
		handleError(w, r, err)
		return
	}

	record, err := h.fileService.CreateDirectory(r.Context(), currentUser(r), req.Parent, req.Name)
	if err != nil {
		handleError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"path": validation.RelativePath(record.Path, h.fileService.Root()),
		"id":   record.ID,
	})
}

func (h *fileHandler) Delete(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	path := q.Get("path")
	force, _ := strconv.ParseBool(q.Get("force"))

	err := h.fileService.Delete(r.Context(), currentUser(r), path, force)
	if err != nil {
		handleError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type moveRequest struct {
	Source      string `json:"source" validate:"required"`
	Destination string `json:"destination"`
}

func (h *fileHandler) Move(w http.ResponseWriter, r *http.Request) {
	var req moveRequest
	err := decodeJSON(w, r, &req)
	if err != nil {
		handleError(w, r, err)
		return
	}

	record, err := h.fileService.Move(r.Context(), currentUser(r), req.Source, req.Destination)
	if err != nil {
		handleError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"path": validation.RelativePath(record.Path, h.fileService.Root()),
		"id":   record.ID,
	})
}

func (h *fileHandler) Groups(w http.ResponseWriter, r *http.Request) {
	groups, err := h.fileService.ListAssociatedGroups(r.Context(), currentUser(r), r.URL.Query().Get("path"))
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"groups": groups})
}

type setGroupsRequest struct {
	Path   string                   `json:"path"`
	Groups []model.GroupAssociation `json:"groups" validate:"required,dive"`
}

func (h *fileHandler) SetGroups(w http.ResponseWriter, r *http.Request) {
	var req setGroupsRequest
	err := decodeJSON(w, r, &req)
	if err != nil {
		handleError(w, r, err)
		return
	}

	err = h.fileService.SetAssociatedGroups(r.Context(), currentUser(r), req.Path, req.Groups)
	if err != nil {
		handleError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Upload accepts one chunk as multipart form data with the fields
// chunk, directory, upload_id, chunk_index and total_chunks.
func (h *fileHandler) Upload(w http.ResponseWriter, r *http.Request) {
	// room for the form fields next to the chunk itself
	r.Body = http.MaxBytesReader(w, r.Body, h.maxChunkBytes+64<<10)

	err := r.ParseMultipartForm(32 << 20)
	if err != nil {
		var maxBytes *http.MaxBytesError
		if errors.As(err, &maxBytes) {
			writeError(w, r, http.StatusRequestEntityTooLarge, "chunk is too large")
			return
		}
		writeError(w, r, http.StatusBadRequest, "invalid multipart form")
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	index, err := strconv.Atoi(r.FormValue("chunk_index"))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "chunk_index must be an integer")
		return
	}
	total, err := strconv.Atoi(r.FormValue("total_chunks"))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "total_chunks must be an integer")
		return
	}

	chunk, _, err := r.FormFile("chunk")
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "chunk is required")
		return
	}
	defer func() { _ = chunk.Close() }()

	result, err := h.uploadService.AcceptChunk(r.Context(), currentUser(r), service.ChunkRequest{
		Directory: r.FormValue("directory"),
		UploadID:  r.FormValue("upload_id"),
		Index:     index,
		Total:     total,
		Data:      chunk,
	})
	if err != nil {
		handleError(w, r, err)
		return
	}

	code := http.StatusOK
	if result.Status == service.UploadComplete {
		code = http.StatusCreated
	}
	writeJSON(w, code, result)
}

// Download streams a file. A single "bytes=start-end" range is honoured.
func (h *fileHandler) Download(w http.ResponseWriter, r *http.Request) {
	f, info, err := h.fileService.Open(r.Context(), currentUser(r), r.URL.Query().Get("path"))
	if err != nil {
		handleError(w, r, err)
		return
	}
	defer func() { _ = f.Close() }()

	size := info.Size()
	name := info.Name()

	contentType := mime.TypeByExtension(filepath.Ext(name))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": name}))
	w.Header().Set("Accept-Ranges", "bytes")
	w.Header().Set("Last-Modified", info.ModTime().UTC().Format(http.TimeFormat))

	header := r.Header.Get("Range")
	if header == "" {
		w.Header().Set("Content-Length", strconv.FormatInt(size, 10))
		w.WriteHeader(http.StatusOK)
		_, err = io.Copy(w, f)
		if err != nil {
			slog.Debug("download interrupted", "error", err, "file", name)
		}
		return
	}

	start, end, err := parseRange(header, size)
	if err != nil {
		w.Header().Set("Content-Range", fmt.Sprintf("bytes */%d", size))
		writeError(w, r, http.StatusRequestedRangeNotSatisfiable, err.Error())
		return
	}

	_, err = f.Seek(start, io.SeekStart)
	if err != nil {
		handleError(w, r, fmt.Errorf("failed to seek %s: %w", name, err))
		return
	}

	length := end - start + 1
	w.Header().Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", start, end, size))
	w.Header().Set("Content-Length", strconv.FormatInt(length, 10))
	w.WriteHeader(http.StatusPartialContent)
	_, err = io.CopyN(w, f, length)
	if err != nil {
		slog.Debug("download interrupted", "error", err, "file", name)
	}
}

var errRangeNotSatisfiable = errors.New("requested range not satisfiable")

// parseRange parses a single "bytes=start-end" range; end defaults to the last byte.
func parseRange(header string, size int64) (start, end int64, err error) {
	spec, ok := strings.CutPrefix(header, "bytes=")
	if !ok || strings.Contains(spec, ",") {
		return 0, 0, errRangeNotSatisfiable
	}

	first, last, ok := strings.Cut(strings.TrimSpace(spec), "-")
	if !ok || first == "" {
		return 0, 0, errRangeNotSatisfiable
	}

	start, err = strconv.ParseInt(first, 10, 64)
	if err != nil || start < 0 {
		return 0, 0, errRangeNotSatisfiable
	}

	end = size - 1
	if last != "" {
		end, err = strconv.ParseInt(last, 10, 64)
		if err != nil {
			return 0, 0, errRangeNotSatisfiable
		}
	}

	if start >= size || end >= size || start > end {
		return 0, 0, errRangeNotSatisfiable
	}
	return start, end, nil
}
