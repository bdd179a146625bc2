// internal/server/upload.go
package server

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/teems-ai/eve/internal/types"
)

// imageExtensions is the allow-list for the base64 endpoint, which is
// meant for chat-sized images.
var imageExtensions = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".gif":  true,
	".webp": true,
}

// fileExtensions extends the allow-list for the multipart endpoint with
// the video formats specialists can work from.
var fileExtensions = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".gif":  true,
	".webp": true,
	".mp4":  true,
	".mov":  true,
	".webm": true,
}

func allowedExtension(filename string, allowed map[string]bool) bool {
	return allowed[strings.ToLower(filepath.Ext(filename))]
}

// uploadRequest is the JSON body for POST /v1/upload.
type uploadRequest struct {
	SessionID   string `json:"session_id"`
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
	Data        string `json:"data"`
}

// uploadResponse is returned by both upload endpoints.
type uploadResponse struct {
	FileID string `json:"file_id"`
	URL    string `json:"url"`
}

// handleUpload accepts a base64-encoded image. Intended for small chat
// attachments; large files go through the multipart endpoint.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request, id identity) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload+s.maxUpload/2)

	var req uploadRequest
	if err := decodeJSONBody(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.SessionID == "" || req.Filename == "" || req.Data == "" {
		jsonError(w, http.StatusBadRequest, "session_id, filename and data are required")
		return
	}
	if !allowedExtension(req.Filename, imageExtensions) {
		jsonError(w, http.StatusBadRequest, "unsupported file type")
		return
	}

	data, err := base64.StdEncoding.DecodeString(req.Data)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "data is not valid base64")
		return
	}
	if int64(len(data)) > s.maxUpload {
		jsonError(w, http.StatusRequestEntityTooLarge, "file exceeds the upload limit")
		return
	}

	s.storeUpload(w, r, id, req.SessionID, req.Filename, req.ContentType, data)
}

// handleUploadFile accepts a multipart form with a "file" field, for
// videos and other large assets.
func (s *Server) handleUploadFile(w http.ResponseWriter, r *http.Request, id identity) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxFileUpload+(1<<20))

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	sessionID := r.FormValue("session_id")
	if sessionID == "" {
		jsonError(w, http.StatusBadRequest, "session_id is required")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		jsonError(w, http.StatusBadRequest, "file field is required")
		return
	}
	defer file.Close()

	if !allowedExtension(header.Filename, fileExtensions) {
		jsonError(w, http.StatusBadRequest, "unsupported file type")
		return
	}
	if header.Size > s.maxFileUpload {
		jsonError(w, http.StatusRequestEntityTooLarge, "file exceeds the upload limit")
		return
	}

	data, err := io.ReadAll(file)
	if err != nil {
		slog.Error("read upload failed", "filename", header.Filename, "error", err)
		jsonError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	s.storeUpload(w, r, id, sessionID, header.Filename, header.Header.Get("Content-Type"), data)
}

func (s *Server) storeUpload(w http.ResponseWriter, r *http.Request, id identity, sessionID, filename, contentType string, data []byte) {
	fileID := types.NewFileID()
	upload := &types.PendingUpload{
		ID:          fileID,
		SessionKey:  types.NewSessionKey(id.tenantID, sessionID),
		URL:         "/v1/upload/" + string(fileID),
		Filename:    filename,
		ContentType: contentType,
	}
	if err := s.uploads.Put(r.Context(), upload, data); err != nil {
		slog.Error("store upload failed", "file_id", string(fileID), "error", err)
		jsonError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	writeJSON(w, http.StatusOK, uploadResponse{
		FileID: string(fileID),
		URL:    upload.URL,
	})
}

// handleGetUpload serves a stored file back by ID. Consumed uploads stay
// retrievable so transcript media URLs keep resolving.
func (s *Server) handleGetUpload(w http.ResponseWriter, r *http.Request, _ identity) {
	id := types.FileID(r.PathValue("id"))

	upload, data, err := s.uploads.Get(r.Context(), id)
	if errors.Is(err, types.ErrNotFound) {
		jsonError(w, http.StatusNotFound, "file not found")
		return
	}
	if err != nil {
		slog.Error("get upload failed", "file_id", string(id), "error", err)
		jsonError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	contentType := upload.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	if _, err := w.Write(data); err != nil {
		slog.Debug("write upload response", "error", err)
	}
}

func decodeJSONBody(r *http.Request, v any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}
