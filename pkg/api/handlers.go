package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"strings"

	"github.com/haivivi/deepscan/pkg/audio/audiofile"
	"github.com/haivivi/deepscan/pkg/classify"
	"github.com/haivivi/deepscan/pkg/scanlog"
	"github.com/haivivi/deepscan/pkg/storage"
)

const (
	defaultListLimit = 20
	maxListLimit     = 200
)

// errorResponse is the JSON body of every failed request that produced no
// scan record.
type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Error("failed to encode response", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, format string, args ...any) {
	s.writeJSON(w, status, errorResponse{Error: fmt.Sprintf(format, args...)})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleUpload accepts a multipart form with fields media_type and file.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	// Leave room for the multipart framing around the file.
	r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxUploadBytes+1<<20)

	mr, err := r.MultipartReader()
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "expected multipart/form-data: %v", err)
		return
	}

	var (
		mediaType scanlog.MediaType
		seenType  bool
	)
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			s.writeError(w, http.StatusBadRequest, "read form: %v", err)
			return
		}
		switch part.FormName() {
		case "media_type":
			b, err := io.ReadAll(io.LimitReader(part, 64))
			part.Close()
			if err != nil {
				s.writeError(w, http.StatusBadRequest, "read media_type: %v", err)
				return
			}
			mediaType, err = scanlog.ParseMediaType(strings.TrimSpace(string(b)))
			if err != nil {
				s.writeError(w, http.StatusBadRequest, "%v", err)
				return
			}
			seenType = true
		case "file":
			if !seenType {
				part.Close()
				s.writeError(w, http.StatusBadRequest, "media_type must precede file")
				return
			}
			name := part.FileName()
			scan, status := s.process(r.Context(), mediaType, name, path.Ext(name), part)
			part.Close()
			s.writeJSON(w, status, scan)
			return
		default:
			part.Close()
		}
	}
	s.writeError(w, http.StatusBadRequest, "missing file field")
}

// scanRequest is the body of POST /api/v1/scans.
type scanRequest struct {
	URL       string `json:"url"`
	MediaType string `json:"media_type"`
}

// handleScanURL fetches a remote file and scans it.
func (s *Server) handleScanURL(w http.ResponseWriter, r *http.Request) {
	var req scanRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<16)).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body: %v", err)
		return
	}
	mediaType, err := scanlog.ParseMediaType(req.MediaType)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "%v", err)
		return
	}
	u, err := url.Parse(req.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		s.writeError(w, http.StatusBadRequest, "url must be an absolute http(s) URL")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.opts.FetchTimeout)
	defer cancel()
	fetchReq, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "%v", err)
		return
	}
	resp, err := s.client.Do(fetchReq)
	if err != nil {
		s.log.Warn("fetch media failed", "url", u.String(), "error", err)
		s.writeError(w, http.StatusBadGateway, "fetch %s: %v", u.Redacted(), err)
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		s.writeError(w, http.StatusBadGateway, "fetch %s: status %d", u.Redacted(), resp.StatusCode)
		return
	}

	ext := path.Ext(u.Path)
	if ext == "" {
		ext = extFromContentType(resp.Header.Get("Content-Type"))
	}
	scan, status := s.process(r.Context(), mediaType, u.String(), ext, resp.Body)
	s.writeJSON(w, status, scan)
}

func (s *Server) handleGetScan(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	scan, err := s.scans.Get(r.Context(), id)
	if errors.Is(err, scanlog.ErrNotFound) {
		s.writeError(w, http.StatusNotFound, "scan %s not found", id)
		return
	}
	if err != nil {
		s.log.Error("get scan", "id", id, "error", err)
		s.writeError(w, http.StatusInternalServerError, "get scan: %v", err)
		return
	}
	s.writeJSON(w, http.StatusOK, scan)
}

func (s *Server) handleListScans(w http.ResponseWriter, r *http.Request) {
	limit := defaultListLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			s.writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, maxListLimit)
	}
	scans, err := s.scans.Recent(r.Context(), limit)
	if err != nil {
		s.log.Error("list scans", "error", err)
		s.writeError(w, http.StatusInternalServerError, "list scans: %v", err)
		return
	}
	if scans == nil {
		scans = []*scanlog.Scan{}
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"scans": scans})
}

func (s *Server) handleWatch(w http.ResponseWriter, r *http.Request) {
	s.hub.serve(w, r)
}

// process stores media, runs detection for audio, records the scan and
// notifies watchers. It returns the scan and the HTTP status to reply with.
func (s *Server) process(ctx context.Context, mediaType scanlog.MediaType, source, ext string, body io.Reader) (any, int) {
	key := storage.MediaKey(ext)
	n, err := storage.Put(ctx, s.store, key, body, s.opts.MaxUploadBytes)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.Is(err, storage.ErrTooLarge) || errors.As(err, &maxErr) {
			return errorResponse{Error: fmt.Sprintf("media exceeds %d bytes", s.opts.MaxUploadBytes)}, http.StatusRequestEntityTooLarge
		}
		s.log.Error("store media", "key", key, "error", err)
		return errorResponse{Error: "store media: " + err.Error()}, http.StatusInternalServerError
	}
	s.log.Info("media stored", "key", key, "media_type", mediaType, "bytes", n)

	scan := &scanlog.Scan{
		MediaType: mediaType,
		Source:    source,
		MediaKey:  key,
	}
	status := http.StatusCreated
	if mediaType != scanlog.MediaAudio {
		scan.Status = scanlog.StatusUnsupported
	} else {
		verdict, err := s.detect(ctx, key)
		if err != nil {
			scan.Status = scanlog.StatusFailed
			scan.Error = err.Error()
			status = statusFor(err)
		} else {
			scan.Status = scanlog.StatusCompleted
			scan.Verdict = verdict
		}
	}

	if err := s.scans.Put(ctx, scan); err != nil {
		s.log.Error("record scan", "key", key, "error", err)
		return errorResponse{Error: "record scan: " + err.Error()}, http.StatusInternalServerError
	}
	s.log.Info("scan recorded", "id", scan.ID, "status", scan.Status)
	s.hub.broadcast(scan)
	return scan, status
}

func (s *Server) detect(ctx context.Context, key string) (*classify.Verdict, error) {
	p, cleanup, err := storage.Localize(ctx, s.store, key)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	v, err := s.detector.ClassifyFile(ctx, p, s.opts.Detect)
	if err != nil {
		s.log.Warn("detection failed", "key", key, "error", err)
		return nil, err
	}
	return v, nil
}

// statusFor maps a detection failure to an HTTP status. Undecodable media
// is a client error; inference and storage failures are server errors.
func statusFor(err error) int {
	var de *audiofile.DecodeError
	if errors.As(err, &de) {
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

// extFromContentType guesses a file extension for fetched media.
func extFromContentType(ct string) string {
	mt, _, err := mime.ParseMediaType(ct)
	if err != nil {
		return ""
	}
	switch mt {
	case "audio/mpeg", "audio/mp3":
		return ".mp3"
	case "audio/wav", "audio/x-wav", "audio/wave", "audio/vnd.wave":
		return ".wav"
	}
	if exts, _ := mime.ExtensionsByType(mt); len(exts) > 0 {
		return exts[0]
	}
	return ""
}
