package mock

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"sort"
	"strings"
)

type uploadResponse struct {
	Message   string        `json:"message"`
	Files     []*StoredFile `json:"files"`
	FileCount int           `json:"fileCount"`
}

type analyzeRequest struct {
	Files []*StoredFile `json:"files"`
}

// AnalysisResult summarizes the analyzed images
type AnalysisResult struct {
	ImageCount int            `json:"imageCount"`
	TotalBytes int64          `json:"totalBytes"`
	Mimetypes  map[string]int `json:"mimetypes"`
	Missing    []string       `json:"missing,omitempty"`
	Summary    string         `json:"summary"`
}

type analyzeResponse struct {
	Message string          `json:"message"`
	Result  *AnalysisResult `json:"result"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"message": "uploadprobe mock backend"})
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	limit := int64(s.maxFiles)*s.maxFileSize + 1<<20
	r.Body = http.MaxBytesReader(w, r.Body, limit)

	reader, err := r.MultipartReader()
	if err != nil {
		writeError(w, http.StatusBadRequest, "expected multipart/form-data body")
		return
	}

	var saved []*StoredFile
	discard := func() {
		for _, f := range saved {
			_ = s.store.Remove(f.Path)
		}
	}

	for {
		part, err := reader.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			discard()
			if bodyTooLarge(err) {
				writeError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("request body exceeds %d bytes", limit))
				return
			}
			writeError(w, http.StatusBadRequest, "malformed multipart body")
			return
		}

		if part.FileName() == "" {
			// plain form values are ignored
			part.Close()
			continue
		}

		if part.FormName() != s.fieldName {
			part.Close()
			discard()
			writeError(w, http.StatusBadRequest, fmt.Sprintf("unexpected file field %q", part.FormName()))
			return
		}

		if len(saved) >= s.maxFiles {
			part.Close()
			discard()
			writeError(w, http.StatusBadRequest, fmt.Sprintf("too many files, at most %d allowed", s.maxFiles))
			return
		}

		mimetype := partMimetype(part.Header.Get("Content-Type"))
		if !strings.HasPrefix(mimetype, "image/") {
			part.Close()
			discard()
			writeError(w, http.StatusBadRequest, "only image files are accepted")
			return
		}

		stored, err := s.store.Save(part.FormName(), part.FileName(), mimetype, part, s.maxFileSize)
		part.Close()
		if err != nil {
			discard()
			if errors.Is(err, ErrFileTooLarge) {
				writeError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("%s exceeds %d bytes", part.FileName(), s.maxFileSize))
				return
			}
			if bodyTooLarge(err) {
				writeError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("request body exceeds %d bytes", limit))
				return
			}
			s.log.WithError(err).Error("saving upload")
			writeError(w, http.StatusInternalServerError, "upload failed")
			return
		}
		saved = append(saved, stored)
	}

	if len(saved) < s.minFiles {
		discard()
		writeError(w, http.StatusBadRequest, fmt.Sprintf("at least %d images are required", s.minFiles))
		return
	}

	writeJSON(w, http.StatusOK, uploadResponse{
		Message:   "images uploaded",
		Files:     saved,
		FileCount: len(saved),
	})
}

func bodyTooLarge(err error) bool {
	var mbe *http.MaxBytesError
	return errors.As(err, &mbe)
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var req analyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "expected JSON body with a files array")
		return
	}

	if len(req.Files) < s.minFiles {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("at least %d images are required", s.minFiles))
		return
	}

	result := s.analyze(req.Files)

	for _, f := range req.Files {
		if f == nil || f.Path == "" {
			continue
		}
		if err := s.store.Remove(f.Path); err != nil {
			s.log.WithError(err).WithField("path", f.Path).Warn("not removing file")
		}
	}

	writeJSON(w, http.StatusOK, analyzeResponse{
		Message: "analysis complete",
		Result:  result,
	})
}

// analyze produces a deterministic summary of the referenced files
func (s *Server) analyze(files []*StoredFile) *AnalysisResult {
	result := &AnalysisResult{
		Mimetypes: make(map[string]int),
	}

	for _, f := range files {
		if f == nil || !s.store.Exists(f.Path) {
			name := ""
			if f != nil {
				name = f.Filename
			}
			result.Missing = append(result.Missing, name)
			continue
		}
		result.ImageCount++
		result.TotalBytes += f.Size
		result.Mimetypes[f.Mimetype]++
	}

	types := make([]string, 0, len(result.Mimetypes))
	for t := range result.Mimetypes {
		types = append(types, t)
	}
	sort.Strings(types)

	result.Summary = fmt.Sprintf("%d of %d images available (%s), %d bytes total",
		result.ImageCount, len(files), strings.Join(types, ", "), result.TotalBytes)
	return result
}

func partMimetype(header string) string {
	if header == "" {
		return ""
	}
	mt, _, err := mime.ParseMediaType(header)
	if err != nil {
		return ""
	}
	return mt
}
