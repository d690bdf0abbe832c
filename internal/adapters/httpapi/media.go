package httpapi

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"sarthi/internal/domain"
	"sarthi/internal/usecase/media"
)

const sessionCookie = "session_id"

// readUpload читает файл из multipart-поля с ограничением размера.
func (h *Handler) readUpload(w http.ResponseWriter, r *http.Request, field string) ([]byte, *multipart.FileHeader, error) {
	r.Body = http.MaxBytesReader(w, r.Body, h.opts.MaxUploadBytes)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, nil, domain.Validationf("upload exceeds %d bytes", tooLarge.Limit)
		}
		if errors.Is(err, http.ErrNotMultipart) {
			return nil, nil, nil
		}
		return nil, nil, domain.Validationf("invalid multipart form: %v", err)
	}
	file, header, err := r.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, domain.Validationf("invalid upload: %v", err)
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		return nil, nil, fmt.Errorf("read upload: %w", err)
	}
	return data, header, nil
}

func (h *Handler) speech(w http.ResponseWriter, r *http.Request) {
	audio, _, err := h.readUpload(w, r, "audio")
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	if len(audio) == 0 {
		writeError(w, http.StatusBadRequest, "No audio file uploaded")
		return
	}
	out, err := h.media.Speech(r.Context(), media.SpeechInput{
		Audio:  audio,
		Target: r.FormValue("target"),
		Model:  r.FormValue("model"),
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) imageInput(w http.ResponseWriter, r *http.Request) (media.ImageInput, bool) {
	data, header, err := h.readUpload(w, r, "file")
	if err != nil {
		h.writeServiceError(w, r, err)
		return media.ImageInput{}, false
	}
	if len(data) == 0 {
		writeError(w, http.StatusBadRequest, "Image file is required")
		return media.ImageInput{}, false
	}
	return media.ImageInput{
		Image:          data,
		Filename:       header.Filename,
		MIME:           header.Header.Get("Content-Type"),
		Latitude:       r.FormValue("latitude"),
		Longitude:      r.FormValue("longitude"),
		TargetLanguage: r.FormValue("target_language"),
		LocationInfo:   r.FormValue("location_info"),
	}, true
}

func (h *Handler) ocr(w http.ResponseWriter, r *http.Request) {
	in, ok := h.imageInput(w, r)
	if !ok {
		return
	}
	out, err := h.media.OCR(r.Context(), in)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) startImageSession(w http.ResponseWriter, r *http.Request) {
	in, ok := h.imageInput(w, r)
	if !ok {
		return
	}
	out, err := h.media.StartImageSession(r.Context(), in)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	if id, _ := out["session_id"].(string); id != "" {
		http.SetCookie(w, &http.Cookie{
			Name:     sessionCookie,
			Value:    id,
			Path:     "/",
			HttpOnly: true,
			MaxAge:   int(h.opts.SessionTTL.Seconds()),
		})
	}
	writeJSON(w, http.StatusOK, out)
}

type imageChatRequest struct {
	SessionID    string `json:"session_id"`
	UserQuestion string `json:"user_question"`
}

func (h *Handler) imageChatSession(w http.ResponseWriter, r *http.Request) {
	var req imageChatRequest
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		if !decodeJSON(w, r, &req) {
			return
		}
	} else {
		req.SessionID = r.FormValue("session_id")
		req.UserQuestion = r.FormValue("user_question")
	}
	if req.SessionID == "" {
		if c, err := r.Cookie(sessionCookie); err == nil {
			req.SessionID = c.Value
		}
	}
	answer, err := h.media.AskImageSession(r.Context(), req.SessionID, req.UserQuestion)
	if errors.Is(err, domain.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Invalid or expired session_id.")
		return
	}
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, answer)
}

