package httpapi

import (
	"net/http"

	chi "github.com/go-chi/chi/v5"

	"sarthi/internal/domain"
	httpinfra "sarthi/internal/infra/http"
	"sarthi/internal/usecase/journal"
)

type onboardRequest struct {
	TGUserID    *int64             `json:"tg_user_id"`
	BasicInfo   domain.BasicInfo   `json:"basic_info"`
	Preferences domain.Preferences `json:"preferences"`
}

type createChapterRequest struct {
	City        string  `json:"city"`
	Country     *string `json:"country"`
	Description *string `json:"description"`
}

func userID(w http.ResponseWriter, r *http.Request) (string, bool) {
	uid, ok := httpinfra.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
	}
	return uid, ok
}

func (h *Handler) onboard(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	var req onboardRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	user, err := h.journal.Onboard(r.Context(), journal.OnboardInput{
		UserID:      uid,
		TGUserID:    req.TGUserID,
		BasicInfo:   req.BasicInfo,
		Preferences: req.Preferences,
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, user)
}

func (h *Handler) profile(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	profile, err := h.journal.GetProfile(r.Context(), uid)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

func (h *Handler) updatePreferences(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	var prefs domain.Preferences
	if !decodeJSON(w, r, &prefs) {
		return
	}
	prefs, err := h.journal.UpdatePreferences(r.Context(), uid, prefs)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, prefs)
}

func (h *Handler) updateBasicInfo(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	var info domain.BasicInfo
	if !decodeJSON(w, r, &info) {
		return
	}
	info, err := h.journal.UpdateBasicInfo(r.Context(), uid, info)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (h *Handler) listChapters(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	chapters, err := h.journal.ListChapters(r.Context(), uid)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	if chapters == nil {
		chapters = []domain.Chapter{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"chapters": chapters})
}

func (h *Handler) createChapter(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	var req createChapterRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	res, err := h.journal.CreateChapter(r.Context(), uid, journal.CreateChapterInput{
		City:        req.City,
		Country:     req.Country,
		Description: req.Description,
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

func (h *Handler) getChapter(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	chapter, err := h.journal.GetChapter(r.Context(), uid, chi.URLParam(r, "chapterID"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, chapter)
}

func (h *Handler) deleteChapter(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	stats, err := h.journal.DeleteChapter(r.Context(), uid, chi.URLParam(r, "chapterID"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"stats": stats})
}

func (h *Handler) addPlace(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	var place domain.Place
	if !decodeJSON(w, r, &place) {
		return
	}
	res, err := h.journal.AddPlace(r.Context(), uid, chi.URLParam(r, "chapterID"), place)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

func (h *Handler) removePlace(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	res, err := h.journal.RemovePlace(r.Context(), uid, chi.URLParam(r, "chapterID"), chi.URLParam(r, "placeID"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) togglePlace(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	res, err := h.journal.TogglePlace(r.Context(), uid, chi.URLParam(r, "chapterID"), chi.URLParam(r, "placeID"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
