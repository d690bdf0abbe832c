package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	chi "github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"sarthi/internal/adapters/pipeline"
	"sarthi/internal/domain"
	httpinfra "sarthi/internal/infra/http"
	"sarthi/internal/usecase/chat"
	"sarthi/internal/usecase/journal"
	"sarthi/internal/usecase/media"
)

// Journal: операции дневника путешествий.
type Journal interface {
	Onboard(ctx context.Context, in journal.OnboardInput) (domain.User, error)
	GetProfile(ctx context.Context, userID string) (domain.Profile, error)
	UpdatePreferences(ctx context.Context, userID string, prefs domain.Preferences) (domain.Preferences, error)
	UpdateBasicInfo(ctx context.Context, userID string, info domain.BasicInfo) (domain.BasicInfo, error)
	ListChapters(ctx context.Context, userID string) ([]domain.Chapter, error)
	GetChapter(ctx context.Context, userID, chapterID string) (domain.Chapter, error)
	CreateChapter(ctx context.Context, userID string, in journal.CreateChapterInput) (journal.ChapterResult, error)
	DeleteChapter(ctx context.Context, userID, chapterID string) (domain.Stats, error)
	TogglePlace(ctx context.Context, userID, chapterID, placeID string) (journal.ToggleResult, error)
	AddPlace(ctx context.Context, userID, chapterID string, place domain.Place) (journal.ChapterResult, error)
	RemovePlace(ctx context.Context, userID, chapterID, placeID string) (journal.ChapterResult, error)
}

// Tasks генерирует предложения мест.
type Tasks interface {
	Generate(ctx context.Context, req domain.TaskRequest) ([]domain.GeneratedPlace, error)
}

// Chat: мультиязычный ассистент.
type Chat interface {
	Chat(ctx context.Context, in chat.Input) (chat.Reply, error)
}

// Media: перевод речи, OCR и сессии по снимкам.
type Media interface {
	Speech(ctx context.Context, in media.SpeechInput) (map[string]any, error)
	OCR(ctx context.Context, in media.ImageInput) (map[string]any, error)
	StartImageSession(ctx context.Context, in media.ImageInput) (map[string]any, error)
	AskImageSession(ctx context.Context, sessionID, question string) (media.ImageAnswer, error)
}

// Options: параметры HTTP API.
type Options struct {
	PingMessage    string
	AuthSecret     string
	MaxUploadBytes int64
	SessionTTL     time.Duration
}

// Handler обслуживает REST API.
type Handler struct {
	journal Journal
	tasks   Tasks
	chat    Chat
	media   Media
	opts    Options
	log     zerolog.Logger
}

// New создаёт обработчики API.
func New(journalSvc Journal, tasksSvc Tasks, chatSvc Chat, mediaSvc Media, opts Options, logger zerolog.Logger) *Handler {
	if opts.PingMessage == "" {
		opts.PingMessage = "ping"
	}
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = 25 << 20
	}
	if opts.SessionTTL <= 0 {
		opts.SessionTTL = 30 * time.Minute
	}
	return &Handler{
		journal: journalSvc,
		tasks:   tasksSvc,
		chat:    chatSvc,
		media:   mediaSvc,
		opts:    opts,
		log:     logger.With().Str("component", "httpapi").Logger(),
	}
}

// Register монтирует маршруты на роутер.
func (h *Handler) Register(r chi.Router) {
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(api chi.Router) {
		api.Get("/ping", h.ping)
		api.Post("/generate-tasks", h.generateTasks)
		api.Post("/chat", h.chatMessage)
		api.Post("/speech/pipeline", h.speech)
		api.Post("/ocr", h.ocr)
		api.Post("/start_image_session", h.startImageSession)
		api.Post("/image_chat_session", h.imageChatSession)

		api.Group(func(protected chi.Router) {
			protected.Use(httpinfra.UserAuthMiddleware(h.opts.AuthSecret))

			protected.Post("/users", h.onboard)
			protected.Get("/users/me", h.profile)
			protected.Put("/users/me/preferences", h.updatePreferences)
			protected.Put("/users/me/basic-info", h.updateBasicInfo)

			protected.Get("/chapters", h.listChapters)
			protected.Post("/chapters", h.createChapter)
			protected.Get("/chapters/{chapterID}", h.getChapter)
			protected.Delete("/chapters/{chapterID}", h.deleteChapter)
			protected.Post("/chapters/{chapterID}/places", h.addPlace)
			protected.Delete("/chapters/{chapterID}/places/{placeID}", h.removePlace)
			protected.Post("/chapters/{chapterID}/places/{placeID}/toggle", h.togglePlace)
		})
	})
}

func (h *Handler) ping(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"message": h.opts.PingMessage})
}

type generateTasksRequest struct {
	City        string              `json:"city"`
	Country     string              `json:"country"`
	Preferences *domain.Preferences `json:"preferences"`
}

func (h *Handler) generateTasks(w http.ResponseWriter, r *http.Request) {
	var req generateTasksRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	taskReq := domain.TaskRequest{City: req.City, Country: req.Country}
	if req.Preferences != nil {
		taskReq.Preferences = *req.Preferences
	}
	places, err := h.tasks.Generate(r.Context(), taskReq)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"tasks": places})
}

type chatRequest struct {
	UserLanguage string `json:"user_language"`
	Message      string `json:"message"`
	UserContext  *struct {
		Chapters []struct {
			City string `json:"city"`
		} `json:"chapters"`
	} `json:"user_context"`
}

func (h *Handler) chatMessage(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	in := chat.Input{UserLanguage: req.UserLanguage, Message: req.Message}
	if req.UserContext != nil {
		for _, ch := range req.UserContext.Chapters {
			if city := strings.TrimSpace(ch.City); city != "" {
				in.Cities = append(in.Cities, city)
			}
		}
	}
	reply, err := h.chat.Chat(r.Context(), in)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, reply)
}

// writeServiceError переводит ошибки сценариев в HTTP-ответы.
func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrValidation):
		writeError(w, http.StatusBadRequest, clientMessage(err, domain.ErrValidation))
		return
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, clientMessage(err, domain.ErrNotFound))
		return
	case errors.Is(err, httpinfra.ErrUnauthorized):
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	h.log.Error().Err(err).Str("request_id", httpinfra.RequestID(r)).Str("path", r.URL.Path).Msg("httpapi: запрос завершился ошибкой")

	if perr, ok := pipeline.AsError(err); ok {
		if perr.Result != nil && errors.Is(perr, domain.ErrPipelineFailed) {
			writeJSON(w, http.StatusInternalServerError, perr.Result)
			return
		}
		body := map[string]any{"error": pipelineMessage(perr), "detail": perr.Detail}
		if perr.Stdout != "" || perr.Stderr != "" {
			body["stdout"] = perr.Stdout
			body["stderr"] = perr.Stderr
		}
		if len(perr.Candidates) > 0 {
			body["candidates"] = perr.Candidates
		}
		writeJSON(w, http.StatusInternalServerError, body)
		return
	}

	switch {
	case errors.Is(err, chat.ErrTranslation):
		writeError(w, http.StatusInternalServerError, clientMessage(err, chat.ErrTranslation))
	case errors.Is(err, chat.ErrModelUnavailable):
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": "Chat service failed", "detail": clientMessage(err, chat.ErrModelUnavailable)})
	default:
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func pipelineMessage(perr *pipeline.Error) string {
	switch {
	case errors.Is(perr, domain.ErrEnvironmentUnavailable):
		return "Pipeline environment unavailable"
	case errors.Is(perr, domain.ErrResultParse):
		return "Failed to parse pipeline output"
	case errors.Is(perr, domain.ErrOutputMissing):
		return "Output audio missing"
	default:
		return "Pipeline failed"
	}
}

// clientMessage отрезает префикс sentinel-ошибки.
func clientMessage(err, sentinel error) string {
	msg := err.Error()
	if rest, ok := strings.CutPrefix(msg, sentinel.Error()+": "); ok {
		return rest
	}
	return msg
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"error": msg})
}
