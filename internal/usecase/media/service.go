package media

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"sarthi/internal/adapters/pipeline"
	"sarthi/internal/domain"
)

const (
	sessionTemperature = 0.6
	sessionMaxTokens   = 2048
	noResponse         = "[No response]"
)

// Runner запускает внешний пайплайн.
type Runner interface {
	Run(ctx context.Context, inv pipeline.Invocation) (pipeline.Result, error)
}

// Options: настройки медиасервиса.
type Options struct {
	WorkRoot      string
	SpeechTarget  string
	OCRTarget     string
	ForceLocalASR bool
}

// Service переводит речь и изображения через внешние пайплайны и ведёт сессии по снимкам.
type Service struct {
	speech   Runner
	ocr      Runner
	sessions domain.ImageSessionStore
	model    domain.TextGenerator
	opts     Options
	now      func() time.Time
	log      zerolog.Logger
}

// NewService создаёт медиасервис. sessions и model нужны только для сессий по снимкам.
func NewService(speech, ocr Runner, sessions domain.ImageSessionStore, model domain.TextGenerator, opts Options, logger zerolog.Logger) *Service {
	if opts.SpeechTarget == "" {
		opts.SpeechTarget = "en"
	}
	if opts.OCRTarget == "" {
		opts.OCRTarget = "English"
	}
	return &Service{
		speech:   speech,
		ocr:      ocr,
		sessions: sessions,
		model:    model,
		opts:     opts,
		now:      time.Now,
		log:      logger.With().Str("component", "media").Logger(),
	}
}

// SpeechInput: аудио для перевода.
type SpeechInput struct {
	Audio  []byte
	Target string
	// Model = "local" включает локальное распознавание.
	Model string
}

// Speech прогоняет аудио через пайплайн и добавляет audio_base64 к результату.
func (s *Service) Speech(ctx context.Context, in SpeechInput) (map[string]any, error) {
	if len(in.Audio) == 0 {
		return nil, domain.Validationf("No audio file uploaded")
	}
	target := strings.TrimSpace(in.Target)
	if target == "" {
		target = s.opts.SpeechTarget
	}

	ws, err := pipeline.NewWorkspace(s.opts.WorkRoot, "speech")
	if err != nil {
		return nil, fmt.Errorf("save input: %w", err)
	}
	defer s.cleanup(ws)

	input, err := ws.WriteFile("input.wav", in.Audio)
	if err != nil {
		return nil, fmt.Errorf("save input: %w", err)
	}
	var env []string
	if s.opts.ForceLocalASR || strings.EqualFold(in.Model, "local") {
		env = append(env, "FORCE_LOCAL_ASR=1")
	}

	res, err := s.speech.Run(ctx, pipeline.Invocation{
		Args:        []string{"--input", input, "--target", target, "--output", ws.Path("translated_output.wav")},
		Env:         env,
		SidecarPath: ws.Path("run_wrapper_result.json"),
		OutputKey:   "output_audio",
		WorkDir:     ws.Dir,
	})
	if err != nil {
		return nil, err
	}
	s.log.Info().
		Interface("source_language", res.Payload["source_language"]).
		Int("audio_bytes", len(res.Output)).
		Msg("media: речь переведена")

	out := make(map[string]any, len(res.Payload)+1)
	for k, v := range res.Payload {
		out[k] = v
	}
	out["audio_base64"] = base64.StdEncoding.EncodeToString(res.Output)
	return out, nil
}

// ImageInput: снимок для OCR.
type ImageInput struct {
	Image          []byte
	Filename       string
	MIME           string
	Latitude       string
	Longitude      string
	TargetLanguage string
	LocationInfo   string
}

// OCR распознаёт и переводит текст на снимке. Ответ содержит session_id запроса.
func (s *Service) OCR(ctx context.Context, in ImageInput) (map[string]any, error) {
	sessionID, result, err := s.runOCR(ctx, in)
	if err != nil {
		return nil, err
	}
	return withSession(sessionID, result), nil
}

// StartImageSession выполняет OCR и сохраняет снимок для последующих вопросов.
func (s *Service) StartImageSession(ctx context.Context, in ImageInput) (map[string]any, error) {
	if s.sessions == nil {
		return nil, fmt.Errorf("image sessions are not configured")
	}
	sessionID, result, err := s.runOCR(ctx, in)
	if err != nil {
		return nil, err
	}
	ocrText, _ := result["ocr_text"].(string)
	if ocrText == "" {
		ocrText, _ = result["text"].(string)
	}
	now := s.now()
	session := domain.ImageSession{
		ID:             sessionID,
		Image:          in.Image,
		ImageMIME:      imageMIME(in),
		Latitude:       orDefault(in.Latitude, "0"),
		Longitude:      orDefault(in.Longitude, "0"),
		TargetLanguage: orDefault(in.TargetLanguage, s.opts.OCRTarget),
		LocationInfo:   strings.TrimSpace(in.LocationInfo),
		OCRText:        ocrText,
		OCRResult:      result,
		History:        []domain.ChatTurn{},
		CreatedAt:      now,
		LastActive:     now,
	}
	if err := s.sessions.Save(ctx, session); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}
	s.log.Info().Str("session_id", sessionID).Msg("media: сессия создана")

	out := withSession(sessionID, result)
	out["ocr_text"] = ocrText
	out["message"] = "Session created successfully."
	return out, nil
}

// ImageAnswer: ответ на вопрос о снимке.
type ImageAnswer struct {
	SessionID    string `json:"session_id"`
	UserQuestion string `json:"user_question"`
	AIResponse   string `json:"ai_response"`
}

// AskImageSession отвечает на вопрос с учётом снимка, OCR и истории сессии.
func (s *Service) AskImageSession(ctx context.Context, sessionID, question string) (ImageAnswer, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return ImageAnswer{}, domain.Validationf("user_question is required")
	}
	if s.sessions == nil || s.model == nil {
		return ImageAnswer{}, fmt.Errorf("image sessions are not configured")
	}
	session, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return ImageAnswer{}, err
	}

	answer, err := s.model.GenerateText(ctx, domain.TextRequest{
		Prompt:      SessionPrompt(session, question),
		Temperature: sessionTemperature,
		MaxTokens:   sessionMaxTokens,
		Image:       session.Image,
		ImageMIME:   session.ImageMIME,
	})
	if err != nil {
		return ImageAnswer{}, fmt.Errorf("image chat: %w", err)
	}
	answer = strings.TrimSpace(answer)
	if answer == "" {
		answer = noResponse
	}

	session.History = append(session.History, domain.ChatTurn{Question: question, Answer: answer})
	session.LastActive = s.now()
	if err := s.sessions.Save(ctx, session); err != nil {
		s.log.Warn().Err(err).Str("session_id", session.ID).Msg("media: не удалось сохранить историю")
	}
	return ImageAnswer{SessionID: session.ID, UserQuestion: question, AIResponse: answer}, nil
}

// SessionPrompt собирает контекст вопроса о снимке.
func SessionPrompt(session domain.ImageSession, question string) string {
	turns := make([]string, 0, len(session.History))
	for _, t := range session.History {
		turns = append(turns, fmt.Sprintf("User: %s\nAI: %s", t.Question, t.Answer))
	}
	return fmt.Sprintf(`You are a friendly travel AI.

Session context:
- Coordinates: %s, %s
- OCR text: %s
- Extra info: %s

Conversation so far:
%s

New question: "%s"`, session.Latitude, session.Longitude, session.OCRText, session.LocationInfo, strings.Join(turns, "\n"), question)
}

func (s *Service) runOCR(ctx context.Context, in ImageInput) (string, map[string]any, error) {
	if len(in.Image) == 0 {
		return "", nil, domain.Validationf("Image file is required")
	}
	sessionID, err := newSessionID()
	if err != nil {
		return "", nil, err
	}
	ws, err := pipeline.NewWorkspace(s.opts.WorkRoot, "ocr")
	if err != nil {
		return "", nil, fmt.Errorf("save image: %w", err)
	}
	defer s.cleanup(ws)

	path, err := ws.WriteFile(sessionID+imageExt(in.Filename), in.Image)
	if err != nil {
		return "", nil, fmt.Errorf("save image: %w", err)
	}
	res, err := s.ocr.Run(ctx, pipeline.Invocation{
		Args: []string{
			path,
			orDefault(in.TargetLanguage, s.opts.OCRTarget),
			orDefault(in.Latitude, "0"),
			orDefault(in.Longitude, "0"),
		},
		SidecarPath: ws.Path("ocr_result.json"),
		WorkDir:     ws.Dir,
	})
	if err != nil {
		return "", nil, err
	}
	return sessionID, res.Payload, nil
}

func (s *Service) cleanup(ws *pipeline.Workspace) {
	if err := ws.Cleanup(); err != nil {
		s.log.Warn().Err(err).Str("dir", ws.Dir).Msg("media: не удалось удалить рабочий каталог")
	}
}

func withSession(sessionID string, result map[string]any) map[string]any {
	out := make(map[string]any, len(result)+1)
	for k, v := range result {
		out[k] = v
	}
	out["session_id"] = sessionID
	return out
}

func newSessionID() (string, error) {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("session id: %w", err)
	}
	return "session_" + hex.EncodeToString(buf), nil
}

func imageExt(filename string) string {
	switch ext := strings.ToLower(filepath.Ext(filename)); ext {
	case ".jpg", ".jpeg", ".png", ".webp":
		return ext
	default:
		return ".png"
	}
}

func imageMIME(in ImageInput) string {
	if strings.HasPrefix(in.MIME, "image/") {
		return in.MIME
	}
	switch imageExt(in.Filename) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".webp":
		return "image/webp"
	default:
		return "image/png"
	}
}

func orDefault(v, def string) string {
	if v = strings.TrimSpace(v); v != "" {
		return v
	}
	return def
}
