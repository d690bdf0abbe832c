package media

import (
	"context"
	"encoding/base64"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"sarthi/internal/adapters/pipeline"
	"sarthi/internal/adapters/sessions"
	"sarthi/internal/domain"
	"sarthi/internal/infra/cache"
)

type stubRunner struct {
	inv      pipeline.Invocation
	input    []byte
	payload  map[string]any
	output   []byte
	err      error
	sawInput bool
}

func (r *stubRunner) Run(_ context.Context, inv pipeline.Invocation) (pipeline.Result, error) {
	r.inv = inv
	for _, arg := range inv.Args {
		if strings.HasPrefix(arg, inv.WorkDir) {
			if data, err := os.ReadFile(arg); err == nil {
				r.input = data
				r.sawInput = true
				break
			}
		}
	}
	return pipeline.Result{Payload: r.payload, Output: r.output}, r.err
}

type stubModel struct {
	reqs   []domain.TextRequest
	answer string
}

func (m *stubModel) GenerateText(_ context.Context, req domain.TextRequest) (string, error) {
	m.reqs = append(m.reqs, req)
	return m.answer, nil
}

func newService(t *testing.T, speech, ocr Runner, model domain.TextGenerator) *Service {
	t.Helper()
	store := sessions.NewStore(cache.NewMemory(), time.Minute)
	return NewService(speech, ocr, store, model, Options{WorkRoot: t.TempDir()}, zerolog.Nop())
}

func TestSpeechBuildsInvocation(t *testing.T) {
	runner := &stubRunner{
		payload: map[string]any{"source_language": "hi", "output_audio": "translated_output.wav"},
		output:  []byte("RIFF"),
	}
	svc := newService(t, runner, nil, nil)

	out, err := svc.Speech(context.Background(), SpeechInput{Audio: []byte("wav"), Model: "local"})
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if !runner.sawInput || string(runner.input) != "wav" {
		t.Fatalf("входной файл не передан пайплайну: %v", runner.inv.Args)
	}
	args := runner.inv.Args
	if len(args) != 6 || args[0] != "--input" || args[2] != "--target" || args[3] != "en" || args[4] != "--output" {
		t.Fatalf("неожиданные аргументы: %v", args)
	}
	if !strings.HasPrefix(args[5], runner.inv.WorkDir) || !strings.HasPrefix(runner.inv.SidecarPath, runner.inv.WorkDir) {
		t.Fatalf("пути должны быть внутри рабочего каталога запроса: %+v", runner.inv)
	}
	if runner.inv.OutputKey != "output_audio" {
		t.Fatalf("ожидали OutputKey output_audio, получили %q", runner.inv.OutputKey)
	}
	if len(runner.inv.Env) != 1 || runner.inv.Env[0] != "FORCE_LOCAL_ASR=1" {
		t.Fatalf("ожидали FORCE_LOCAL_ASR=1, получили %v", runner.inv.Env)
	}
	if out["audio_base64"] != base64.StdEncoding.EncodeToString([]byte("RIFF")) || out["source_language"] != "hi" {
		t.Fatalf("неожиданный результат: %v", out)
	}
	if _, err := os.Stat(runner.inv.WorkDir); !os.IsNotExist(err) {
		t.Fatalf("рабочий каталог должен быть удалён, stat: %v", err)
	}
}

func TestSpeechValidationAndErrors(t *testing.T) {
	runner := &stubRunner{err: &pipeline.Error{Kind: domain.ErrPipelineFailed, Detail: "boom"}}
	svc := newService(t, runner, nil, nil)
	if _, err := svc.Speech(context.Background(), SpeechInput{}); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("ожидали ErrValidation, получили %v", err)
	}
	_, err := svc.Speech(context.Background(), SpeechInput{Audio: []byte("x"), Target: "ta"})
	if !errors.Is(err, domain.ErrPipelineFailed) {
		t.Fatalf("ожидали ErrPipelineFailed, получили %v", err)
	}
	if runner.inv.Args[3] != "ta" {
		t.Fatalf("target не передан: %v", runner.inv.Args)
	}
	if len(runner.inv.Env) != 0 {
		t.Fatalf("FORCE_LOCAL_ASR не должен выставляться: %v", runner.inv.Env)
	}
}

func TestOCRDefaults(t *testing.T) {
	runner := &stubRunner{payload: map[string]any{"ocr_text": "गेटवे", "place_name": "Location"}}
	svc := newService(t, nil, runner, nil)

	out, err := svc.OCR(context.Background(), ImageInput{Image: []byte("png"), Filename: "a.jpg"})
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	args := runner.inv.Args
	if len(args) != 4 || args[1] != "English" || args[2] != "0" || args[3] != "0" || !strings.HasSuffix(args[0], ".jpg") {
		t.Fatalf("неожиданные аргументы: %v", args)
	}
	id, _ := out["session_id"].(string)
	if !strings.HasPrefix(id, "session_") || len(id) != len("session_")+16 {
		t.Fatalf("неожиданный session_id: %q", id)
	}
	if out["place_name"] != "Location" {
		t.Fatalf("результат OCR должен пробрасываться: %v", out)
	}
}

func TestImageSessionConversation(t *testing.T) {
	ocr := &stubRunner{payload: map[string]any{"ocr_text": "Hawa Mahal"}}
	model := &stubModel{answer: "  It is a palace.  "}
	svc := newService(t, nil, ocr, model)
	ctx := context.Background()

	started, err := svc.StartImageSession(ctx, ImageInput{Image: []byte("jpg"), MIME: "image/jpeg", Latitude: "26.92", Longitude: "75.82", LocationInfo: "Jaipur"})
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	id := started["session_id"].(string)
	if started["message"] != "Session created successfully." || started["ocr_text"] != "Hawa Mahal" {
		t.Fatalf("неожиданный ответ старта: %v", started)
	}

	first, err := svc.AskImageSession(ctx, id, "What is this?")
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if first.AIResponse != "It is a palace." {
		t.Fatalf("ответ должен быть обрезан: %q", first.AIResponse)
	}
	req := model.reqs[0]
	if string(req.Image) != "jpg" || req.ImageMIME != "image/jpeg" || req.Temperature != 0.6 || req.MaxTokens != 2048 {
		t.Fatalf("неожиданный запрос к модели: %+v", req)
	}
	if !strings.Contains(req.Prompt, "- Coordinates: 26.92, 75.82") || !strings.Contains(req.Prompt, `New question: "What is this?"`) {
		t.Fatalf("неожиданный промпт: %q", req.Prompt)
	}

	model.answer = ""
	second, err := svc.AskImageSession(ctx, id, "Who built it?")
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if second.AIResponse != "[No response]" {
		t.Fatalf("пустой ответ должен заменяться заглушкой: %q", second.AIResponse)
	}
	if !strings.Contains(model.reqs[1].Prompt, "User: What is this?\nAI: It is a palace.") {
		t.Fatalf("история не попала в промпт: %q", model.reqs[1].Prompt)
	}
}

func TestAskImageSessionErrors(t *testing.T) {
	svc := newService(t, nil, nil, &stubModel{})
	if _, err := svc.AskImageSession(context.Background(), "missing", "hi"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("ожидали ErrNotFound, получили %v", err)
	}
	if _, err := svc.AskImageSession(context.Background(), "missing", " "); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("ожидали ErrValidation, получили %v", err)
	}
}
