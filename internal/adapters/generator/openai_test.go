package generator

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"sarthi/internal/domain"
	"sarthi/internal/infra/openai"
)

func TestOpenAIGenerateTasks(t *testing.T) {
	var gotFormat string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("неожиданный путь %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer key" {
			t.Errorf("нет заголовка авторизации")
		}
		var req struct {
			ResponseFormat struct {
				Type string `json:"type"`
			} `json:"response_format"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		gotFormat = req.ResponseFormat.Type
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"{\"tasks\":[{\"place_id\":\"pune_001\",\"name\":\"Shaniwar Wada\",\"rating\":4.4,\"xp\":120}]}"}}],"usage":{"prompt_tokens":10,"completion_tokens":20,"total_tokens":30}}`))
	}))
	defer srv.Close()

	gen := NewOpenAI(openai.NewClient("key", srv.URL, time.Second), "gpt-test")
	tasks, err := gen.GenerateTasks(context.Background(), domain.TaskRequest{City: "Pune"})
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if gotFormat != openai.ResponseFormatTypeJSONObject {
		t.Fatalf("ожидали response_format json_object, получили %q", gotFormat)
	}
	if len(tasks) != 1 || tasks[0].Name != "Shaniwar Wada" || tasks[0].XP != 120 {
		t.Fatalf("неожиданные задачи: %+v", tasks)
	}
}

func TestOpenAIGenerateTextWithImage(t *testing.T) {
	var parts []map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Messages []struct {
				Role    string          `json:"role"`
				Content json.RawMessage `json:"content"`
			} `json:"messages"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		if len(req.Messages) == 2 {
			_ = json.Unmarshal(req.Messages[1].Content, &parts)
		}
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"  It is a temple.  "}}]}`))
	}))
	defer srv.Close()

	gen := NewOpenAI(openai.NewClient("key", srv.URL, time.Second), "gpt-test")
	answer, err := gen.GenerateText(context.Background(), domain.TextRequest{System: "sys", Prompt: "What is this?", Image: []byte{0x89, 0x50}, ImageMIME: "image/png"})
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if answer != "It is a temple." {
		t.Fatalf("неожиданный ответ %q", answer)
	}
	if len(parts) != 2 || parts[1]["type"] != "image_url" {
		t.Fatalf("ожидали мультимодальное сообщение, получили %v", parts)
	}
}

func TestOpenAIEmptyChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[]}`))
	}))
	defer srv.Close()

	gen := NewOpenAI(openai.NewClient("key", srv.URL, time.Second), "gpt-test")
	if _, err := gen.GenerateText(context.Background(), domain.TextRequest{Prompt: "hi"}); err == nil {
		t.Fatal("ожидали ошибку для пустого ответа")
	}
}
