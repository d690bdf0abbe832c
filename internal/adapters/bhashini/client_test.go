package bhashini

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestTranslate(t *testing.T) {
	var got pipelineRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "token" {
			t.Errorf("ожидали токен в Authorization, получили %q", r.Header.Get("Authorization"))
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		_, _ = w.Write([]byte(`{"pipelineResponse":[{"taskType":"translation","output":[{"source":"नमस्ते","target":"Hello"}]}]}`))
	}))
	defer srv.Close()

	c := NewClient("token", srv.URL, "", time.Second)
	out, err := c.Translate(context.Background(), "नमस्ते", "hi", "en")
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if out != "Hello" {
		t.Fatalf("ожидали Hello, получили %q", out)
	}
	task := got.PipelineTasks[0]
	if task.TaskType != "translation" || task.Config.ServiceID != DefaultMTServiceID || task.Config.Language.SourceLanguage != "hi" {
		t.Fatalf("неожиданный запрос: %+v", got)
	}
}

func TestTranslateShortCircuits(t *testing.T) {
	c := NewClient("token", "http://127.0.0.1:0", "", time.Second)
	out, err := c.Translate(context.Background(), "hello", "en", "en")
	if err != nil || out != "hello" {
		t.Fatalf("ожидали тот же текст, получили %q (%v)", out, err)
	}
	if _, err := c.Translate(context.Background(), "hello", "xx", "en"); !errors.Is(err, ErrUnsupportedLanguage) {
		t.Fatalf("ожидали ErrUnsupportedLanguage, получили %v", err)
	}
	if _, err := c.Translate(context.Background(), "  ", "hi", "en"); !errors.Is(err, ErrEmptyText) {
		t.Fatalf("ожидали ErrEmptyText, получили %v", err)
	}
}

func TestTranslateUnexpectedResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"pipelineResponse":[]}`))
	}))
	defer srv.Close()
	c := NewClient("token", srv.URL, "", time.Second)
	if _, err := c.Translate(context.Background(), "hola", "hi", "en"); err == nil {
		t.Fatal("ожидали ошибку формата ответа")
	}
}

func TestTranslateHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota", http.StatusTooManyRequests)
	}))
	defer srv.Close()
	c := NewClient("token", srv.URL, "", time.Second)
	if _, err := c.Translate(context.Background(), "hola", "hi", "en"); err == nil {
		t.Fatal("ожидали ошибку статуса")
	}
}
