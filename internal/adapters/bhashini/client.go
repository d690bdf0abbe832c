package bhashini

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"sarthi/internal/domain"
	"sarthi/internal/infra/metrics"
)

const (
	// DefaultAPIURL: эндпоинт inference pipeline.
	DefaultAPIURL = "https://dhruva-api.bhashini.gov.in/services/inference/pipeline"
	// DefaultMTServiceID: модель машинного перевода IndicTrans v2.
	DefaultMTServiceID = "ai4bharat/indictrans-v2-all-gpu--t4"
)

var supportedLanguages = map[string]struct{}{
	"en": {}, "hi": {}, "bn": {}, "ta": {}, "te": {}, "ml": {}, "kn": {}, "gu": {}, "mr": {}, "or": {}, "pa": {}, "as": {},
	"ur": {}, "sa": {}, "ne": {}, "sd": {}, "ks": {}, "brx": {}, "doi": {}, "gom": {}, "mai": {}, "mni": {}, "sat": {},
}

var (
	// ErrUnsupportedLanguage: язык не поддерживается сервисом перевода.
	ErrUnsupportedLanguage = errors.New("bhashini: unsupported language")
	// ErrEmptyText: пустой текст для перевода.
	ErrEmptyText = errors.New("bhashini: text cannot be empty")
)

// Supported сообщает, поддерживается ли код языка.
func Supported(code string) bool {
	_, ok := supportedLanguages[code]
	return ok
}

// SupportedLanguages возвращает отсортированный список кодов.
func SupportedLanguages() []string {
	out := make([]string, 0, len(supportedLanguages))
	for code := range supportedLanguages {
		out = append(out, code)
	}
	sort.Strings(out)
	return out
}

// Client переводит текст через Bhashini pipeline API.
type Client struct {
	http      *http.Client
	apiURL    string
	authToken string
	serviceID string
}

var _ domain.Translator = (*Client)(nil)

// NewClient создаёт клиента Bhashini.
func NewClient(authToken, apiURL, serviceID string, timeout time.Duration) *Client {
	if apiURL == "" {
		apiURL = DefaultAPIURL
	}
	if serviceID == "" {
		serviceID = DefaultMTServiceID
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		http:      &http.Client{Timeout: timeout},
		apiURL:    apiURL,
		authToken: authToken,
		serviceID: serviceID,
	}
}

type pipelineRequest struct {
	PipelineTasks []pipelineTask `json:"pipelineTasks"`
	InputData     inputData      `json:"inputData"`
}

type pipelineTask struct {
	TaskType string     `json:"taskType"`
	Config   taskConfig `json:"config"`
}

type taskConfig struct {
	Language       languagePair `json:"language"`
	ServiceID      string       `json:"serviceId"`
	NumTranslation string       `json:"numTranslation"`
}

type languagePair struct {
	SourceLanguage string `json:"sourceLanguage"`
	TargetLanguage string `json:"targetLanguage"`
}

type inputData struct {
	Input []sourceText   `json:"input"`
	Audio []audioContent `json:"audio"`
}

type sourceText struct {
	Source string `json:"source"`
}

type audioContent struct {
	AudioContent *string `json:"audioContent"`
}

type pipelineResponse struct {
	PipelineResponse []struct {
		Output []struct {
			Target string `json:"target"`
		} `json:"output"`
	} `json:"pipelineResponse"`
}

// Translate переводит text с sourceLang на targetLang. Одинаковые языки возвращают текст как есть.
func (c *Client) Translate(ctx context.Context, text, sourceLang, targetLang string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", ErrEmptyText
	}
	if !Supported(sourceLang) || !Supported(targetLang) {
		return "", fmt.Errorf("%w: %s→%s (supported: %s)", ErrUnsupportedLanguage, sourceLang, targetLang, strings.Join(SupportedLanguages(), ", "))
	}
	if sourceLang == targetLang {
		return text, nil
	}

	body, err := json.Marshal(pipelineRequest{
		PipelineTasks: []pipelineTask{{
			TaskType: "translation",
			Config: taskConfig{
				Language:       languagePair{SourceLanguage: sourceLang, TargetLanguage: targetLang},
				ServiceID:      c.serviceID,
				NumTranslation: "True",
			},
		}},
		InputData: inputData{
			Input: []sourceText{{Source: text}},
			Audio: []audioContent{{}},
		},
	})
	if err != nil {
		return "", fmt.Errorf("bhashini: marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("bhashini: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", c.authToken)

	target := sourceLang + "-" + targetLang
	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		metrics.ObserveNetworkRequest("bhashini", "translate", target, start, err)
		return "", fmt.Errorf("bhashini: do request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		err = fmt.Errorf("bhashini: status %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
		metrics.ObserveNetworkRequest("bhashini", "translate", target, start, err)
		return "", err
	}
	var parsed pipelineResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		metrics.ObserveNetworkRequest("bhashini", "translate", target, start, err)
		return "", fmt.Errorf("bhashini: decode response: %w", err)
	}
	if len(parsed.PipelineResponse) == 0 || len(parsed.PipelineResponse[0].Output) == 0 {
		err = errors.New("bhashini: unexpected API response format")
		metrics.ObserveNetworkRequest("bhashini", "translate", target, start, err)
		return "", err
	}
	metrics.ObserveNetworkRequest("bhashini", "translate", target, start, nil)
	return parsed.PipelineResponse[0].Output[0].Target, nil
}
