package generator

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"regexp"
	"strings"
	"time"

	"sarthi/internal/domain"
)

var (
	// ErrEmptyResponse: модель вернула пустой ответ.
	ErrEmptyResponse = errors.New("generator: empty response")
	// ErrInvalidTasks: ответ не содержит массив tasks.
	ErrInvalidTasks = errors.New("generator: invalid task structure")
)

var jsonObjectRe = regexp.MustCompile(`\{[\s\S]*\}`)

type rawTask struct {
	PlaceID           string   `json:"place_id"`
	Name              string   `json:"name"`
	Type              string   `json:"type"`
	Rating            *float64 `json:"rating"`
	XP                *float64 `json:"xp"`
	Description       string   `json:"description"`
	EstimatedDuration string   `json:"estimated_duration"`
}

type rawResponse struct {
	Tasks *[]rawTask `json:"tasks"`
}

// ParseTasks достаёт JSON из ответа модели и нормализует задачи.
func ParseTasks(content, city string, now time.Time) ([]domain.GeneratedPlace, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, ErrEmptyResponse
	}
	candidate := content
	if match := jsonObjectRe.FindString(content); match != "" {
		candidate = match
	}
	var parsed rawResponse
	if err := json.Unmarshal([]byte(candidate), &parsed); err != nil {
		return nil, fmt.Errorf("generator: invalid JSON in response: %w", err)
	}
	if parsed.Tasks == nil {
		return nil, ErrInvalidTasks
	}

	cityKey := strings.ToLower(city)
	out := make([]domain.GeneratedPlace, 0, len(*parsed.Tasks))
	for i, task := range *parsed.Tasks {
		name := strings.TrimSpace(task.Name)
		if name == "" {
			continue
		}
		placeID := strings.TrimSpace(task.PlaceID)
		if placeID == "" {
			placeID = fmt.Sprintf("%s_ai_%d_%d", cityKey, now.UnixMilli(), i)
		}
		typ := strings.TrimSpace(task.Type)
		if typ == "" {
			typ = "Attraction"
		}
		rating := 4.0
		if task.Rating != nil && *task.Rating != 0 {
			rating = *task.Rating
		}
		rating = math.Min(math.Max(rating, 0), 5)

		out = append(out, domain.GeneratedPlace{
			PlaceID:           placeID,
			Name:              name,
			Type:              typ,
			Rating:            rating,
			XP:                NormalizeXP(task.XP, rating),
			Status:            domain.PlaceStatusPending,
			Description:       strings.TrimSpace(task.Description),
			EstimatedDuration: strings.TrimSpace(task.EstimatedDuration),
		})
	}
	return out, nil
}

// NormalizeXP берёт предложенный XP или rating*30, ограничивает 20..200 и округляет до десятков.
func NormalizeXP(suggested *float64, rating float64) int {
	xp := math.Round(rating * 30)
	if suggested != nil && *suggested != 0 {
		xp = *suggested
	}
	xp = math.Max(20, math.Min(200, xp))
	return int(math.Round(xp/10) * 10)
}
