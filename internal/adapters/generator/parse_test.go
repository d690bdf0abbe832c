package generator

import (
	"errors"
	"strings"
	"testing"
	"time"

	"sarthi/internal/domain"
)

func TestParseTasksExtractsJSON(t *testing.T) {
	content := "Sure! Here you go:\n```json\n" + `{"tasks":[
		{"place_id":"jaipur_001","name":"Amber Fort","type":"Culture","rating":4.8,"xp":176,"description":"Hilltop fort","estimated_duration":"3 hours"},
		{"name":"Chokhi Dhani","rating":7,"description":"Village food"},
		{"name":"  "}
	]}` + "\n```"
	now := time.UnixMilli(1700000000000)
	tasks, err := ParseTasks(content, "Jaipur", now)
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if len(tasks) != 2 {
		t.Fatalf("ожидали 2 задачи, получили %d", len(tasks))
	}
	first := tasks[0]
	if first.PlaceID != "jaipur_001" || first.XP != 180 || first.Status != domain.PlaceStatusPending {
		t.Fatalf("неожиданная первая задача: %+v", first)
	}
	second := tasks[1]
	if !strings.HasPrefix(second.PlaceID, "jaipur_ai_1700000000000_1") {
		t.Fatalf("неожиданный place_id: %s", second.PlaceID)
	}
	if second.Type != "Attraction" || second.Rating != 5 {
		t.Fatalf("ожидали тип по умолчанию и рейтинг 5, получили %+v", second)
	}
	if second.XP != 150 {
		t.Fatalf("ожидали xp=150 из рейтинга, получили %d", second.XP)
	}
}

func TestParseTasksErrors(t *testing.T) {
	if _, err := ParseTasks("  ", "Pune", time.Now()); !errors.Is(err, ErrEmptyResponse) {
		t.Fatalf("ожидали ErrEmptyResponse, получили %v", err)
	}
	if _, err := ParseTasks(`{"places":[]}`, "Pune", time.Now()); !errors.Is(err, ErrInvalidTasks) {
		t.Fatalf("ожидали ErrInvalidTasks, получили %v", err)
	}
	if _, err := ParseTasks("no json here", "Pune", time.Now()); err == nil {
		t.Fatal("ожидали ошибку разбора")
	}
}

func TestNormalizeXP(t *testing.T) {
	f := func(v float64) *float64 { return &v }
	cases := []struct {
		name      string
		suggested *float64
		rating    float64
		want      int
	}{
		{name: "suggested rounded", suggested: f(134), rating: 4, want: 130},
		{name: "suggested clamped high", suggested: f(500), rating: 4, want: 200},
		{name: "suggested clamped low", suggested: f(5), rating: 4, want: 20},
		{name: "from rating", rating: 4.5, want: 140},
		{name: "zero suggested uses rating", suggested: f(0), rating: 3, want: 90},
		{name: "low rating floor", rating: 0.2, want: 20},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := NormalizeXP(tc.suggested, tc.rating); got != tc.want {
				t.Fatalf("ожидали %d, получили %d", tc.want, got)
			}
		})
	}
}

func TestBuildTaskPrompt(t *testing.T) {
	prompt := BuildTaskPrompt(domain.TaskRequest{
		City:        "Jaipur",
		Country:     "India",
		Preferences: domain.Preferences{Interests: []string{"forts", "food"}, TravelStyle: "solo", Budget: "low"},
	})
	for _, want := range []string{"Jaipur, India", "forts, food", "solo travel style", `"jaipur_001"`} {
		if !strings.Contains(prompt, want) {
			t.Fatalf("промпт не содержит %q", want)
		}
	}
	generic := BuildTaskPrompt(domain.TaskRequest{City: "Goa"})
	if !strings.Contains(generic, "general sightseeing, culture, food") {
		t.Fatal("ожидали интересы по умолчанию")
	}
}

func TestBuildChatContext(t *testing.T) {
	if got := BuildChatContext([]string{"Agra", " ", "Delhi"}); got != "User is planning trips to: Agra, Delhi. " {
		t.Fatalf("неожиданный контекст %q", got)
	}
	if BuildChatContext(nil) != "" {
		t.Fatal("ожидали пустой контекст")
	}
}
