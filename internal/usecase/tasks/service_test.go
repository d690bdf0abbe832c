package tasks

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"sarthi/internal/domain"
	"sarthi/internal/infra/cache"
)

type stubGenerator struct {
	calls  int
	places []domain.GeneratedPlace
	err    error
}

func (g *stubGenerator) GenerateTasks(context.Context, domain.TaskRequest) ([]domain.GeneratedPlace, error) {
	g.calls++
	return g.places, g.err
}

var prefs = domain.Preferences{Interests: []string{"food"}, TravelStyle: "solo", Budget: "low"}

func TestSuggestFallsBackOnError(t *testing.T) {
	svc := NewService(&stubGenerator{err: errors.New("quota exceeded")}, nil, time.Hour, zerolog.Nop())
	places := svc.Suggest(context.Background(), domain.TaskRequest{City: "Jaipur", Preferences: prefs})
	if len(places) != 5 {
		t.Fatalf("ожидали 5 мест из запасного списка, получили %d", len(places))
	}
	if places[0].PlaceID != "jaipur_001" || places[0].Name != "Jaipur Central Park" || places[0].XP != 80 {
		t.Fatalf("неожиданное первое место: %+v", places[0])
	}
	if places[4].Name != "Jaipur Viewpoint" || places[4].XP != 150 {
		t.Fatalf("неожиданное последнее место: %+v", places[4])
	}
}

func TestSuggestFallsBackOnEmptyAndNilGenerator(t *testing.T) {
	svc := NewService(&stubGenerator{}, nil, time.Hour, zerolog.Nop())
	if got := svc.Suggest(context.Background(), domain.TaskRequest{City: "Goa"}); len(got) != 5 {
		t.Fatalf("ожидали запасной список для пустого ответа, получили %d", len(got))
	}
	svc = NewService(nil, nil, time.Hour, zerolog.Nop())
	if got := svc.Suggest(context.Background(), domain.TaskRequest{City: "Goa"}); len(got) != 5 {
		t.Fatalf("ожидали запасной список без генератора, получили %d", len(got))
	}
}

func TestSuggestUsesCache(t *testing.T) {
	gen := &stubGenerator{places: []domain.GeneratedPlace{{PlaceID: "pune_001", Name: "Aga Khan Palace", XP: 120, Status: domain.PlaceStatusPending}}}
	svc := NewService(gen, cache.NewMemory(), time.Hour, zerolog.Nop())
	ctx := context.Background()

	first := svc.Suggest(ctx, domain.TaskRequest{City: "Pune", Preferences: prefs})
	second := svc.Suggest(ctx, domain.TaskRequest{City: "pune", Preferences: domain.Preferences{Interests: []string{"Food"}, TravelStyle: "solo", Budget: "low"}})
	if gen.calls != 1 {
		t.Fatalf("ожидали один вызов генератора, получили %d", gen.calls)
	}
	if len(first) != 1 || len(second) != 1 || second[0].Name != "Aga Khan Palace" {
		t.Fatalf("ожидали ответ из кэша, получили %+v", second)
	}
}

func TestSuggestDoesNotCacheFallback(t *testing.T) {
	gen := &stubGenerator{err: errors.New("boom")}
	svc := NewService(gen, cache.NewMemory(), time.Hour, zerolog.Nop())
	ctx := context.Background()
	svc.Suggest(ctx, domain.TaskRequest{City: "Agra"})
	svc.Suggest(ctx, domain.TaskRequest{City: "Agra"})
	if gen.calls != 2 {
		t.Fatalf("запасной список не должен кэшироваться, вызовов %d", gen.calls)
	}
}

func TestGenerateValidates(t *testing.T) {
	svc := NewService(nil, nil, 0, zerolog.Nop())
	if _, err := svc.Generate(context.Background(), domain.TaskRequest{Preferences: prefs}); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("ожидали ErrValidation без города, получили %v", err)
	}
	if _, err := svc.Generate(context.Background(), domain.TaskRequest{City: "Agra"}); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("ожидали ErrValidation без предпочтений, получили %v", err)
	}
	places, err := svc.Generate(context.Background(), domain.TaskRequest{City: " Agra ", Preferences: prefs})
	if err != nil || len(places) != 5 || places[0].PlaceID != "agra_001" {
		t.Fatalf("ожидали запасной список для Agra, получили %v (%v)", places, err)
	}
}
