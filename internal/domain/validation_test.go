package domain

import (
	"errors"
	"testing"
)

func TestPreferencesValidate(t *testing.T) {
	cases := []struct {
		name  string
		prefs Preferences
		ok    bool
	}{
		{name: "complete", prefs: Preferences{Interests: []string{"food"}, TravelStyle: "solo", Budget: "low"}, ok: true},
		{name: "no interests", prefs: Preferences{TravelStyle: "solo", Budget: "low"}},
		{name: "blank interest", prefs: Preferences{Interests: []string{" "}, TravelStyle: "solo", Budget: "low"}},
		{name: "no style", prefs: Preferences{Interests: []string{"food"}, Budget: "low"}},
		{name: "no budget", prefs: Preferences{Interests: []string{"food"}, TravelStyle: "solo"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.prefs.Validate()
			if tc.ok && err != nil {
				t.Fatalf("не ожидали ошибку: %v", err)
			}
			if !tc.ok && !errors.Is(err, ErrValidation) {
				t.Fatalf("ожидали ErrValidation, получили %v", err)
			}
		})
	}
}

func TestPreferencesNormalize(t *testing.T) {
	got := Preferences{Interests: []string{" Food", "food", "", "Museums"}, TravelStyle: " solo ", Budget: "low"}.Normalize()
	if len(got.Interests) != 2 || got.Interests[0] != "Food" || got.Interests[1] != "Museums" {
		t.Fatalf("неожиданные интересы: %v", got.Interests)
	}
	if got.TravelStyle != "solo" {
		t.Fatalf("ожидали обрезанный стиль, получили %q", got.TravelStyle)
	}
}

func TestPlaceValidate(t *testing.T) {
	neg := -1
	if err := (Place{Name: "Fort", Rating: 4.5}).Validate(); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if err := (Place{Name: "Fort", Rating: 5.1}).Validate(); !errors.Is(err, ErrValidation) {
		t.Fatalf("ожидали ошибку рейтинга, получили %v", err)
	}
	if err := (Place{Name: "Fort", XP: &neg}).Validate(); !errors.Is(err, ErrValidation) {
		t.Fatalf("ожидали ошибку xp, получили %v", err)
	}
	if err := (Place{}).Validate(); !errors.Is(err, ErrValidation) {
		t.Fatalf("ожидали ошибку имени, получили %v", err)
	}
}
