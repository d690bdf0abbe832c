package domain

import "strings"

// Validate проверяет, что предпочтения заполнены целиком.
func (p Preferences) Validate() error {
	if len(p.Interests) == 0 {
		return Validationf("preferences.interests is required")
	}
	for _, interest := range p.Interests {
		if strings.TrimSpace(interest) == "" {
			return Validationf("preferences.interests must not contain empty values")
		}
	}
	if strings.TrimSpace(p.TravelStyle) == "" {
		return Validationf("preferences.travel_style is required")
	}
	if strings.TrimSpace(p.Budget) == "" {
		return Validationf("preferences.budget is required")
	}
	return nil
}

// Normalize убирает пробелы и повторы интересов.
func (p Preferences) Normalize() Preferences {
	seen := make(map[string]struct{}, len(p.Interests))
	interests := make([]string, 0, len(p.Interests))
	for _, interest := range p.Interests {
		interest = strings.TrimSpace(interest)
		key := strings.ToLower(interest)
		if _, ok := seen[key]; ok || interest == "" {
			continue
		}
		seen[key] = struct{}{}
		interests = append(interests, interest)
	}
	return Preferences{
		Interests:   interests,
		TravelStyle: strings.TrimSpace(p.TravelStyle),
		Budget:      strings.TrimSpace(p.Budget),
	}
}

// Validate проверяет анкету пользователя.
func (b BasicInfo) Validate() error {
	if strings.TrimSpace(b.Name) == "" {
		return Validationf("basic_info.name is required")
	}
	if b.Email != "" && !strings.Contains(b.Email, "@") {
		return Validationf("basic_info.email is invalid")
	}
	if b.Age < 0 || b.Age > 150 {
		return Validationf("basic_info.age is out of range")
	}
	return nil
}

// Validate проверяет место, добавляемое вручную.
func (p Place) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return Validationf("place name is required")
	}
	if p.Rating < 0 || p.Rating > 5 {
		return Validationf("place rating must be within 0..5")
	}
	if p.XP != nil && *p.XP < 0 {
		return Validationf("place xp must not be negative")
	}
	return nil
}
