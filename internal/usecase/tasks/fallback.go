package tasks

import (
	"strings"

	"sarthi/internal/domain"
)

// Fallback возвращает детерминированный список из пяти мест для города.
func Fallback(city string) []domain.GeneratedPlace {
	key := strings.ToLower(city)
	place := func(suffix, name, typ string, rating float64, xp int, description, duration string) domain.GeneratedPlace {
		return domain.GeneratedPlace{
			PlaceID:           key + "_" + suffix,
			Name:              name,
			Type:              typ,
			Rating:            rating,
			XP:                xp,
			Status:            domain.PlaceStatusPending,
			Description:       description,
			EstimatedDuration: duration,
		}
	}
	return []domain.GeneratedPlace{
		place("001", city+" Central Park", "Nature", 4.6, 80, "Beautiful green space perfect for relaxation", "2 hours"),
		place("002", "Historic "+city+" Museum", "Museum", 4.5, 100, "Learn about the rich history and culture", "3 hours"),
		place("003", city+" Food Market", "Food", 4.7, 60, "Experience authentic local cuisine", "1.5 hours"),
		place("004", city+" Old Town", "Culture", 4.8, 120, "Explore historic architecture and culture", "4 hours"),
		place("005", city+" Viewpoint", "Attraction", 4.9, 150, "Breathtaking panoramic views of the city", "1 hour"),
	}
}
