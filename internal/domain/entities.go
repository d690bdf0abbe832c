package domain

import "time"

// Language описывает язык интерфейса пользователя.
type Language struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

// BasicInfo хранит анкету пользователя из онбординга.
type BasicInfo struct {
	Name     string   `json:"name"`
	Email    string   `json:"email"`
	Country  string   `json:"country"`
	Age      int      `json:"age"`
	Language Language `json:"language"`
}

// Preferences описывает предпочтения путешественника.
type Preferences struct {
	Interests   []string `json:"interests"`
	TravelStyle string   `json:"travel_style"`
	Budget      string   `json:"budget"`
}

// Stats содержит агрегированный прогресс пользователя.
type Stats struct {
	XP              int  `json:"xp"`
	Tier            Tier `json:"tier"`
	ChaptersCreated int  `json:"chapters_created"`
	PlacesVisited   int  `json:"places_visited"`
}

// User описывает пользователя Sarthi.
type User struct {
	ID          string      `json:"uid"`
	TGUserID    *int64      `json:"tg_user_id,omitempty"`
	BasicInfo   BasicInfo   `json:"basic_info"`
	Preferences Preferences `json:"preferences"`
	Stats       Stats       `json:"stats"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

// PlaceStatus: состояние места внутри главы.
type PlaceStatus string

const (
	PlaceStatusPending PlaceStatus = "pending"
	PlaceStatusDone    PlaceStatus = "done"
)

// Place: точка интереса в главе.
type Place struct {
	PlaceID           string      `json:"place_id"`
	Name              string      `json:"name"`
	Type              string      `json:"type"`
	Rating            float64     `json:"rating"`
	Status            PlaceStatus `json:"status"`
	XP                *int        `json:"xp,omitempty"`
	VisitedOn         *time.Time  `json:"visited_on,omitempty"`
	Description       *string     `json:"description,omitempty"`
	EstimatedDuration *string     `json:"estimated_duration,omitempty"`
}

// Done сообщает, отмечено ли место как посещённое.
func (p Place) Done() bool {
	return p.Status == PlaceStatusDone
}

// Toggle переключает статус места и поддерживает инвариант visited_on.
func (p Place) Toggle(now time.Time) Place {
	if p.Done() {
		p.Status = PlaceStatusPending
		p.VisitedOn = nil
		return p
	}
	p.Status = PlaceStatusDone
	ts := now.UTC()
	p.VisitedOn = &ts
	return p
}

// Chapter: путешествие пользователя в один город.
type Chapter struct {
	ID          string    `json:"id"`
	UserID      string    `json:"-"`
	City        string    `json:"city"`
	Country     *string   `json:"country,omitempty"`
	Description *string   `json:"description,omitempty"`
	Places      []Place   `json:"ai_suggested_places"`
	CreatedAt   time.Time `json:"created_at"`
}

// FindPlace возвращает индекс места по идентификатору или -1.
func (c Chapter) FindPlace(placeID string) int {
	for i, p := range c.Places {
		if p.PlaceID == placeID {
			return i
		}
	}
	return -1
}

// Profile: пользователь вместе со всеми главами.
type Profile struct {
	User
	Chapters []Chapter `json:"chapters"`
}

// GeneratedPlace: предложение места от генератора задач.
type GeneratedPlace struct {
	PlaceID           string      `json:"place_id"`
	Name              string      `json:"name"`
	Type              string      `json:"type"`
	Rating            float64     `json:"rating"`
	XP                int         `json:"xp"`
	Status            PlaceStatus `json:"status"`
	Description       string      `json:"description,omitempty"`
	EstimatedDuration string      `json:"estimated_duration,omitempty"`
}

// ToPlace превращает предложение в место главы в статусе pending.
func (g GeneratedPlace) ToPlace() Place {
	xp := g.XP
	place := Place{
		PlaceID: g.PlaceID,
		Name:    g.Name,
		Type:    g.Type,
		Rating:  g.Rating,
		Status:  PlaceStatusPending,
		XP:      &xp,
	}
	if g.Description != "" {
		d := g.Description
		place.Description = &d
	}
	if g.EstimatedDuration != "" {
		d := g.EstimatedDuration
		place.EstimatedDuration = &d
	}
	return place
}
