package generator

import (
	"fmt"
	"strings"

	"sarthi/internal/domain"
)

// ChatSystemPrompt задаёт роль ассистента для мультиязычного чата.
const ChatSystemPrompt = `You are Bhashani Sarthi, a multilingual travel companion and language learning assistant.
You help users explore Indian cities, learn languages, and discover cultural experiences.
When users ask about places or travel, provide helpful, concise recommendations about places to visit,
local cuisine, cultural tips, and language learning advice. Keep responses friendly and conversational.`

// BuildTaskPrompt собирает запрос на 8-12 персональных рекомендаций для города.
func BuildTaskPrompt(req domain.TaskRequest) string {
	location := req.City
	if req.Country != "" {
		location = req.City + ", " + req.Country
	}
	interests := "general sightseeing, culture, food"
	if len(req.Preferences.Interests) > 0 {
		interests = strings.Join(req.Preferences.Interests, ", ")
	}
	cityKey := strings.ToLower(req.City)

	var b strings.Builder
	fmt.Fprintf(&b, "You are a travel expert. Generate 8-12 personalized travel recommendations for %s.\n\n", location)
	b.WriteString("User Profile:\n")
	fmt.Fprintf(&b, "- Interests: %s\n", interests)
	fmt.Fprintf(&b, "- Travel Style: %s\n", req.Preferences.TravelStyle)
	fmt.Fprintf(&b, "- Budget: %s\n\n", req.Preferences.Budget)
	b.WriteString("Task Requirements:\n")
	fmt.Fprintf(&b, "1. Recommend real, popular places and activities in %s\n", req.City)
	fmt.Fprintf(&b, "2. Match recommendations to user's interests: %s\n", interests)
	fmt.Fprintf(&b, "3. Consider their %s travel style and %s budget\n", req.Preferences.TravelStyle, req.Preferences.Budget)
	b.WriteString(`4. Assign XP points (20-200) based on place popularity:
   - World-famous landmarks: 150-200 XP
   - Popular attractions: 100-150 XP
   - Notable spots: 60-100 XP
   - Local gems: 20-60 XP
5. Include diverse types: Attraction, Food, Museum, Nature, Culture, Shopping, Entertainment
6. Provide brief descriptions and estimated visit durations

Response Format - Return ONLY valid JSON, no other text:
{
  "tasks": [
    {
`)
	fmt.Fprintf(&b, "      \"place_id\": \"%s_001\",\n", cityKey)
	b.WriteString(`      "name": "Place Name",
      "type": "Attraction",
      "rating": 4.5,
      "xp": 120,
      "description": "Why visit this place",
      "estimated_duration": "2 hours"
    }
  ]
}

IMPORTANT: Output must be ONLY the JSON object above, nothing else.`)
	return b.String()
}

// BuildChatContext описывает города пользователя для системного контекста.
func BuildChatContext(cities []string) string {
	filtered := make([]string, 0, len(cities))
	for _, city := range cities {
		if c := strings.TrimSpace(city); c != "" {
			filtered = append(filtered, c)
		}
	}
	if len(filtered) == 0 {
		return ""
	}
	return "User is planning trips to: " + strings.Join(filtered, ", ") + ". "
}

// BuildChatPrompt склеивает контекст и реплику пользователя.
func BuildChatPrompt(context, message string) string {
	if context == "" {
		return "User: " + message + "\nAssistant:"
	}
	return context + "\n\nUser: " + message + "\nAssistant:"
}
