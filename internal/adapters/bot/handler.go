package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"sarthi/internal/adapters/bhashini"
	"sarthi/internal/adapters/telegram"
	"sarthi/internal/domain"
	"sarthi/internal/infra/metrics"
	"sarthi/internal/usecase/chat"
	"sarthi/internal/usecase/journal"
)

// Sender: часть tgbotapi.BotAPI, которой пользуется бот.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// Journal: сценарии дневника, доступные из бота.
type Journal interface {
	Onboard(ctx context.Context, in journal.OnboardInput) (domain.User, error)
	GetProfile(ctx context.Context, userID string) (domain.Profile, error)
	CreateChapter(ctx context.Context, userID string, in journal.CreateChapterInput) (journal.ChapterResult, error)
	TogglePlace(ctx context.Context, userID, chapterID, placeID string) (journal.ToggleResult, error)
}

// Chat: ассистент для свободного текста.
type Chat interface {
	Chat(ctx context.Context, in chat.Input) (chat.Reply, error)
}

// DefaultPreferences выставляются пользователям, пришедшим из бота.
var DefaultPreferences = domain.Preferences{
	Interests:   []string{"culture", "food", "history"},
	TravelStyle: "explorer",
	Budget:      "moderate",
}

// Handler обслуживает вебхук бота.
type Handler struct {
	bot     Sender
	log     zerolog.Logger
	journal Journal
	chat    Chat
}

// NewHandler создаёт обработчик. chat может быть nil, тогда свободный текст не обрабатывается.
func NewHandler(bot Sender, log zerolog.Logger, journalUC Journal, chatUC Chat) *Handler {
	return &Handler{
		bot:     bot,
		log:     log.With().Str("component", "bot").Logger(),
		journal: journalUC,
		chat:    chatUC,
	}
}

// UserID связывает аккаунт Telegram с пользователем дневника.
func UserID(tgUserID int64) string {
	return "tg_" + strconv.FormatInt(tgUserID, 10)
}

// HandleUpdate обрабатывает входящий апдейт.
func (h *Handler) HandleUpdate(ctx context.Context, upd tgbotapi.Update) {
	if upd.Message != nil {
		h.handleMessage(ctx, upd.Message)
	} else if upd.CallbackQuery != nil {
		h.handleCallback(ctx, upd.CallbackQuery)
	}
}

func (h *Handler) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if msg.From == nil {
		h.reply(msg.Chat.ID, "Could not identify you, sorry.", nil)
		return
	}
	chatID, uid := msg.Chat.ID, UserID(msg.From.ID)
	text := strings.TrimSpace(msg.Text)
	switch {
	case strings.HasPrefix(text, "/start"):
		h.handleStart(ctx, msg)
	case strings.HasPrefix(text, "/help"):
		h.reply(chatID, helpMessage, h.mainKeyboard())
	case strings.HasPrefix(text, "/chapters"):
		h.handleChapters(ctx, chatID, uid)
	case strings.HasPrefix(text, "/new"):
		h.handleNewChapter(ctx, chatID, uid, strings.TrimSpace(strings.TrimPrefix(text, "/new")))
	case strings.HasPrefix(text, "/places"):
		h.handlePlaces(ctx, chatID, uid, strings.TrimSpace(strings.TrimPrefix(text, "/places")))
	case strings.HasPrefix(text, "/done"):
		h.handleDone(ctx, chatID, uid, strings.TrimSpace(strings.TrimPrefix(text, "/done")))
	case strings.HasPrefix(text, "/stats"):
		h.handleStats(ctx, chatID, uid)
	case strings.HasPrefix(text, "/"):
		h.reply(chatID, "Unknown command. Try /help", nil)
	case text != "":
		h.handleChat(ctx, chatID, uid, msg.From.LanguageCode, text)
	}
}

func (h *Handler) handleStart(ctx context.Context, msg *tgbotapi.Message) {
	tgID := msg.From.ID
	name := strings.TrimSpace(msg.From.FirstName + " " + msg.From.LastName)
	if name == "" {
		name = msg.From.UserName
	}
	if name == "" {
		name = "Traveler"
	}
	_, err := h.journal.Onboard(ctx, journal.OnboardInput{
		UserID:   UserID(tgID),
		TGUserID: &tgID,
		BasicInfo: domain.BasicInfo{
			Name:     name,
			Language: domain.Language{Code: languageOrDefault(msg.From.LanguageCode)},
		},
		Preferences: DefaultPreferences,
	})
	switch {
	case errors.Is(err, domain.ErrAlreadyExists):
		h.reply(msg.Chat.ID, fmt.Sprintf("Welcome back, %s! Your journal is waiting.", name), h.mainKeyboard())
	case err != nil:
		h.log.Error().Err(err).Int64("tg_user", tgID).Msg("bot: онбординг не удался")
		h.reply(msg.Chat.ID, "Could not create your journal. Please try again later.", nil)
	default:
		h.reply(msg.Chat.ID, fmt.Sprintf("Namaste, %s! You are a %s now.\n\n%s", name, domain.TierWanderer, helpMessage), h.mainKeyboard())
	}
}

func (h *Handler) handleChapters(ctx context.Context, chatID int64, uid string) {
	profile, ok := h.profile(ctx, chatID, uid)
	if !ok {
		return
	}
	if len(profile.Chapters) == 0 {
		h.reply(chatID, "No chapters yet. Start one with /new Jaipur, India", nil)
		return
	}
	var b strings.Builder
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(profile.Chapters))
	for i, ch := range profile.Chapters {
		done := 0
		for _, p := range ch.Places {
			if p.Done() {
				done++
			}
		}
		fmt.Fprintf(&b, "%d. %s (%d/%d visited)\n", i+1, chapterTitle(ch), done, len(ch.Places))
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("📍 "+ch.City, fmt.Sprintf("places:%d", i+1)),
		))
	}
	markup := tgbotapi.NewInlineKeyboardMarkup(rows...)
	h.reply(chatID, b.String(), &markup)
}

func (h *Handler) handleNewChapter(ctx context.Context, chatID int64, uid, payload string) {
	city, country, _ := strings.Cut(payload, ",")
	city = strings.TrimSpace(city)
	if city == "" {
		h.reply(chatID, "Send /new City[, Country], for example /new Jaipur, India", nil)
		return
	}
	in := journal.CreateChapterInput{City: city}
	if c := strings.TrimSpace(country); c != "" {
		in.Country = &c
	}
	res, err := h.journal.CreateChapter(ctx, uid, in)
	if err != nil {
		h.replyError(chatID, uid, "create chapter", err)
		return
	}
	var b strings.Builder
	fmt.Fprintf(&b, "New chapter: %s\n\n", chapterTitle(res.Chapter))
	writePlaces(&b, res.Chapter.Places)
	fmt.Fprintf(&b, "\nChapters created: %d", res.Stats.ChaptersCreated)
	h.reply(chatID, b.String(), nil)
}

func (h *Handler) handlePlaces(ctx context.Context, chatID int64, uid, payload string) {
	chapter, ok := h.chapterByIndex(ctx, chatID, uid, payload)
	if !ok {
		return
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n\n", chapterTitle(chapter))
	writePlaces(&b, chapter.Places)
	b.WriteString("\nMark a place with /done <chapter> <place>")
	h.reply(chatID, b.String(), nil)
}

func (h *Handler) handleDone(ctx context.Context, chatID int64, uid, payload string) {
	fields := strings.Fields(payload)
	if len(fields) != 2 {
		h.reply(chatID, "Send /done <chapter> <place>, for example /done 1 3", nil)
		return
	}
	chapter, ok := h.chapterByIndex(ctx, chatID, uid, fields[0])
	if !ok {
		return
	}
	idx, err := strconv.Atoi(fields[1])
	if err != nil || idx < 1 || idx > len(chapter.Places) {
		h.reply(chatID, fmt.Sprintf("Place number must be between 1 and %d", len(chapter.Places)), nil)
		return
	}
	res, err := h.journal.TogglePlace(ctx, uid, chapter.ID, chapter.Places[idx-1].PlaceID)
	if err != nil {
		h.replyError(chatID, uid, "toggle place", err)
		return
	}
	verb := "Visited"
	if !res.Place.Done() {
		verb = "Unmarked"
	}
	h.reply(chatID, fmt.Sprintf("%s: %s (+%d XP)\n\n%s", verb, res.Place.Name, domain.PlaceXP(res.Place), statsMessage(res.Stats)), nil)
}

func (h *Handler) handleStats(ctx context.Context, chatID int64, uid string) {
	profile, ok := h.profile(ctx, chatID, uid)
	if !ok {
		return
	}
	h.reply(chatID, statsMessage(profile.Stats), h.mainKeyboard())
}

func (h *Handler) handleChat(ctx context.Context, chatID int64, uid, tgLang, text string) {
	if h.chat == nil {
		h.reply(chatID, "Chat is not available right now. Try /help", nil)
		return
	}
	in := chat.Input{UserLanguage: tgLang, Message: text}
	if profile, err := h.journal.GetProfile(ctx, uid); err == nil {
		if code := profile.BasicInfo.Language.Code; code != "" {
			in.UserLanguage = code
		}
		for _, ch := range profile.Chapters {
			in.Cities = append(in.Cities, ch.City)
		}
	}
	in.UserLanguage = languageOrDefault(in.UserLanguage)
	if !bhashini.Supported(in.UserLanguage) {
		in.UserLanguage = "en"
	}
	reply, err := h.chat.Chat(ctx, in)
	if err != nil {
		h.log.Error().Err(err).Str("user", uid).Msg("bot: чат не ответил")
		h.reply(chatID, "Sarthi could not answer right now. Please try again.", nil)
		return
	}
	h.reply(chatID, reply.AIResponse, nil)
}

func (h *Handler) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) {
	if cb.Message != nil && cb.From != nil {
		chatID, uid := cb.Message.Chat.ID, UserID(cb.From.ID)
		data := cb.Data
		switch {
		case data == "chapters":
			h.handleChapters(ctx, chatID, uid)
		case data == "stats":
			h.handleStats(ctx, chatID, uid)
		case data == "help_menu":
			h.reply(chatID, helpMessage, h.mainKeyboard())
		case data == "new_chapter":
			h.reply(chatID, "Send /new City[, Country], for example /new Varanasi, India", nil)
		case strings.HasPrefix(data, "places:"):
			h.handlePlaces(ctx, chatID, uid, strings.TrimPrefix(data, "places:"))
		}
	}
	start := time.Now()
	_, err := h.bot.Request(tgbotapi.NewCallback(cb.ID, ""))
	metrics.ObserveNetworkRequest("telegram_bot", "answer_callback", "", start, err)
	if err != nil {
		h.log.Error().Err(err).Msg("bot: не удалось ответить на callback")
	}
}

func (h *Handler) profile(ctx context.Context, chatID int64, uid string) (domain.Profile, bool) {
	profile, err := h.journal.GetProfile(ctx, uid)
	if err != nil {
		h.replyError(chatID, uid, "load profile", err)
		return domain.Profile{}, false
	}
	return profile, true
}

// chapterByIndex ищет главу по номеру из /chapters (нумерация с единицы).
func (h *Handler) chapterByIndex(ctx context.Context, chatID int64, uid, raw string) (domain.Chapter, bool) {
	profile, ok := h.profile(ctx, chatID, uid)
	if !ok {
		return domain.Chapter{}, false
	}
	idx, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || idx < 1 || idx > len(profile.Chapters) {
		if len(profile.Chapters) == 0 {
			h.reply(chatID, "No chapters yet. Start one with /new Jaipur, India", nil)
		} else {
			h.reply(chatID, fmt.Sprintf("Chapter number must be between 1 and %d, see /chapters", len(profile.Chapters)), nil)
		}
		return domain.Chapter{}, false
	}
	return profile.Chapters[idx-1], true
}

func (h *Handler) replyError(chatID int64, uid, op string, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		h.reply(chatID, "Journal not found. Send /start first.", nil)
	case errors.Is(err, domain.ErrValidation):
		msg := strings.TrimPrefix(err.Error(), domain.ErrValidation.Error()+": ")
		h.reply(chatID, msg, nil)
	default:
		h.log.Error().Err(err).Str("user", uid).Str("op", op).Msg("bot: операция не удалась")
		h.reply(chatID, "Something went wrong. Please try again later.", nil)
	}
}

func (h *Handler) reply(chatID int64, text string, keyboard *tgbotapi.InlineKeyboardMarkup) {
	parts := telegram.SplitMessage(text)
	for i, part := range parts {
		msg := tgbotapi.NewMessage(chatID, part)
		if i == 0 && keyboard != nil {
			msg.ReplyMarkup = keyboard
		}
		start := time.Now()
		_, err := h.bot.Send(msg)
		metrics.ObserveNetworkRequest("telegram_bot", "send_message", "", start, err)
		if err != nil {
			metrics.BotSendErrors.Inc()
			h.log.Error().Err(err).Msg("bot: не удалось отправить сообщение")
			return
		}
	}
}

func (h *Handler) mainKeyboard() *tgbotapi.InlineKeyboardMarkup {
	buttons := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("📖 My chapters", "chapters"),
			tgbotapi.NewInlineKeyboardButtonData("➕ New chapter", "new_chapter"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🏅 Progress", "stats"),
			tgbotapi.NewInlineKeyboardButtonData("ℹ️ Help", "help_menu"),
		),
	)
	return &buttons
}

const helpMessage = `Sarthi keeps your travel journal.

/new City[, Country] start a chapter with suggested places
/chapters list your chapters
/places N show places of chapter N
/done N M mark place M of chapter N as visited (again to undo)
/stats your XP and tier

Any other message goes to the Sarthi travel assistant.`

func statsMessage(s domain.Stats) string {
	s = s.WithDerivedTier()
	lines := []string{
		fmt.Sprintf("Tier: %s", s.Tier),
		fmt.Sprintf("XP: %d", s.XP),
		fmt.Sprintf("Chapters: %d", s.ChaptersCreated),
		fmt.Sprintf("Places visited: %d", s.PlacesVisited),
	}
	if next, left, ok := domain.NextTier(s.XP); ok {
		lines = append(lines, fmt.Sprintf("%d XP to %s", left, next))
	}
	return strings.Join(lines, "\n")
}

func writePlaces(b *strings.Builder, places []domain.Place) {
	if len(places) == 0 {
		b.WriteString("No places yet.\n")
		return
	}
	for i, p := range places {
		mark := "⬜"
		if p.Done() {
			mark = "✅"
		}
		fmt.Fprintf(b, "%s %d. %s · %s · %d XP\n", mark, i+1, p.Name, p.Type, domain.PlaceXP(p))
	}
}

func chapterTitle(ch domain.Chapter) string {
	if ch.Country != nil && *ch.Country != "" {
		return ch.City + ", " + *ch.Country
	}
	return ch.City
}

func languageOrDefault(code string) string {
	code = strings.ToLower(strings.TrimSpace(code))
	if i := strings.IndexAny(code, "-_"); i > 0 {
		code = code[:i]
	}
	if code == "" {
		return "en"
	}
	return code
}
