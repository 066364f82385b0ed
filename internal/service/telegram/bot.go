package telegram

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/go-telegram/bot"
	tgmodels "github.com/go-telegram/bot/models"
	gocache "github.com/patrickmn/go-cache"

	"SignalRelay/internal/domain/models"
	"SignalRelay/internal/domain/service"
	"SignalRelay/pkg/logger"
)

// FrontDesk answers front-desk requests with one reply message.
type FrontDesk interface {
	Handle(ctx context.Context, req models.Request) (models.Message, error)
}

const (
	textUnavailable = "⏳ The service is starting, please try again in a moment."
	textFailed      = "❌ Something went wrong, please try again later."
	textInvalid     = "❌ That option is no longer available."
)

// Bot turns chat updates into front-desk requests and sends the replies.
type Bot struct {
	client  *bot.Bot
	api     API
	desk    atomic.Pointer[FrontDesk]
	prompts *gocache.Cache
	log     *logger.Logger
}

// New connects to the Bot API. The front desk is attached separately
// because it depends on the messenger this bot provides.
func New(token string, promptTTL time.Duration, log *logger.Logger) (*Bot, error) {
	b := newBot(nil, promptTTL, log)

	client, err := bot.New(token,
		bot.WithDefaultHandler(b.defaultHandler),
		bot.WithCallbackQueryDataHandler("", bot.MatchTypePrefix, b.callbackHandler),
	)
	if err != nil {
		return nil, fmt.Errorf("create bot: %w", err)
	}
	client.RegisterHandler(bot.HandlerTypeMessageText, "/start", bot.MatchTypeExact, b.startHandler)
	client.RegisterHandler(bot.HandlerTypeMessageText, "/start ", bot.MatchTypePrefix, b.startHandler)

	b.client = client
	b.api = client
	return b, nil
}

func newBot(api API, promptTTL time.Duration, log *logger.Logger) *Bot {
	if promptTTL <= 0 {
		promptTTL = 5 * time.Minute
	}
	return &Bot{
		api:     api,
		prompts: gocache.New(promptTTL, 2*promptTTL),
		log:     log.With(logger.String("component", "telegram")),
	}
}

func (b *Bot) Attach(desk FrontDesk) {
	b.desk.Store(&desk)
}

// Messenger returns the outbound gateway sharing this bot's connection.
func (b *Bot) Messenger() *Gateway {
	return NewGateway(b.api)
}

// Start long-polls for updates until ctx is done.
func (b *Bot) Start(ctx context.Context) {
	b.log.Info("telegram bot polling")
	b.client.Start(ctx)
}

func requester(u *tgmodels.User) models.Requester {
	if u == nil {
		return models.Requester{}
	}
	return models.Requester{ID: u.ID, Username: u.Username, FirstName: u.FirstName}
}

func (b *Bot) startHandler(ctx context.Context, _ *bot.Bot, update *tgmodels.Update) {
	if update.Message == nil || update.Message.From == nil {
		return
	}
	who := requester(update.Message.From)
	b.prompts.Delete(promptKey(who.ID))
	b.respond(ctx, update.Message.Chat.ID, models.StartRequest{Requester: who})
}

func (b *Bot) defaultHandler(ctx context.Context, _ *bot.Bot, update *tgmodels.Update) {
	if update.Message == nil || update.Message.From == nil || update.Message.Text == "" {
		return
	}
	b.handleText(ctx, requester(update.Message.From), update.Message.Chat.ID, update.Message.Text)
}

func (b *Bot) callbackHandler(ctx context.Context, _ *bot.Bot, update *tgmodels.Update) {
	if update.CallbackQuery == nil {
		return
	}
	cb := update.CallbackQuery
	who := requester(&cb.From)
	chatID := who.ID
	if cb.Message.Message != nil {
		chatID = cb.Message.Message.Chat.ID
	}
	b.handleCallback(ctx, who, chatID, cb.ID, cb.Data)
}

// handleText only reacts while an affix prompt is pending.
func (b *Bot) handleText(ctx context.Context, who models.Requester, chatID int64, text string) {
	v, ok := b.prompts.Get(promptKey(who.ID))
	if !ok {
		return
	}
	b.prompts.Delete(promptKey(who.ID))
	kind := v.(models.AffixKind)
	b.respond(ctx, chatID, models.SetAffixRequest{Requester: who, Kind: kind, Value: strings.TrimSpace(text)})
}

func (b *Bot) handleCallback(ctx context.Context, who models.Requester, chatID int64, callbackID, data string) {
	if _, err := b.api.AnswerCallbackQuery(ctx, &bot.AnswerCallbackQueryParams{CallbackQueryID: callbackID}); err != nil {
		b.log.Debug("answer callback", logger.Error(err))
	}

	if kind, ok := service.IsAffixPrompt(data); ok {
		b.prompts.SetDefault(promptKey(who.ID), kind)
		b.send(ctx, chatID, models.TextMessage(affixPrompt(kind)))
		return
	}

	req, err := service.ParseCallback(who, data)
	if err != nil {
		b.log.Warn("unknown callback", logger.String("data", data), logger.Int64("user_id", who.ID))
		b.send(ctx, chatID, models.TextMessage(textInvalid))
		return
	}
	b.respond(ctx, chatID, req)
}

func (b *Bot) respond(ctx context.Context, chatID int64, req models.Request) {
	p := b.desk.Load()
	if p == nil {
		b.send(ctx, chatID, models.TextMessage(textUnavailable))
		return
	}

	reply, err := (*p).Handle(ctx, req)
	if err != nil {
		b.log.Error("front desk request failed", logger.Error(err),
			logger.String("request", fmt.Sprintf("%T", req)), logger.Int64("user_id", models.Who(req).ID))
		text := textFailed
		if errors.Is(err, models.ErrValidation) {
			text = textInvalid
		}
		reply = models.TextMessage(text)
	}
	b.send(ctx, chatID, reply)
}

func (b *Bot) send(ctx context.Context, chatID int64, msg models.Message) {
	if _, err := b.api.SendMessage(ctx, sendParams(chatID, msg)); err != nil {
		b.log.Error("send reply", logger.Error(err), logger.Int64("chat_id", chatID))
	}
}

func affixPrompt(kind models.AffixKind) string {
	return fmt.Sprintf("✏️ Send the symbol %s your broker uses, e.g. <code>%s</code>.\nSend <code>none</code> to clear it.",
		kind, map[models.AffixKind]string{models.AffixPrefix: "m.", models.AffixSuffix: ".pro"}[kind])
}

func promptKey(id int64) string { return strconv.FormatInt(id, 10) }
