package telegram

import (
	"context"
	"fmt"

	"github.com/go-telegram/bot"
	tgmodels "github.com/go-telegram/bot/models"

	"SignalRelay/internal/domain/models"
	drepo "SignalRelay/internal/domain/repository"
	"SignalRelay/pkg/logger"
)

// API is the part of *bot.Bot the package uses.
type API interface {
	SendMessage(ctx context.Context, params *bot.SendMessageParams) (*tgmodels.Message, error)
	AnswerCallbackQuery(ctx context.Context, params *bot.AnswerCallbackQueryParams) (bool, error)
}

// Gateway delivers rendered messages to subscribers' chats.
type Gateway struct {
	api API
}

var _ drepo.Messenger = (*Gateway)(nil)

func NewGateway(api API) *Gateway {
	return &Gateway{api: api}
}

// Send makes one attempt; callers own retries and deadlines.
func (g *Gateway) Send(ctx context.Context, chatID int64, msg models.Message) error {
	if _, err := g.api.SendMessage(ctx, sendParams(chatID, msg)); err != nil {
		return fmt.Errorf("%w: send to %d: %v", models.ErrDelivery, chatID, err)
	}
	return nil
}

func sendParams(chatID int64, msg models.Message) *bot.SendMessageParams {
	disablePreview := true
	params := &bot.SendMessageParams{
		ChatID:    chatID,
		Text:      msg.Text,
		ParseMode: tgmodels.ParseModeHTML,
		LinkPreviewOptions: &tgmodels.LinkPreviewOptions{
			IsDisabled: &disablePreview,
		},
	}
	if kb := keyboard(msg.Buttons); kb != nil {
		params.ReplyMarkup = kb
	}
	return params
}

// LogMessenger stands in for the gateway when no bot token is configured.
type LogMessenger struct {
	log *logger.Logger
}

func NewLogMessenger(log *logger.Logger) *LogMessenger {
	return &LogMessenger{log: log.With(logger.String("component", "messenger"))}
}

func (m *LogMessenger) Send(_ context.Context, chatID int64, msg models.Message) error {
	m.log.Debug("message not sent, telegram disabled", logger.Int64("chat_id", chatID), logger.Int("length", len(msg.Text)))
	return nil
}
