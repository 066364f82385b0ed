package telegram

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-telegram/bot"
	tgmodels "github.com/go-telegram/bot/models"

	"SignalRelay/internal/domain/models"
	"SignalRelay/internal/domain/service"
	"SignalRelay/pkg/logger"
)

type fakeAPI struct {
	mu       sync.Mutex
	sent     []*bot.SendMessageParams
	answered []string
	failSend error
}

func (f *fakeAPI) SendMessage(_ context.Context, p *bot.SendMessageParams) (*tgmodels.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failSend != nil {
		return nil, f.failSend
	}
	f.sent = append(f.sent, p)
	return &tgmodels.Message{ID: len(f.sent)}, nil
}

func (f *fakeAPI) AnswerCallbackQuery(_ context.Context, p *bot.AnswerCallbackQueryParams) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.answered = append(f.answered, p.CallbackQueryID)
	return true, nil
}

func (f *fakeAPI) last(t *testing.T) *bot.SendMessageParams {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.sent) == 0 {
		t.Fatalf("nothing sent")
	}
	return f.sent[len(f.sent)-1]
}

type recordingDesk struct {
	reqs []models.Request
	err  error
}

func (d *recordingDesk) Handle(_ context.Context, req models.Request) (models.Message, error) {
	d.reqs = append(d.reqs, req)
	if d.err != nil {
		return models.Message{}, d.err
	}
	return models.Message{Text: fmt.Sprintf("%T", req), Buttons: [][]models.Button{{{Text: "Menu", CallbackData: service.CallbackMenu}}}}, nil
}

func newTestBot(api API) (*Bot, *recordingDesk) {
	b := newBot(api, time.Minute, logger.NewNop())
	desk := &recordingDesk{}
	b.Attach(desk)
	return b, desk
}

var who = models.Requester{ID: 42, Username: "trader", FirstName: "Ana"}

func TestCallbackRoutesToFrontDesk(t *testing.T) {
	api := &fakeAPI{}
	b, desk := newTestBot(api)

	b.handleCallback(context.Background(), who, 42, "cb-1", service.CallbackSubscribe("gold_monthly"))

	if len(api.answered) != 1 || api.answered[0] != "cb-1" {
		t.Fatalf("callback not answered: %v", api.answered)
	}
	if len(desk.reqs) != 1 {
		t.Fatalf("want 1 request, got %d", len(desk.reqs))
	}
	req, ok := desk.reqs[0].(models.PurchaseRequest)
	if !ok || req.PackageKey != "gold_monthly" || req.ID != 42 {
		t.Fatalf("unexpected request %#v", desk.reqs[0])
	}
	sent := api.last(t)
	if sent.ChatID != int64(42) || sent.ParseMode != tgmodels.ParseModeHTML {
		t.Fatalf("unexpected params %+v", sent)
	}
	kb, ok := sent.ReplyMarkup.(*tgmodels.InlineKeyboardMarkup)
	if !ok || kb.InlineKeyboard[0][0].CallbackData != service.CallbackMenu {
		t.Fatalf("keyboard not rendered: %#v", sent.ReplyMarkup)
	}
}

func TestAffixPromptFlow(t *testing.T) {
	api := &fakeAPI{}
	b, desk := newTestBot(api)
	ctx := context.Background()

	b.handleText(ctx, who, 42, "ignored without a prompt")
	if len(desk.reqs) != 0 {
		t.Fatalf("free text must be ignored without a pending prompt")
	}

	b.handleCallback(ctx, who, 42, "cb", service.CallbackSetSuffix)
	if len(desk.reqs) != 0 {
		t.Fatalf("prompt must not reach the front desk")
	}
	if !strings.Contains(api.last(t).Text, "suffix") {
		t.Fatalf("prompt text = %q", api.last(t).Text)
	}

	b.handleText(ctx, who, 42, "  .pro ")
	if len(desk.reqs) != 1 {
		t.Fatalf("want affix request, got %d", len(desk.reqs))
	}
	req := desk.reqs[0].(models.SetAffixRequest)
	if req.Kind != models.AffixSuffix || req.Value != ".pro" {
		t.Fatalf("unexpected affix request %+v", req)
	}

	b.handleText(ctx, who, 42, "again")
	if len(desk.reqs) != 1 {
		t.Fatalf("prompt must be consumed once")
	}
}

func TestUnknownCallbackAndFailures(t *testing.T) {
	api := &fakeAPI{}
	b, desk := newTestBot(api)
	ctx := context.Background()

	b.handleCallback(ctx, who, 42, "cb", "bogus")
	if len(desk.reqs) != 0 || api.last(t).Text != textInvalid {
		t.Fatalf("unknown callback should answer %q", textInvalid)
	}

	desk.err = errors.New("db down")
	b.handleCallback(ctx, who, 42, "cb", service.CallbackStatus)
	if api.last(t).Text != textFailed {
		t.Fatalf("failure reply = %q", api.last(t).Text)
	}
}

func TestRespondBeforeAttach(t *testing.T) {
	api := &fakeAPI{}
	b := newBot(api, time.Minute, logger.NewNop())
	b.handleCallback(context.Background(), who, 42, "cb", service.CallbackMenu)
	if api.last(t).Text != textUnavailable {
		t.Fatalf("reply = %q", api.last(t).Text)
	}
}

func TestGatewaySend(t *testing.T) {
	api := &fakeAPI{}
	g := NewGateway(api)
	msg := models.Message{Text: "<b>hi</b>", Buttons: [][]models.Button{{{Text: "Pay", URL: "https://pay.example"}}}}
	if err := g.Send(context.Background(), 7, msg); err != nil {
		t.Fatalf("Send: %v", err)
	}
	kb := api.last(t).ReplyMarkup.(*tgmodels.InlineKeyboardMarkup)
	if kb.InlineKeyboard[0][0].URL != "https://pay.example" || kb.InlineKeyboard[0][0].CallbackData != "" {
		t.Fatalf("url button = %+v", kb.InlineKeyboard[0][0])
	}

	api.failSend = errors.New("blocked by user")
	if err := g.Send(context.Background(), 7, msg); !errors.Is(err, models.ErrDelivery) {
		t.Fatalf("want ErrDelivery, got %v", err)
	}
}

func TestKeyboardEmpty(t *testing.T) {
	if keyboard(nil) != nil || keyboard([][]models.Button{{}}) != nil {
		t.Fatalf("empty rows should produce no keyboard")
	}
}
