package usecase

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"
	"time"

	"SignalRelay/internal/domain/models"
	drepo "SignalRelay/internal/domain/repository"
	"SignalRelay/internal/domain/service"
	"SignalRelay/internal/service/relay"
	"SignalRelay/pkg/cache"
	"SignalRelay/pkg/logger"
)

const historyLimit = 5

type FrontDeskConfig struct {
	// RelayURL is the public base URL trading clients connect to.
	RelayURL   string
	HistoryTTL time.Duration
}

// FrontDesk answers subscriber requests coming from the chat front end.
// Expected refusals (missing add-on, unpaid trial, ...) are replies, not
// errors; errors are reserved for infrastructure failures.
type FrontDesk struct {
	cfg     FrontDeskConfig
	subs    drepo.SubscriberStore
	signals drepo.SignalStore
	ent     *service.Entitlements
	billing *Billing
	trades  *TradeDesk
	tokens  *relay.Tokens
	cache   cache.Service
	log     *logger.Logger
	now     func() time.Time
}

func NewFrontDesk(
	cfg FrontDeskConfig,
	subs drepo.SubscriberStore,
	signals drepo.SignalStore,
	ent *service.Entitlements,
	billing *Billing,
	trades *TradeDesk,
	tokens *relay.Tokens,
	c cache.Service,
	log *logger.Logger,
) *FrontDesk {
	if cfg.HistoryTTL <= 0 {
		cfg.HistoryTTL = time.Minute
	}
	return &FrontDesk{
		cfg:     cfg,
		subs:    subs,
		signals: signals,
		ent:     ent,
		billing: billing,
		trades:  trades,
		tokens:  tokens,
		cache:   c,
		log:     log.With(logger.String("component", "front_desk")),
		now:     time.Now,
	}
}

func (f *FrontDesk) Handle(ctx context.Context, req models.Request) (models.Message, error) {
	sub, err := f.subs.GetOrCreate(ctx, models.Who(req))
	if err != nil {
		return models.Message{}, fmt.Errorf("load subscriber: %w", err)
	}

	switch r := req.(type) {
	case models.StartRequest:
		return f.start(sub), nil
	case models.ShowPackagesRequest:
		return f.packages(sub), nil
	case models.PurchaseRequest:
		return f.purchase(ctx, sub, r)
	case models.StatusRequest:
		return f.status(sub), nil
	case models.ToggleNotificationsRequest:
		return f.toggleNotifications(ctx, sub)
	case models.ToggleAutoTradeRequest:
		return f.toggleAutoTrade(ctx, sub)
	case models.SetAffixRequest:
		return f.setAffix(ctx, sub, r)
	case models.HistoryRequest:
		return f.history(ctx, sub, r)
	case models.ManualTradeRequest:
		return f.manualTrade(ctx, sub, r)
	case models.RelayTokenRequest:
		return f.relayToken(sub)
	}
	return models.Message{}, fmt.Errorf("%w: unsupported request %T", models.ErrValidation, req)
}

var (
	menuButton    = models.Button{Text: "⬅️ Main menu", CallbackData: service.CallbackMenu}
	packageButton = models.Button{Text: "🛒 Packages", CallbackData: service.CallbackShowPackages}
)

func withMenu(text string, rows ...[]models.Button) models.Message {
	return models.Message{Text: text, Buttons: append(rows, []models.Button{menuButton})}
}

func (f *FrontDesk) start(sub *models.Subscriber) models.Message {
	name := sub.FirstName
	if name == "" {
		name = "trader"
	}
	notif := "🔕 Mute notifications"
	if !sub.NotificationsOn {
		notif = "🔔 Enable notifications"
	}
	return models.Message{
		Text: fmt.Sprintf("👋 Hello <b>%s</b>!\n\nWelcome to SignalRelay. Pick an option below.", html.EscapeString(name)),
		Buttons: [][]models.Button{
			{packageButton, {Text: "📊 My subscription", CallbackData: service.CallbackStatus}},
			{{Text: "📈 Signal history", CallbackData: service.CallbackHistory}},
			{{Text: notif, CallbackData: service.CallbackToggleNotifications}},
			{{Text: "🤖 Auto-trade", CallbackData: service.CallbackToggleAutoTrade}, {Text: "🔑 EA token", CallbackData: service.CallbackRelayToken}},
			{{Text: "Symbol prefix", CallbackData: service.CallbackSetPrefix}, {Text: "Symbol suffix", CallbackData: service.CallbackSetSuffix}},
		},
	}
}

func (f *FrontDesk) packages(sub *models.Subscriber) models.Message {
	var b strings.Builder
	b.WriteString("🛒 <b>Packages</b>\n")
	var rows [][]models.Button
	for _, p := range f.ent.Catalog().All() {
		if p.Type == models.PackageTrial && sub.TrialUsed {
			continue
		}
		fmt.Fprintf(&b, "\n• <b>%s</b>: %s", html.EscapeString(p.Name), service.Rupiah(p.Price))
		rows = append(rows, []models.Button{{Text: p.Name, CallbackData: service.CallbackSubscribe(p.Key)}})
	}
	return withMenu(b.String(), rows...)
}

func (f *FrontDesk) purchase(ctx context.Context, sub *models.Subscriber, r models.PurchaseRequest) (models.Message, error) {
	pkg, ok := f.ent.Catalog().Get(r.PackageKey)
	if !ok {
		return withMenu("❌ That package does not exist."), nil
	}

	err := f.ent.CheckPurchase(sub, pkg, r.ConfirmReplace, f.now())
	switch {
	case errors.Is(err, service.ErrConfirmReplace):
		cur, _ := f.ent.MainPackage(sub)
		return withMenu(
			fmt.Sprintf("⚠️ Your <b>%s</b> package is still active. Buying <b>%s</b> replaces it immediately; the remaining time is not carried over.",
				html.EscapeString(cur.Name), html.EscapeString(pkg.Name)),
			[]models.Button{{Text: "✅ Replace package", CallbackData: service.CallbackConfirmReplace(pkg.Key)}},
		), nil
	case errors.Is(err, service.ErrTrialUsed):
		return withMenu("❌ The trial can only be bought once.", []models.Button{packageButton}), nil
	case errors.Is(err, service.ErrAddonNeedsMain):
		return withMenu("❌ The add-on needs an active main package first.", []models.Button{packageButton}), nil
	case err != nil:
		return models.Message{}, err
	}

	inv, err := f.billing.CreateInvoice(ctx, sub, pkg)
	if err != nil {
		return models.Message{}, err
	}
	return withMenu(
		fmt.Sprintf("🧾 <b>%s</b>\nAmount: %s\n\nThe link stays valid for %d hours.",
			html.EscapeString(pkg.Name), service.Rupiah(inv.Amount), int(f.billing.cfg.InvoiceTTL.Hours())),
		[]models.Button{{Text: "💳 Pay now", URL: inv.PaymentURL}},
	), nil
}

func (f *FrontDesk) status(sub *models.Subscriber) models.Message {
	name := ""
	if p, ok := f.ent.MainPackage(sub); ok {
		name = p.Name
	}
	return withMenu(service.FormatStatus(sub, name))
}

func (f *FrontDesk) toggleNotifications(ctx context.Context, sub *models.Subscriber) (models.Message, error) {
	on := service.ToggleNotifications(sub)
	if err := f.subs.SavePreferences(ctx, sub); err != nil {
		return models.Message{}, err
	}
	if on {
		return withMenu("🔔 Signal notifications are <b>on</b>."), nil
	}
	return withMenu("🔕 Signal notifications are <b>off</b>."), nil
}

func (f *FrontDesk) toggleAutoTrade(ctx context.Context, sub *models.Subscriber) (models.Message, error) {
	on, err := service.ToggleAutoTrade(sub, f.now())
	if errors.Is(err, service.ErrAddonNotOwned) {
		return withMenu("🤖 Auto-trade needs the PRO EA add-on.",
			[]models.Button{{Text: "Get the add-on", CallbackData: service.CallbackSubscribe("pro_ea_monthly")}}), nil
	}
	if err != nil {
		return models.Message{}, err
	}
	if err := f.subs.SavePreferences(ctx, sub); err != nil {
		return models.Message{}, err
	}
	if on {
		return withMenu("🤖 Auto-trade is <b>on</b>. New signals are sent to your EA as market orders."), nil
	}
	return withMenu("🤖 Auto-trade is <b>off</b>."), nil
}

func (f *FrontDesk) setAffix(ctx context.Context, sub *models.Subscriber, r models.SetAffixRequest) (models.Message, error) {
	v, err := service.SetSymbolAffix(sub, r.Kind, r.Value)
	if errors.Is(err, service.ErrAffixTooLong) {
		return withMenu("❌ That is too long for a symbol " + string(r.Kind) + "."), nil
	}
	if err != nil {
		return models.Message{}, err
	}
	if err := f.subs.SavePreferences(ctx, sub); err != nil {
		return models.Message{}, err
	}
	if v == "" {
		return withMenu(fmt.Sprintf("✅ Symbol %s cleared.", r.Kind)), nil
	}
	return withMenu(fmt.Sprintf("✅ Symbol %s set to <code>%s</code>.", r.Kind, html.EscapeString(v))), nil
}

func (f *FrontDesk) history(ctx context.Context, sub *models.Subscriber, r models.HistoryRequest) (models.Message, error) {
	now := f.now()
	allowed := f.ent.AllowedAssets(sub, now)
	if len(allowed) == 0 {
		return withMenu("📈 Signal history needs an active package.", []models.Button{packageButton}), nil
	}

	if r.Pair == "" {
		var rows [][]models.Button
		for i := 0; i < len(allowed); i += 3 {
			var row []models.Button
			for _, p := range allowed[i:min(i+3, len(allowed))] {
				row = append(row, models.Button{Text: p, CallbackData: service.CallbackSelectPair(p)})
			}
			rows = append(rows, row)
		}
		return withMenu("📈 Pick a pair:", rows...), nil
	}

	pair := strings.ToUpper(r.Pair)
	if !f.ent.Allows(sub, pair, now) {
		return withMenu("❌ " + html.EscapeString(pair) + " is not in your package."), nil
	}
	if r.Style == "" {
		var row []models.Button
		for _, s := range []models.TradingStyle{models.StyleScalper, models.StyleIntraday, models.StyleSwing} {
			row = append(row, models.Button{Text: string(s), CallbackData: service.CallbackShowStyle(pair, s)})
		}
		return withMenu("📈 <b>"+pair+"</b>: pick a trading style:", row), nil
	}

	key := cache.Key("history", pair, r.Style)
	signals, err := cache.GetOrLoad(ctx, f.cache, key, f.cfg.HistoryTTL, func(ctx context.Context) ([]*models.Signal, error) {
		return f.signals.ListRecent(ctx, pair, r.Style, historyLimit)
	})
	if err != nil {
		return models.Message{}, err
	}
	if len(signals) == 0 {
		return withMenu(fmt.Sprintf("📈 No %s signals for <b>%s</b> right now.", r.Style, pair)), nil
	}

	texts := make([]string, 0, len(signals))
	var rows [][]models.Button
	addon := service.HasAddon(sub, now)
	for _, s := range signals {
		texts = append(texts, service.FormatSignal(service.ToDispatch(s), service.TitleHistory))
		if addon {
			rows = append(rows, []models.Button{{
				Text:         fmt.Sprintf("👆 Trade #%d", s.ID),
				CallbackData: service.CallbackManualTrade(s.ID),
			}})
		}
	}
	return withMenu(strings.Join(texts, "\n\n"), rows...), nil
}

func (f *FrontDesk) manualTrade(ctx context.Context, sub *models.Subscriber, r models.ManualTradeRequest) (models.Message, error) {
	if !service.HasAddon(sub, f.now()) {
		return withMenu("👆 Manual trading needs the PRO EA add-on."), nil
	}
	if r.OrderType == "" {
		return models.Message{
			Text: fmt.Sprintf("👆 How should signal #%d be executed?", r.SignalID),
			Buttons: [][]models.Button{
				{
					{Text: "Market order", CallbackData: service.CallbackExecute(r.SignalID, models.OrderMarket)},
					{Text: "Pending order", CallbackData: service.CallbackExecute(r.SignalID, models.OrderPending)},
				},
				{{Text: "Cancel", CallbackData: service.CallbackCancelTrade}},
			},
		}, nil
	}

	outcome, err := f.trades.Execute(ctx, sub, r.SignalID, r.OrderType)
	switch {
	case errors.Is(err, ErrTooManyTrades):
		return withMenu("⏳ Too many trade requests, wait a minute and try again."), nil
	case errors.Is(err, models.ErrNotFound):
		return withMenu("❌ That signal is no longer available."), nil
	case err != nil:
		return models.Message{}, err
	}
	if outcome == models.Delivered {
		return withMenu(fmt.Sprintf("📤 %s order for signal #%d sent to your EA.", strings.ToLower(string(r.OrderType)), r.SignalID)), nil
	}
	return withMenu("🔌 Your EA is not connected, the order was not sent."), nil
}

func (f *FrontDesk) relayToken(sub *models.Subscriber) (models.Message, error) {
	if !service.HasAddon(sub, f.now()) {
		return withMenu("🔑 The EA token comes with the PRO EA add-on."), nil
	}
	tok, err := f.tokens.Issue(sub.ID, f.now())
	if err != nil {
		return models.Message{}, err
	}
	endpoint := fmt.Sprintf("%s/ws/%d", strings.TrimRight(f.cfg.RelayURL, "/"), sub.ID)
	return withMenu(fmt.Sprintf("🔑 <b>EA connection</b>\n\nEndpoint: <code>%s</code>\nToken: <code>%s</code>\n\nKeep the token private.",
		html.EscapeString(endpoint), tok)), nil
}
