package service

import (
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"SignalRelay/internal/domain/models"
)

const (
	TitleNewSignal = "🔔 <b>New Signal</b>"
	TitleHistory   = "📈 <b>Signal History</b>"
	dateLayout     = "02 January 2006"
)

func esc(s string) string {
	if s == "" {
		return "N/A"
	}
	return html.EscapeString(s)
}

func priceText(v *float64) string {
	if v == nil {
		return "N/A"
	}
	return formatPrice(v)
}

// Rupiah renders an IDR amount, e.g. "Rp 149,000".
func Rupiah(amount int64) string {
	return "Rp " + humanize.Comma(amount)
}

// FormatSignal renders a signal notification body in HTML.
func FormatSignal(sig models.DispatchSignal, title string) string {
	name := sig.Pair
	if strings.Contains(name, "XAU") {
		name = "Gold Spot"
	}
	dir := string(sig.Direction)
	if sig.Direction == models.DirectionUnknown || dir == "" {
		dir = "N/A"
	}
	pattern := esc(sig.PatternName)
	if sig.PatternType != "" {
		pattern += " (" + html.EscapeString(sig.PatternType) + ")"
	}

	var b strings.Builder
	b.WriteString(title + "\n")
	fmt.Fprintf(&b, "<b>%s (TF: %s) - %s</b>\n", esc(name), esc(sig.Timeframe), dir)
	b.WriteString("---\n")
	fmt.Fprintf(&b, "Pattern: %s - found %s\n", pattern, esc(sig.PatternAge))
	fmt.Fprintf(&b, "Style: %s\n", esc(string(sig.TradingStyle)))
	fmt.Fprintf(&b, "Expiry: %s\n", esc(sig.ExpiryDatetime))
	fmt.Fprintf(&b, "Target Period: %s\n\n", esc(sig.TargetPeriod))
	fmt.Fprintf(&b, "💰 <b>Entry</b>: <code>%s</code>\n", priceText(sig.EntryPrice))
	fmt.Fprintf(&b, "🎯 <b>Take-Profit</b>: <code>%s</code>\n", priceText(sig.TakeProfit))
	fmt.Fprintf(&b, "❌ <b>Stop-Loss</b>: <code>%s</code>", priceText(sig.StopLoss))
	return b.String()
}

// ManualTradeButton is the affordance attached for add-on holders.
func ManualTradeButton(signalID int64) []models.Button {
	return []models.Button{{Text: "👆 Manual Trade", CallbackData: CallbackManualTrade(signalID)}}
}

func subscriptionLine(label string, sub models.Subscription) string {
	end := "N/A"
	switch {
	case sub.Unbounded:
		end = "never"
	case !sub.EndsAt.IsZero():
		end = sub.EndsAt.Format(dateLayout)
	}
	return fmt.Sprintf("<b>%s</b>: %s\n<b>Ends on</b>: %s", label, esc(string(sub.Status)), end)
}

func FormatStatus(s *models.Subscriber, mainName string) string {
	if mainName == "" {
		mainName = "None"
	}
	return fmt.Sprintf("<b>Your subscription</b>\n\n<b>Main package</b>: %s\n%s\n\n%s",
		html.EscapeString(mainName),
		subscriptionLine("Status", s.Main),
		subscriptionLine("EA add-on", s.Addon),
	)
}

func FormatPaymentConfirmed(pkg models.Package, s *models.Subscriber) string {
	sub := s.Main
	if pkg.Type == models.PackageAddon {
		sub = s.Addon
	}
	until := "without expiry"
	if !sub.Unbounded {
		until = "until " + sub.EndsAt.Format(dateLayout)
	}
	return fmt.Sprintf("✅ <b>Payment received</b>\n\nPackage <b>%s</b> is active %s.",
		html.EscapeString(pkg.Name), until)
}

func FormatReminder(inv *models.Invoice, pkg models.Package, now time.Time) string {
	return fmt.Sprintf("⏰ <b>Payment reminder</b>\n\nYour invoice for <b>%s</b> (%s) is still waiting for payment, created %s.",
		html.EscapeString(pkg.Name), Rupiah(pkg.Price), humanize.RelTime(inv.CreatedAt, now, "ago", "from now"))
}

func FormatFeedback(fb models.TradeFeedback) string {
	order := html.EscapeString(strings.ToUpper(fb.OrderType))
	symbol := html.EscapeString(fb.Symbol)
	if strings.EqualFold(fb.Status, "SUCCESS") {
		ticket := "N/A"
		if fb.TicketID != nil {
			ticket = fmt.Sprint(*fb.TicketID)
		}
		return fmt.Sprintf("✅ <b>Execution succeeded</b>\n\nOrder <b>%s</b> for <b>%s</b> was placed.\nTicket: <code>%s</code>",
			order, symbol, ticket)
	}
	comment := fb.Comment
	if comment == "" {
		comment = "no details"
	}
	return fmt.Sprintf("❌ <b>Execution failed</b>\n\nOrder <b>%s</b> for <b>%s</b> could not be executed.\nBroker says: <i>%s</i>",
		order, symbol, html.EscapeString(comment))
}
