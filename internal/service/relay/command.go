package relay

import (
	"time"

	"SignalRelay/internal/domain/models"
	"SignalRelay/pkg/util"
)

// BuildTradeCommand renders the envelope for one subscriber: the broker
// symbol gets the subscriber's prefix and suffix, and text-heavy fields
// are left out.
func BuildTradeCommand(sig models.DispatchSignal, sub *models.Subscriber, order models.OrderType) *models.TradeCommand {
	return &models.TradeCommand{
		Action:    models.ActionExecuteTrade,
		OrderType: order,
		Signal: models.TradeSignal{
			ID:             sig.ID,
			Pair:           sub.SymbolPrefix + sig.Pair + sub.SymbolSuffix,
			Direction:      sig.Direction,
			Timeframe:      sig.Timeframe,
			TradingStyle:   sig.TradingStyle,
			PatternName:    sig.PatternName,
			PatternType:    sig.PatternType,
			PatternAge:     sig.PatternAge,
			EntryPrice:     sig.EntryPrice,
			TakeProfit:     sig.TakeProfit,
			StopLoss:       sig.StopLoss,
			TargetPeriod:   sig.TargetPeriod,
			ExpiryDatetime: util.NormalizeTimeText(sig.ExpiryDatetime),
			CreatedAt:      timeText(sig.CreatedAt),
			LastSeenAt:     timeText(sig.LastSeenAt),
		},
	}
}

func timeText(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
