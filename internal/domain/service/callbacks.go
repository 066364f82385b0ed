package service

import (
	"fmt"
	"strconv"
	"strings"

	"SignalRelay/internal/domain/models"
)

// Callback data attached to inline buttons. Payload-carrying callbacks
// are prefixes followed by their arguments.
const (
	CallbackMenu                = "main_menu"
	CallbackShowPackages        = "show_packages"
	CallbackStatus              = "subscription_status"
	CallbackToggleNotifications = "toggle_notifications"
	CallbackToggleAutoTrade     = "auto_trade_menu"
	CallbackHistory             = "on_demand_start"
	CallbackSetPrefix           = "set_symbol_prefix"
	CallbackSetSuffix           = "set_symbol_suffix"
	CallbackRelayToken          = "relay_token"
	CallbackCancelTrade         = "cancel_trade"

	prefixSubscribe      = "subscribe_"
	prefixConfirmReplace = "confirm_replace_"
	prefixSelectPair     = "select_pair_"
	prefixShowStyle      = "show_style_"
	prefixManualTrade    = "manual_trade_start_"
	prefixExecute        = "execute_"
)

func CallbackSubscribe(key string) string      { return prefixSubscribe + key }
func CallbackConfirmReplace(key string) string { return prefixConfirmReplace + key }
func CallbackSelectPair(pair string) string    { return prefixSelectPair + pair }
func CallbackManualTrade(signalID int64) string {
	return prefixManualTrade + strconv.FormatInt(signalID, 10)
}

func CallbackShowStyle(pair string, style models.TradingStyle) string {
	return prefixShowStyle + pair + "_" + string(style)
}

func CallbackExecute(signalID int64, order models.OrderType) string {
	return fmt.Sprintf("%s%d_%s", prefixExecute, signalID, strings.ToLower(string(order)))
}

// IsAffixPrompt reports whether data asks the user to type an affix next.
func IsAffixPrompt(data string) (models.AffixKind, bool) {
	switch data {
	case CallbackSetPrefix:
		return models.AffixPrefix, true
	case CallbackSetSuffix:
		return models.AffixSuffix, true
	}
	return "", false
}

// ParseCallback maps callback data to a front-desk request.
func ParseCallback(who models.Requester, data string) (models.Request, error) {
	switch data {
	case CallbackMenu, CallbackCancelTrade:
		return models.StartRequest{Requester: who}, nil
	case CallbackShowPackages:
		return models.ShowPackagesRequest{Requester: who}, nil
	case CallbackStatus:
		return models.StatusRequest{Requester: who}, nil
	case CallbackToggleNotifications:
		return models.ToggleNotificationsRequest{Requester: who}, nil
	case CallbackToggleAutoTrade:
		return models.ToggleAutoTradeRequest{Requester: who}, nil
	case CallbackHistory:
		return models.HistoryRequest{Requester: who}, nil
	case CallbackRelayToken:
		return models.RelayTokenRequest{Requester: who}, nil
	}

	switch {
	case strings.HasPrefix(data, prefixSubscribe):
		return models.PurchaseRequest{Requester: who, PackageKey: strings.TrimPrefix(data, prefixSubscribe)}, nil
	case strings.HasPrefix(data, prefixConfirmReplace):
		return models.PurchaseRequest{Requester: who, PackageKey: strings.TrimPrefix(data, prefixConfirmReplace), ConfirmReplace: true}, nil
	case strings.HasPrefix(data, prefixSelectPair):
		return models.HistoryRequest{Requester: who, Pair: strings.TrimPrefix(data, prefixSelectPair)}, nil
	case strings.HasPrefix(data, prefixShowStyle):
		rest := strings.TrimPrefix(data, prefixShowStyle)
		i := strings.LastIndex(rest, "_")
		if i <= 0 || i == len(rest)-1 {
			return nil, fmt.Errorf("%w: callback %q", models.ErrValidation, data)
		}
		return models.HistoryRequest{Requester: who, Pair: rest[:i], Style: models.TradingStyle(rest[i+1:])}, nil
	case strings.HasPrefix(data, prefixManualTrade):
		id, err := strconv.ParseInt(strings.TrimPrefix(data, prefixManualTrade), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: callback %q", models.ErrValidation, data)
		}
		return models.ManualTradeRequest{Requester: who, SignalID: id}, nil
	case strings.HasPrefix(data, prefixExecute):
		parts := strings.SplitN(strings.TrimPrefix(data, prefixExecute), "_", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("%w: callback %q", models.ErrValidation, data)
		}
		id, err := strconv.ParseInt(parts[0], 10, 64)
		order := models.OrderType(strings.ToUpper(parts[1]))
		if err != nil || !order.Valid() {
			return nil, fmt.Errorf("%w: callback %q", models.ErrValidation, data)
		}
		return models.ManualTradeRequest{Requester: who, SignalID: id, OrderType: order}, nil
	}
	return nil, fmt.Errorf("%w: unknown callback %q", models.ErrValidation, data)
}
