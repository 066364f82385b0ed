package telegram

import (
	tgmodels "github.com/go-telegram/bot/models"

	"SignalRelay/internal/domain/models"
)

func keyboard(rows [][]models.Button) *tgmodels.InlineKeyboardMarkup {
	if len(rows) == 0 {
		return nil
	}
	out := make([][]tgmodels.InlineKeyboardButton, 0, len(rows))
	for _, row := range rows {
		if len(row) == 0 {
			continue
		}
		buttons := make([]tgmodels.InlineKeyboardButton, 0, len(row))
		for _, b := range row {
			btn := tgmodels.InlineKeyboardButton{Text: b.Text}
			if b.URL != "" {
				btn.URL = b.URL
			} else {
				btn.CallbackData = b.CallbackData
			}
			buttons = append(buttons, btn)
		}
		out = append(out, buttons)
	}
	if len(out) == 0 {
		return nil
	}
	return &tgmodels.InlineKeyboardMarkup{InlineKeyboard: out}
}
