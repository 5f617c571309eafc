package utils

import (
	"github.com/go-telegram/bot/models"

	"github.com/BatmanBruc/convert-bot/internal/formats"
)

// ChunkButtons lays buttons out perRow to a row.
func ChunkButtons(buttons []formats.FormatButton, perRow int) [][]formats.FormatButton {
	if perRow <= 0 {
		perRow = 3
	}
	rows := make([][]formats.FormatButton, 0, (len(buttons)+perRow-1)/perRow)
	for start := 0; start < len(buttons); start += perRow {
		end := start + perRow
		if end > len(buttons) {
			end = len(buttons)
		}
		rows = append(rows, buttons[start:end])
	}
	return rows
}

func BuildInlineKeyboard(rows [][]formats.FormatButton) models.InlineKeyboardMarkup {
	pad := func(s string) string { return " " + s + " " }
	keyboard := make([][]models.InlineKeyboardButton, 0, len(rows))
	for _, r := range rows {
		if len(r) == 0 {
			continue
		}
		row := make([]models.InlineKeyboardButton, 0, len(r))
		for _, button := range r {
			row = append(row, models.InlineKeyboardButton{
				Text:         pad(button.Text),
				CallbackData: button.CallbackData,
			})
		}
		keyboard = append(keyboard, row)
	}

	return models.InlineKeyboardMarkup{
		InlineKeyboard: keyboard,
	}
}
