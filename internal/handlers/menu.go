package handlers

import (
	"github.com/BatmanBruc/convert-bot/internal/formats"
	"github.com/BatmanBruc/convert-bot/internal/i18n"
	"github.com/BatmanBruc/convert-bot/internal/messages"
	"github.com/BatmanBruc/convert-bot/internal/utils"
	"github.com/BatmanBruc/convert-bot/types"
)

func (c *Conversation) categoryMenu(lang i18n.Lang) [][]formats.FormatButton {
	return utils.ChunkButtons(c.registry.CategoryButtons(lang), 3)
}

func (c *Conversation) formatMenu(lang i18n.Lang, cat types.Category) [][]formats.FormatButton {
	rows := utils.ChunkButtons(c.registry.FormatButtons(cat), 3)
	return append(rows, []formats.FormatButton{
		{Text: messages.BtnBack(lang), CallbackData: string(types.ActionReturnToCategory)},
	})
}

// backMenu lets a user waiting for a file go back to the category menu.
func backMenu(lang i18n.Lang) [][]formats.FormatButton {
	return [][]formats.FormatButton{
		{{Text: messages.BtnBack(lang), CallbackData: string(types.ActionReturnToCategory)}},
	}
}

func nextActionMenu(lang i18n.Lang) [][]formats.FormatButton {
	return [][]formats.FormatButton{
		{{Text: messages.BtnBack(lang), CallbackData: string(types.ActionReturnToCategory)}},
		{{Text: messages.BtnSameSettings(lang), CallbackData: string(types.ActionReuseSettings)}},
	}
}
