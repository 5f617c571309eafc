package handlers

import (
	"context"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/BatmanBruc/convert-bot/internal/contextkeys"
	"github.com/BatmanBruc/convert-bot/internal/formats"
	"github.com/BatmanBruc/convert-bot/types"
)

// HandleClickButton answers the callback and routes its data: a category key, a
// format_<token> choice or a next action.
func (bh *Handlers) HandleClickButton(ctx context.Context, u User, update *models.Update) error {
	if update.CallbackQuery == nil {
		return nil
	}
	bh.answerCallback(ctx, update.CallbackQuery.ID)

	data, _ := contextkeys.GetCallbackData(ctx)
	if data == "" {
		data = update.CallbackQuery.Data
	}
	data = strings.TrimSpace(data)

	if token, ok := formats.ParseFormatCallback(data); ok {
		return bh.conv.OnFormatSelected(ctx, u, token)
	}
	if _, ok := types.ParseNextAction(data); ok {
		return bh.conv.OnNextActionChosen(ctx, u, data)
	}
	return bh.conv.OnCategorySelected(ctx, u, data)
}

func (bh *Handlers) answerCallback(ctx context.Context, id string) {
	if id == "" {
		return
	}
	if _, err := bh.api.AnswerCallbackQuery(ctx, &bot.AnswerCallbackQueryParams{CallbackQueryID: id}); err != nil {
		bh.log.Warn("answer callback", "error", err)
	}
}
