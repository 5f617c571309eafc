package handlers

import (
	"context"
	"strings"

	"github.com/go-telegram/bot/models"

	"github.com/BatmanBruc/convert-bot/internal/messages"
)

func (bh *Handlers) HandleCommand(ctx context.Context, u User, update *models.Update) error {
	if update.Message == nil {
		return nil
	}
	fields := strings.Fields(update.Message.Text)
	if len(fields) == 0 {
		return nil
	}
	cmd, _, _ := strings.Cut(fields[0], "@")

	switch strings.ToLower(cmd) {
	case "/start", "/menu":
		return bh.conv.OnStart(ctx, u)
	case "/help":
		return bh.conv.OnHelp(ctx, u)
	case "/stats":
		return bh.conv.OnStats(ctx, u)
	default:
		return bh.conv.out.DeliverErrorMessage(ctx, u, messages.ErrorUnknownCommand(u.Lang))
	}
}
