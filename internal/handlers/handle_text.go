package handlers

import (
	"context"

	"github.com/BatmanBruc/convert-bot/internal/messages"
)

// HandleText treats plain text as a request for guidance: without a complete selection the
// user gets the category menu, otherwise a reminder to send a file.
func (bh *Handlers) HandleText(ctx context.Context, u User) error {
	if !bh.conv.CanAcceptFile(ctx, u) {
		return nil
	}
	return bh.conv.out.DeliverPrompt(ctx, u, messages.SendFile(u.Lang), backMenu(u.Lang))
}
