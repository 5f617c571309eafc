package handlers

import (
	"context"
	"log/slog"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/BatmanBruc/convert-bot/internal/contextkeys"
	"github.com/BatmanBruc/convert-bot/internal/messages"
	"github.com/BatmanBruc/convert-bot/internal/scheduler"
)

type JobSubmitter interface {
	Submit(job *scheduler.Job) (int, error)
}

type Handlers struct {
	conv       *Conversation
	api        TelegramAPI
	scheduler  JobSubmitter
	downloader FileDownloader
	log        *slog.Logger
}

func NewHandlers(conv *Conversation, api TelegramAPI, sched JobSubmitter, downloader FileDownloader, log *slog.Logger) *Handlers {
	if log == nil {
		log = slog.Default()
	}
	return &Handlers{
		conv:       conv,
		api:        api,
		scheduler:  sched,
		downloader: downloader,
		log:        log.With("component", "handlers"),
	}
}

// MainHandler routes an update that went through the middleware chain. Replies go through
// the TelegramAPI given to NewHandlers, so the *bot.Bot argument is unused.
func (bh *Handlers) MainHandler(ctx context.Context, _ *bot.Bot, update *models.Update) {
	u, ok := contextkeys.GetUser(ctx)
	if !ok {
		bh.log.Error("user not found in context", "update_id", update.ID)
		return
	}
	messageType, _ := contextkeys.GetMessageType(ctx)

	var err error
	switch messageType {
	case contextkeys.MessageTypeCommand:
		err = bh.HandleCommand(ctx, u, update)
	case contextkeys.MessageTypeDocument, contextkeys.MessageTypePhoto, contextkeys.MessageTypeVideo:
		err = bh.HandleFile(ctx, u)
	case contextkeys.MessageTypeText:
		err = bh.HandleText(ctx, u)
	case contextkeys.MessageTypeClickButton:
		err = bh.HandleClickButton(ctx, u, update)
	default:
		err = bh.conv.out.DeliverErrorMessage(ctx, u, messages.ErrorUnsupportedMessageType(u.Lang))
	}
	if err != nil {
		bh.log.Error("handle update", "update_id", update.ID, "user_id", u.ID, "type", messageType, "error", err)
	}
}
