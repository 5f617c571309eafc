package handlers

import (
	"context"
	"errors"
	"sync"

	"github.com/go-telegram/bot"

	"github.com/BatmanBruc/convert-bot/internal/contextkeys"
	"github.com/BatmanBruc/convert-bot/internal/messages"
	"github.com/BatmanBruc/convert-bot/internal/scheduler"
)

// HandleFile queues the conversion of an uploaded file. The download and the conversion
// both run on a scheduler worker inside the job's scratch directory.
func (bh *Handlers) HandleFile(ctx context.Context, u User) error {
	file, ok := contextkeys.GetFileInfo(ctx, 0)
	if !ok {
		return bh.conv.out.DeliverErrorMessage(ctx, u, messages.FileNotFound(u.Lang))
	}
	if !bh.conv.CanAcceptFile(ctx, u) {
		return nil
	}
	if file.FileSize > MaxDownloadBytes {
		return bh.conv.out.DeliverErrorMessage(ctx, u, messages.FileTooLarge(u.Lang, file.FileName, MaxDownloadBytes>>20))
	}

	status := &queueStatus{bh: bh, u: u, fileName: file.FileName}
	job := &scheduler.Job{
		UserID:   u.ID,
		FileName: file.FileName,
		Run: func(jobCtx context.Context, dir string) error {
			defer func() {
				finishCtx, cancel := afterJob(jobCtx)
				defer cancel()
				status.finish(finishCtx)
			}()
			local, err := bh.downloader.Download(jobCtx, file.FileID, dir, file.FileName)
			if err != nil {
				failCtx, cancel := afterJob(jobCtx)
				defer cancel()
				return bh.conv.fail(failCtx, u, err)
			}
			return bh.conv.OnFileUploaded(jobCtx, u, local, file.FileName)
		},
		OnPosition: status.moved,
	}

	position, err := bh.scheduler.Submit(job)
	switch {
	case errors.Is(err, scheduler.ErrQueueFull):
		return bh.conv.out.DeliverErrorMessage(ctx, u, messages.QueueFull(u.Lang))
	case err != nil:
		return bh.conv.fail(ctx, u, err)
	}
	if position > 0 {
		status.queued(ctx, position)
	}
	return nil
}

// queueStatus is the "queued" message shown while a job waits for a worker. Position
// updates can arrive before the message exists and after the job is done.
type queueStatus struct {
	bh       *Handlers
	u        User
	fileName string

	mu        sync.Mutex
	messageID int
	started   bool
	finished  bool
}

func (q *queueStatus) queued(ctx context.Context, position int) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.started || q.finished || q.messageID != 0 {
		return
	}
	msg, err := q.bh.api.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:    q.u.ChatID,
		Text:      messages.QueueQueued(q.u.Lang, q.fileName, position),
		ParseMode: messages.ParseModeHTML,
	})
	if err != nil {
		q.bh.log.Warn("send queue status", "user_id", q.u.ID, "error", err)
		return
	}
	q.messageID = msg.ID
}

func (q *queueStatus) moved(position int) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if position == 0 {
		q.started = true
	}
	if q.messageID == 0 || q.finished {
		return
	}
	text := messages.QueueQueued(q.u.Lang, q.fileName, position)
	if position == 0 {
		text = messages.QueueStarted(q.u.Lang, q.fileName)
	}
	if _, err := q.bh.api.EditMessageText(context.Background(), &bot.EditMessageTextParams{
		ChatID:    q.u.ChatID,
		MessageID: q.messageID,
		Text:      text,
		ParseMode: messages.ParseModeHTML,
	}); err != nil {
		q.bh.log.Warn("edit queue status", "user_id", q.u.ID, "error", err)
	}
}

func (q *queueStatus) finish(ctx context.Context) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.finished = true
	if q.messageID == 0 {
		return
	}
	if _, err := q.bh.api.DeleteMessage(ctx, &bot.DeleteMessageParams{
		ChatID:    q.u.ChatID,
		MessageID: q.messageID,
	}); err != nil {
		q.bh.log.Warn("delete queue status", "user_id", q.u.ID, "error", err)
	}
}
