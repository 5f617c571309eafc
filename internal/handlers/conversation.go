package handlers

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/BatmanBruc/convert-bot/internal/contextkeys"
	"github.com/BatmanBruc/convert-bot/internal/formats"
	"github.com/BatmanBruc/convert-bot/internal/messages"
	"github.com/BatmanBruc/convert-bot/internal/session"
	"github.com/BatmanBruc/convert-bot/types"
)

type User = contextkeys.User

// Outbound is how the conversation talks back to a user.
type Outbound interface {
	DeliverFile(ctx context.Context, u User, path, fileName string) error
	DeliverErrorMessage(ctx context.Context, u User, text string) error
	DeliverPrompt(ctx context.Context, u User, text string, choices [][]formats.FormatButton) error
}

type Dispatcher interface {
	Dispatch(ctx context.Context, req types.ConversionRequest) (*types.Result, error)
}

// Conversation drives one user's selection flow and runs the conversion of each uploaded
// file. It is transport agnostic; the Telegram side lives in Handlers and TelegramOutbound.
type Conversation struct {
	registry   *formats.Registry
	sessions   *session.Manager
	dispatcher Dispatcher
	out        Outbound
	history    types.HistoryStore
	log        *slog.Logger
	now        func() time.Time
}

type ConversationConfig struct {
	Registry   *formats.Registry
	Sessions   *session.Manager
	Dispatcher Dispatcher
	Out        Outbound
	// History is optional.
	History types.HistoryStore
	Logger  *slog.Logger
}

func NewConversation(cfg ConversationConfig) *Conversation {
	if cfg.Registry == nil {
		cfg.Registry = formats.Default()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Conversation{
		registry:   cfg.Registry,
		sessions:   cfg.Sessions,
		dispatcher: cfg.Dispatcher,
		out:        cfg.Out,
		history:    cfg.History,
		log:        cfg.Logger.With("component", "conversation"),
		now:        time.Now,
	}
}

// update applies fn under the user's lock and keeps the reply coordinates current.
func (c *Conversation) update(ctx context.Context, u User, fn func(*types.Session) error) (*types.Session, error) {
	return c.sessions.Update(ctx, u.ID, func(s *types.Session) error {
		s.ChatID = u.ChatID
		s.Lang = string(u.Lang)
		return fn(s)
	})
}

func (c *Conversation) OnStart(ctx context.Context, u User) error {
	if _, err := c.update(ctx, u, func(s *types.Session) error {
		session.ReturnToCategory(s)
		return nil
	}); err != nil {
		return c.fail(ctx, u, err)
	}
	return c.out.DeliverPrompt(ctx, u, messages.ChooseCategory(u.Lang), c.categoryMenu(u.Lang))
}

// OnCategorySelected accepts the menu key ("photo", "video", "file") or a category name.
func (c *Conversation) OnCategorySelected(ctx context.Context, u User, key string) error {
	cat, ok := c.registry.ParseCategory(key)
	if !ok {
		return c.out.DeliverPrompt(ctx, u, messages.ChooseCategory(u.Lang), c.categoryMenu(u.Lang))
	}
	if _, err := c.update(ctx, u, func(s *types.Session) error {
		return session.SelectCategory(s, cat)
	}); err != nil {
		return c.fail(ctx, u, err)
	}
	return c.out.DeliverPrompt(ctx, u, messages.ChooseFormat(u.Lang), c.formatMenu(u.Lang, cat))
}

func (c *Conversation) OnFormatSelected(ctx context.Context, u User, token string) error {
	f, known := types.ParseFormat(token)
	s, err := c.update(ctx, u, func(s *types.Session) error {
		if !known {
			return types.Errorf(types.KindInvalidSelection, "unknown format %q", token)
		}
		return session.SelectFormat(c.registry, s, f)
	})
	switch {
	case err == nil:
		return c.out.DeliverPrompt(ctx, u, messages.FormatSelected(u.Lang, string(f)), backMenu(u.Lang))
	case !errors.Is(err, types.ErrInvalidSelection):
		return c.fail(ctx, u, err)
	case s == nil || s.Category == "":
		return c.out.DeliverPrompt(ctx, u, messages.SelectCategoryAndFormatFirst(u.Lang), c.categoryMenu(u.Lang))
	}
	if err := c.out.DeliverErrorMessage(ctx, u, messages.InvalidSelection(u.Lang, token)); err != nil {
		return err
	}
	return c.out.DeliverPrompt(ctx, u, messages.ChooseFormat(u.Lang), c.formatMenu(u.Lang, s.Category))
}

func (c *Conversation) OnNextActionChosen(ctx context.Context, u User, action string) error {
	a, ok := types.ParseNextAction(action)
	if !ok {
		return c.out.DeliverPrompt(ctx, u, messages.NextActionPrompt(u.Lang), nextActionMenu(u.Lang))
	}
	_, err := c.update(ctx, u, func(s *types.Session) error {
		return session.ApplyNextAction(s, a)
	})
	switch {
	case errors.Is(err, types.ErrInvalidSelection):
		return c.out.DeliverPrompt(ctx, u, messages.SelectCategoryAndFormatFirst(u.Lang), c.categoryMenu(u.Lang))
	case err != nil:
		return c.fail(ctx, u, err)
	case a == types.ActionReturnToCategory:
		return c.out.DeliverPrompt(ctx, u, messages.ChooseCategory(u.Lang), c.categoryMenu(u.Lang))
	default:
		return c.out.DeliverPrompt(ctx, u, messages.SendFile(u.Lang), backMenu(u.Lang))
	}
}

// CanAcceptFile reports whether an upload can be converted right now. When it cannot, the
// user is asked to finish the selection first.
func (c *Conversation) CanAcceptFile(ctx context.Context, u User) bool {
	s, err := c.sessions.Get(ctx, u.ID)
	if err != nil {
		_ = c.fail(ctx, u, err)
		return false
	}
	if _, ok := s.Spec(); ok && (s.Step == types.StepAwaitingFile || s.Step == types.StepAwaitingNextAction) {
		return true
	}
	_ = c.out.DeliverPrompt(ctx, u, messages.SelectCategoryAndFormatFirst(u.Lang), c.categoryMenu(u.Lang))
	return false
}

// OnFileUploaded converts a downloaded file with the user's current selection and delivers
// the result. localPath and the converted file are removed before it returns.
func (c *Conversation) OnFileUploaded(ctx context.Context, u User, localPath, originalName string) error {
	defer removeFile(c.log, localPath)
	if originalName == "" {
		originalName = filepath.Base(localPath)
	}

	s, err := c.update(ctx, u, func(s *types.Session) error {
		_, err := session.AcceptFile(s)
		return err
	})
	if errors.Is(err, types.ErrInvalidSelection) {
		return c.out.DeliverPrompt(ctx, u, messages.SelectCategoryAndFormatFirst(u.Lang), c.categoryMenu(u.Lang))
	}
	if err != nil {
		return c.fail(ctx, u, err)
	}
	spec, _ := s.Spec()

	start := c.now()
	res, err := c.dispatcher.Dispatch(ctx, types.ConversionRequest{
		InputPath:    localPath,
		OriginalName: originalName,
		Target:       spec,
	})

	// The job deadline may have expired during the conversion; the user still gets the
	// outcome and the session still moves on.
	ctx, cancel := afterJob(ctx)
	defer cancel()
	if err == nil {
		defer removeFile(c.log, res.OutputPath)
		err = c.out.DeliverFile(ctx, u, res.OutputPath, res.FileName)
		if err != nil {
			err = types.Wrap(types.KindInternalError, err, "deliver result")
		}
	}
	c.record(ctx, u, spec, originalName, start, err)

	if _, uerr := c.sessions.Update(ctx, u.ID, func(s *types.Session) error {
		session.FileConverted(s, err == nil)
		return nil
	}); uerr != nil {
		c.log.Error("update session after conversion", "user_id", u.ID, "error", uerr)
	}

	if err != nil {
		return c.out.DeliverErrorMessage(ctx, u, messages.ConversionFailed(u.Lang, originalName, types.KindOf(err), detailOf(err)))
	}
	return c.out.DeliverPrompt(ctx, u, messages.NextActionPrompt(u.Lang), nextActionMenu(u.Lang))
}

// deliveryTimeout bounds what runs after a conversion, independent of the job deadline.
const deliveryTimeout = 2 * time.Minute

// afterJob keeps ctx values but not its deadline or cancellation.
func afterJob(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), deliveryTimeout)
}

func (c *Conversation) OnHelp(ctx context.Context, u User) error {
	return c.out.DeliverPrompt(ctx, u, c.registry.HelpMessage(u.Lang), nil)
}

func (c *Conversation) OnStats(ctx context.Context, u User) error {
	if c.history == nil {
		return c.out.DeliverPrompt(ctx, u, messages.StatsUnavailable(u.Lang), nil)
	}
	st, err := c.history.UserStats(ctx, u.ID)
	if err != nil {
		return c.fail(ctx, u, err)
	}
	return c.out.DeliverPrompt(ctx, u, messages.Stats(u.Lang, st), nil)
}

func (c *Conversation) record(ctx context.Context, u User, spec types.FormatSpec, name string, start time.Time, convErr error) {
	if c.history == nil {
		return
	}
	rec := types.ConversionRecord{
		UserID:    u.ID,
		Category:  spec.Category,
		SourceExt: types.NormalizeExt(filepath.Ext(name)),
		Target:    spec.Format,
		Status:    types.ConversionSucceeded,
		Duration:  c.now().Sub(start),
		CreatedAt: start,
	}
	if convErr != nil {
		rec.Status = types.ConversionFailed
		rec.ErrorKind = types.KindOf(convErr)
	}
	if err := c.history.Record(ctx, rec); err != nil {
		c.log.Warn("record history", "user_id", u.ID, "error", err)
	}
}

// fail reports an infrastructure error to the user with the generic message.
func (c *Conversation) fail(ctx context.Context, u User, err error) error {
	c.log.Error("conversation step failed", "user_id", u.ID, "error", err)
	if derr := c.out.DeliverErrorMessage(ctx, u, messages.ErrorDefault(u.Lang)); derr != nil {
		return errors.Join(err, derr)
	}
	return err
}

func detailOf(err error) string {
	var typed *types.Error
	if errors.As(err, &typed) {
		return typed.Message
	}
	return ""
}

func removeFile(log *slog.Logger, path string) {
	if path == "" {
		return
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Warn("remove temp file", "path", path, "error", err)
	}
}
