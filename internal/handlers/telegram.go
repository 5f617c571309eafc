package handlers

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/BatmanBruc/convert-bot/internal/contextkeys"
	"github.com/BatmanBruc/convert-bot/internal/formats"
	"github.com/BatmanBruc/convert-bot/internal/messages"
	"github.com/BatmanBruc/convert-bot/internal/utils"
)

// TelegramAPI is the part of *bot.Bot the handlers use.
type TelegramAPI interface {
	SendMessage(ctx context.Context, params *bot.SendMessageParams) (*models.Message, error)
	SendDocument(ctx context.Context, params *bot.SendDocumentParams) (*models.Message, error)
	EditMessageText(ctx context.Context, params *bot.EditMessageTextParams) (*models.Message, error)
	DeleteMessage(ctx context.Context, params *bot.DeleteMessageParams) (bool, error)
	AnswerCallbackQuery(ctx context.Context, params *bot.AnswerCallbackQueryParams) (bool, error)
	GetFile(ctx context.Context, params *bot.GetFileParams) (*models.File, error)
	FileDownloadLink(f *models.File) string
}

var _ TelegramAPI = (*bot.Bot)(nil)

// TelegramOutbound delivers conversation output as Telegram messages.
type TelegramOutbound struct {
	api TelegramAPI
}

func NewTelegramOutbound(api TelegramAPI) *TelegramOutbound {
	return &TelegramOutbound{api: api}
}

func (t *TelegramOutbound) DeliverFile(ctx context.Context, u User, path, fileName string) error {
	file, err := os.Open(path) //nolint:gosec // path comes from the converter
	if err != nil {
		return err
	}
	defer file.Close()

	if strings.TrimSpace(fileName) == "" {
		fileName = filepath.Base(path)
	}
	_, err = t.api.SendDocument(ctx, &bot.SendDocumentParams{
		ChatID: u.ChatID,
		Document: &models.InputFileUpload{
			Filename: fileName,
			Data:     file,
		},
		Caption: fileName,
	})
	return err
}

func (t *TelegramOutbound) DeliverErrorMessage(ctx context.Context, u User, text string) error {
	_, err := t.api.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:    u.ChatID,
		Text:      text,
		ParseMode: messages.ParseModeHTML,
	})
	return err
}

// DeliverPrompt replaces the menu in place when the prompt answers a button press and
// sends a new message otherwise.
func (t *TelegramOutbound) DeliverPrompt(ctx context.Context, u User, text string, choices [][]formats.FormatButton) error {
	var markup models.ReplyMarkup
	if len(choices) > 0 {
		kb := utils.BuildInlineKeyboard(choices)
		markup = &kb
	}
	if messageID, ok := contextkeys.GetCallbackMessage(ctx); ok {
		_, err := t.api.EditMessageText(ctx, &bot.EditMessageTextParams{
			ChatID:      u.ChatID,
			MessageID:   messageID,
			Text:        text,
			ParseMode:   messages.ParseModeHTML,
			ReplyMarkup: markup,
		})
		if err == nil || strings.Contains(err.Error(), "message is not modified") {
			return nil
		}
	}
	_, err := t.api.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:      u.ChatID,
		Text:        text,
		ParseMode:   messages.ParseModeHTML,
		ReplyMarkup: markup,
	})
	return err
}

// MaxDownloadBytes is the Bot API limit on files a bot can download.
const MaxDownloadBytes = 20 << 20

// FileDownloader fetches an uploaded file into dir and returns its local path.
type FileDownloader interface {
	Download(ctx context.Context, fileID, dir, fileName string) (string, error)
}

type TelegramDownloader struct {
	api      TelegramAPI
	client   *http.Client
	maxBytes int64
}

// NewTelegramDownloader downloads through the Bot API file endpoint. maxBytes <= 0 means
// MaxDownloadBytes.
func NewTelegramDownloader(api TelegramAPI, client *http.Client, maxBytes int64) *TelegramDownloader {
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Minute}
	}
	if maxBytes <= 0 {
		maxBytes = MaxDownloadBytes
	}
	return &TelegramDownloader{api: api, client: client, maxBytes: maxBytes}
}

func (d *TelegramDownloader) Download(ctx context.Context, fileID, dir, fileName string) (string, error) {
	f, err := d.api.GetFile(ctx, &bot.GetFileParams{FileID: fileID})
	if err != nil {
		return "", fmt.Errorf("get file: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.api.FileDownloadLink(f), nil)
	if err != nil {
		return "", err
	}
	resp, err := d.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("download file: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("download file: status %s", resp.Status)
	}

	local := filepath.Join(dir, localName(fileName, f.FilePath))
	out, err := os.OpenFile(local, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600) //nolint:gosec // inside the job dir
	if err != nil {
		return "", err
	}
	n, err := io.Copy(out, io.LimitReader(resp.Body, d.maxBytes+1))
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err == nil && n > d.maxBytes {
		err = fmt.Errorf("file is larger than %d bytes", d.maxBytes)
	}
	if err != nil {
		_ = os.Remove(local)
		return "", err
	}
	return local, nil
}

// localName keeps the upload's base name and falls back to the extension Telegram stored
// the file under.
func localName(fileName, remotePath string) string {
	name := filepath.Base(strings.TrimSpace(fileName))
	if name == "." || name == "/" || name == "" {
		name = "upload"
	}
	name = strings.Map(func(r rune) rune {
		if r < 0x20 || r == '/' || r == '\\' {
			return '_'
		}
		return r
	}, name)
	if filepath.Ext(name) == "" {
		name += filepath.Ext(remotePath)
	}
	return name
}
