package middleware

import (
	"context"
	"log/slog"
	"runtime/debug"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/BatmanBruc/convert-bot/internal/contextkeys"
	"github.com/BatmanBruc/convert-bot/internal/i18n"
)

type Middlewares struct {
	log *slog.Logger
}

func NewMessageAnalyzer(log *slog.Logger) *Middlewares {
	if log == nil {
		log = slog.Default()
	}
	return &Middlewares{log: log.With("component", "middleware")}
}

// RecoverMiddleware keeps a panicking handler from taking the bot down.
func (m *Middlewares) RecoverMiddleware(next bot.HandlerFunc) bot.HandlerFunc {
	return func(ctx context.Context, b *bot.Bot, update *models.Update) {
		defer func() {
			if r := recover(); r != nil {
				m.log.Error("handler panic", "update_id", update.ID, "panic", r, "stack", string(debug.Stack()))
			}
		}()
		next(ctx, b, update)
	}
}

// ResolveUserMiddleware puts the sender, the reply chat and the UI language into ctx.
// Updates without a user are dropped.
func (m *Middlewares) ResolveUserMiddleware(next bot.HandlerFunc) bot.HandlerFunc {
	return func(ctx context.Context, b *bot.Bot, update *models.Update) {
		u, ok := UserFromUpdate(update)
		if !ok {
			return
		}
		next(contextkeys.WithUser(ctx, u), b, update)
	}
}

func UserFromUpdate(update *models.Update) (contextkeys.User, bool) {
	var (
		from   *models.User
		chatID int64
	)
	switch {
	case update.Message != nil && update.Message.From != nil:
		from = update.Message.From
		chatID = update.Message.Chat.ID
	case update.CallbackQuery != nil:
		from = &update.CallbackQuery.From
		chatID = getChatIDFromMaybeInaccessibleMessage(update.CallbackQuery.Message)
	default:
		return contextkeys.User{}, false
	}
	if from == nil || from.ID == 0 {
		return contextkeys.User{}, false
	}
	if chatID == 0 {
		chatID = from.ID
	}
	return contextkeys.User{
		ID:     from.ID,
		ChatID: chatID,
		Lang:   i18n.FromLanguageCode(from.LanguageCode),
	}, true
}

func getChatIDFromMaybeInaccessibleMessage(m models.MaybeInaccessibleMessage) int64 {
	if m.Message != nil {
		return m.Message.Chat.ID
	}
	if m.InaccessibleMessage != nil {
		return m.InaccessibleMessage.Chat.ID
	}
	return 0
}

func (ma *Middlewares) AnalyzeMessageMiddleware(next bot.HandlerFunc) bot.HandlerFunc {
	return func(ctx context.Context, b *bot.Bot, update *models.Update) {
		next(Analyze(ctx, update), b, update)
	}
}

// Analyze classifies the update and attaches its files, if any.
func Analyze(ctx context.Context, update *models.Update) context.Context {
	if update.CallbackQuery != nil && update.CallbackQuery.Data != "" {
		ctx = contextkeys.WithMessageType(ctx, contextkeys.MessageTypeClickButton)
		if m := update.CallbackQuery.Message.Message; m != nil && m.ID != 0 {
			ctx = contextkeys.WithCallbackMessage(ctx, m.ID)
		}
		return contextkeys.WithCallbackData(ctx, update.CallbackQuery.Data)
	}
	msg := update.Message
	if msg == nil {
		return ctx
	}
	if strings.HasPrefix(msg.Text, "/") {
		return contextkeys.WithMessageType(ctx, contextkeys.MessageTypeCommand)
	}

	ctx = contextkeys.WithMessageType(ctx, determineMessageType(msg))
	if files := analyzeFilesInMessage(msg); files.HasFiles {
		ctx = contextkeys.WithFilesInfo(ctx, files)
	}
	return ctx
}

func determineMessageType(msg *models.Message) contextkeys.MessageType {
	switch {
	case len(msg.Photo) > 0:
		return contextkeys.MessageTypePhoto
	case msg.Video != nil, msg.VideoNote != nil:
		return contextkeys.MessageTypeVideo
	case msg.Document != nil:
		return contextkeys.MessageTypeDocument
	case msg.Audio != nil:
		return contextkeys.MessageTypeAudio
	case msg.Voice != nil:
		return contextkeys.MessageTypeVoice
	case msg.Sticker != nil:
		return contextkeys.MessageTypeSticker
	case msg.Text != "" || msg.Caption != "":
		return contextkeys.MessageTypeText
	}
	return contextkeys.MessageTypeUnknown
}

func analyzeFilesInMessage(msg *models.Message) *contextkeys.FilesInfo {
	files := make([]contextkeys.FileInfo, 0, 1)

	if len(msg.Photo) > 0 {
		best := msg.Photo[0]
		for i := 1; i < len(msg.Photo); i++ {
			if msg.Photo[i].FileSize > best.FileSize {
				best = msg.Photo[i]
			}
		}
		files = append(files, contextkeys.FileInfo{
			FileType: contextkeys.MessageTypePhoto,
			FileID:   best.FileID,
			FileSize: int64(best.FileSize),
			MimeType: "image/jpeg",
			FileName: "photo.jpg",
		})
	}

	if msg.Video != nil {
		files = append(files, contextkeys.FileInfo{
			FileType: contextkeys.MessageTypeVideo,
			FileID:   msg.Video.FileID,
			FileSize: int64(msg.Video.FileSize),
			MimeType: msg.Video.MimeType,
			FileName: fileNameWithExt(msg.Video.FileName, "video", msg.Video.MimeType, "mp4"),
		})
	}

	if msg.VideoNote != nil {
		files = append(files, contextkeys.FileInfo{
			FileType: contextkeys.MessageTypeVideo,
			FileID:   msg.VideoNote.FileID,
			FileSize: int64(msg.VideoNote.FileSize),
			MimeType: "video/mp4",
			FileName: "video_note.mp4",
		})
	}

	if msg.Document != nil {
		files = append(files, contextkeys.FileInfo{
			FileType: contextkeys.MessageTypeDocument,
			FileID:   msg.Document.FileID,
			FileSize: int64(msg.Document.FileSize),
			MimeType: msg.Document.MimeType,
			FileName: fileNameWithExt(msg.Document.FileName, "document", msg.Document.MimeType, ""),
		})
	}

	return &contextkeys.FilesInfo{
		TotalFiles: len(files),
		Files:      files,
		HasFiles:   len(files) > 0,
	}
}

// fileNameWithExt makes sure an upload name carries an extension, guessing it from the
// MIME type when the client sent none.
func fileNameWithExt(name, fallbackStem, mimeType, defaultExt string) string {
	name = strings.TrimSpace(name)
	if name != "" && strings.Contains(name, ".") {
		return name
	}
	if name == "" {
		name = fallbackStem
	}
	if ext := getExtensionFromMimeType(mimeType, defaultExt); ext != "" {
		return name + "." + ext
	}
	return name
}

var mimeToExt = map[string]string{
	"jpeg":       "jpg",
	"jpg":        "jpg",
	"pjpeg":      "jpg",
	"png":        "png",
	"gif":        "gif",
	"webp":       "webp",
	"bmp":        "bmp",
	"x-ms-bmp":   "bmp",
	"tiff":       "tiff",
	"x-icon":     "ico",
	"mp4":        "mp4",
	"quicktime":  "mov",
	"x-msvideo":  "avi",
	"avi":        "avi",
	"x-matroska": "mkv",
	"webm":       "webm",
	"pdf":        "pdf",
	"plain":      "txt",

	"vnd.microsoft.icon": "ico",
	"vnd.openxmlformats-officedocument.wordprocessingml.document": "docx",
}

func getExtensionFromMimeType(mimeType string, defaultExt string) string {
	_, subtype, ok := strings.Cut(strings.TrimSpace(mimeType), "/")
	if !ok {
		return defaultExt
	}
	subtype, _, _ = strings.Cut(subtype, ";")
	if ext := mimeToExt[strings.ToLower(strings.TrimSpace(subtype))]; ext != "" {
		return ext
	}
	return defaultExt
}
