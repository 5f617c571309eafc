package contextkeys

import (
	"context"

	"github.com/BatmanBruc/convert-bot/internal/i18n"
)

type messageTypeKey struct{}
type filesInfoKey struct{}
type userKey struct{}
type callbackDataKey struct{}
type callbackMessageKey struct{}

type MessageType string

const (
	MessageTypeText        MessageType = "text"
	MessageTypePhoto       MessageType = "photo"
	MessageTypeVideo       MessageType = "video"
	MessageTypeDocument    MessageType = "document"
	MessageTypeAudio       MessageType = "audio"
	MessageTypeVoice       MessageType = "voice"
	MessageTypeSticker     MessageType = "sticker"
	MessageTypeUnknown     MessageType = "unknown"
	MessageTypeCommand     MessageType = "command"
	MessageTypeClickButton MessageType = "clickButton"
)

// User identifies who an update came from and where replies go.
type User struct {
	ID     int64
	ChatID int64
	Lang   i18n.Lang
}

type FileInfo struct {
	FileType MessageType `json:"file_type"`
	FileID   string      `json:"file_id"`
	FileSize int64       `json:"file_size,omitempty"`
	MimeType string      `json:"mime_type,omitempty"`
	FileName string      `json:"file_name,omitempty"`
}

type FilesInfo struct {
	TotalFiles int        `json:"total_files"`
	Files      []FileInfo `json:"files"`
	HasFiles   bool       `json:"has_files"`
}

func WithMessageType(ctx context.Context, msgType MessageType) context.Context {
	return context.WithValue(ctx, messageTypeKey{}, msgType)
}

func GetMessageType(ctx context.Context) (MessageType, bool) {
	v, ok := ctx.Value(messageTypeKey{}).(MessageType)
	if !ok {
		return MessageTypeUnknown, false
	}
	return v, true
}

func WithFilesInfo(ctx context.Context, info *FilesInfo) context.Context {
	return context.WithValue(ctx, filesInfoKey{}, info)
}

func GetFilesInfo(ctx context.Context) (*FilesInfo, bool) {
	v, ok := ctx.Value(filesInfoKey{}).(*FilesInfo)
	return v, ok
}

func HasFiles(ctx context.Context) bool {
	info, ok := GetFilesInfo(ctx)
	return ok && info != nil && info.HasFiles
}

func GetFileInfo(ctx context.Context, index int) (FileInfo, bool) {
	info, ok := GetFilesInfo(ctx)
	if !ok || info == nil || index < 0 || index >= len(info.Files) {
		return FileInfo{}, false
	}
	return info.Files[index], true
}

func WithUser(ctx context.Context, u User) context.Context {
	return context.WithValue(ctx, userKey{}, u)
}

func GetUser(ctx context.Context) (User, bool) {
	v, ok := ctx.Value(userKey{}).(User)
	return v, ok
}

func WithCallbackData(ctx context.Context, data string) context.Context {
	return context.WithValue(ctx, callbackDataKey{}, data)
}

func GetCallbackData(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(callbackDataKey{}).(string)
	return v, ok
}

// WithCallbackMessage records the ID of the message whose button was pressed.
func WithCallbackMessage(ctx context.Context, messageID int) context.Context {
	return context.WithValue(ctx, callbackMessageKey{}, messageID)
}

func GetCallbackMessage(ctx context.Context) (int, bool) {
	v, ok := ctx.Value(callbackMessageKey{}).(int)
	return v, ok && v != 0
}
