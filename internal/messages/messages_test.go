package messages

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"

	"github.com/BatmanBruc/convert-bot/internal/i18n"
	"github.com/BatmanBruc/convert-bot/types"
)

func TestConversionFailed_LongCyrillicDetailStaysValidUTF8(t *testing.T) {
	detail := "ffmpeg failed: " + strings.Repeat("видео", 80)
	msg := ConversionFailed(i18n.RU, "клип.mp4", types.KindCodecError, detail)

	assert.True(t, utf8.ValidString(msg))
	assert.Contains(t, msg, "…</code>")
	assert.Contains(t, msg, "клип.mp4")
}

func TestConversionFailed_InternalErrorHidesDetail(t *testing.T) {
	msg := ConversionFailed(i18n.EN, "a.png", types.KindInternalError, "nil pointer")
	assert.NotContains(t, msg, "nil pointer")
	assert.Contains(t, msg, "internal error")
}

func TestTruncateRunes(t *testing.T) {
	assert.Equal(t, "абв…", truncateRunes("абвгд", 3))
	assert.Equal(t, "абв", truncateRunes("абв", 3))
}
