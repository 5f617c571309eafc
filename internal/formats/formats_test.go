package formats

import (
	"strings"
	"testing"

	"github.com/BatmanBruc/convert-bot/internal/i18n"
	"github.com/BatmanBruc/convert-bot/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllowedFormats(t *testing.T) {
	r := Default()

	assert.Equal(t,
		[]types.Format{types.FormatJPEG, types.FormatPNG, types.FormatBMP, types.FormatICO, types.FormatJFIF},
		r.AllowedFormats(types.CategoryImage))
	assert.Equal(t,
		[]types.Format{types.FormatMP4, types.FormatAVI, types.FormatMOV, types.FormatWEBP, types.FormatMKV},
		r.AllowedFormats(types.CategoryVideo))
	assert.Equal(t,
		[]types.Format{types.FormatPDF, types.FormatDOCX},
		r.AllowedFormats(types.CategoryDocument))
	assert.Nil(t, r.AllowedFormats(types.Category("audio")))
}

func TestAllowedFormats_ReturnsCopy(t *testing.T) {
	r := Default()
	got := r.AllowedFormats(types.CategoryImage)
	got[0] = types.FormatMKV

	assert.Equal(t, types.FormatJPEG, r.AllowedFormats(types.CategoryImage)[0])
}

func TestIsAllowed(t *testing.T) {
	r := Default()
	tests := []struct {
		category types.Category
		format   types.Format
		want     bool
	}{
		{types.CategoryImage, types.FormatPNG, true},
		{types.CategoryImage, types.FormatJFIF, true},
		{types.CategoryImage, types.FormatWEBP, false},
		{types.CategoryVideo, types.FormatWEBP, true},
		{types.CategoryVideo, types.FormatPNG, false},
		{types.CategoryDocument, types.FormatPDF, true},
		{types.CategoryDocument, types.FormatMP4, false},
		{types.Category("audio"), types.FormatMP4, false},
	}
	for _, tt := range tests {
		t.Run(tt.category.String()+"/"+tt.format.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, r.IsAllowed(tt.category, tt.format))
		})
	}
}

func TestParseFormat_Aliases(t *testing.T) {
	f, ok := types.ParseFormat("JPG")
	require.True(t, ok)
	assert.Equal(t, types.FormatJPEG, f)

	f, ok = types.ParseFormat(".jpeg")
	require.True(t, ok)
	assert.Equal(t, types.FormatJPEG, f)

	_, ok = types.ParseFormat("webm")
	assert.False(t, ok)
}

func TestParseCategory(t *testing.T) {
	r := Default()
	for in, want := range map[string]types.Category{
		"photo":    types.CategoryImage,
		"Video":    types.CategoryVideo,
		"file":     types.CategoryDocument,
		"document": types.CategoryDocument,
	} {
		got, ok := r.ParseCategory(in)
		require.True(t, ok, in)
		assert.Equal(t, want, got, in)
	}

	_, ok := r.ParseCategory("audio")
	assert.False(t, ok)
}

func TestRoute(t *testing.T) {
	r := Default()
	tests := []struct {
		name     string
		category types.Category
		source   string
		target   types.Format
		wantOp   Operation
		wantKind types.Kind
	}{
		{"image any source", types.CategoryImage, "tiff", types.FormatPNG, OpImage, ""},
		{"video", types.CategoryVideo, "webm", types.FormatMP4, OpVideo, ""},
		{"pdf to docx", types.CategoryDocument, "pdf", types.FormatDOCX, OpPdfToDocx, ""},
		{"docx to pdf", types.CategoryDocument, ".DOCX", types.FormatPDF, OpDocxToPdf, ""},
		{"docx to docx", types.CategoryDocument, "docx", types.FormatDOCX, OpNone, types.KindUnsupportedConversion},
		{"pdf to pdf", types.CategoryDocument, "pdf", types.FormatPDF, OpNone, types.KindUnsupportedConversion},
		{"txt source", types.CategoryDocument, "txt", types.FormatPDF, OpNone, types.KindInvalidInput},
		{"image target in video", types.CategoryVideo, "mp4", types.FormatPNG, OpNone, types.KindUnsupportedFormat},
		{"doc target", types.CategoryDocument, "pdf", types.Format("doc"), OpNone, types.KindUnsupportedFormat},
		{"unknown category", types.Category("audio"), "mp3", types.FormatMP4, OpNone, types.KindUnsupportedFormat},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			op, err := r.Route(tt.category, tt.source, tt.target)
			assert.Equal(t, tt.wantOp, op)
			if tt.wantKind == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Equal(t, tt.wantKind, types.KindOf(err))
		})
	}
}

func TestFormatButtons(t *testing.T) {
	r := Default()
	buttons := r.FormatButtons(types.CategoryVideo)
	require.Len(t, buttons, 5)
	assert.Equal(t, "MP4", buttons[0].Text)
	assert.Equal(t, "format_mp4", buttons[0].CallbackData)

	token, ok := ParseFormatCallback(buttons[3].CallbackData)
	require.True(t, ok)
	assert.Equal(t, "webp", token)

	_, ok = ParseFormatCallback("format_")
	assert.False(t, ok)
	_, ok = ParseFormatCallback("photo")
	assert.False(t, ok)
}

func TestCategoryButtons(t *testing.T) {
	buttons := Default().CategoryButtons(i18n.RU)
	require.Len(t, buttons, 3)
	assert.Equal(t, "Фото", buttons[0].Text)
	assert.Equal(t, "photo", buttons[0].CallbackData)
	assert.Equal(t, "file", buttons[2].CallbackData)
}

func TestHelpMessage(t *testing.T) {
	msg := Default().HelpMessage(i18n.EN)
	assert.True(t, strings.Contains(msg, "JPEG, PNG, BMP, ICO, JFIF"))
	assert.Contains(t, msg, "PDF → DOCX")
}
