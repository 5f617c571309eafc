package converter

import (
	"bytes"
	"context"
	"encoding/binary"
	"hash/crc32"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/BatmanBruc/convert-bot/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestConverter(cfg Config) *DefaultConverter {
	return NewDefaultConverter(cfg)
}

func testImage(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.NRGBA{R: uint8(x * 7), G: uint8(y * 11), B: uint8((x + y) * 3), A: 255})
		}
	}
	return img
}

func writePNG(t *testing.T, path string, img image.Image) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, img))
	require.NoError(t, f.Close())
}

func decodeFile(t *testing.T, path string) image.Image {
	t.Helper()
	f, err := os.Open(path) //nolint:gosec // test path
	require.NoError(t, err)
	defer f.Close()
	img, _, err := image.Decode(f)
	require.NoError(t, err)
	return img
}

func assertSamePixels(t *testing.T, want, got image.Image) {
	t.Helper()
	require.Equal(t, want.Bounds().Size(), got.Bounds().Size())
	wb, gb := want.Bounds(), got.Bounds()
	for y := 0; y < wb.Dy(); y++ {
		for x := 0; x < wb.Dx(); x++ {
			wc := color.NRGBAModel.Convert(want.At(wb.Min.X+x, wb.Min.Y+y))
			gc := color.NRGBAModel.Convert(got.At(gb.Min.X+x, gb.Min.Y+y))
			if wc != gc {
				t.Fatalf("pixel (%d,%d): want %v, got %v", x, y, wc, gc)
			}
		}
	}
}

func dirNames(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestConvertImage_PngBmpRoundTrip(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "pic.png")
	original := testImage(37, 23)
	writePNG(t, src, original)
	before, err := os.ReadFile(src)
	require.NoError(t, err)

	c := newTestConverter(Config{})

	bmpPath, err := c.ConvertImage(context.Background(), src, types.FormatBMP)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "pic.bmp"), bmpPath)

	// pic.png is taken by the original, so the result gets a suffix.
	pngPath, err := c.ConvertImage(context.Background(), bmpPath, types.FormatPNG)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "pic-1.png"), pngPath)

	assertSamePixels(t, original, decodeFile(t, pngPath))

	after, err := os.ReadFile(src)
	require.NoError(t, err)
	assert.Equal(t, before, after)
	assert.ElementsMatch(t, []string{"pic.png", "pic.bmp", "pic-1.png"}, dirNames(t, dir))
}

func TestConvertImage_SameFormatNeverOverwritesInput(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "a.png")
	writePNG(t, src, testImage(4, 4))

	out, err := newTestConverter(Config{}).ConvertImage(context.Background(), src, types.FormatPNG)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "a-1.png"), out)
}

func TestConvertImage_JPEGAndJFIF(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "photo.png")
	writePNG(t, src, testImage(16, 16))
	c := newTestConverter(Config{})

	for _, f := range []types.Format{types.FormatJPEG, types.FormatJFIF} {
		out, err := c.ConvertImage(context.Background(), src, f)
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(dir, "photo."+string(f)), out)

		img := decodeFile(t, out)
		assert.Equal(t, 16, img.Bounds().Dx())
	}
}

func TestConvertImage_ICO(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "logo.png")
	writePNG(t, src, testImage(300, 150))

	out, err := newTestConverter(Config{}).ConvertImage(context.Background(), src, types.FormatICO)
	require.NoError(t, err)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	require.Greater(t, len(data), 22)
	assert.Equal(t, uint16(0), binary.LittleEndian.Uint16(data[0:]))
	assert.Equal(t, uint16(1), binary.LittleEndian.Uint16(data[2:]))
	assert.Equal(t, uint16(1), binary.LittleEndian.Uint16(data[4:]))
	assert.Equal(t, uint8(0), data[6], "256 wide is stored as 0")
	assert.Equal(t, uint8(128), data[7])

	payload, err := png.Decode(bytes.NewReader(data[22:]))
	require.NoError(t, err)
	assert.Equal(t, image.Pt(256, 128), payload.Bounds().Size())
}

func TestConvertImage_Errors(t *testing.T) {
	dir := t.TempDir()
	c := newTestConverter(Config{})

	corrupt := filepath.Join(dir, "broken.png")
	require.NoError(t, os.WriteFile(corrupt, []byte("definitely not an image"), 0o600))

	_, err := c.ConvertImage(context.Background(), corrupt, types.FormatBMP)
	assert.ErrorIs(t, err, types.ErrCodec)

	_, err = c.ConvertImage(context.Background(), corrupt, types.FormatWEBP)
	assert.ErrorIs(t, err, types.ErrUnsupportedFormat)

	_, err = c.ConvertImage(context.Background(), filepath.Join(dir, "missing.png"), types.FormatBMP)
	assert.ErrorIs(t, err, types.ErrInvalidInput)

	assert.Equal(t, []string{"broken.png"}, dirNames(t, dir), "failures leave no files behind")
}

// pngHeaderOnly is a PNG signature plus a valid IHDR chunk declaring w x h RGBA pixels,
// with no image data after it.
func pngHeaderOnly(w, h uint32) []byte {
	var buf bytes.Buffer
	buf.Write([]byte("\x89PNG\r\n\x1a\n"))

	ihdr := make([]byte, 13)
	binary.BigEndian.PutUint32(ihdr[0:4], w)
	binary.BigEndian.PutUint32(ihdr[4:8], h)
	ihdr[8] = 8 // bit depth
	ihdr[9] = 6 // RGBA

	chunk := append([]byte("IHDR"), ihdr...)
	_ = binary.Write(&buf, binary.BigEndian, uint32(len(ihdr)))
	buf.Write(chunk)
	_ = binary.Write(&buf, binary.BigEndian, crc32.ChecksumIEEE(chunk))
	return buf.Bytes()
}

func TestConvertImage_RejectsOversizedHeader(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "huge.png")
	require.NoError(t, os.WriteFile(src, pngHeaderOnly(50000, 50000), 0o600))

	_, err := newTestConverter(Config{}).ConvertImage(context.Background(), src, types.FormatBMP)
	require.ErrorIs(t, err, types.ErrCodec)
	assert.Contains(t, err.Error(), "50000x50000")
	assert.Equal(t, []string{"huge.png"}, dirNames(t, dir))
}

func TestConvertImage_AcceptsHeaderWithinBudget(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "small.png")
	writePNG(t, src, testImage(40, 30))

	out, err := newTestConverter(Config{}).ConvertImage(context.Background(), src, types.FormatBMP)
	require.NoError(t, err)
	assert.Equal(t, image.Pt(40, 30), decodeFile(t, out).Bounds().Size())
}

func TestTail_KeepsWholeRunes(t *testing.T) {
	out := []byte("ffmpeg: /tmp/job/" + strings.Repeat("видео", 80) + ".mp4: Invalid data")
	got := tail(out, 401)
	assert.True(t, utf8.ValidString(got))
	assert.Equal(t, 402, utf8.RuneCountInString(got))
	assert.True(t, strings.HasSuffix(got, "Invalid data"))

	assert.Equal(t, "short", tail([]byte("  short \n"), 400))
	assert.True(t, utf8.ValidString(tail([]byte{0xd0}, 10)))
}

func TestResultFileName(t *testing.T) {
	assert.Equal(t, "report.pdf", ResultFileName("report.docx", types.FormatPDF))
	assert.Equal(t, "archive.tar.png", ResultFileName("archive.tar.gz", types.FormatPNG))
	assert.Equal(t, "noext.mp4", ResultFileName("noext", types.FormatMP4))
	assert.Equal(t, "converted.jpeg", ResultFileName("  ", types.FormatJPEG))
}

func TestNewOutput_AbortRemovesReservation(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "in.png")
	require.NoError(t, os.WriteFile(src, []byte("x"), 0o600))

	out, err := newOutput(src, types.FormatBMP)
	require.NoError(t, err)
	assert.FileExists(t, out.final)
	assert.FileExists(t, out.tmp)

	out.abort()
	assert.Equal(t, []string{"in.png"}, dirNames(t, dir))
}

func TestPendingOutput_EmptyResultIsCodecError(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "in.png")
	require.NoError(t, os.WriteFile(src, []byte("x"), 0o600))

	out, err := newOutput(src, types.FormatBMP)
	require.NoError(t, err)
	defer out.abort()

	_, err = out.commit()
	assert.ErrorIs(t, err, types.ErrCodec)
}
