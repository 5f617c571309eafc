package dispatcher

import (
	"context"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/jung-kurt/gofpdf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BatmanBruc/convert-bot/internal/converter"
	"github.com/BatmanBruc/convert-bot/internal/formats"
	"github.com/BatmanBruc/convert-bot/types"
)

type fakeConverter struct {
	calls atomic.Int32
	out   string
	err   error
	panic any
}

func (f *fakeConverter) do() (string, error) {
	f.calls.Add(1)
	if f.panic != nil {
		panic(f.panic)
	}
	return f.out, f.err
}

func (f *fakeConverter) ConvertImage(context.Context, string, types.Format) (string, error) {
	return f.do()
}

func (f *fakeConverter) ConvertVideo(context.Context, string, types.Format) (string, error) {
	return f.do()
}

func (f *fakeConverter) ConvertPdfToDocx(context.Context, string) (string, error) { return f.do() }

func (f *fakeConverter) ConvertDocxToPdf(context.Context, string) (string, error) { return f.do() }

func spec(c types.Category, f types.Format) types.FormatSpec {
	return types.FormatSpec{Category: c, Format: f}
}

func touch(t *testing.T, dir, name string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte("data"), 0o600))
	return p
}

func TestDispatch_RejectsDisallowedPairsWithoutIO(t *testing.T) {
	fake := &fakeConverter{}
	d := New(formats.Default(), fake, nil)

	// The input path does not exist: a rejection that touched the filesystem would
	// surface as InvalidInput instead.
	missing := filepath.Join(t.TempDir(), "nope")
	tests := []struct {
		name   string
		input  string
		target types.FormatSpec
		want   types.Kind
	}{
		{"png for video", missing + ".mp4", spec(types.CategoryVideo, types.FormatPNG), types.KindUnsupportedFormat},
		{"webp image", missing + ".png", spec(types.CategoryImage, types.FormatWEBP), types.KindUnsupportedFormat},
		{"mp4 document", missing + ".pdf", spec(types.CategoryDocument, types.FormatMP4), types.KindUnsupportedFormat},
		{"unknown category", missing + ".mp3", spec(types.Category("audio"), types.FormatMP4), types.KindUnsupportedFormat},
		{"docx to docx", missing + ".docx", spec(types.CategoryDocument, types.FormatDOCX), types.KindUnsupportedConversion},
		{"pdf to pdf", missing + ".pdf", spec(types.CategoryDocument, types.FormatPDF), types.KindUnsupportedConversion},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := d.Dispatch(context.Background(), types.ConversionRequest{InputPath: tt.input, Target: tt.target})
			assert.Nil(t, res)
			assert.Equal(t, tt.want, types.KindOf(err))
		})
	}
	assert.Zero(t, fake.calls.Load())
}

func TestDispatch_TextUploadForDocumentIsInvalidInput(t *testing.T) {
	fake := &fakeConverter{}
	d := New(nil, fake, nil)
	input := touch(t, t.TempDir(), "notes.txt")

	_, err := d.Dispatch(context.Background(), types.ConversionRequest{
		InputPath: input, OriginalName: "notes.txt", Target: spec(types.CategoryDocument, types.FormatPDF),
	})
	assert.ErrorIs(t, err, types.ErrInvalidInput)
	assert.Zero(t, fake.calls.Load())
}

func TestDispatch_InputValidation(t *testing.T) {
	fake := &fakeConverter{}
	d := New(nil, fake, nil)
	dir := t.TempDir()

	_, err := d.Dispatch(context.Background(), types.ConversionRequest{InputPath: filepath.Join(dir, "gone.png"), Target: spec(types.CategoryImage, types.FormatBMP)})
	assert.ErrorIs(t, err, types.ErrInvalidInput)

	_, err = d.Dispatch(context.Background(), types.ConversionRequest{InputPath: dir, Target: spec(types.CategoryImage, types.FormatBMP)})
	assert.ErrorIs(t, err, types.ErrInvalidInput)

	_, err = d.Dispatch(context.Background(), types.ConversionRequest{Target: spec(types.CategoryImage, types.FormatBMP)})
	assert.ErrorIs(t, err, types.ErrInvalidInput)

	assert.Zero(t, fake.calls.Load())
}

func TestDispatch_RoutesDocumentsByDirection(t *testing.T) {
	dir := t.TempDir()
	fake := &fakeConverter{out: filepath.Join(dir, "out")}
	d := New(nil, fake, nil)

	res, err := d.Dispatch(context.Background(), types.ConversionRequest{
		InputPath: touch(t, dir, "contract.docx"), OriginalName: "Contract.DOCX", Target: spec(types.CategoryDocument, types.FormatPDF),
	})
	require.NoError(t, err)
	assert.Equal(t, "Contract.pdf", res.FileName)
	assert.Equal(t, int32(1), fake.calls.Load())
}

func TestDispatch_NormalizesUnclassifiedFailures(t *testing.T) {
	dir := t.TempDir()
	input := touch(t, dir, "a.png")

	fake := &fakeConverter{err: errors.New("disk on fire")}
	_, err := New(nil, fake, nil).Dispatch(context.Background(), types.ConversionRequest{InputPath: input, Target: spec(types.CategoryImage, types.FormatBMP)})
	require.Error(t, err)
	var typed *types.Error
	require.ErrorAs(t, err, &typed)
	assert.Equal(t, types.KindInternalError, typed.Kind)
	assert.Contains(t, typed.Error(), "disk on fire")

	panicking := &fakeConverter{panic: "boom"}
	_, err = New(nil, panicking, nil).Dispatch(context.Background(), types.ConversionRequest{InputPath: input, Target: spec(types.CategoryImage, types.FormatBMP)})
	assert.ErrorIs(t, err, types.ErrInternal)
	assert.Contains(t, err.Error(), "boom")
}

func TestDispatch_PropagatesTypedFailures(t *testing.T) {
	input := touch(t, t.TempDir(), "clip.mp4")
	fake := &fakeConverter{err: types.Errorf(types.KindDependencyUnavailable, "ffmpeg is not installed")}

	_, err := New(nil, fake, nil).Dispatch(context.Background(), types.ConversionRequest{InputPath: input, Target: spec(types.CategoryVideo, types.FormatMKV)})
	assert.ErrorIs(t, err, types.ErrDependencyUnavailable)
	assert.Contains(t, err.Error(), "ffmpeg is not installed")
}

func writeJPEG(t *testing.T, path string) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for i := range img.Pix {
		img.Pix[i] = uint8(i)
	}
	img.Set(0, 0, color.White)
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, jpeg.Encode(f, img, nil))
	require.NoError(t, f.Close())
}

func TestDispatch_PhotoToPNG(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "holiday.jpg")
	writeJPEG(t, input)

	d := New(nil, converter.NewDefaultConverter(converter.Config{}), nil)
	res, err := d.Dispatch(context.Background(), types.ConversionRequest{
		InputPath: input, OriginalName: "holiday.jpg", Target: spec(types.CategoryImage, types.FormatPNG),
	})
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(res.OutputPath, ".png"))
	assert.Equal(t, "holiday.png", res.FileName)
	assert.FileExists(t, input)
}

func TestDispatch_TwiceYieldsIndependentOutputs(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "cat.jpg")
	writeJPEG(t, input)
	d := New(nil, converter.NewDefaultConverter(converter.Config{}), nil)
	req := types.ConversionRequest{InputPath: input, Target: spec(types.CategoryImage, types.FormatBMP)}

	first, err := d.Dispatch(context.Background(), req)
	require.NoError(t, err)
	second, err := d.Dispatch(context.Background(), req)
	require.NoError(t, err)

	assert.NotEqual(t, first.OutputPath, second.OutputPath)
	for _, p := range []string{first.OutputPath, second.OutputPath} {
		f, err := os.Open(p) //nolint:gosec // test path
		require.NoError(t, err)
		_, _, err = image.Decode(f)
		_ = f.Close()
		require.NoError(t, err)
	}
}

type pathRecorder struct {
	fakeConverter
	seen    string
	existed bool
}

func (p *pathRecorder) ConvertPdfToDocx(_ context.Context, in string) (string, error) {
	p.seen = in
	_, err := os.Stat(in)
	p.existed = err == nil
	return p.do()
}

func TestDispatch_ExtensionlessLocalPathUsesOriginalName(t *testing.T) {
	dir := t.TempDir()
	input := touch(t, dir, "file_42")
	rec := &pathRecorder{fakeConverter: fakeConverter{out: filepath.Join(dir, "file_42.docx")}}
	d := New(nil, rec, nil)

	res, err := d.Dispatch(context.Background(), types.ConversionRequest{
		InputPath: input, OriginalName: "report.pdf", Target: spec(types.CategoryDocument, types.FormatDOCX),
	})
	require.NoError(t, err)
	assert.Equal(t, "report.docx", res.FileName)
	assert.Equal(t, filepath.Join(dir, "file_42.pdf"), rec.seen)
	assert.True(t, rec.existed, "converter sees the aliased input")
	assert.NoFileExists(t, rec.seen, "alias removed after conversion")
	assert.FileExists(t, input)
}

func TestDispatch_AliasDoesNotClobberSibling(t *testing.T) {
	dir := t.TempDir()
	input := touch(t, dir, "upload")
	taken := touch(t, dir, "upload.pdf")
	rec := &pathRecorder{fakeConverter: fakeConverter{out: filepath.Join(dir, "x.docx")}}

	_, err := New(nil, rec, nil).Dispatch(context.Background(), types.ConversionRequest{
		InputPath: input, OriginalName: "scan.pdf", Target: spec(types.CategoryDocument, types.FormatDOCX),
	})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "upload-1.pdf"), rec.seen)
	assert.FileExists(t, taken)
}

func TestDispatch_ExtensionlessPDFConvertsForReal(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.pdf")
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetCompression(false)
	pdf.SetFont("Helvetica", "", 12)
	pdf.AddPage()
	pdf.Cell(0, 8, "Quarterly report")
	require.NoError(t, pdf.OutputFileAndClose(src))
	input := filepath.Join(dir, "file_42")
	require.NoError(t, os.Rename(src, input))

	d := New(nil, converter.NewDefaultConverter(converter.Config{}), nil)
	res, err := d.Dispatch(context.Background(), types.ConversionRequest{
		InputPath: input, OriginalName: "report.pdf", Target: spec(types.CategoryDocument, types.FormatDOCX),
	})
	require.NoError(t, err)
	assert.Equal(t, ".docx", filepath.Ext(res.OutputPath))
	assert.FileExists(t, res.OutputPath)
	assert.NoFileExists(t, filepath.Join(dir, "file_42.pdf"))
}
