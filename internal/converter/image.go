package converter

import (
	"context"
	"image"
	"image/color"
	"image/draw"
	_ "image/gif"
	"image/jpeg"
	"image/png"
	"io"

	"golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/BatmanBruc/convert-bot/internal/formats"
	"github.com/BatmanBruc/convert-bot/types"
)

const jpegQuality = 95

// maxImagePixels bounds width*height before any pixel buffer is allocated.
const maxImagePixels = 50_000_000

// ConvertImage decodes any registered bitmap format and re-encodes it as format.
func (c *DefaultConverter) ConvertImage(ctx context.Context, inputPath string, format types.Format) (string, error) {
	if !formats.Default().IsAllowed(types.CategoryImage, format) {
		return "", types.Errorf(types.KindUnsupportedFormat, "unsupported image format %q", format)
	}

	src, err := openInput(inputPath)
	if err != nil {
		return "", err
	}
	img, srcFormat, err := decodeBounded(src)
	_ = src.Close()
	if err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", types.Wrap(types.KindInternalError, err, "image conversion interrupted")
	}

	out, err := newOutput(inputPath, format)
	if err != nil {
		return "", err
	}
	defer out.abort()

	f, err := out.create()
	if err != nil {
		return "", err
	}
	if err := encodeImage(f, img, format); err != nil {
		_ = f.Close()
		return "", types.Wrap(types.KindCodecError, err, "encode %s", format)
	}
	if err := f.Close(); err != nil {
		return "", types.Wrap(types.KindInternalError, err, "flush image")
	}

	path, err := out.commit()
	if err != nil {
		return "", err
	}
	c.log.Debug("image converted", "from", srcFormat, "to", format, "path", path)
	return path, nil
}

// decodeBounded reads the header first and refuses images whose declared size exceeds
// maxImagePixels, since decoders allocate the full bitmap from the header alone.
func decodeBounded(src io.ReadSeeker) (image.Image, string, error) {
	cfg, _, err := image.DecodeConfig(src)
	if err != nil {
		return nil, "", types.Wrap(types.KindCodecError, err, "decode image header")
	}
	if cfg.Width <= 0 || cfg.Height <= 0 || int64(cfg.Width)*int64(cfg.Height) > maxImagePixels {
		return nil, "", types.Errorf(types.KindCodecError, "image is %dx%d, the limit is %d pixels", cfg.Width, cfg.Height, maxImagePixels)
	}
	if _, err := src.Seek(0, io.SeekStart); err != nil {
		return nil, "", types.Wrap(types.KindInternalError, err, "rewind input")
	}
	img, srcFormat, err := image.Decode(src)
	if err != nil {
		return nil, "", types.Wrap(types.KindCodecError, err, "decode image")
	}
	return img, srcFormat, nil
}

func encodeImage(w io.Writer, img image.Image, format types.Format) error {
	switch format {
	case types.FormatPNG:
		return png.Encode(w, img)
	case types.FormatBMP:
		return bmp.Encode(w, img)
	case types.FormatJPEG, types.FormatJFIF:
		return jpeg.Encode(w, flatten(img), &jpeg.Options{Quality: jpegQuality})
	case types.FormatICO:
		return encodeICO(w, img)
	default:
		return types.Errorf(types.KindUnsupportedFormat, "no encoder for %q", format)
	}
}

// flatten composes transparent pixels over white; JPEG has no alpha channel.
func flatten(img image.Image) image.Image {
	if opaque, ok := img.(interface{ Opaque() bool }); ok && opaque.Opaque() {
		return img
	}
	b := img.Bounds()
	dst := image.NewRGBA(b)
	draw.Draw(dst, b, &image.Uniform{C: color.White}, image.Point{}, draw.Src)
	draw.Draw(dst, b, img, b.Min, draw.Over)
	return dst
}
