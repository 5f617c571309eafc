package converter

import (
	"bytes"
	"encoding/binary"
	"image"
	"image/png"
	"io"

	xdraw "golang.org/x/image/draw"
)

const maxIconSide = 256

// encodeICO writes a single-image icon with a PNG payload, scaling the source down so
// neither side exceeds 256px.
func encodeICO(w io.Writer, img image.Image) error {
	img = fitIcon(img)
	b := img.Bounds()

	var payload bytes.Buffer
	if err := png.Encode(&payload, img); err != nil {
		return err
	}

	// ICONDIR
	header := struct {
		Reserved uint16
		Type     uint16
		Count    uint16
	}{Type: 1, Count: 1}
	// ICONDIRENTRY; width/height 0 mean 256.
	entry := struct {
		Width       uint8
		Height      uint8
		ColorCount  uint8
		Reserved    uint8
		Planes      uint16
		BitCount    uint16
		BytesInRes  uint32
		ImageOffset uint32
	}{
		Width:       iconDim(b.Dx()),
		Height:      iconDim(b.Dy()),
		Planes:      1,
		BitCount:    32,
		BytesInRes:  uint32(payload.Len()),
		ImageOffset: 6 + 16,
	}

	if err := binary.Write(w, binary.LittleEndian, header); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, entry); err != nil {
		return err
	}
	_, err := w.Write(payload.Bytes())
	return err
}

func iconDim(n int) uint8 {
	if n >= maxIconSide {
		return 0
	}
	return uint8(n)
}

func fitIcon(img image.Image) image.Image {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= maxIconSide && h <= maxIconSide {
		return img
	}
	if w >= h {
		h = max(1, h*maxIconSide/w)
		w = maxIconSide
	} else {
		w = max(1, w*maxIconSide/h)
		h = maxIconSide
	}
	dst := image.NewNRGBA(image.Rect(0, 0, w, h))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), img, b, xdraw.Over, nil)
	return dst
}
