// Package frameimage converts raw 4:2:0 frames to and from image.Image.
package frameimage

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"os"

	"golang.org/x/image/draw"

	"github.com/user/codecbridge/pkg/media"
)

// ToImage wraps a planar frame as an *image.YCbCr.
// NV12 chroma is de-interleaved into separate planes.
func ToImage(f *media.RawFrame) (*image.YCbCr, error) {
	if f == nil || f.Closed() {
		return nil, fmt.Errorf("%w: frame is nil or closed", media.ErrInvalidArgument)
	}

	w, h := f.CodedWidth, f.CodedHeight
	cw, ch := (w+1)/2, (h+1)/2
	need := w*h + 2*cw*ch
	if len(f.Data) < need {
		return nil, fmt.Errorf("%w: frame has %d bytes, %dx%d needs %d",
			media.ErrInvalidArgument, len(f.Data), w, h, need)
	}

	img := image.NewYCbCr(image.Rect(0, 0, w, h), image.YCbCrSubsampleRatio420)
	copy(img.Y, f.Data[:w*h])

	chroma := f.Data[w*h : need]
	switch f.Format {
	case media.PixelFormatNV12:
		for i := 0; i < cw*ch; i++ {
			img.Cb[i] = chroma[2*i]
			img.Cr[i] = chroma[2*i+1]
		}
	default:
		copy(img.Cb, chroma[:cw*ch])
		copy(img.Cr, chroma[cw*ch:])
	}
	return img, nil
}

// FromImage converts img to an I420 buffer.
func FromImage(img image.Image) []byte {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	cw, ch := (w+1)/2, (h+1)/2
	out := make([]byte, w*h+2*cw*ch)

	if ycc, ok := img.(*image.YCbCr); ok && ycc.SubsampleRatio == image.YCbCrSubsampleRatio420 {
		copyYCbCr(out, ycc, w, h, cw, ch)
		return out
	}

	yPlane := out[:w*h]
	uPlane := out[w*h : w*h+cw*ch]
	vPlane := out[w*h+cw*ch:]
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			r, g, bl, _ := img.At(b.Min.X+x, b.Min.Y+y).RGBA()
			yy, cb, cr := color.RGBToYCbCr(uint8(r>>8), uint8(g>>8), uint8(bl>>8))
			yPlane[y*w+x] = yy
			// top-left sample of each 2x2 block carries the chroma
			if x%2 == 0 && y%2 == 0 {
				uPlane[(y/2)*cw+x/2] = cb
				vPlane[(y/2)*cw+x/2] = cr
			}
		}
	}
	return out
}

func copyYCbCr(out []byte, img *image.YCbCr, w, h, cw, ch int) {
	for y := 0; y < h; y++ {
		row := img.YOffset(img.Rect.Min.X, img.Rect.Min.Y+y)
		copy(out[y*w:(y+1)*w], img.Y[row:row+w])
	}
	u := out[w*h : w*h+cw*ch]
	v := out[w*h+cw*ch:]
	for y := 0; y < ch; y++ {
		row := img.COffset(img.Rect.Min.X, img.Rect.Min.Y+2*y)
		copy(u[y*cw:(y+1)*cw], img.Cb[row:row+cw])
		copy(v[y*cw:(y+1)*cw], img.Cr[row:row+cw])
	}
}

// Thumbnail renders f scaled to at most maxWidth pixels wide.
func Thumbnail(f *media.RawFrame, maxWidth int) (image.Image, error) {
	src, err := ToImage(f)
	if err != nil {
		return nil, err
	}

	w, h := f.CodedWidth, f.CodedHeight
	if maxWidth > 0 && w > maxWidth {
		h = h * maxWidth / w
		w = maxWidth
	}
	if h < 1 {
		h = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Over, nil)
	return dst, nil
}

// WritePNG encodes img as PNG.
func WritePNG(w io.Writer, img image.Image) error {
	if err := png.Encode(w, img); err != nil {
		return fmt.Errorf("encode PNG: %w", err)
	}
	return nil
}

// SavePNG writes img to path as PNG.
func SavePNG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create file: %w", err)
	}
	if err := WritePNG(f, img); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
