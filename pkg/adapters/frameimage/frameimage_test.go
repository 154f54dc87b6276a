package frameimage

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/png"
	"path/filepath"
	"testing"

	"github.com/user/codecbridge/pkg/media"
)

func testFrame(t *testing.T, w, h int, format media.PixelFormat, data []byte) *media.RawFrame {
	t.Helper()
	f, err := media.NewRawFrame(data, media.RawFrameInit{
		Timestamp:   media.At(0),
		CodedWidth:  w,
		CodedHeight: h,
		Format:      format,
	})
	if err != nil {
		t.Fatalf("NewRawFrame failed: %v", err)
	}
	return f
}

func TestToImageI420(t *testing.T) {
	const w, h = 4, 2
	data := []byte{
		10, 11, 12, 13,
		14, 15, 16, 17,
		100, 101, // U
		200, 201, // V
	}

	img, err := ToImage(testFrame(t, w, h, media.PixelFormatI420, data))
	if err != nil {
		t.Fatalf("ToImage failed: %v", err)
	}
	if img.Bounds().Dx() != w || img.Bounds().Dy() != h {
		t.Fatalf("Unexpected bounds: %v", img.Bounds())
	}
	if got := img.YCbCrAt(1, 1); got.Y != 15 || got.Cb != 100 || got.Cr != 200 {
		t.Errorf("Unexpected pixel (1,1): %+v", got)
	}
	if got := img.YCbCrAt(3, 0); got.Cb != 101 || got.Cr != 201 {
		t.Errorf("Unexpected pixel (3,0): %+v", got)
	}
}

func TestToImageNV12(t *testing.T) {
	data := []byte{
		1, 2, 3, 4,
		5, 6, 7, 8,
		100, 200, 101, 201, // interleaved UV
	}

	img, err := ToImage(testFrame(t, 4, 2, media.PixelFormatNV12, data))
	if err != nil {
		t.Fatalf("ToImage failed: %v", err)
	}
	if got := img.YCbCrAt(2, 1); got.Y != 7 || got.Cb != 101 || got.Cr != 201 {
		t.Errorf("Unexpected pixel (2,1): %+v", got)
	}
}

func TestToImageShortBuffer(t *testing.T) {
	_, err := ToImage(testFrame(t, 4, 4, media.PixelFormatI420, make([]byte, 10)))
	if !errors.Is(err, media.ErrInvalidArgument) {
		t.Errorf("Expected ErrInvalidArgument, got %v", err)
	}
}

func TestFromImageRoundTrip(t *testing.T) {
	const w, h = 8, 6
	data := make([]byte, media.I420Size(w, h))
	for i := range data {
		data[i] = byte(i * 3)
	}

	img, err := ToImage(testFrame(t, w, h, media.PixelFormatI420, data))
	if err != nil {
		t.Fatalf("ToImage failed: %v", err)
	}
	if got := FromImage(img); !bytes.Equal(got, data) {
		t.Error("YCbCr round trip changed the buffer")
	}
}

func TestFromImageRGBA(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			img.Set(x, y, color.RGBA{R: 255, A: 255})
		}
	}

	out := FromImage(img)
	if len(out) != media.I420Size(4, 4) {
		t.Fatalf("Expected %d bytes, got %d", media.I420Size(4, 4), len(out))
	}
	wantY, wantCb, wantCr := color.RGBToYCbCr(255, 0, 0)
	if out[0] != wantY || out[16] != wantCb || out[20] != wantCr {
		t.Errorf("Unexpected conversion: y=%d cb=%d cr=%d", out[0], out[16], out[20])
	}
}

func TestThumbnail(t *testing.T) {
	f := testFrame(t, 64, 48, media.PixelFormatI420, make([]byte, media.I420Size(64, 48)))

	thumb, err := Thumbnail(f, 32)
	if err != nil {
		t.Fatalf("Thumbnail failed: %v", err)
	}
	if thumb.Bounds().Dx() != 32 || thumb.Bounds().Dy() != 24 {
		t.Errorf("Expected 32x24, got %v", thumb.Bounds())
	}

	full, err := Thumbnail(f, 0)
	if err != nil {
		t.Fatalf("Thumbnail failed: %v", err)
	}
	if full.Bounds().Dx() != 64 {
		t.Errorf("Expected full width, got %d", full.Bounds().Dx())
	}
}

func TestSavePNG(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	path := filepath.Join(t.TempDir(), "frame.png")

	if err := SavePNG(path, img); err != nil {
		t.Fatalf("SavePNG failed: %v", err)
	}

	var buf bytes.Buffer
	if err := WritePNG(&buf, img); err != nil {
		t.Fatalf("WritePNG failed: %v", err)
	}
	if _, err := png.Decode(&buf); err != nil {
		t.Errorf("Output is not a PNG: %v", err)
	}
}
