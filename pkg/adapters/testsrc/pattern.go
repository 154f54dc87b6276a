// Package testsrc renders synthetic frames for demos and load tests.
package testsrc

import (
	"fmt"
	"image/color"

	"github.com/fogleman/gg"
	"golang.org/x/image/font/basicfont"

	"github.com/user/codecbridge/pkg/adapters/frameimage"
	"github.com/user/codecbridge/pkg/media"
)

// Pattern renders moving gradient frames with a frame number overlay.
type Pattern struct {
	Width  int
	Height int
	FPS    float64
}

// FrameDurationMicros returns the duration of one frame.
func (p Pattern) FrameDurationMicros() int64 {
	fps := p.FPS
	if fps <= 0 {
		fps = 30
	}
	return int64(1_000_000 / fps)
}

// Frame renders frame n as an I420 RawFrame timestamped n frame durations in.
func (p Pattern) Frame(n int) (*media.RawFrame, error) {
	if p.Width <= 0 || p.Height <= 0 {
		return nil, fmt.Errorf("%w: pattern size %dx%d", media.ErrInvalidArgument, p.Width, p.Height)
	}

	dc := gg.NewContext(p.Width, p.Height)
	p.drawGradient(dc, n)
	p.drawOverlay(dc, n)

	dur := p.FrameDurationMicros()
	return media.NewRawFrame(frameimage.FromImage(dc.Image()), media.RawFrameInit{
		Timestamp:   media.At(int64(n) * dur),
		Duration:    dur,
		CodedWidth:  p.Width,
		CodedHeight: p.Height,
		Format:      media.PixelFormatI420,
	})
}

// Frames renders count consecutive frames starting at 0.
func (p Pattern) Frames(count int) ([]*media.RawFrame, error) {
	frames := make([]*media.RawFrame, 0, count)
	for i := 0; i < count; i++ {
		f, err := p.Frame(i)
		if err != nil {
			return nil, err
		}
		frames = append(frames, f)
	}
	return frames, nil
}

func (p Pattern) drawGradient(dc *gg.Context, n int) {
	grad := gg.NewLinearGradient(0, 0, float64(p.Width), float64(p.Height))
	shift := uint8(n * 10)
	grad.AddColorStop(0, color.RGBA{R: shift, G: 64, B: 255 - shift, A: 255})
	grad.AddColorStop(1, color.RGBA{R: 255 - shift, G: 192, B: shift, A: 255})
	dc.SetFillStyle(grad)
	dc.DrawRectangle(0, 0, float64(p.Width), float64(p.Height))
	dc.Fill()

	// Moving box so consecutive frames differ in more than color.
	size := float64(p.Height) / 4
	x := float64((n * 8) % maxInt(p.Width, 1))
	dc.SetColor(color.White)
	dc.DrawRectangle(x, float64(p.Height)/2-size/2, size, size)
	dc.Fill()
}

func (p Pattern) drawOverlay(dc *gg.Context, n int) {
	dc.SetFontFace(basicfont.Face7x13)
	dc.SetColor(color.Black)
	dc.DrawStringAnchored(fmt.Sprintf("frame %d", n), 8, 8, 0, 1)
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
