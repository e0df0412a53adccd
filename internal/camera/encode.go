package camera

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"

	"hubd/internal/proto"
)

// rgbImage adapts a packed-RGB raw frame to image.Image without copying the
// pixel buffer.
type rgbImage struct {
	frame proto.RawFrame
}

func (m rgbImage) ColorModel() color.Model { return color.RGBAModel }

func (m rgbImage) Bounds() image.Rectangle {
	return image.Rect(0, 0, m.frame.Width, m.frame.Height)
}

func (m rgbImage) At(x, y int) color.Color {
	i := (y*m.frame.Width + x) * 3
	return color.RGBA{R: m.frame.Pixels[i], G: m.frame.Pixels[i+1], B: m.frame.Pixels[i+2], A: 255}
}

// downscale reduces frame to at most maxWidth by integer-stride sampling.
// Returns the frame unchanged when already narrow enough.
func downscale(frame proto.RawFrame, maxWidth int) proto.RawFrame {
	if maxWidth <= 0 || frame.Width <= maxWidth {
		return frame
	}
	stride := (frame.Width + maxWidth - 1) / maxWidth
	w := frame.Width / stride
	h := frame.Height / stride
	pixels := make([]byte, w*h*3)
	for y := 0; y < h; y++ {
		srcRow := y * stride * frame.Width * 3
		dstRow := y * w * 3
		for x := 0; x < w; x++ {
			src := srcRow + x*stride*3
			dst := dstRow + x*3
			copy(pixels[dst:dst+3], frame.Pixels[src:src+3])
		}
	}
	return proto.RawFrame{Width: w, Height: h, Pixels: pixels}
}

// encodeJPEG compresses a raw frame at the given quality.
func encodeJPEG(frame proto.RawFrame, quality int) ([]byte, error) {
	if len(frame.Pixels) < frame.Width*frame.Height*3 {
		return nil, fmt.Errorf("short pixel buffer: %d bytes for %dx%d", len(frame.Pixels), frame.Width, frame.Height)
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, rgbImage{frame: frame}, &jpeg.Options{Quality: quality}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
