package graphics

import (
	"image"
	"image/png"
	"os"

	"github.com/pkg/errors"
	"golang.org/x/image/draw"
)

// FrameImage converts a frame of 0xAARRGGBB pixels to an opaque RGBA image.
func FrameImage(frame []uint32) (*image.RGBA, error) {
	if len(frame) != FrameWidth*FrameHeight {
		return nil, errors.Errorf("graphics: frame has %d pixels", len(frame))
	}
	img := image.NewRGBA(image.Rect(0, 0, FrameWidth, FrameHeight))
	writeRGBA(img.Pix, frame)
	return img, nil
}

// writeRGBA unpacks 0xAARRGGBB pixels into an RGBA byte slice, forcing alpha.
func writeRGBA(pix []uint8, frame []uint32) {
	for i, p := range frame {
		o := i * 4
		pix[o] = uint8(p >> 16)
		pix[o+1] = uint8(p >> 8)
		pix[o+2] = uint8(p)
		pix[o+3] = 0xFF
	}
}

// ScaleFrame returns the frame enlarged by an integer factor with
// nearest-neighbour sampling, keeping pixels square and sharp.
func ScaleFrame(frame []uint32, scale int) (*image.RGBA, error) {
	src, err := FrameImage(frame)
	if err != nil {
		return nil, err
	}
	if scale <= 1 {
		return src, nil
	}
	dst := image.NewRGBA(image.Rect(0, 0, FrameWidth*scale, FrameHeight*scale))
	draw.NearestNeighbor.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)
	return dst, nil
}

// SaveScreenshot writes the frame to path as a PNG.
func SaveScreenshot(path string, frame []uint32, scale int) error {
	img, err := ScaleFrame(frame, scale)
	if err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "graphics: create screenshot")
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return errors.Wrap(err, "graphics: encode screenshot")
	}
	return f.Close()
}
