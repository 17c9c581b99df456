package graphics

import (
	"image/png"
	"os"
	"path/filepath"
	"testing"
)

func testFrame() []uint32 {
	frame := make([]uint32, FrameWidth*FrameHeight)
	for y := 0; y < FrameHeight; y++ {
		for x := 0; x < FrameWidth; x++ {
			frame[y*FrameWidth+x] = 0xFF000000 | uint32(x)<<16 | uint32(y)<<8 | 0x40
		}
	}
	return frame
}

func TestFrameImage(t *testing.T) {
	img, err := FrameImage(testFrame())
	if err != nil {
		t.Fatal(err)
	}
	c := img.RGBAAt(10, 20)
	if c.R != 10 || c.G != 20 || c.B != 0x40 || c.A != 0xFF {
		t.Errorf("Expected (10,20,64,255), got %v", c)
	}

	if _, err := FrameImage(make([]uint32, 10)); err == nil {
		t.Error("Expected error for short frame")
	}
}

func TestScaleFrame_NearestNeighbour(t *testing.T) {
	img, err := ScaleFrame(testFrame(), 3)
	if err != nil {
		t.Fatal(err)
	}
	if b := img.Bounds(); b.Dx() != 768 || b.Dy() != 720 {
		t.Fatalf("Expected 768x720, got %dx%d", b.Dx(), b.Dy())
	}
	for _, p := range [][2]int{{30, 60}, {31, 61}, {32, 62}} {
		c := img.RGBAAt(p[0], p[1])
		if c.R != 10 || c.G != 20 {
			t.Errorf("Pixel %v: expected source pixel (10,20), got (%d,%d)", p, c.R, c.G)
		}
	}
}

func TestSaveScreenshot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "shot.png")
	if err := SaveScreenshot(path, testFrame(), 2); err != nil {
		t.Fatalf("SaveScreenshot failed: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	img, err := png.Decode(f)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 512 || b.Dy() != 480 {
		t.Errorf("Expected 512x480, got %dx%d", b.Dx(), b.Dy())
	}
}
