package fingerprint

import (
	"encoding/hex"
	"image"

	"golang.org/x/image/draw"
)

// grayGrid downsamples src to a size x size grayscale grid.
func grayGrid(src image.Image, size int) *image.Gray {
	dst := image.NewGray(image.Rect(0, 0, size, size))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)
	return dst
}

// averageHash binarizes each pixel against the grid's mean intensity and packs
// the bits MSB first. Keeping the raw bits (rather than a digest of them) makes
// Hamming distance between tokens meaningful.
func averageHash(grid *image.Gray) string {
	pixels := grayPixels(grid)
	if len(pixels) == 0 {
		return ""
	}
	var sum int
	for _, p := range pixels {
		sum += int(p)
	}
	mean := float64(sum) / float64(len(pixels))

	packed := make([]byte, (len(pixels)+7)/8)
	for i, p := range pixels {
		if float64(p) > mean {
			packed[i/8] |= 0x80 >> uint(i%8)
		}
	}
	return hex.EncodeToString(packed)
}

// grayPixels returns the grid's pixels in row-major order without stride padding.
func grayPixels(grid *image.Gray) []byte {
	bounds := grid.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	out := make([]byte, 0, width*height)
	for y := 0; y < height; y++ {
		offset := grid.PixOffset(bounds.Min.X, bounds.Min.Y+y)
		out = append(out, grid.Pix[offset:offset+width]...)
	}
	return out
}
