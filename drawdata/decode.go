package drawdata

import (
	"errors"
	"fmt"
	"image"
	"image/color"

	"github.com/unixpickle/drawnet/drawstatus"
)

// DecodeSprite converts the first n rows of a sprite into
// n packed images with intensities in [0, 1].
//
// Row i of the sprite holds the 784 pixels of example i.
// Rows are decoded in bands of chunk rows (the last band
// may be shorter), and a progress update between 20% and
// 50% is reported before each band.
//
// The sprite is assumed to be monochrome; only the red
// channel is read.
func DecodeSprite(img image.Image, n, chunk int, r drawstatus.Reporter) ([]float32, error) {
	if n <= 0 {
		return nil, fmt.Errorf("decode sprite: invalid example count %d", n)
	}
	if chunk <= 0 {
		chunk = n
	}
	bounds := img.Bounds()
	if bounds.Dx() != ImageSize {
		return nil, fmt.Errorf("decode sprite: width should be %d but got %d",
			ImageSize, bounds.Dx())
	}
	if bounds.Dy() < n {
		return nil, fmt.Errorf("decode sprite: need %d rows but got %d", n, bounds.Dy())
	}
	r = drawstatus.OrDiscard(r)

	res := make([]float32, n*ImageSize)
	red := redChannel(img)
	numBands := (n + chunk - 1) / chunk
	for i := 0; i < numBands; i++ {
		r.Report(fmt.Sprintf("Processing image chunk %d/%d...", i+1, numBands),
			20+float64(i)/float64(numBands)*30)
		start := i * chunk
		rows := chunk
		if start+rows > n {
			rows = n - start
		}
		band := res[start*ImageSize : (start+rows)*ImageSize]
		for y := 0; y < rows; y++ {
			row := band[y*ImageSize : (y+1)*ImageSize]
			py := bounds.Min.Y + start + y
			for x := range row {
				row[x] = float32(red(bounds.Min.X+x, py)) / 255
			}
		}
	}
	return res, nil
}

// DecodeLabels views the first n one-hot rows of a raw
// label buffer.
// The bytes are used as-is.
func DecodeLabels(raw []byte, n int) ([]uint8, error) {
	if n <= 0 {
		return nil, fmt.Errorf("decode labels: invalid example count %d", n)
	}
	if len(raw) < n*NumClasses {
		return nil, fmt.Errorf("decode labels: need %d bytes but got %d",
			n*NumClasses, len(raw))
	}
	return raw[:n*NumClasses], nil
}

// SplitData copies the examples [0, nTrain) into the
// train split and [nTrain, nTrain+nTest) into the test
// split, preserving order.
func SplitData(images []float32, labels []uint8, nTrain, nTest int) (train, test Split, err error) {
	if nTrain < 0 || nTest < 0 {
		return train, test, errors.New("split data: negative split size")
	}
	total := nTrain + nTest
	if len(images) < total*ImageSize || len(labels) < total*NumClasses {
		return train, test, fmt.Errorf("split data: %d examples requested but only %d available",
			total, minInt(len(images)/ImageSize, len(labels)/NumClasses))
	}
	train = Split{
		Images: append([]float32{}, images[:nTrain*ImageSize]...),
		Labels: append([]uint8{}, labels[:nTrain*NumClasses]...),
		Count:  nTrain,
	}
	test = Split{
		Images: append([]float32{}, images[nTrain*ImageSize:total*ImageSize]...),
		Labels: append([]uint8{}, labels[nTrain*NumClasses:total*NumClasses]...),
		Count:  nTest,
	}
	return train, test, nil
}

func redChannel(img image.Image) func(x, y int) uint8 {
	switch img := img.(type) {
	case *image.Gray:
		return func(x, y int) uint8 {
			return img.Pix[img.PixOffset(x, y)]
		}
	case *image.NRGBA:
		return func(x, y int) uint8 {
			return img.Pix[img.PixOffset(x, y)]
		}
	case *image.RGBA:
		return func(x, y int) uint8 {
			off := img.PixOffset(x, y)
			if img.Pix[off+3] == 0xff {
				return img.Pix[off]
			}
			return unpremultipliedRed(img.At(x, y))
		}
	default:
		return func(x, y int) uint8 {
			return unpremultipliedRed(img.At(x, y))
		}
	}
}

func unpremultipliedRed(c color.Color) uint8 {
	return color.NRGBAModel.Convert(c).(color.NRGBA).R
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
