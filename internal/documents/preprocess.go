package documents

import (
	"image"

	"golang.org/x/image/draw"
)

// Grayscale converts img to 8-bit luminance
func Grayscale(img image.Image) *image.Gray {
	b := img.Bounds()
	gray := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(gray, gray.Bounds(), img, b.Min, draw.Src)
	return gray
}

// OtsuThreshold returns the global threshold that maximizes between-class variance.
// Pixels with value > threshold belong to the foreground class.
func OtsuThreshold(gray *image.Gray) uint8 {
	var hist [256]int
	b := gray.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		row := gray.Pix[(y-b.Min.Y)*gray.Stride:]
		for x := 0; x < b.Dx(); x++ {
			hist[row[x]]++
		}
	}

	total := b.Dx() * b.Dy()
	if total == 0 {
		return 0
	}

	var sum float64
	for i, c := range hist {
		sum += float64(i * c)
	}

	var (
		sumB      float64
		weightB   int
		best      float64
		threshold int
	)
	for t := 0; t < 256; t++ {
		weightB += hist[t]
		if weightB == 0 {
			continue
		}
		weightF := total - weightB
		if weightF == 0 {
			break
		}
		sumB += float64(t * hist[t])

		meanB := sumB / float64(weightB)
		meanF := (sum - sumB) / float64(weightF)
		between := float64(weightB) * float64(weightF) * (meanB - meanF) * (meanB - meanF)
		if between > best {
			best = between
			threshold = t
		}
	}
	return uint8(threshold)
}

// Binarize maps every pixel to 0 or 255 using an Otsu threshold
func Binarize(gray *image.Gray) *image.Gray {
	t := OtsuThreshold(gray)
	b := gray.Bounds()
	out := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := 0; y < b.Dy(); y++ {
		src := gray.Pix[y*gray.Stride : y*gray.Stride+b.Dx()]
		dst := out.Pix[y*out.Stride : y*out.Stride+b.Dx()]
		for x, v := range src {
			if v > t {
				dst[x] = 255
			}
		}
	}
	return out
}

// PrepareForOCR runs the grayscale and binarization steps
func PrepareForOCR(img image.Image) *image.Gray {
	return Binarize(Grayscale(img))
}
