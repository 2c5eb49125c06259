package liveness

import (
	"image"
	"math"
)

// textureScore measures micro-texture via Laplacian variance. Printed photos
// and screens smooth skin texture out, so low variance points at a spoof.
func textureScore(gray *image.Gray) float64 {
	w, h := gray.Bounds().Dx(), gray.Bounds().Dy()
	if w < 3 || h < 3 {
		return 0
	}

	var sum, sumSq float64
	n := 0
	for y := 1; y < h-1; y++ {
		for x := 1; x < w-1; x++ {
			l := 4*px(gray, x, y) - px(gray, x, y-1) - px(gray, x, y+1) - px(gray, x-1, y) - px(gray, x+1, y)
			sum += l
			sumSq += l * l
			n++
		}
	}

	mean := sum / float64(n)
	variance := sumSq/float64(n) - mean*mean
	return math.Min(variance/150.0, 1.0)
}

// frequencyScore runs a 2D FFT over the scaled crop and inspects how much
// spectral energy sits in the highest vertical frequencies. Screen replays
// leave a Moire comb there that natural skin does not.
func frequencyScore(gray *image.Gray) float64 {
	size := gray.Bounds().Dx()
	spectrum := fft2(gray)

	var total, highBand float64
	band := size / 6
	for y := 0; y < size; y++ {
		// Shifted row index: distance from the spectrum center.
		dy := y
		if dy > size/2 {
			dy = size - dy
		}
		for x := 0; x < size; x++ {
			if x == 0 && y == 0 {
				continue // DC component
			}
			mag := cmplxAbs(spectrum[y][x])
			total += mag
			if dy >= size/2-band {
				highBand += mag
			}
		}
	}

	if total == 0 {
		return 0
	}
	ratio := highBand / total
	return 1.0 - math.Min(ratio*10.0, 1.0)
}

// colorEntropyScore averages the Shannon entropy of the three channel
// histograms. Recaptured images lose color depth, which shows up as low
// entropy.
func colorEntropyScore(img image.Image) float64 {
	bounds := img.Bounds()
	n := float64(bounds.Dx() * bounds.Dy())
	if n == 0 {
		return 0
	}

	var hist [3][256]int
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r, g, b, _ := img.At(x, y).RGBA()
			hist[0][r>>8]++
			hist[1][g>>8]++
			hist[2][b>>8]++
		}
	}

	var totalBits float64
	for c := 0; c < 3; c++ {
		for _, count := range hist[c] {
			if count == 0 {
				continue
			}
			p := float64(count) / n
			totalBits -= p * math.Log2(p)
		}
	}

	return math.Min(totalBits/3.0/6.0, 1.0)
}

// sharpnessScore checks that the mean Sobel gradient magnitude sits in the
// band a real face at camera distance produces. Both defocused prints and
// over-sharp screen pixels fall outside it.
func sharpnessScore(gray *image.Gray) float64 {
	w, h := gray.Bounds().Dx(), gray.Bounds().Dy()
	if w < 3 || h < 3 {
		return 0
	}

	var sum float64
	n := 0
	for y := 1; y < h-1; y++ {
		for x := 1; x < w-1; x++ {
			gx := px(gray, x+1, y-1) + 2*px(gray, x+1, y) + px(gray, x+1, y+1) -
				px(gray, x-1, y-1) - 2*px(gray, x-1, y) - px(gray, x-1, y+1)
			gy := px(gray, x-1, y+1) + 2*px(gray, x, y+1) + px(gray, x+1, y+1) -
				px(gray, x-1, y-1) - 2*px(gray, x, y-1) - px(gray, x+1, y-1)
			sum += math.Sqrt(gx*gx + gy*gy)
			n++
		}
	}

	return band(sum/float64(n), 20, 80, 160)
}

// reflectionScore penalizes specular glare (glossy paper, screen glass) and
// rewards the contrast spread of a directly lit face.
func reflectionScore(gray *image.Gray) float64 {
	w, h := gray.Bounds().Dx(), gray.Bounds().Dy()
	n := float64(w * h)
	if n == 0 {
		return 0
	}

	var sum, sumSq float64
	bright := 0
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			v := px(gray, x, y)
			sum += v
			sumSq += v * v
			if v >= 250 {
				bright++
			}
		}
	}

	brightFrac := float64(bright) / n
	glare := 1.0 - math.Min(brightFrac*20.0, 1.0)

	mean := sum / n
	stddev := math.Sqrt(math.Max(sumSq/n-mean*mean, 0))
	contrast := band(stddev, 10, 90, 150)

	return 0.5*glare + 0.5*contrast
}

// band maps v to [0,1]: rising up to lo, flat on [lo,mid], falling to zero
// at hi.
func band(v, lo, mid, hi float64) float64 {
	switch {
	case v <= 0:
		return 0
	case v < lo:
		return v / lo
	case v <= mid:
		return 1
	case v < hi:
		return 1 - (v-mid)/(hi-mid)
	default:
		return 0
	}
}

func px(gray *image.Gray, x, y int) float64 {
	return float64(gray.GrayAt(x, y).Y)
}
