package liveness

import (
	"image"
	"math"
	"math/cmplx"
)

// fft2 computes the 2D discrete Fourier transform of a square grayscale
// image whose side is a power of two, by running the radix-2 transform over
// rows and then columns.
func fft2(gray *image.Gray) [][]complex128 {
	size := gray.Bounds().Dx()

	rows := make([][]complex128, size)
	for y := 0; y < size; y++ {
		row := make([]complex128, size)
		for x := 0; x < size; x++ {
			row[x] = complex(px(gray, x, y), 0)
		}
		rows[y] = fft(row)
	}

	col := make([]complex128, size)
	for x := 0; x < size; x++ {
		for y := 0; y < size; y++ {
			col[y] = rows[y][x]
		}
		out := fft(col)
		for y := 0; y < size; y++ {
			rows[y][x] = out[y]
		}
	}

	return rows
}

// fft is an iterative radix-2 Cooley-Tukey transform. len(in) must be a
// power of two.
func fft(in []complex128) []complex128 {
	n := len(in)
	out := make([]complex128, n)

	// Bit-reversal permutation.
	bits := 0
	for 1<<bits < n {
		bits++
	}
	for i := 0; i < n; i++ {
		out[reverseBits(i, bits)] = in[i]
	}

	for width := 2; width <= n; width *= 2 {
		step := cmplx.Exp(complex(0, -2*math.Pi/float64(width)))
		for start := 0; start < n; start += width {
			w := complex(1, 0)
			for k := 0; k < width/2; k++ {
				a := out[start+k]
				b := out[start+k+width/2] * w
				out[start+k] = a + b
				out[start+k+width/2] = a - b
				w *= step
			}
		}
	}

	return out
}

func reverseBits(v, bits int) int {
	r := 0
	for i := 0; i < bits; i++ {
		r = r<<1 | v&1
		v >>= 1
	}
	return r
}

func cmplxAbs(c complex128) float64 {
	return cmplx.Abs(c)
}
