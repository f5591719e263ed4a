package luminance

import "math"

const (
	// SampleStride 按缓冲区顺序每4个像素取样1个
	SampleStride = 4
	// BytesPerPixel RGB三元组
	BytesPerPixel = 3

	weightRed   = 0.241
	weightGreen = 0.691
	weightBlue  = 0.068

	// 抵消浮点误差，避免均匀画面的整数结果被截断为n-1
	truncateEpsilon = 1e-9
)

// Estimate 计算感知亮度（0~255）。
// pix为width*height个RGB三元组；面积为0时返回0。缓冲区不足时只统计完整的像素。
func Estimate(pix []byte, width, height int) uint8 {
	if width <= 0 || height <= 0 {
		return 0
	}
	size := width * height
	if available := len(pix) / BytesPerPixel; available < size {
		size = available
	}
	if size == 0 {
		return 0
	}

	var red, green, blue, samples uint64
	for n := 0; n < size; n += SampleStride {
		i := n * BytesPerPixel
		red += uint64(pix[i])
		green += uint64(pix[i+1])
		blue += uint64(pix[i+2])
		samples++
	}

	// 与每通道整数均值保持一致
	r := float64(red / samples)
	g := float64(green / samples)
	b := float64(blue / samples)

	brightness := math.Sqrt(weightRed*r*r + weightGreen*g*g + weightBlue*b*b)
	return uint8(math.Min(brightness+truncateEpsilon, 255))
}
