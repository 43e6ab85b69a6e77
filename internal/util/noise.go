package util

import (
	"github.com/aquilax/go-perlin"
)

// HeightNoise — детерминированный генератор рельефа на основе шума Перлина.
// Используется для построения правдоподобных высотных полей в фикстурах.
type HeightNoise struct {
	p     *perlin.Perlin
	scale float64
}

// NewHeightNoise создаёт генератор с указанным сидом и масштабом координат
func NewHeightNoise(seed int64, scale float64) *HeightNoise {
	alpha := 2.0  // Сглаживание шума
	beta := 2.0   // Частота шума
	n := int32(3) // Количество октав
	return &HeightNoise{
		p:     perlin.NewPerlin(alpha, beta, n, seed),
		scale: scale,
	}
}

// At возвращает значение шума для координат, нормированное в [0, 1]
func (h *HeightNoise) At(x, y float64) float64 {
	noise := h.p.Noise2D(x*h.scale, y*h.scale) // от -1 до 1
	return (noise + 1.0) / 2.0
}

// HeightAt возвращает высоту в диапазоне [minHeight, maxHeight]
func (h *HeightNoise) HeightAt(x, y float64, minHeight, maxHeight float64) float64 {
	return minHeight + h.At(x, y)*(maxHeight-minHeight)
}
