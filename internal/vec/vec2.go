package vec

// Vec2 представляет целочисленные 2D координаты (индекс тайла в сетке региона)
type Vec2 struct {
	X, Y int
}

// InBounds проверяет, что обе координаты лежат в диапазоне [0, n)
func (v Vec2) InBounds(n int) bool {
	return v.X >= 0 && v.X < n && v.Y >= 0 && v.Y < n
}
