package terrain

// Стратегия выборки высоты выбирается один раз при загрузке тайла и
// диспетчеризуется по тегу на каждый запрос. Все стратегии реализуют
// один и тот же геометрический алгоритм на разной точности.

type heightKind uint8

const (
	heightFlat heightKind = iota
	heightFloat
	heightUint16
	heightUint8
)

// getHeight возвращает высоту поверхности в мировых координатах.
// Ячейка высотного поля разбита на четыре треугольника, сходящихся в
// центральной точке (сетка V8); углы берутся из вершинной сетки V9:
//
//	+--------------> X
//	| h1-------h2     h1 — вершина (0,0)
//	| | \  1  / |     h2 — вершина (0,1)
//	| | 2  h5 3 |     h3 — вершина (1,0)
//	| |  /   \  |     h4 — вершина (1,1)
//	| | /  4  \ |     h5 — центр (1/2,1/2)
//	| h3-------h4
//	V Y
//
// Треугольник выбирается по дробной части координат; его плоскость
// h = a*x + b*y + c решается в замкнутой форме из трёх известных точек.
func (g *GridMap) getHeight(x, y float32) float32 {
	switch g.heightKind {
	case heightFloat:
		return g.getHeightFromFloat(x, y)
	case heightUint16:
		return g.getHeightFromUint16(x, y)
	case heightUint8:
		return g.getHeightFromUint8(x, y)
	default:
		return g.gridHeight
	}
}

func (g *GridMap) getHeightFromFloat(x, y float32) float32 {
	if g.v8 == nil || g.v9 == nil {
		return InvalidHeight
	}

	x = MapResolution * (CenterGridID - x/SizeOfGrids)
	y = MapResolution * (CenterGridID - y/SizeOfGrids)

	xInt := int(x)
	yInt := int(y)
	x -= float32(xInt)
	y -= float32(yInt)
	xInt &= MapResolution - 1
	yInt &= MapResolution - 1

	if g.isHole(xInt, yInt) {
		return InvalidHeight
	}

	var a, b, c float32
	if x+y < 1 {
		if x > y {
			// треугольник 1 (точки h1, h2, h5)
			h1 := g.v9[xInt*129+yInt]
			h2 := g.v9[(xInt+1)*129+yInt]
			h5 := 2 * g.v8[xInt*128+yInt]
			a = h2 - h1
			b = h5 - h1 - h2
			c = h1
		} else {
			// треугольник 2 (точки h1, h3, h5)
			h1 := g.v9[xInt*129+yInt]
			h3 := g.v9[xInt*129+yInt+1]
			h5 := 2 * g.v8[xInt*128+yInt]
			a = h5 - h1 - h3
			b = h3 - h1
			c = h1
		}
	} else {
		if x > y {
			// треугольник 3 (точки h2, h4, h5)
			h2 := g.v9[(xInt+1)*129+yInt]
			h4 := g.v9[(xInt+1)*129+yInt+1]
			h5 := 2 * g.v8[xInt*128+yInt]
			a = h2 + h4 - h5
			b = h4 - h2
			c = h5 - h4
		} else {
			// треугольник 4 (точки h3, h4, h5)
			h3 := g.v9[xInt*129+yInt+1]
			h4 := g.v9[(xInt+1)*129+yInt+1]
			h5 := 2 * g.v8[xInt*128+yInt]
			a = h4 - h3
			b = h3 + h4 - h5
			c = h5 - h4
		}
	}

	return a*x + b*y + c
}

// getHeightFromUint16 считает ту же треугольную интерполяцию в целых
// числах над сырыми сэмплами; множитель и базовая высота применяются
// один раз в конце (и обязаны совпадать с вычисленными при загрузке)
func (g *GridMap) getHeightFromUint16(x, y float32) float32 {
	if g.uint16V8 == nil || g.uint16V9 == nil {
		return g.gridHeight
	}

	x = MapResolution * (CenterGridID - x/SizeOfGrids)
	y = MapResolution * (CenterGridID - y/SizeOfGrids)

	xInt := int(x)
	yInt := int(y)
	x -= float32(xInt)
	y -= float32(yInt)
	xInt &= MapResolution - 1
	yInt &= MapResolution - 1

	if g.isHole(xInt, yInt) {
		return InvalidHeight
	}

	var a, b, c int32
	idx := xInt*129 + yInt
	if x+y < 1 {
		if x > y {
			// треугольник 1 (точки h1, h2, h5)
			h1 := int32(g.uint16V9[idx])
			h2 := int32(g.uint16V9[idx+129])
			h5 := 2 * int32(g.uint16V8[xInt*128+yInt])
			a = h2 - h1
			b = h5 - h1 - h2
			c = h1
		} else {
			// треугольник 2 (точки h1, h3, h5)
			h1 := int32(g.uint16V9[idx])
			h3 := int32(g.uint16V9[idx+1])
			h5 := 2 * int32(g.uint16V8[xInt*128+yInt])
			a = h5 - h1 - h3
			b = h3 - h1
			c = h1
		}
	} else {
		if x > y {
			// треугольник 3 (точки h2, h4, h5)
			h2 := int32(g.uint16V9[idx+129])
			h4 := int32(g.uint16V9[idx+130])
			h5 := 2 * int32(g.uint16V8[xInt*128+yInt])
			a = h2 + h4 - h5
			b = h4 - h2
			c = h5 - h4
		} else {
			// треугольник 4 (точки h3, h4, h5)
			h3 := int32(g.uint16V9[idx+1])
			h4 := int32(g.uint16V9[idx+130])
			h5 := 2 * int32(g.uint16V8[xInt*128+yInt])
			a = h4 - h3
			b = h3 + h4 - h5
			c = h5 - h4
		}
	}

	return (float32(a)*x+float32(b)*y+float32(c))*g.gridIntHeightMultiplier + g.gridHeight
}

func (g *GridMap) getHeightFromUint8(x, y float32) float32 {
	if g.uint8V8 == nil || g.uint8V9 == nil {
		return g.gridHeight
	}

	x = MapResolution * (CenterGridID - x/SizeOfGrids)
	y = MapResolution * (CenterGridID - y/SizeOfGrids)

	xInt := int(x)
	yInt := int(y)
	x -= float32(xInt)
	y -= float32(yInt)
	xInt &= MapResolution - 1
	yInt &= MapResolution - 1

	if g.isHole(xInt, yInt) {
		return InvalidHeight
	}

	var a, b, c int32
	idx := xInt*129 + yInt
	if x+y < 1 {
		if x > y {
			// треугольник 1 (точки h1, h2, h5)
			h1 := int32(g.uint8V9[idx])
			h2 := int32(g.uint8V9[idx+129])
			h5 := 2 * int32(g.uint8V8[xInt*128+yInt])
			a = h2 - h1
			b = h5 - h1 - h2
			c = h1
		} else {
			// треугольник 2 (точки h1, h3, h5)
			h1 := int32(g.uint8V9[idx])
			h3 := int32(g.uint8V9[idx+1])
			h5 := 2 * int32(g.uint8V8[xInt*128+yInt])
			a = h5 - h1 - h3
			b = h3 - h1
			c = h1
		}
	} else {
		if x > y {
			// треугольник 3 (точки h2, h4, h5)
			h2 := int32(g.uint8V9[idx+129])
			h4 := int32(g.uint8V9[idx+130])
			h5 := 2 * int32(g.uint8V8[xInt*128+yInt])
			a = h2 + h4 - h5
			b = h4 - h2
			c = h5 - h4
		} else {
			// треугольник 4 (точки h3, h4, h5)
			h3 := int32(g.uint8V9[idx+1])
			h4 := int32(g.uint8V9[idx+130])
			h5 := 2 * int32(g.uint8V8[xInt*128+yInt])
			a = h4 - h3
			b = h3 + h4 - h5
			c = h5 - h4
		}
	}

	return (float32(a)*x+float32(b)*y+float32(c))*g.gridIntHeightMultiplier + g.gridHeight
}
