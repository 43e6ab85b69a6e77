package terrain

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"sync/atomic"

	"github.com/annel0/mmo-terrain/internal/meta"
)

// GridMap хранит данные одного тайла: идентификаторы зон, маску дыр,
// высотное поле в одной из четырёх кодировок и окно жидкости.
// После успешной загрузки данные неизменяемы; unloadData освобождает
// всё разом и возвращает тайл в "плоское" состояние.
type GridMap struct {
	// Area: сетка 16×16 идентификаторов зон либо константа на весь тайл
	gridArea uint16
	areaMap  []uint16

	// Height: стратегия выборки выбирается при загрузке
	gridHeight              float32
	gridIntHeightMultiplier float32
	heightKind              heightKind
	v9                      []float32 // вершинная сетка 129×129
	v8                      []float32 // сетка центров 128×128
	uint16V9                []uint16
	uint16V8                []uint16
	uint8V9                 []uint8
	uint8V8                 []uint8

	// Holes: маска макроячеек 16×16, нулевая если секции нет
	holes [16][16]uint16

	// Liquid: окно (offX, offY, width, height) плюс сетки типов/флагов 16×16
	liquidGlobalEntry uint16
	liquidGlobalFlags uint8
	liquidOffX        int
	liquidOffY        int
	liquidWidth       int
	liquidHeight      int
	liquidLevel       float32
	liquidEntry       []uint16
	liquidFlags       []uint8
	liquidMap         []float32

	// fullyLoaded взводится кэшем только после подгрузки коллизий и навмеша
	fullyLoaded atomic.Bool
}

// NewGridMap создаёт пустой тайл: плоская высота-сентинел, без зон и жидкости
func NewGridMap() *GridMap {
	return &GridMap{
		gridHeight:  InvalidHeight,
		liquidLevel: InvalidHeight,
		heightKind:  heightFlat,
	}
}

// IsFullyLoaded сообщает, подгружены ли коллизии и навмеш тайла
func (g *GridMap) IsFullyLoaded() bool {
	return g.fullyLoaded.Load()
}

// SetFullyLoaded помечает тайл полностью загруженным
func (g *GridMap) SetFullyLoaded() {
	g.fullyLoaded.Store(true)
}

// LoadData загружает тайл из файла.
// Отсутствующий файл — не ошибка: регион может не иметь терраин-данных
// (например, инстансы целиком покрыты коллизионной геометрией), тайл
// остаётся пустым. Несовместимый заголовок или тег секции — жёсткая
// ошибка ErrFormatMismatch без частичного состояния.
func (g *GridMap) LoadData(filename string) error {
	// Сбрасываем старые данные, если были
	g.unloadData()

	raw, err := os.ReadFile(filename)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("ошибка чтения файла тайла %s: %w", filename, err)
	}

	r := bytes.NewReader(raw)
	var header gridMapFileHeader
	if err := binary.Read(r, binary.LittleEndian, &header); err != nil {
		return fmt.Errorf("%w: обрезанный заголовок %s", ErrFormatMismatch, filename)
	}
	if header.MapMagic != mapMagic || header.VersionMagic != mapVersionMagic {
		return fmt.Errorf("%w: %s (устаревшая версия данных?)", ErrFormatMismatch, filename)
	}

	if header.AreaMapOffset != 0 {
		if err := g.loadAreaData(r, header.AreaMapOffset); err != nil {
			g.unloadData()
			return fmt.Errorf("ошибка area-секции %s: %w", filename, err)
		}
	}
	if header.HolesOffset != 0 {
		if err := g.loadHolesData(r, header.HolesOffset); err != nil {
			g.unloadData()
			return fmt.Errorf("ошибка holes-секции %s: %w", filename, err)
		}
	}
	if header.HeightMapOffset != 0 {
		if err := g.loadHeightData(r, header.HeightMapOffset); err != nil {
			g.unloadData()
			return fmt.Errorf("ошибка height-секции %s: %w", filename, err)
		}
	}
	if header.LiquidMapOffset != 0 {
		if err := g.loadLiquidData(r, header.LiquidMapOffset); err != nil {
			g.unloadData()
			return fmt.Errorf("ошибка liquid-секции %s: %w", filename, err)
		}
	}

	return nil
}

// unloadData освобождает все секции тайла и возвращает плоскую стратегию.
// Безопасно вызывать на уже пустом тайле.
func (g *GridMap) unloadData() {
	g.gridArea = 0
	g.areaMap = nil

	g.gridHeight = InvalidHeight
	g.gridIntHeightMultiplier = 0
	g.heightKind = heightFlat
	g.v9, g.v8 = nil, nil
	g.uint16V9, g.uint16V8 = nil, nil
	g.uint8V9, g.uint8V8 = nil, nil
	g.holes = [16][16]uint16{}

	g.liquidGlobalEntry = 0
	g.liquidGlobalFlags = 0
	g.liquidOffX, g.liquidOffY = 0, 0
	g.liquidWidth, g.liquidHeight = 0, 0
	g.liquidLevel = InvalidHeight
	g.liquidEntry = nil
	g.liquidFlags = nil
	g.liquidMap = nil

	g.fullyLoaded.Store(false)
}

func (g *GridMap) loadAreaData(r *bytes.Reader, offset uint32) error {
	if _, err := r.Seek(int64(offset), io.SeekStart); err != nil {
		return fmt.Errorf("%w: area offset вне файла", ErrFormatMismatch)
	}

	var header gridMapAreaHeader
	if err := binary.Read(r, binary.LittleEndian, &header); err != nil {
		return fmt.Errorf("%w: обрезанный area-заголовок", ErrFormatMismatch)
	}
	if header.Fourcc != mapAreaMagic {
		return fmt.Errorf("%w: неверный тег area-секции", ErrFormatMismatch)
	}

	g.gridArea = header.GridArea
	if header.Flags&mapAreaNoArea == 0 {
		g.areaMap = make([]uint16, 16*16)
		if err := binary.Read(r, binary.LittleEndian, g.areaMap); err != nil {
			return fmt.Errorf("%w: обрезанная area-сетка", ErrFormatMismatch)
		}
	}

	return nil
}

func (g *GridMap) loadHolesData(r *bytes.Reader, offset uint32) error {
	if _, err := r.Seek(int64(offset), io.SeekStart); err != nil {
		return fmt.Errorf("%w: holes offset вне файла", ErrFormatMismatch)
	}
	if err := binary.Read(r, binary.LittleEndian, &g.holes); err != nil {
		return fmt.Errorf("%w: обрезанная маска дыр", ErrFormatMismatch)
	}
	return nil
}

func (g *GridMap) loadHeightData(r *bytes.Reader, offset uint32) error {
	if _, err := r.Seek(int64(offset), io.SeekStart); err != nil {
		return fmt.Errorf("%w: height offset вне файла", ErrFormatMismatch)
	}

	var header gridMapHeightHeader
	if err := binary.Read(r, binary.LittleEndian, &header); err != nil {
		return fmt.Errorf("%w: обрезанный height-заголовок", ErrFormatMismatch)
	}
	if header.Fourcc != mapHeightMagic {
		return fmt.Errorf("%w: неверный тег height-секции", ErrFormatMismatch)
	}

	g.gridHeight = header.GridHeight
	if header.Flags&mapHeightNoHeight != 0 {
		g.heightKind = heightFlat
		return nil
	}

	switch {
	case header.Flags&mapHeightAsInt16 != 0:
		g.uint16V9 = make([]uint16, 129*129)
		g.uint16V8 = make([]uint16, 128*128)
		if err := binary.Read(r, binary.LittleEndian, g.uint16V9); err != nil {
			return fmt.Errorf("%w: обрезанная сетка V9", ErrFormatMismatch)
		}
		if err := binary.Read(r, binary.LittleEndian, g.uint16V8); err != nil {
			return fmt.Errorf("%w: обрезанная сетка V8", ErrFormatMismatch)
		}
		// Множитель восстановления; сырые сэмплы остаются как есть
		g.gridIntHeightMultiplier = (header.GridMaxHeight - header.GridHeight) / 65535
		g.heightKind = heightUint16
	case header.Flags&mapHeightAsInt8 != 0:
		g.uint8V9 = make([]uint8, 129*129)
		g.uint8V8 = make([]uint8, 128*128)
		if err := binary.Read(r, binary.LittleEndian, g.uint8V9); err != nil {
			return fmt.Errorf("%w: обрезанная сетка V9", ErrFormatMismatch)
		}
		if err := binary.Read(r, binary.LittleEndian, g.uint8V8); err != nil {
			return fmt.Errorf("%w: обрезанная сетка V8", ErrFormatMismatch)
		}
		g.gridIntHeightMultiplier = (header.GridMaxHeight - header.GridHeight) / 255
		g.heightKind = heightUint8
	default:
		g.v9 = make([]float32, 129*129)
		g.v8 = make([]float32, 128*128)
		if err := binary.Read(r, binary.LittleEndian, g.v9); err != nil {
			return fmt.Errorf("%w: обрезанная сетка V9", ErrFormatMismatch)
		}
		if err := binary.Read(r, binary.LittleEndian, g.v8); err != nil {
			return fmt.Errorf("%w: обрезанная сетка V8", ErrFormatMismatch)
		}
		g.heightKind = heightFloat
	}

	return nil
}

func (g *GridMap) loadLiquidData(r *bytes.Reader, offset uint32) error {
	if _, err := r.Seek(int64(offset), io.SeekStart); err != nil {
		return fmt.Errorf("%w: liquid offset вне файла", ErrFormatMismatch)
	}

	var header gridMapLiquidHeader
	if err := binary.Read(r, binary.LittleEndian, &header); err != nil {
		return fmt.Errorf("%w: обрезанный liquid-заголовок", ErrFormatMismatch)
	}
	if header.Fourcc != mapLiquidMagic {
		return fmt.Errorf("%w: неверный тег liquid-секции", ErrFormatMismatch)
	}

	g.liquidGlobalEntry = header.LiquidType
	g.liquidGlobalFlags = header.LiquidFlags
	g.liquidOffX = int(header.OffsetX)
	g.liquidOffY = int(header.OffsetY)
	g.liquidWidth = int(header.Width)
	g.liquidHeight = int(header.Height)
	g.liquidLevel = header.LiquidLevel

	if header.Flags&mapLiquidNoType == 0 {
		g.liquidEntry = make([]uint16, 16*16)
		if err := binary.Read(r, binary.LittleEndian, g.liquidEntry); err != nil {
			return fmt.Errorf("%w: обрезанная сетка типов жидкости", ErrFormatMismatch)
		}
		g.liquidFlags = make([]uint8, 16*16)
		if err := binary.Read(r, binary.LittleEndian, g.liquidFlags); err != nil {
			return fmt.Errorf("%w: обрезанная сетка флагов жидкости", ErrFormatMismatch)
		}
	}

	if header.Flags&mapLiquidNoHeight == 0 {
		g.liquidMap = make([]float32, g.liquidWidth*g.liquidHeight)
		if err := binary.Read(r, binary.LittleEndian, g.liquidMap); err != nil {
			return fmt.Errorf("%w: обрезанная сетка уровней жидкости", ErrFormatMismatch)
		}
	}

	return nil
}

// getArea возвращает идентификатор зоны для мировых координат.
// Area-сетка имеет разрешение 16 (грубее высотного поля).
func (g *GridMap) getArea(x, y float32) uint16 {
	if g.areaMap == nil {
		return g.gridArea
	}

	x = 16 * (CenterGridID - x/SizeOfGrids)
	y = 16 * (CenterGridID - y/SizeOfGrids)
	lx := int(x) & 15
	ly := int(y) & 15
	return g.areaMap[lx*16+ly]
}

// isHole проверяет, помечена ли ячейка высотного поля как дыра.
// Макроячейка 8×8 несёт одну 16-битную маску: 4×4 флага по 2×2 ячейки.
func (g *GridMap) isHole(row, col int) bool {
	cellRow := row / 8
	cellCol := col / 8
	holeRow := row % 8 / 2
	holeCol := (col - cellCol*8) / 2

	hole := g.holes[cellRow][cellCol]
	return hole&holetabH[holeCol]&holetabV[holeRow] != 0
}

// getLiquidLevel возвращает уровень жидкости в точке либо сентинел,
// если точка вне окна жидкости
func (g *GridMap) getLiquidLevel(x, y float32) float32 {
	if g.liquidMap == nil {
		return g.liquidLevel
	}

	x = MapResolution * (CenterGridID - x/SizeOfGrids)
	y = MapResolution * (CenterGridID - y/SizeOfGrids)

	cxInt := (int(x) & (MapResolution - 1)) - g.liquidOffY
	cyInt := (int(y) & (MapResolution - 1)) - g.liquidOffX

	if cxInt < 0 || cxInt >= g.liquidHeight {
		return InvalidHeight
	}
	if cyInt < 0 || cyInt >= g.liquidWidth {
		return InvalidHeight
	}

	return g.liquidMap[cxInt*g.liquidWidth+cyInt]
}

// getTerrainType возвращает флаги жидкости ячейки (или константу тайла)
func (g *GridMap) getTerrainType(x, y float32) uint8 {
	if g.liquidFlags == nil {
		return g.liquidGlobalFlags
	}

	x = 16 * (CenterGridID - x/SizeOfGrids)
	y = 16 * (CenterGridID - y/SizeOfGrids)
	lx := int(x) & 15
	ly := int(y) & 15
	return g.liquidFlags[lx*16+ly]
}

// getLiquidStatus классифицирует точку относительно жидкости тайла.
// store нужен для разрешения типа жидкости и зонального переопределения
// (категории 1..20 — диапазон фиксирован внешней таблицей).
func (g *GridMap) getLiquidStatus(store meta.Store, mapID uint32, x, y, z float32, reqLiquidType uint8, data *LiquidData, collisionHeight float32) LiquidStatus {
	// Нет ни поячеечной сетки, ни константы: жидкости в тайле нет
	if g.liquidFlags == nil && g.liquidGlobalFlags == 0 {
		return LiquidStatusNoWater
	}

	cx := MapResolution * (CenterGridID - x/SizeOfGrids)
	cy := MapResolution * (CenterGridID - y/SizeOfGrids)

	xInt := int(cx) & (MapResolution - 1)
	yInt := int(cy) & (MapResolution - 1)

	// Тип жидкости ячейки: сетки типов/флагов имеют разрешение 16
	idx := (xInt>>3)*16 + (yInt >> 3)
	typ := g.liquidGlobalFlags
	if g.liquidFlags != nil {
		typ = g.liquidFlags[idx]
	}
	entry := uint32(g.liquidGlobalEntry)
	if g.liquidEntry != nil {
		entry = uint32(g.liquidEntry[idx])
	}

	if liquidEntry := store.LiquidTypeByID(entry); liquidEntry != nil {
		entry = liquidEntry.ID
		typ &= LiquidTypeDeepWater
		liqTypeIdx := liquidEntry.Type
		if entry != 0 && entry < 21 {
			if area := store.AreaByFlagAndMap(g.getArea(x, y), mapID); area != nil {
				overrideLiquid := area.LiquidOverride[entry-1]
				if overrideLiquid == 0 && area.Zone != 0 {
					if area = store.AreaByID(area.Zone); area != nil {
						overrideLiquid = area.LiquidOverride[entry-1]
					}
				}

				if liq := store.LiquidTypeByID(overrideLiquid); liq != nil {
					entry = overrideLiquid
					liqTypeIdx = liq.Type
				}
			}
		}

		typ |= uint8(1<<liqTypeIdx) | (typ & LiquidTypeDeepWater)
	}

	if typ == 0 {
		return LiquidStatusNoWater
	}

	// Маска требуемых типов вызывающего
	if reqLiquidType != 0 && reqLiquidType&typ == 0 {
		return LiquidStatusNoWater
	}

	// Точка должна попадать в окно жидкости
	lxInt := xInt - g.liquidOffY
	if lxInt < 0 || lxInt >= g.liquidHeight {
		return LiquidStatusNoWater
	}
	lyInt := yInt - g.liquidOffX
	if lyInt < 0 || lyInt >= g.liquidWidth {
		return LiquidStatusNoWater
	}

	liquidLevel := g.liquidLevel
	if g.liquidMap != nil {
		liquidLevel = g.liquidMap[lxInt*g.liquidWidth+lyInt]
	}

	groundLevel := g.getHeight(x, y)

	// Жидкость ниже земли или точка глубоко под землёй — жидкости нет
	if liquidLevel < groundLevel || z < groundLevel-2 {
		return LiquidStatusNoWater
	}

	if data != nil {
		data.Entry = entry
		data.TypeFlags = typ
		data.Level = liquidLevel
		data.DepthLevel = groundLevel
	}

	delta := liquidLevel - z

	switch {
	case delta > collisionHeight: // полностью под водой
		return LiquidStatusUnderWater
	case delta > 0: // в воде
		return LiquidStatusInWater
	case delta > -1: // на поверхности
		return LiquidStatusWaterWalk
	}
	return LiquidStatusAboveWater
}
