package terrain

// Геометрия мира: регион покрыт сеткой MaxGrids×MaxGrids тайлов, каждый
// тайл — квадрат со стороной SizeOfGrids. Высотное поле тайла имеет
// разрешение MapResolution ячеек на сторону.
const (
	// MaxGrids — размер сетки тайлов региона
	MaxGrids = 64

	// SizeOfGrids — сторона тайла в мировых единицах
	SizeOfGrids float32 = 533.3333

	// CenterGridID — индекс тайла, содержащего начало координат
	CenterGridID = MaxGrids / 2

	// MapResolution — количество ячеек высотного поля на сторону тайла
	MapResolution = 128
)

const (
	// InvalidHeight — значение "поверхности нет" (дыра, отсутствие данных)
	InvalidHeight float32 = -100000.0

	// VMapInvalidHeight — сентинел коллизионного провайдера
	VMapInvalidHeight float32 = -200000.0

	// DefaultHeightSearch — дистанция поиска пола по умолчанию
	DefaultHeightSearch float32 = 20.0

	// DefaultWaterSearch — дистанция поиска пола при запросах жидкости
	DefaultWaterSearch float32 = 50.0

	// DefaultCollisionHeight — высота капсулы персонажа по умолчанию
	DefaultCollisionHeight float32 = 2.03
)

// Маски типов жидкости (битовые, комбинируются)
const (
	LiquidTypeNoWater   uint8 = 0x00
	LiquidTypeWater     uint8 = 0x01
	LiquidTypeOcean     uint8 = 0x02
	LiquidTypeMagma     uint8 = 0x04
	LiquidTypeSlime     uint8 = 0x08
	LiquidAllTypes      uint8 = LiquidTypeWater | LiquidTypeOcean | LiquidTypeMagma | LiquidTypeSlime
	LiquidTypeDarkWater uint8 = 0x10
	LiquidTypeWMOWater  uint8 = 0x20
	LiquidTypeDeepWater uint8 = 0x40
)

// LiquidStatus — классификация точки относительно поверхности жидкости.
// Битовые значения: вызывающие проверяют вхождение через маску.
type LiquidStatus uint8

const (
	// LiquidStatusNoWater — жидкости в точке нет
	LiquidStatusNoWater LiquidStatus = 0x00
	// LiquidStatusAboveWater — точка выше поверхности более чем на 1
	LiquidStatusAboveWater LiquidStatus = 0x01
	// LiquidStatusWaterWalk — точка на поверхности (хождение по воде)
	LiquidStatusWaterWalk LiquidStatus = 0x02
	// LiquidStatusInWater — точка погружена, но выше уровня полного погружения
	LiquidStatusInWater LiquidStatus = 0x04
	// LiquidStatusUnderWater — точка глубже высоты капсулы
	LiquidStatusUnderWater LiquidStatus = 0x08
)

// LiquidData — детали разрешённой жидкости в точке
type LiquidData struct {
	Entry      uint32  // идентификатор типа жидкости (после переопределений)
	TypeFlags  uint8   // маска LiquidType*
	Level      float32 // уровень поверхности жидкости
	DepthLevel float32 // уровень дна (земли) под точкой
}

// Битовые шаблоны для проверки дыр: маска макроячейки 16 бит описывает
// сетку 4×4 флагов, каждый флаг накрывает 2×2 ячейки высотного поля.
var (
	holetabH = [4]uint16{0x1111, 0x2222, 0x4444, 0x8888}
	holetabV = [4]uint16{0x000F, 0x00F0, 0x0F00, 0xF000}
)
