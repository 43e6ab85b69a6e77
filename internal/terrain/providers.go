package terrain

import "github.com/annel0/mmo-terrain/internal/vec"

// Внешние поставщики данных тайла. Терраин-ядро потребляет узкие
// интерфейсы; реализации (загрузка коллизионной геометрии, навмеша)
// живут в хост-процессе. Null-реализации позволяют работать только
// по картным данным.

// VMapLoadResult — результат загрузки тайла коллизионной геометрии
type VMapLoadResult int

const (
	// VMapLoadOK — тайл загружен
	VMapLoadOK VMapLoadResult = iota
	// VMapLoadError — загрузка не удалась
	VMapLoadError
	// VMapLoadIgnored — для тайла нет коллизионных данных
	VMapLoadIgnored
)

// VMapProvider — поставщик коллизионной геометрии (детальные меши)
type VMapProvider interface {
	// IsEnabled сообщает, включён ли расчёт высот по коллизионным мешам
	IsEnabled() bool

	// IsTileLoaded проверяет, загружен ли тайл коллизий
	IsTileLoaded(mapID uint32, tile vec.Vec2) bool

	// LoadTile загружает тайл коллизий; вызов идемпотентен
	LoadTile(basePath string, mapID uint32, tile vec.Vec2) VMapLoadResult

	// UnloadTile выгружает тайл коллизий
	UnloadTile(mapID uint32, tile vec.Vec2)

	// UnloadMap выгружает все тайлы карты
	UnloadMap(mapID uint32)

	// GetHeight ищет пол под точкой в пределах searchDist;
	// возвращает VMapInvalidHeight, если пол не найден
	GetHeight(mapID uint32, x, y, z, searchDist float32) float32

	// GetAreaInfo возвращает WMO-информацию зоны в точке
	GetAreaInfo(mapID uint32, x, y, z float32) (flags uint32, adtID, rootID, groupID int32, ok bool)

	// GetLiquidLevel возвращает уровень и тип жидкости по коллизионным данным
	GetLiquidLevel(mapID uint32, x, y, z float32, reqLiquidType uint8) (level, floor float32, liquidType uint32, ok bool)
}

// MMapProvider — поставщик навигационных мешей
type MMapProvider interface {
	// IsLoaded проверяет, загружен ли навмеш тайла
	IsLoaded(mapID uint32, tile vec.Vec2) bool

	// LoadTile загружает навмеш тайла; вызов идемпотентен
	LoadTile(mapID uint32, tile vec.Vec2) bool

	// UnloadTile выгружает навмеш тайла
	UnloadTile(mapID uint32, tile vec.Vec2)

	// UnloadMap выгружает все навмеши карты
	UnloadMap(mapID uint32)
}

// NullVMapProvider — заглушка без коллизионных данных
type NullVMapProvider struct{}

// IsEnabled всегда false
func (NullVMapProvider) IsEnabled() bool { return false }

// IsTileLoaded всегда true: заглушке нечего загружать
func (NullVMapProvider) IsTileLoaded(uint32, vec.Vec2) bool { return true }

// LoadTile всегда VMapLoadIgnored
func (NullVMapProvider) LoadTile(string, uint32, vec.Vec2) VMapLoadResult { return VMapLoadIgnored }

// UnloadTile ничего не делает
func (NullVMapProvider) UnloadTile(uint32, vec.Vec2) {}

// UnloadMap ничего не делает
func (NullVMapProvider) UnloadMap(uint32) {}

// GetHeight всегда возвращает сентинел
func (NullVMapProvider) GetHeight(uint32, float32, float32, float32, float32) float32 {
	return VMapInvalidHeight
}

// GetAreaInfo всегда возвращает ok=false
func (NullVMapProvider) GetAreaInfo(uint32, float32, float32, float32) (uint32, int32, int32, int32, bool) {
	return 0, 0, 0, 0, false
}

// GetLiquidLevel всегда возвращает ok=false
func (NullVMapProvider) GetLiquidLevel(uint32, float32, float32, float32, uint8) (float32, float32, uint32, bool) {
	return InvalidHeight, InvalidHeight, 0, false
}

// NullMMapProvider — заглушка без навигационных мешей
type NullMMapProvider struct{}

// IsLoaded всегда true: заглушке нечего загружать
func (NullMMapProvider) IsLoaded(uint32, vec.Vec2) bool { return true }

// LoadTile всегда true
func (NullMMapProvider) LoadTile(uint32, vec.Vec2) bool { return true }

// UnloadTile ничего не делает
func (NullMMapProvider) UnloadTile(uint32, vec.Vec2) {}

// UnloadMap ничего не делает
func (NullMMapProvider) UnloadMap(uint32) {}
