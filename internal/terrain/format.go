package terrain

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// Бинарный формат тайла: корневой заголовок с четырьмя парами
// (offset, size) и самотегированные секции area/height/liquid/holes.
// Все целые — little-endian, все вещественные — IEEE-754 float32.
// Нулевой offset означает отсутствие секции.

var (
	mapMagic        = fourCC("MAPS")
	mapVersionMagic = fourCC("s1.4")
	mapAreaMagic    = fourCC("AREA")
	mapHeightMagic  = fourCC("MHGT")
	mapLiquidMagic  = fourCC("MLIQ")
)

// ErrFormatMismatch — файл тайла присутствует, но его корневой заголовок
// или тег одной из секций не соответствует формату. Загрузка прерывается,
// частичное состояние не сохраняется.
var ErrFormatMismatch = errors.New("terrain: несовместимый формат файла тайла")

// IsFormatMismatch сообщает, является ли ошибка несовместимостью формата
func IsFormatMismatch(err error) bool {
	return errors.Is(err, ErrFormatMismatch)
}

// fourCC упаковывает четырёхсимвольный тег так же, как он лежит на диске
func fourCC(tag string) uint32 {
	return binary.LittleEndian.Uint32([]byte(tag))
}

// gridMapFileHeader — корневой заголовок файла тайла
type gridMapFileHeader struct {
	MapMagic        uint32
	VersionMagic    uint32
	AreaMapOffset   uint32
	AreaMapSize     uint32
	HeightMapOffset uint32
	HeightMapSize   uint32
	LiquidMapOffset uint32
	LiquidMapSize   uint32
	HolesOffset     uint32
	HolesSize       uint32
}

// gridMapAreaHeader — заголовок area-секции
type gridMapAreaHeader struct {
	Fourcc   uint32
	Flags    uint16
	GridArea uint16
}

// gridMapHeightHeader — заголовок height-секции
type gridMapHeightHeader struct {
	Fourcc        uint32
	Flags         uint32
	GridHeight    float32
	GridMaxHeight float32
}

// gridMapLiquidHeader — заголовок liquid-секции
type gridMapLiquidHeader struct {
	Fourcc      uint32
	Flags       uint8
	LiquidFlags uint8
	LiquidType  uint16
	OffsetX     uint8
	OffsetY     uint8
	Width       uint8
	Height      uint8
	LiquidLevel float32
}

// Флаги секций
const (
	mapAreaNoArea uint16 = 0x0001

	mapHeightNoHeight uint32 = 0x0001
	mapHeightAsInt16  uint32 = 0x0002
	mapHeightAsInt8   uint32 = 0x0004

	mapLiquidNoType   uint8 = 0x0001
	mapLiquidNoHeight uint8 = 0x0002
)

// MapFileName строит путь к файлу тайла: <dataPath>/maps/MMMXXYY.map
func MapFileName(dataPath string, mapID uint32, gx, gy int) string {
	return filepath.Join(dataPath, "maps", fmt.Sprintf("%03d%02d%02d.map", mapID, gx, gy))
}

// ExistMap проверяет наличие и совместимость файла тайла на диске,
// не загружая данные (читается только корневой заголовок)
func ExistMap(dataPath string, mapID uint32, gx, gy int) bool {
	name := MapFileName(dataPath, mapID, gx, gy)
	f, err := os.Open(name)
	if err != nil {
		return false
	}
	defer f.Close()

	var header gridMapFileHeader
	if err := binary.Read(f, binary.LittleEndian, &header); err != nil {
		return false
	}
	return header.MapMagic == mapMagic && header.VersionMagic == mapVersionMagic
}
