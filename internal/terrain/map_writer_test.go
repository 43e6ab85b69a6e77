package terrain

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// tileBuilder собирает бинарный файл тайла для тестов: секции
// добавляются методами with*, encode раскладывает их по смещениям
// и формирует корневой заголовок.
type tileBuilder struct {
	mapMagic     uint32
	versionMagic uint32

	area    *bytes.Buffer
	height  *bytes.Buffer
	liquid  *bytes.Buffer
	holes   *bytes.Buffer
	badArea bool // испортить тег area-секции
}

func newTileBuilder() *tileBuilder {
	return &tileBuilder{mapMagic: mapMagic, versionMagic: mapVersionMagic}
}

func (b *tileBuilder) withBadMagic() *tileBuilder {
	b.mapMagic = fourCC("XXXX")
	return b
}

func (b *tileBuilder) withOldVersion() *tileBuilder {
	b.versionMagic = fourCC("s1.3")
	return b
}

func (b *tileBuilder) withCorruptAreaTag() *tileBuilder {
	b.badArea = true
	return b
}

func (b *tileBuilder) withArea(t *testing.T, gridArea uint16, areaMap []uint16) *tileBuilder {
	t.Helper()

	header := gridMapAreaHeader{Fourcc: mapAreaMagic, GridArea: gridArea}
	if b.badArea {
		header.Fourcc = fourCC("AERA")
	}
	if areaMap == nil {
		header.Flags = mapAreaNoArea
	} else {
		require.Len(t, areaMap, 16*16)
	}

	b.area = &bytes.Buffer{}
	require.NoError(t, binary.Write(b.area, binary.LittleEndian, header))
	if areaMap != nil {
		require.NoError(t, binary.Write(b.area, binary.LittleEndian, areaMap))
	}
	return b
}

func (b *tileBuilder) withFlatHeight(t *testing.T, gridHeight float32) *tileBuilder {
	t.Helper()

	header := gridMapHeightHeader{
		Fourcc:        mapHeightMagic,
		Flags:         mapHeightNoHeight,
		GridHeight:    gridHeight,
		GridMaxHeight: gridHeight,
	}
	b.height = &bytes.Buffer{}
	require.NoError(t, binary.Write(b.height, binary.LittleEndian, header))
	return b
}

func (b *tileBuilder) withFloatHeight(t *testing.T, v9 []float32, v8 []float32) *tileBuilder {
	t.Helper()
	require.Len(t, v9, 129*129)
	require.Len(t, v8, 128*128)

	header := gridMapHeightHeader{Fourcc: mapHeightMagic}
	b.height = &bytes.Buffer{}
	require.NoError(t, binary.Write(b.height, binary.LittleEndian, header))
	require.NoError(t, binary.Write(b.height, binary.LittleEndian, v9))
	require.NoError(t, binary.Write(b.height, binary.LittleEndian, v8))
	return b
}

func (b *tileBuilder) withUint16Height(t *testing.T, v9 []uint16, v8 []uint16, gridHeight, gridMaxHeight float32) *tileBuilder {
	t.Helper()
	require.Len(t, v9, 129*129)
	require.Len(t, v8, 128*128)

	header := gridMapHeightHeader{
		Fourcc:        mapHeightMagic,
		Flags:         mapHeightAsInt16,
		GridHeight:    gridHeight,
		GridMaxHeight: gridMaxHeight,
	}
	b.height = &bytes.Buffer{}
	require.NoError(t, binary.Write(b.height, binary.LittleEndian, header))
	require.NoError(t, binary.Write(b.height, binary.LittleEndian, v9))
	require.NoError(t, binary.Write(b.height, binary.LittleEndian, v8))
	return b
}

func (b *tileBuilder) withUint8Height(t *testing.T, v9 []uint8, v8 []uint8, gridHeight, gridMaxHeight float32) *tileBuilder {
	t.Helper()
	require.Len(t, v9, 129*129)
	require.Len(t, v8, 128*128)

	header := gridMapHeightHeader{
		Fourcc:        mapHeightMagic,
		Flags:         mapHeightAsInt8,
		GridHeight:    gridHeight,
		GridMaxHeight: gridMaxHeight,
	}
	b.height = &bytes.Buffer{}
	require.NoError(t, binary.Write(b.height, binary.LittleEndian, header))
	require.NoError(t, binary.Write(b.height, binary.LittleEndian, v9))
	require.NoError(t, binary.Write(b.height, binary.LittleEndian, v8))
	return b
}

func (b *tileBuilder) withHoles(t *testing.T, holes [16][16]uint16) *tileBuilder {
	t.Helper()

	b.holes = &bytes.Buffer{}
	require.NoError(t, binary.Write(b.holes, binary.LittleEndian, holes))
	return b
}

// withLiquid добавляет liquid-секцию. entry/flags nil означает флаг
// "без типов" (глобальные значения заголовка), levels nil — "без высот".
func (b *tileBuilder) withLiquid(t *testing.T, header gridMapLiquidHeader, entry []uint16, flags []uint8, levels []float32) *tileBuilder {
	t.Helper()

	header.Fourcc = mapLiquidMagic
	if entry == nil {
		header.Flags |= mapLiquidNoType
	} else {
		require.Len(t, entry, 16*16)
		require.Len(t, flags, 16*16)
	}
	if levels == nil {
		header.Flags |= mapLiquidNoHeight
	} else {
		require.Len(t, levels, int(header.Width)*int(header.Height))
	}

	b.liquid = &bytes.Buffer{}
	require.NoError(t, binary.Write(b.liquid, binary.LittleEndian, header))
	if entry != nil {
		require.NoError(t, binary.Write(b.liquid, binary.LittleEndian, entry))
		require.NoError(t, binary.Write(b.liquid, binary.LittleEndian, flags))
	}
	if levels != nil {
		require.NoError(t, binary.Write(b.liquid, binary.LittleEndian, levels))
	}
	return b
}

func (b *tileBuilder) encode(t *testing.T) []byte {
	t.Helper()

	header := gridMapFileHeader{
		MapMagic:     b.mapMagic,
		VersionMagic: b.versionMagic,
	}
	offset := uint32(binary.Size(header))

	place := func(section *bytes.Buffer, off, size *uint32) {
		if section == nil {
			return
		}
		*off = offset
		*size = uint32(section.Len())
		offset += *size
	}
	place(b.area, &header.AreaMapOffset, &header.AreaMapSize)
	place(b.height, &header.HeightMapOffset, &header.HeightMapSize)
	place(b.liquid, &header.LiquidMapOffset, &header.LiquidMapSize)
	place(b.holes, &header.HolesOffset, &header.HolesSize)

	out := &bytes.Buffer{}
	require.NoError(t, binary.Write(out, binary.LittleEndian, header))
	for _, section := range []*bytes.Buffer{b.area, b.height, b.liquid, b.holes} {
		if section != nil {
			out.Write(section.Bytes())
		}
	}
	return out.Bytes()
}

// writeTile кладёт собранный тайл в <dir>/maps/ под каноническим именем
func (b *tileBuilder) writeTile(t *testing.T, dir string, mapID uint32, gx, gy int) string {
	t.Helper()

	name := MapFileName(dir, mapID, gx, gy)
	require.NoError(t, os.MkdirAll(filepath.Dir(name), 0755))
	require.NoError(t, os.WriteFile(name, b.encode(t), 0644))
	return name
}

// writeRaw пишет собранный тайл по произвольному пути
func writeRaw(name string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(name), 0755); err != nil {
		return err
	}
	return os.WriteFile(name, data, 0644)
}

// worldFromCell возвращает мировые координаты точки внутри ячейки
// высотного поля тайла (32, 32): индекс ячейки плюс дробная часть
func worldFromCell(cell float32) float32 {
	return (CenterGridID - cell/MapResolution) * SizeOfGrids
}
