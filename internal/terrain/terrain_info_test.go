package terrain

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/annel0/mmo-terrain/internal/config"
	"github.com/annel0/mmo-terrain/internal/meta"
	"github.com/annel0/mmo-terrain/internal/vec"
)

// countingVMap считает вызовы загрузки/выгрузки тайлов коллизий
type countingVMap struct {
	mu      sync.Mutex
	loaded  map[vec.Vec2]bool
	loads   int
	unloads int
}

func newCountingVMap() *countingVMap {
	return &countingVMap{loaded: make(map[vec.Vec2]bool)}
}

func (v *countingVMap) IsEnabled() bool { return false }

func (v *countingVMap) IsTileLoaded(_ uint32, tile vec.Vec2) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.loaded[tile]
}

func (v *countingVMap) LoadTile(_ string, _ uint32, tile vec.Vec2) VMapLoadResult {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.loads++
	v.loaded[tile] = true
	return VMapLoadOK
}

func (v *countingVMap) UnloadTile(_ uint32, tile vec.Vec2) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.unloads++
	delete(v.loaded, tile)
}

func (v *countingVMap) UnloadMap(uint32) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.loaded = make(map[vec.Vec2]bool)
}

func (v *countingVMap) GetHeight(uint32, float32, float32, float32, float32) float32 {
	return VMapInvalidHeight
}

func (v *countingVMap) GetAreaInfo(uint32, float32, float32, float32) (uint32, int32, int32, int32, bool) {
	return 0, 0, 0, 0, false
}

func (v *countingVMap) GetLiquidLevel(uint32, float32, float32, float32, uint8) (float32, float32, uint32, bool) {
	return InvalidHeight, InvalidHeight, 0, false
}

func (v *countingVMap) stats() (loads, unloads int) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.loads, v.unloads
}

func testConfig(dir string) *config.TerrainConfig {
	return &config.TerrainConfig{
		DataPath:           dir,
		CleanupIntervalSec: 60,
		PreloadWorkers:     2,
	}
}

// newTestTerrain кладёт на диск тайл (32, 32) с плоской землёй и
// возвращает регион поверх каталога
func newTestTerrain(t *testing.T, mapID uint32) (*TerrainInfo, *countingVMap, string) {
	t.Helper()

	dir := t.TempDir()
	newTileBuilder().withFlatHeight(t, 100).writeTile(t, dir, mapID, 32, 32)

	vmap := newCountingVMap()
	info := NewTerrainInfo(mapID, testConfig(dir), vmap, NullMMapProvider{}, meta.EmptyStore{})
	return info, vmap, dir
}

func TestGetGridLoadsOnce(t *testing.T) {
	info, vmap, _ := newTestTerrain(t, 1)

	// Точка (0, 0) попадает в тайл (32, 32)
	first := info.GetGrid(0, 0, false)
	require.NotNil(t, first)
	second := info.GetGrid(0, 0, false)
	assert.Same(t, first, second)

	loads, _ := vmap.stats()
	assert.Equal(t, 1, loads)
	assert.True(t, first.IsFullyLoaded())
}

func TestGetGridConcurrent(t *testing.T) {
	info, vmap, _ := newTestTerrain(t, 1)

	const workers = 16
	results := make([]*GridMap, workers)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = info.GetGrid(0, 0, false)
		}(i)
	}
	wg.Wait()

	for i := 1; i < workers; i++ {
		require.NotNil(t, results[i])
		assert.Same(t, results[0], results[i])
	}

	loads, _ := vmap.stats()
	assert.Equal(t, 1, loads)
}

func TestGetGridStickyFailure(t *testing.T) {
	const mapID = 2
	dir := t.TempDir()
	name := newTileBuilder().withBadMagic().withFlatHeight(t, 100).writeTile(t, dir, mapID, 32, 32)

	info := NewTerrainInfo(mapID, testConfig(dir), NullVMapProvider{}, NullMMapProvider{}, meta.EmptyStore{})

	assert.Nil(t, info.GetGrid(0, 0, false))
	assert.True(t, info.IsLoadAttempted(32, 32))

	// Файл починили, но путь запросов повторять загрузку не должен
	require.NoError(t, writeRaw(name, newTileBuilder().withFlatHeight(t, 100).encode(t)))
	assert.Nil(t, info.GetGrid(0, 0, false))

	// Явная загрузка пробует заново
	gm := info.Load(32, 32, false)
	require.NotNil(t, gm)
	assert.Equal(t, float32(100), gm.getHeight(0, 0))
}

func TestRefUnrefNeverNegative(t *testing.T) {
	info, _, _ := newTestTerrain(t, 1)

	assert.Equal(t, 1, info.RefGrid(32, 32))
	assert.Equal(t, 2, info.RefGrid(32, 32))
	assert.Equal(t, 3, info.RefGrid(32, 32))
	assert.True(t, info.IsReferenced())

	assert.Equal(t, 2, info.UnrefGrid(32, 32))
	assert.Equal(t, 1, info.UnrefGrid(32, 32))
	assert.Equal(t, 0, info.UnrefGrid(32, 32))
	assert.Equal(t, 0, info.UnrefGrid(32, 32))
	assert.False(t, info.IsReferenced())
}

func TestCleanUpGridsEvictsUnreferenced(t *testing.T) {
	const mapID = 3
	dir := t.TempDir()
	newTileBuilder().withFlatHeight(t, 100).writeTile(t, dir, mapID, 32, 32)
	newTileBuilder().withFlatHeight(t, 200).writeTile(t, dir, mapID, 32, 33)

	vmap := newCountingVMap()
	info := NewTerrainInfo(mapID, testConfig(dir), vmap, NullMMapProvider{}, meta.EmptyStore{})

	// (32, 32) берём со ссылкой, (32, 33) — без
	require.NotNil(t, info.Load(32, 32, false))
	require.NotNil(t, info.GetGrid(0, -800, false))

	// Интервал ещё не истёк: ничего не выгружаем
	info.CleanUpGrids(1000)
	assert.NotNil(t, info.grids[32][33].Load())

	// Начальная фаза не превышает 40с, интервал 60с
	info.CleanUpGrids(200_000)

	assert.NotNil(t, info.grids[32][32].Load(), "тайл со ссылкой выгружаться не должен")
	assert.Nil(t, info.grids[32][33].Load())
	assert.False(t, info.IsLoadAttempted(32, 33))

	_, unloads := vmap.stats()
	assert.Equal(t, 1, unloads)

	// После Unload и следующего цикла уходит и первый тайл
	info.Unload(32, 32)
	info.CleanUpGrids(200_000)
	assert.Nil(t, info.grids[32][32].Load())
}

func TestEvictedTileReloadsOnDemand(t *testing.T) {
	info, vmap, _ := newTestTerrain(t, 1)

	require.NotNil(t, info.GetGrid(0, 0, false))
	info.CleanUpGrids(300_000)
	require.Nil(t, info.grids[32][32].Load())

	// Выгрузка сбрасывает липкий флаг: запрос загружает тайл заново
	gm := info.GetGrid(0, 0, false)
	require.NotNil(t, gm)
	assert.Equal(t, float32(100), gm.getHeight(0, 0))

	loads, _ := vmap.stats()
	assert.Equal(t, 2, loads)
}

func TestMissingTileIsEmptyNotError(t *testing.T) {
	// Файла на диске нет: тайл загружается пустым, запросы дают сентинелы
	dir := t.TempDir()
	info := NewTerrainInfo(9, testConfig(dir), NullVMapProvider{}, NullMMapProvider{}, meta.EmptyStore{})

	gm := info.GetGrid(0, 0, false)
	require.NotNil(t, gm)
	assert.Equal(t, InvalidHeight, gm.getHeight(0, 0))
	assert.Equal(t, InvalidHeight, info.GetHeightStatic(0, 0, 50, true, DefaultHeightSearch))
}

func TestGetHeightStaticFromGrid(t *testing.T) {
	info, _, _ := newTestTerrain(t, 1)

	h := info.GetHeightStatic(0, 0, 150, true, DefaultHeightSearch)
	assert.Equal(t, float32(100), h)
}

// plateauVMap отдаёт фиксированный пол коллизионной геометрии
type plateauVMap struct {
	NullVMapProvider
	floor float32
}

func (p plateauVMap) IsEnabled() bool { return true }

func (p plateauVMap) GetHeight(_ uint32, _, _, z, _ float32) float32 {
	if z >= p.floor {
		return p.floor
	}
	return VMapInvalidHeight
}

func TestGetHeightStaticPrefersVMapAboveGround(t *testing.T) {
	const mapID = 1
	dir := t.TempDir()
	newTileBuilder().withFlatHeight(t, 100).writeTile(t, dir, mapID, 32, 32)

	// Мост на высоте 120 над землёй 100
	info := NewTerrainInfo(mapID, testConfig(dir), plateauVMap{floor: 120}, NullMMapProvider{}, meta.EmptyStore{})

	// Точка на мосту: пол — мост
	assert.Equal(t, float32(120), info.GetHeightStatic(0, 0, 121, true, DefaultHeightSearch))

	// Без коллизий — земля
	assert.Equal(t, float32(100), info.GetHeightStatic(0, 0, 121, false, DefaultHeightSearch))
}

func TestIsInWaterAndWaterLevel(t *testing.T) {
	const mapID = 4
	dir := t.TempDir()

	entry := make([]uint16, 16*16)
	flags := make([]uint8, 16*16)
	for i := range entry {
		entry[i] = 1
		flags[i] = LiquidTypeWater
	}
	levels := make([]float32, 128*128)
	for i := range levels {
		levels[i] = 10
	}
	newTileBuilder().
		withFlatHeight(t, 5).
		withLiquid(t, gridMapLiquidHeader{Width: 128, Height: 128}, entry, flags, levels).
		writeTile(t, dir, mapID, 32, 32)

	info := NewTerrainInfo(mapID, testConfig(dir), NullVMapProvider{}, NullMMapProvider{}, meta.EmptyStore{})

	assert.True(t, info.IsInWater(0, 0, 9, nil))
	assert.False(t, info.IsInWater(0, 0, 15, nil))

	under, level := info.IsUnderWater(0, 0, 7)
	assert.True(t, under)
	assert.Equal(t, float32(10), level)

	under, _ = info.IsUnderWater(0, 0, 9.9)
	assert.False(t, under)

	waterLevel, groundLevel := info.GetWaterLevel(0, 0, 9)
	assert.Equal(t, float32(10), waterLevel)
	assert.Equal(t, float32(5), groundLevel)

	// Пловец держится чуть ниже поверхности
	assert.Equal(t, float32(10)-2, info.GetWaterOrGroundLevel(0, 0, 5, true, 2))
	// Пешеход получает уровень воды
	assert.Equal(t, float32(10), info.GetWaterOrGroundLevel(0, 0, 5, false, 2))

	assert.True(t, info.IsSwimmable(0, 0, 9, 1.5, nil))
	assert.False(t, info.IsSwimmable(0, 0, 9, 8, nil))
}

func TestGetAreaIDFromGrid(t *testing.T) {
	const mapID = 5
	dir := t.TempDir()
	newTileBuilder().
		withArea(t, 99, nil).
		withFlatHeight(t, 100).
		writeTile(t, dir, mapID, 32, 32)

	store := meta.NewStaticStore(nil, []meta.AreaEntry{
		{ID: 500, MapID: mapID, Zone: 600, ExploreFlag: 99, Names: []string{"Тестовая долина"}},
		{ID: 600, MapID: mapID, ExploreFlag: 98},
	}, nil)

	info := NewTerrainInfo(mapID, testConfig(dir), NullVMapProvider{}, NullMMapProvider{}, store)

	assert.Equal(t, uint32(500), info.GetAreaID(0, 0, 100))
	assert.Equal(t, uint32(600), info.GetZoneID(0, 0, 100))

	zoneID, areaID := info.GetZoneAndAreaID(0, 0, 100)
	assert.Equal(t, uint32(600), zoneID)
	assert.Equal(t, uint32(500), areaID)

	assert.Equal(t, "Тестовая долина", info.GetAreaName(0, 0, 100, 0))
	assert.Equal(t, "<unknown>", info.GetAreaName(0, 0, 100, 3))

	// Без WMO-данных точка считается открытой
	assert.True(t, info.IsOutdoors(0, 0, 100))
}
