package terrain

import (
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/annel0/mmo-terrain/internal/config"
	"github.com/annel0/mmo-terrain/internal/logging"
	"github.com/annel0/mmo-terrain/internal/meta"
	"github.com/annel0/mmo-terrain/internal/vec"
)

// TerrainInfo — кэш тайлов одного региона (карты): сетка MaxGrids×MaxGrids
// слотов с ленивой загрузкой, подсчётом ссылок и периодической выгрузкой
// незареференсенных тайлов. Тайл считается полностью загруженным только
// после подгрузки коллизионной геометрии и навмеша внешними провайдерами.
//
// Дисциплина блокировок: loadMu охраняет решение "грузить или нет" и
// выгрузку слота; refMu — мутацию счётчиков ссылок. Горячий путь чтения
// уже загруженного тайла обходится без блокировок: слот публикуется
// через atomic.Pointer строго после полной загрузки данных.
type TerrainInfo struct {
	mapID uint32
	cfg   *config.TerrainConfig
	vmap  VMapProvider
	mmap  MMapProvider
	meta  meta.Store

	grids         [MaxGrids][MaxGrids]atomic.Pointer[GridMap]
	loadAttempted [MaxGrids][MaxGrids]atomic.Bool
	refs          [MaxGrids][MaxGrids]int32

	loadMu sync.Mutex // решение о загрузке слота и его выгрузка
	refMu  sync.Mutex // счётчики ссылок

	sweep periodicTimer
}

// NewTerrainInfo создаёт кэш тайлов для карты mapID.
// Первая сборка стартует со случайной фазой 20–40 секунд, чтобы регионы,
// поднятые одновременно, не выгружали тайлы синхронно.
func NewTerrainInfo(mapID uint32, cfg *config.TerrainConfig, vmap VMapProvider, mmap MMapProvider, store meta.Store) *TerrainInfo {
	t := &TerrainInfo{
		mapID: mapID,
		cfg:   cfg,
		vmap:  vmap,
		mmap:  mmap,
		meta:  store,
	}

	t.sweep.SetInterval(int64(cfg.GetCleanupIntervalSec()) * 1000)
	t.sweep.SetCurrent((20 + rand.Int63n(21)) * 1000)

	return t
}

// MapID возвращает идентификатор карты региона
func (t *TerrainInfo) MapID() uint32 {
	return t.mapID
}

// gridCoords переводит мировые координаты в индекс тайла
func gridCoords(x, y float32) vec.Vec2 {
	return vec.Vec2{
		X: int(CenterGridID - x/SizeOfGrids),
		Y: int(CenterGridID - y/SizeOfGrids),
	}
}

// Load загружает тайл по индексу и берёт на него ссылку.
// Явный вызов повторяет попытку даже после предыдущей неудачи
// (в отличие от пути запросов, где флаг неудачи липкий).
func (t *TerrainInfo) Load(gx, gy int, mapOnly bool) *GridMap {
	tile := vec.Vec2{X: gx, Y: gy}
	if !tile.InBounds(MaxGrids) {
		return nil
	}

	// Сначала берём ссылку, чтобы sweep не выгрузил тайл под нами
	t.RefGrid(gx, gy)

	if gm := t.grids[gx][gy].Load(); gm != nil && (mapOnly || gm.IsFullyLoaded()) {
		return gm
	}

	return t.loadMapAndVMap(gx, gy, mapOnly)
}

// Unload снимает ссылку с тайла; сам тайл выгрузит следующий sweep
func (t *TerrainInfo) Unload(gx, gy int) {
	tile := vec.Vec2{X: gx, Y: gy}
	if !tile.InBounds(MaxGrids) {
		return
	}

	if t.grids[gx][gy].Load() != nil {
		if t.UnrefGrid(gx, gy) == 0 {
			t.loadAttempted[gx][gy].Store(false)
		}
	}
}

// RefGrid увеличивает счётчик ссылок тайла
func (t *TerrainInfo) RefGrid(gx, gy int) int {
	t.refMu.Lock()
	defer t.refMu.Unlock()
	t.refs[gx][gy]++
	return int(t.refs[gx][gy])
}

// UnrefGrid уменьшает счётчик ссылок; ниже нуля не опускается
func (t *TerrainInfo) UnrefGrid(gx, gy int) int {
	t.refMu.Lock()
	defer t.refMu.Unlock()
	if t.refs[gx][gy] > 0 {
		t.refs[gx][gy]--
	}
	return int(t.refs[gx][gy])
}

// IsReferenced сообщает, остались ли внешние ссылки хоть на один тайл
func (t *TerrainInfo) IsReferenced() bool {
	t.refMu.Lock()
	defer t.refMu.Unlock()
	for x := 0; x < MaxGrids; x++ {
		for y := 0; y < MaxGrids; y++ {
			if t.refs[x][y] > 0 {
				return true
			}
		}
	}
	return false
}

// GetGrid возвращает тайл для мировых координат, лениво загружая его.
// Неудачная попытка липкая: повторные запросы не перечитывают заведомо
// отсутствующий или битый файл до явного Load.
func (t *TerrainInfo) GetGrid(x, y float32, mapOnly bool) *GridMap {
	tile := gridCoords(x, y)
	if !tile.InBounds(MaxGrids) {
		return nil
	}

	// Быстрый путь: тайл уже загружен
	gm := t.grids[tile.X][tile.Y].Load()
	if gm == nil && t.loadAttempted[tile.X][tile.Y].Load() {
		return nil
	}
	if gm == nil || (!gm.IsFullyLoaded() && !mapOnly) {
		gm = t.loadMapAndVMap(tile.X, tile.Y, mapOnly)
	}

	return gm
}

// loadMapAndVMap загружает тайл с диска и, если mapOnly не задан,
// инициирует загрузку коллизий и навмеша у внешних провайдеров
func (t *TerrainInfo) loadMapAndVMap(gx, gy int, mapOnly bool) *GridMap {
	tile := vec.Vec2{X: gx, Y: gy}

	if gm := t.grids[gx][gy].Load(); gm != nil {
		if mapOnly || (t.vmap.IsTileLoaded(t.mapID, tile) && t.mmap.IsLoaded(t.mapID, tile)) {
			// загружать нечего
			if !mapOnly {
				gm.SetFullyLoaded()
			}
			return gm
		}
	}

	t.loadMu.Lock()
	// Паттерн двойной проверки: слот мог заполнить конкурирующий загрузчик
	if t.grids[gx][gy].Load() == nil {
		m := getMetrics()
		gm := NewGridMap()
		filename := MapFileName(t.cfg.GetDataPath(), t.mapID, gx, gy)
		logging.Debug("Загрузка тайла %s", filename)

		started := time.Now()
		err := gm.LoadData(filename)
		m.loadDuration.Observe(time.Since(started).Seconds())

		t.loadAttempted[gx][gy].Store(true)
		if err != nil {
			logging.Error("Ошибка загрузки тайла %s: %v", filename, err)
			m.loadErrors.WithLabelValues(mapLabel(t.mapID)).Inc()
			t.loadMu.Unlock()
			return nil
		}

		m.tilesLoaded.WithLabelValues(mapLabel(t.mapID)).Inc()
		m.tilesResident.Inc()
		// Публикация после полной загрузки: читатели быстрого пути
		// никогда не видят полузаполненный тайл
		t.grids[gx][gy].Store(gm)
	}
	t.loadMu.Unlock()

	gm := t.grids[gx][gy].Load()

	// Остальное догрузим позже
	if mapOnly {
		return gm
	}

	if !t.vmap.IsTileLoaded(t.mapID, tile) {
		switch t.vmap.LoadTile(t.cfg.GetDataPath(), t.mapID, tile) {
		case VMapLoadOK:
			logging.Debug("VMap загружен: карта %d, тайл (%d, %d)", t.mapID, gx, gy)
		case VMapLoadError:
			logging.Debug("VMap не загружен: карта %d, тайл (%d, %d)", t.mapID, gx, gy)
		case VMapLoadIgnored:
			logging.Trace("VMap отсутствует: карта %d, тайл (%d, %d)", t.mapID, gx, gy)
		}
	}

	if !t.mmap.IsLoaded(t.mapID, tile) {
		t.mmap.LoadTile(t.mapID, tile)
	}

	if gm != nil {
		gm.SetFullyLoaded()
	}

	return gm
}

// CleanUpGrids продвигает таймер сборки и по срабатыванию выгружает
// все тайлы со счётчиком ссылок 0 (вместе с их коллизиями и навмешем)
func (t *TerrainInfo) CleanUpGrids(diffMs int64) {
	t.sweep.Update(diffMs)
	if !t.sweep.Passed() {
		return
	}

	m := getMetrics()

	// Держим loadMu на время выгрузки, чтобы конкурирующий загрузчик
	// не заселил слот, который мы выгружаем
	t.loadMu.Lock()
	for y := 0; y < MaxGrids; y++ {
		for x := 0; x < MaxGrids; x++ {
			gm := t.grids[x][y].Load()
			if gm == nil {
				continue
			}

			t.refMu.Lock()
			ref := t.refs[x][y]
			t.refMu.Unlock()
			if ref != 0 {
				continue
			}

			t.grids[x][y].Store(nil)
			t.loadAttempted[x][y].Store(false)
			gm.unloadData()

			tile := vec.Vec2{X: x, Y: y}
			t.vmap.UnloadTile(t.mapID, tile)
			t.mmap.UnloadTile(t.mapID, tile)

			m.tilesEvicted.WithLabelValues(mapLabel(t.mapID)).Inc()
			m.tilesResident.Dec()
		}
	}
	t.loadMu.Unlock()

	t.sweep.Reset()
}

// shutdown выгружает все тайлы региона и данные внешних провайдеров
func (t *TerrainInfo) shutdown() {
	m := getMetrics()

	t.loadMu.Lock()
	for x := 0; x < MaxGrids; x++ {
		for y := 0; y < MaxGrids; y++ {
			if gm := t.grids[x][y].Load(); gm != nil {
				t.grids[x][y].Store(nil)
				gm.unloadData()
				m.tilesResident.Dec()
			}
			t.loadAttempted[x][y].Store(false)
		}
	}
	t.loadMu.Unlock()

	t.vmap.UnloadMap(t.mapID)
	t.mmap.UnloadMap(t.mapID)
}

// IsLoadAttempted сообщает, была ли попытка загрузки слота (включая неудачную)
func (t *TerrainInfo) IsLoadAttempted(gx, gy int) bool {
	tile := vec.Vec2{X: gx, Y: gy}
	return tile.InBounds(MaxGrids) && t.loadAttempted[gx][gy].Load()
}

// CanCheckLiquidLevel проверяет, есть ли в точке источник данных о жидкости
func (t *TerrainInfo) CanCheckLiquidLevel(x, y float32) bool {
	if t.vmap.IsEnabled() {
		return true
	}
	return t.GetGrid(x, y, false) != nil
}

// GetHeightStatic возвращает высоту пола под точкой, объединяя картное
// высотное поле с коллизионной геометрией. Поиск по коллизиям ведётся
// из точки чуть выше z ("коридором" maxSearchDist), с расширением до
// картной высоты, чтобы не промахнуться при большом зазоре до земли.
func (t *TerrainInfo) GetHeightStatic(x, y, z float32, useVmaps bool, maxSearchDist float32) float32 {
	mapHeight := VMapInvalidHeight
	vmapHeight := VMapInvalidHeight

	if gmap := t.GetGrid(x, y, false); gmap != nil {
		mapHeight = gmap.getHeight(x, y)
	}

	if useVmaps && t.vmap.IsEnabled() {
		z2 := z + 2.0

		// Если картная высота известна, ищем как минимум до неё
		if mapHeight > InvalidHeight && z2-mapHeight > maxSearchDist {
			maxSearchDist = z2 - mapHeight + 1.0
		}

		vmapHeight = t.vmap.GetHeight(t.mapID, x, y, z2, maxSearchDist)

		// Не нашли в ожидаемом диапазоне — ищем без ограничения вниз
		if vmapHeight <= InvalidHeight {
			vmapHeight = t.vmap.GetHeight(t.mapID, x, y, z2, 10000.0)
		}

		// Ищем вверх: точка может быть глубоко под полом
		if vmapHeight <= InvalidHeight && mapHeight > z2 && abs32(z2-mapHeight) > 30 {
			vmapHeight = t.vmap.GetHeight(t.mapID, x, y, z2, -maxSearchDist)
		}

		// Последняя попытка: ищем около картной высоты
		if vmapHeight <= InvalidHeight && mapHeight > InvalidHeight && z2 < mapHeight {
			vmapHeight = t.vmap.GetHeight(t.mapID, x, y, mapHeight+2.0, DefaultHeightSearch)
		}
	}

	if vmapHeight > InvalidHeight {
		if mapHeight > InvalidHeight {
			// Есть обе высоты: под поверхностью или коллизии выше карты —
			// берём коллизионную, иначе картную
			if z < mapHeight || vmapHeight > mapHeight {
				return vmapHeight
			}
			return mapHeight
		}
		return vmapHeight
	}

	return mapHeight
}

// GetAreaInfo возвращает WMO-информацию зоны в точке, отбрасывая
// результат, если между точкой и WMO-объектом лежит терраин
func (t *TerrainInfo) GetAreaInfo(x, y, z float32) (flags uint32, adtID, rootID, groupID int32, ok bool) {
	flags, adtID, rootID, groupID, ok = t.vmap.GetAreaInfo(t.mapID, x, y, z)
	if !ok {
		return 0, 0, 0, 0, false
	}

	if gmap := t.GetGrid(x, y, false); gmap != nil {
		mapHeight := gmap.getHeight(x, y)
		if z+2.0 > mapHeight && mapHeight > z {
			return 0, 0, 0, 0, false
		}
	}

	return flags, adtID, rootID, groupID, true
}

// isOutdoorWMO интерпретирует mogp-флаги WMO-группы.
// На карте 530 подъём в седло разрешён и при флаге 0x0008.
func isOutdoorWMO(mogpFlags uint32, mapID uint32) bool {
	if mapID == 530 {
		return mogpFlags&0x8008 != 0
	}
	return mogpFlags&0x8000 != 0
}

// IsOutdoors сообщает, находится ли точка под открытым небом.
// Точка вне WMO-объектов считается открытой по умолчанию.
func (t *TerrainInfo) IsOutdoors(x, y, z float32) bool {
	mogpFlags, _, _, _, ok := t.GetAreaInfo(x, y, z)
	if !ok {
		return true
	}
	return isOutdoorWMO(mogpFlags, t.mapID)
}

// GetAreaFlag возвращает explore-флаг зоны в точке и признак открытого
// неба. Приоритет у WMO-данных; при их отсутствии — area-блок тайла.
func (t *TerrainInfo) GetAreaFlag(x, y, z float32) (areaflag uint16, outdoors bool) {
	mogpFlags, adtID, rootID, groupID, haveAreaInfo := t.GetAreaInfo(x, y, z)

	var atEntry *meta.AreaEntry
	if haveAreaInfo {
		for _, wmoEntry := range t.meta.WMOAreaByTriple(rootID, adtID, groupID) {
			if areaEntry := t.meta.AreaByID(wmoEntry.AreaID); areaEntry != nil && areaEntry.MapID == t.mapID {
				atEntry = areaEntry
			}
		}
	}

	if atEntry != nil {
		areaflag = atEntry.ExploreFlag
	} else if gmap := t.GetGrid(x, y, true); gmap != nil {
		areaflag = gmap.getArea(x, y)
	}

	outdoors = true
	if haveAreaInfo {
		outdoors = isOutdoorWMO(mogpFlags, t.mapID)
	}

	return areaflag, outdoors
}

// GetAreaName возвращает локализованное имя зоны в точке.
// Сначала WMO-таблица, затем таблица зон, затем "<unknown>".
func (t *TerrainInfo) GetAreaName(x, y, z float32, langIndex int) string {
	const fallbackName = "<unknown>"

	if _, adtID, rootID, groupID, ok := t.GetAreaInfo(x, y, z); ok {
		wmoEntries := t.meta.WMOAreaByTriple(rootID, adtID, groupID)
		if len(wmoEntries) > 0 {
			if name := localizedName(wmoEntries[0].Names, langIndex); name != "" {
				return name
			}
			// Пустое имя WMO-записи — берём имя родительской зоны
			if aEntry := t.meta.AreaByID(wmoEntries[0].AreaID); aEntry != nil {
				if name := localizedName(aEntry.Names, langIndex); name != "" {
					return name
				}
			}
		}
	}

	if gmap := t.GetGrid(x, y, true); gmap != nil {
		areaflag := gmap.getArea(x, y)
		if entry := t.meta.AreaByFlagAndMap(areaflag, t.mapID); entry != nil {
			if name := localizedName(entry.Names, langIndex); name != "" {
				return name
			}
		}
	}

	return fallbackName
}

// localizedName возвращает имя по индексу локали или пустую строку
func localizedName(names []string, langIndex int) string {
	if langIndex >= 0 && langIndex < len(names) {
		return names[langIndex]
	}
	return ""
}

// GetTerrainType возвращает флаги жидкости ячейки в точке
func (t *TerrainInfo) GetTerrainType(x, y float32) uint8 {
	if gmap := t.GetGrid(x, y, false); gmap != nil {
		return gmap.getTerrainType(x, y)
	}
	return 0
}

// GetAreaID возвращает идентификатор зоны в точке
func (t *TerrainInfo) GetAreaID(x, y, z float32) uint32 {
	flag, _ := t.GetAreaFlag(x, y, z)
	return AreaIDByAreaFlag(t.meta, flag, t.mapID)
}

// GetZoneID возвращает идентификатор зоны верхнего уровня в точке
func (t *TerrainInfo) GetZoneID(x, y, z float32) uint32 {
	flag, _ := t.GetAreaFlag(x, y, z)
	return ZoneIDByAreaFlag(t.meta, flag, t.mapID)
}

// GetZoneAndAreaID возвращает оба идентификатора за один поиск
func (t *TerrainInfo) GetZoneAndAreaID(x, y, z float32) (zoneID, areaID uint32) {
	flag, _ := t.GetAreaFlag(x, y, z)
	return ZoneAndAreaIDByAreaFlag(t.meta, flag, t.mapID)
}

// GetLiquidStatus классифицирует точку относительно жидкости.
// Приоритет у коллизионных данных (WMO-вода); картная жидкость служит
// фолбэком и не перекрывает результат "над водой" результатом "нет воды".
func (t *TerrainInfo) GetLiquidStatus(x, y, z float32, reqLiquidType uint8, data *LiquidData, collisionHeight float32) LiquidStatus {
	result := LiquidStatusNoWater
	groundLevel := t.GetHeightStatic(x, y, z, true, DefaultWaterSearch)

	if level, floor, liquidType, ok := t.vmap.GetLiquidLevel(t.mapID, x, y, z, reqLiquidType); ok {
		if floor > VMapInvalidHeight {
			groundLevel = floor
		}

		if level > groundLevel && z > groundLevel-2 {
			if data != nil {
				var liquidFlagType uint32
				if liq := t.meta.LiquidTypeByID(liquidType); liq != nil {
					liquidFlagType = liq.Type
				}

				if liquidType != 0 && liquidType < 21 {
					flag, _ := t.GetAreaFlag(x, y, z)
					if area := t.meta.AreaByFlagAndMap(flag, t.mapID); area != nil {
						overrideLiquid := area.LiquidOverride[liquidType-1]
						if overrideLiquid == 0 && area.Zone != 0 {
							if area = t.meta.AreaByID(area.Zone); area != nil {
								overrideLiquid = area.LiquidOverride[liquidType-1]
							}
						}

						if liq := t.meta.LiquidTypeByID(overrideLiquid); liq != nil {
							liquidType = overrideLiquid
							liquidFlagType = liq.Type
						}
					}
				}

				data.Level = level
				data.DepthLevel = groundLevel
				data.Entry = liquidType
				data.TypeFlags = uint8(1 << liquidFlagType)
			}

			delta := level - z
			switch {
			case delta > collisionHeight:
				return LiquidStatusUnderWater
			case delta > 0:
				return LiquidStatusInWater
			case delta > -1:
				return LiquidStatusWaterWalk
			}
			result = LiquidStatusAboveWater
		}
	} else if gmap := t.GetGrid(x, y, false); gmap != nil {
		var mapData LiquidData
		mapResult := gmap.getLiquidStatus(t.meta, t.mapID, x, y, z, reqLiquidType, &mapData, collisionHeight)
		// "Над водой" не перекрываем "нет воды"
		if mapResult != LiquidStatusNoWater && mapData.Level > groundLevel {
			if data != nil {
				*data = mapData
			}
			return mapResult
		}
	}

	return result
}

// IsInWater проверяет наличие жидкости любого типа в точке
func (t *TerrainInfo) IsInWater(x, y, z float32, data *LiquidData) bool {
	if !t.CanCheckLiquidLevel(x, y) {
		return false
	}

	var liquidStatus LiquidData
	liquidPtr := data
	if liquidPtr == nil {
		liquidPtr = &liquidStatus
	}
	status := t.GetLiquidStatus(x, y, z, LiquidAllTypes, liquidPtr, DefaultCollisionHeight)
	return status&(LiquidStatusInWater|LiquidStatusUnderWater) != 0
}

// IsSwimmable проверяет, достаточно ли в точке глубины для плавания
func (t *TerrainInfo) IsSwimmable(x, y, z, radius float32, data *LiquidData) bool {
	if !t.CanCheckLiquidLevel(x, y) {
		return false
	}

	var liquidStatus LiquidData
	liquidPtr := data
	if liquidPtr == nil {
		liquidPtr = &liquidStatus
	}
	if t.GetLiquidStatus(x, y, z, LiquidAllTypes, liquidPtr, DefaultCollisionHeight) != LiquidStatusNoWater {
		return liquidPtr.Level-liquidPtr.DepthLevel > radius // хватает ли глубины
	}
	return false
}

// IsUnderWater проверяет полное погружение в воду или океан
func (t *TerrainInfo) IsUnderWater(x, y, z float32) (bool, float32) {
	if !t.CanCheckLiquidLevel(x, y) {
		return false, InvalidHeight
	}

	var mapData LiquidData
	status := t.GetLiquidStatus(x, y, z, LiquidTypeWater|LiquidTypeOcean, &mapData, DefaultCollisionHeight)
	if status&LiquidStatusUnderWater != 0 {
		return true, mapData.Level
	}
	return false, InvalidHeight
}

// GetWaterLevel возвращает уровень жидкости в точке и уровень земли
func (t *TerrainInfo) GetWaterLevel(x, y, z float32) (waterLevel, groundLevel float32) {
	if !t.CanCheckLiquidLevel(x, y) {
		return VMapInvalidHeight, VMapInvalidHeight
	}

	groundLevel = t.GetHeightStatic(x, y, z, true, DefaultWaterSearch)

	var liquidStatus LiquidData
	if t.GetLiquidStatus(x, y, groundLevel, LiquidAllTypes, &liquidStatus, DefaultCollisionHeight) == LiquidStatusNoWater {
		return VMapInvalidHeight, groundLevel
	}

	return liquidStatus.Level, groundLevel
}

// GetWaterOrGroundLevel возвращает верхнюю из поверхностей (вода/земля).
// При swim для достаточно глубокой воды возвращается уровень под
// поверхностью, чтобы пловец не считался стоящим на воде.
func (t *TerrainInfo) GetWaterOrGroundLevel(x, y, groundZ float32, swim bool, minWaterDeep float32) float32 {
	if !t.CanCheckLiquidLevel(x, y) {
		return VMapInvalidHeight
	}

	var liquidStatus LiquidData
	res := t.GetLiquidStatus(x, y, groundZ, LiquidAllTypes, &liquidStatus, DefaultCollisionHeight)
	if res == LiquidStatusNoWater {
		return groundZ
	}

	if swim {
		if liquidStatus.Level-groundZ > minWaterDeep {
			return liquidStatus.Level - minWaterDeep
		}
		// мелководье — возвращаем дно
		return groundZ
	}

	return liquidStatus.Level
}

func abs32(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}
