package terrain

import (
	"sync"

	"github.com/annel0/mmo-terrain/internal/config"
	"github.com/annel0/mmo-terrain/internal/logging"
	"github.com/annel0/mmo-terrain/internal/meta"
)

// TerrainManager — реестр регионов: по одному TerrainInfo на карту,
// создаваемому при первом обращении. Все регионы делят конфигурацию,
// справочные таблицы и провайдеров коллизий/навмешей.
type TerrainManager struct {
	mu       sync.Mutex
	terrains map[uint32]*TerrainInfo

	cfg  *config.TerrainConfig
	vmap VMapProvider
	mmap MMapProvider
	meta meta.Store
}

// NewTerrainManager создаёт пустой реестр регионов
func NewTerrainManager(cfg *config.TerrainConfig, vmap VMapProvider, mmap MMapProvider, store meta.Store) *TerrainManager {
	return &TerrainManager{
		terrains: make(map[uint32]*TerrainInfo),
		cfg:      cfg,
		vmap:     vmap,
		mmap:     mmap,
		meta:     store,
	}
}

// LoadTerrain возвращает регион карты, создавая его при первом обращении.
// Повторные вызовы с тем же mapID возвращают тот же объект.
func (m *TerrainManager) LoadTerrain(mapID uint32) *TerrainInfo {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.terrains[mapID]
	if !ok {
		t = NewTerrainInfo(mapID, m.cfg, m.vmap, m.mmap, m.meta)
		m.terrains[mapID] = t
		logging.Info("Регион карты %d зарегистрирован", mapID)
	}

	return t
}

// GetTerrain возвращает регион карты, если он уже создан
func (m *TerrainManager) GetTerrain(mapID uint32) *TerrainInfo {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.terrains[mapID]
}

// UnloadTerrain выгружает регион карты целиком.
// Регион с внешними ссылками не трогаем; выгрузка должна быть явно
// разрешена конфигурацией.
func (m *TerrainManager) UnloadTerrain(mapID uint32) {
	if !m.cfg.AllowGridUnload() {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.terrains[mapID]
	if !ok {
		return
	}
	if t.IsReferenced() {
		return
	}

	delete(m.terrains, mapID)
	t.shutdown()
	logging.Info("Регион карты %d выгружен", mapID)
}

// Update продвигает таймеры сборки всех регионов
func (m *TerrainManager) Update(diffMs int64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, t := range m.terrains {
		t.CleanUpGrids(diffMs)
	}
}

// UnloadAll выгружает все регионы независимо от ссылок (останов сервиса)
func (m *TerrainManager) UnloadAll() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for mapID, t := range m.terrains {
		t.shutdown()
		delete(m.terrains, mapID)
	}
}

// AreaIDByAreaFlag возвращает идентификатор зоны по explore-флагу
func AreaIDByAreaFlag(store meta.Store, areaflag uint16, mapID uint32) uint32 {
	if entry := store.AreaByFlagAndMap(areaflag, mapID); entry != nil {
		return entry.ID
	}
	return 0
}

// ZoneIDByAreaFlag возвращает идентификатор зоны верхнего уровня.
// Зона без родителя сама является зоной верхнего уровня.
func ZoneIDByAreaFlag(store meta.Store, areaflag uint16, mapID uint32) uint32 {
	if entry := store.AreaByFlagAndMap(areaflag, mapID); entry != nil {
		if entry.Zone != 0 {
			return entry.Zone
		}
		return entry.ID
	}
	return 0
}

// ZoneAndAreaIDByAreaFlag возвращает оба идентификатора за один поиск
func ZoneAndAreaIDByAreaFlag(store meta.Store, areaflag uint16, mapID uint32) (zoneID, areaID uint32) {
	entry := store.AreaByFlagAndMap(areaflag, mapID)
	if entry == nil {
		return 0, 0
	}

	areaID = entry.ID
	zoneID = entry.Zone
	if zoneID == 0 {
		zoneID = entry.ID
	}
	return zoneID, areaID
}
