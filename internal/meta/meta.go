package meta

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Пакет meta содержит справочные таблицы зон и типов жидкостей.
// Терраин-движок потребляет их через узкий интерфейс Store; наполнение
// таблиц (из YAML или иного источника) — забота хост-процесса.

// LiquidOverrideSlots — количество категорий жидкости с поддержкой
// переопределения на уровне зоны (категории 1..20)
const LiquidOverrideSlots = 20

// LiquidType описывает тип жидкости из справочной таблицы
type LiquidType struct {
	ID   uint32 `yaml:"id"`
	Type uint32 `yaml:"type"` // индекс бита в маске терраин-типа (0..3)
}

// AreaEntry описывает зону из справочной таблицы
type AreaEntry struct {
	ID          uint32   `yaml:"id"`
	MapID       uint32   `yaml:"map_id"`
	Zone        uint32   `yaml:"zone"`         // 0 — сама зона является зоной верхнего уровня
	ExploreFlag uint16   `yaml:"explore_flag"` // флаг, хранящийся в area-блоке тайла
	Names       []string `yaml:"names"`        // имена по индексу локали

	// LiquidOverride[категория-1] — переопределение типа жидкости для зоны
	LiquidOverride [LiquidOverrideSlots]uint32 `yaml:"liquid_override"`
}

// WMOAreaEntry описывает запись WMO-зоны, адресуемую тройкой идентификаторов
type WMOAreaEntry struct {
	RootID  int32    `yaml:"root_id"`
	AdtID   int32    `yaml:"adt_id"`
	GroupID int32    `yaml:"group_id"`
	AreaID  uint32   `yaml:"area_id"`
	Names   []string `yaml:"names"`
}

// Store — интерфейс справочных таблиц, потребляемый терраин-движком
type Store interface {
	// LiquidTypeByID возвращает тип жидкости или nil
	LiquidTypeByID(id uint32) *LiquidType

	// AreaByID возвращает зону по идентификатору или nil
	AreaByID(id uint32) *AreaEntry

	// AreaByFlagAndMap возвращает зону по explore-флагу и карте или nil
	AreaByFlagAndMap(flag uint16, mapID uint32) *AreaEntry

	// WMOAreaByTriple возвращает WMO-зоны по тройке (root, adt, group)
	WMOAreaByTriple(rootID, adtID, groupID int32) []*WMOAreaEntry
}

type wmoTriple struct {
	rootID, adtID, groupID int32
}

// StaticStore — неизменяемая реализация Store поверх предзагруженных таблиц
type StaticStore struct {
	liquids    map[uint32]*LiquidType
	areas      map[uint32]*AreaEntry
	areasByKey map[uint64]*AreaEntry // (mapID<<16 | flag)
	wmoAreas   map[wmoTriple][]*WMOAreaEntry
}

// tablesFile — формат YAML файла с таблицами
type tablesFile struct {
	LiquidTypes []LiquidType   `yaml:"liquid_types"`
	Areas       []AreaEntry    `yaml:"areas"`
	WMOAreas    []WMOAreaEntry `yaml:"wmo_areas"`
}

// NewStaticStore строит хранилище из готовых записей
func NewStaticStore(liquids []LiquidType, areas []AreaEntry, wmoAreas []WMOAreaEntry) *StaticStore {
	s := &StaticStore{
		liquids:    make(map[uint32]*LiquidType, len(liquids)),
		areas:      make(map[uint32]*AreaEntry, len(areas)),
		areasByKey: make(map[uint64]*AreaEntry, len(areas)),
		wmoAreas:   make(map[wmoTriple][]*WMOAreaEntry),
	}

	for i := range liquids {
		lt := liquids[i]
		s.liquids[lt.ID] = &lt
	}
	for i := range areas {
		ae := areas[i]
		s.areas[ae.ID] = &ae
		s.areasByKey[areaKey(ae.ExploreFlag, ae.MapID)] = &ae
	}
	for i := range wmoAreas {
		we := wmoAreas[i]
		key := wmoTriple{rootID: we.RootID, adtID: we.AdtID, groupID: we.GroupID}
		s.wmoAreas[key] = append(s.wmoAreas[key], &we)
	}

	return s
}

// LoadStore читает таблицы из YAML файла
func LoadStore(path string) (*StaticStore, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения таблиц метаданных: %w", err)
	}

	var f tablesFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("ошибка разбора таблиц метаданных: %w", err)
	}

	return NewStaticStore(f.LiquidTypes, f.Areas, f.WMOAreas), nil
}

func areaKey(flag uint16, mapID uint32) uint64 {
	return uint64(mapID)<<16 | uint64(flag)
}

// LiquidTypeByID возвращает тип жидкости или nil
func (s *StaticStore) LiquidTypeByID(id uint32) *LiquidType {
	return s.liquids[id]
}

// AreaByID возвращает зону по идентификатору или nil
func (s *StaticStore) AreaByID(id uint32) *AreaEntry {
	return s.areas[id]
}

// AreaByFlagAndMap возвращает зону по explore-флагу и карте или nil
func (s *StaticStore) AreaByFlagAndMap(flag uint16, mapID uint32) *AreaEntry {
	return s.areasByKey[areaKey(flag, mapID)]
}

// WMOAreaByTriple возвращает WMO-зоны по тройке (root, adt, group)
func (s *StaticStore) WMOAreaByTriple(rootID, adtID, groupID int32) []*WMOAreaEntry {
	return s.wmoAreas[wmoTriple{rootID: rootID, adtID: adtID, groupID: groupID}]
}

// EmptyStore — заглушка без единой записи; все запросы дают nil
type EmptyStore struct{}

// LiquidTypeByID всегда возвращает nil
func (EmptyStore) LiquidTypeByID(uint32) *LiquidType { return nil }

// AreaByID всегда возвращает nil
func (EmptyStore) AreaByID(uint32) *AreaEntry { return nil }

// AreaByFlagAndMap всегда возвращает nil
func (EmptyStore) AreaByFlagAndMap(uint16, uint32) *AreaEntry { return nil }

// WMOAreaByTriple всегда возвращает nil
func (EmptyStore) WMOAreaByTriple(int32, int32, int32) []*WMOAreaEntry { return nil }
