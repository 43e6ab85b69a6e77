package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/annel0/mmo-terrain/internal/config"
	"github.com/annel0/mmo-terrain/internal/logging"
	"github.com/annel0/mmo-terrain/internal/meta"
	"github.com/annel0/mmo-terrain/internal/terrain"
)

// terrain-probe — консольный зонд терраин-данных: загружает тайл под
// точкой и печатает высоту, зону и состояние жидкости. Используется для
// проверки извлечённых данных без поднятия полного сервера.
func main() {
	configPath := flag.String("config", "", "путь к YAML конфигурации (или ENV TERRAIN_CONFIG)")
	mapID := flag.Uint("map", 0, "идентификатор карты")
	x := flag.Float64("x", 0, "мировая координата X")
	y := flag.Float64("y", 0, "мировая координата Y")
	z := flag.Float64("z", 0, "мировая координата Z")
	flag.Parse()

	if err := logging.InitDefaultLogger("terrain-probe"); err != nil {
		fmt.Fprintf(os.Stderr, "ошибка инициализации логирования: %v\n", err)
		os.Exit(1)
	}
	defer logging.CloseDefaultLogger()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logging.Error("Ошибка загрузки конфигурации: %v", err)
		os.Exit(1)
	}

	var store meta.Store = meta.EmptyStore{}
	if path := cfg.GetMetadataPath(); path != "" {
		s, err := meta.LoadStore(path)
		if err != nil {
			logging.Error("Ошибка загрузки таблиц метаданных: %v", err)
			os.Exit(1)
		}
		store = s
	}

	mgr := terrain.NewTerrainManager(cfg, terrain.NullVMapProvider{}, terrain.NullMMapProvider{}, store)
	defer mgr.UnloadAll()

	info := mgr.LoadTerrain(uint32(*mapID))

	fx, fy, fz := float32(*x), float32(*y), float32(*z)

	height := info.GetHeightStatic(fx, fy, fz, true, terrain.DefaultHeightSearch)
	fmt.Printf("карта %d, точка (%.2f, %.2f, %.2f)\n", *mapID, fx, fy, fz)
	if height <= terrain.InvalidHeight {
		fmt.Println("высота:   нет данных")
	} else {
		fmt.Printf("высота:   %.3f\n", height)
	}

	zoneID, areaID := info.GetZoneAndAreaID(fx, fy, fz)
	name := info.GetAreaName(fx, fy, fz, cfg.GetDefaultLocale())
	fmt.Printf("зона:     %d / area %d (%s)\n", zoneID, areaID, name)
	fmt.Printf("открытое небо: %v\n", info.IsOutdoors(fx, fy, fz))

	var liquid terrain.LiquidData
	status := info.GetLiquidStatus(fx, fy, fz, terrain.LiquidAllTypes, &liquid, terrain.DefaultCollisionHeight)
	if status == terrain.LiquidStatusNoWater {
		fmt.Println("жидкость: нет")
	} else {
		fmt.Printf("жидкость: статус=%s уровень=%.3f дно=%.3f тип=%d\n",
			liquidStatusName(status), liquid.Level, liquid.DepthLevel, liquid.Entry)
	}
}

func liquidStatusName(s terrain.LiquidStatus) string {
	switch {
	case s&terrain.LiquidStatusUnderWater != 0:
		return "под водой"
	case s&terrain.LiquidStatusInWater != 0:
		return "в воде"
	case s&terrain.LiquidStatusWaterWalk != 0:
		return "на поверхности"
	case s&terrain.LiquidStatusAboveWater != 0:
		return "над водой"
	default:
		return "нет воды"
	}
}
