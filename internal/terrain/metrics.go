package terrain

import (
	"strconv"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Метрики терраин-подсистемы. Регистрируются в дефолтном регистре при
// первом обращении; endpoint /metrics поднимает хост-процесс.
//
// * terrain_tiles_loaded_total{map}   — counter успешных загрузок тайлов
// * terrain_tile_load_errors_total{map} — counter ошибок формата/чтения
// * terrain_tiles_evicted_total{map}  — counter выгрузок по sweep
// * terrain_tiles_resident            — gauge тайлов в памяти
// * terrain_tile_load_duration_seconds — histogram длительности загрузки

type terrainMetrics struct {
	tilesLoaded   *prometheus.CounterVec
	loadErrors    *prometheus.CounterVec
	tilesEvicted  *prometheus.CounterVec
	tilesResident prometheus.Gauge
	loadDuration  prometheus.Histogram
}

var (
	metricsOnce sync.Once
	metrics     *terrainMetrics
)

// getMetrics возвращает singleton метрик, регистрируя их при первом вызове
func getMetrics() *terrainMetrics {
	metricsOnce.Do(func() {
		metrics = &terrainMetrics{
			tilesLoaded: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "terrain",
				Name:      "tiles_loaded_total",
				Help:      "Общее число успешно загруженных тайлов.",
			}, []string{"map"}),
			loadErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "terrain",
				Name:      "tile_load_errors_total",
				Help:      "Общее число ошибок загрузки тайлов.",
			}, []string{"map"}),
			tilesEvicted: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "terrain",
				Name:      "tiles_evicted_total",
				Help:      "Общее число тайлов, выгруженных сборщиком.",
			}, []string{"map"}),
			tilesResident: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "terrain",
				Name:      "tiles_resident",
				Help:      "Текущее количество тайлов в памяти.",
			}),
			loadDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
				Namespace: "terrain",
				Name:      "tile_load_duration_seconds",
				Help:      "Длительность загрузки тайла с диска.",
				Buckets:   []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25},
			}),
		}

		prometheus.MustRegister(
			metrics.tilesLoaded,
			metrics.loadErrors,
			metrics.tilesEvicted,
			metrics.tilesResident,
			metrics.loadDuration,
		)
	})
	return metrics
}

// mapLabel форматирует идентификатор карты для лейбла метрики
func mapLabel(mapID uint32) string {
	return strconv.FormatUint(uint64(mapID), 10)
}
