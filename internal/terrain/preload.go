package terrain

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/annel0/mmo-terrain/internal/logging"
)

// PreloadAll прогревает регион: параллельно загружает все тайлы карты,
// для которых на диске есть файл данных. Загруженные тайлы остаются
// зареференсенными до остановки региона (прогретый регион не подлежит
// сборке). Количество воркеров задаётся конфигурацией.
//
// Возвращается первая ошибка загрузки; остальные воркеры при этом
// доводят уже начатые тайлы и останавливаются.
func (t *TerrainInfo) PreloadAll(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(t.cfg.GetPreloadWorkers())

	dataPath := t.cfg.GetDataPath()
	loaded := 0

	for gx := 0; gx < MaxGrids; gx++ {
		for gy := 0; gy < MaxGrids; gy++ {
			if !ExistMap(dataPath, t.mapID, gx, gy) {
				continue
			}
			loaded++

			gx, gy := gx, gy
			g.Go(func() error {
				if err := ctx.Err(); err != nil {
					return err
				}
				if t.Load(gx, gy, false) == nil {
					filename := MapFileName(dataPath, t.mapID, gx, gy)
					return &PreloadError{MapID: t.mapID, GX: gx, GY: gy, Filename: filename}
				}
				return nil
			})
		}
	}

	err := g.Wait()
	if err == nil {
		logging.Info("Карта %d прогрета: %d тайлов", t.mapID, loaded)
	}
	return err
}

// PreloadError описывает неудачную загрузку тайла при прогреве
type PreloadError struct {
	MapID    uint32
	GX, GY   int
	Filename string
}

func (e *PreloadError) Error() string {
	return "не удалось прогреть тайл " + e.Filename
}
