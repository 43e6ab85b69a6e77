package config

import (
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// TerrainConfig корневая структура конфигурации терраин-сервиса.
// Значения из файла имеют приоритет; пустые поля добираются из ENV
// или дефолтов (см. Get*-методы).

type TerrainConfig struct {
	// DataPath — базовая директория с данными карт (maps/, vmaps/, mmaps/)
	DataPath string `yaml:"data_path"`

	// GridUnload разрешает выгрузку TerrainInfo целиком при UnloadTerrain
	GridUnload bool `yaml:"grid_unload"`

	// CleanupIntervalSec — период сборки незареференсенных тайлов (сек)
	CleanupIntervalSec int `yaml:"cleanup_interval_seconds"`

	// DefaultLocale — индекс локали для имён зон
	DefaultLocale int `yaml:"default_locale"`

	// PreloadWorkers — количество воркеров прогрева тайлов
	PreloadWorkers int `yaml:"preload_workers"`

	// MetadataPath — YAML с таблицами зон/типов жидкостей (пусто = без таблиц)
	MetadataPath string `yaml:"metadata_path"`
}

// GetDataPath возвращает путь к данным с приоритетом: config -> env -> default
func (c *TerrainConfig) GetDataPath() string {
	if c != nil && c.DataPath != "" {
		return c.DataPath
	}
	if env := os.Getenv("TERRAIN_DATA_PATH"); env != "" {
		return env
	}
	return "data"
}

// GetCleanupIntervalSec возвращает период сборки (config -> env -> 60)
func (c *TerrainConfig) GetCleanupIntervalSec() int {
	if c != nil && c.CleanupIntervalSec > 0 {
		return c.CleanupIntervalSec
	}
	return getIntWithEnvFallback("TERRAIN_CLEANUP_INTERVAL", 60)
}

// GetDefaultLocale возвращает индекс локали (config -> env -> 0)
func (c *TerrainConfig) GetDefaultLocale() int {
	if c != nil && c.DefaultLocale > 0 {
		return c.DefaultLocale
	}
	return getIntWithEnvFallback("TERRAIN_DEFAULT_LOCALE", 0)
}

// GetPreloadWorkers возвращает количество воркеров прогрева (config -> env -> 4)
func (c *TerrainConfig) GetPreloadWorkers() int {
	if c != nil && c.PreloadWorkers > 0 {
		return c.PreloadWorkers
	}
	return getIntWithEnvFallback("TERRAIN_PRELOAD_WORKERS", 4)
}

// GetMetadataPath возвращает путь к таблицам метаданных (config -> env -> "")
func (c *TerrainConfig) GetMetadataPath() string {
	if c != nil && c.MetadataPath != "" {
		return c.MetadataPath
	}
	return os.Getenv("TERRAIN_METADATA_PATH")
}

// AllowGridUnload возвращает флаг выгрузки регионов (config или env)
func (c *TerrainConfig) AllowGridUnload() bool {
	if c != nil && c.GridUnload {
		return true
	}
	if env := os.Getenv("TERRAIN_GRID_UNLOAD"); env != "" {
		if v, err := strconv.ParseBool(env); err == nil {
			return v
		}
	}
	return false
}

// getIntWithEnvFallback возвращает значение из ENV либо дефолт
func getIntWithEnvFallback(envVar string, defaultVal int) int {
	if envVal := os.Getenv(envVar); envVal != "" {
		if v, err := strconv.Atoi(envVal); err == nil && v > 0 {
			return v
		}
	}
	return defaultVal
}

// Load читает YAML файл конфигурации.
// Если path == "", пытается прочитать из ENV TERRAIN_CONFIG или возвращает nil, nil.
func Load(path string) (*TerrainConfig, error) {
	if path == "" {
		path = os.Getenv("TERRAIN_CONFIG")
		if path == "" {
			return nil, nil // конфиг не задан — использовать дефолты
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg TerrainConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}
