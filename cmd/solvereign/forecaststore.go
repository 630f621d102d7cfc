package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/DRNaser/solvereign/internal/model"
)

// forecastRecord is what `ingest` persists and `solve`/`simulate` read back:
// the Forecast plus its already-expanded instances, so solve doesn't need
// to re-derive instances from templates on every run. Forecast ingestion
// itself (internal/forecast) and its persistence here are deliberately
// separate: the former is pure, the latter is CLI-local plumbing, the same
// split the teacher keeps between internal/sync (pure merge logic) and its
// own file export helpers.
type forecastRecord struct {
	Forecast  model.Forecast       `json:"forecast"`
	Instances []model.TourInstance `json:"instances"`
}

func forecastPath(dataDir, tenant, site, forecastVersion string) string {
	return filepath.Join(dataDir, "forecasts", tenant, site, forecastVersion+".json")
}

func saveForecast(dataDir string, fc model.Forecast, instances []model.TourInstance) error {
	path := forecastPath(dataDir, fc.Tenant, fc.Site, fc.ForecastVersion)
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return fmt.Errorf("create forecast dir: %w", err)
	}
	b, err := json.MarshalIndent(forecastRecord{Forecast: fc, Instances: instances}, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal forecast: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, b, 0640); err != nil {
		return fmt.Errorf("write forecast: %w", err)
	}
	return os.Rename(tmp, path)
}

func loadForecast(dataDir, tenant, site, forecastVersion string) (forecastRecord, error) {
	path := forecastPath(dataDir, tenant, site, forecastVersion)
	b, err := os.ReadFile(path)
	if err != nil {
		return forecastRecord{}, fmt.Errorf("read forecast %s: %w", forecastVersion, err)
	}
	var rec forecastRecord
	if err := json.Unmarshal(b, &rec); err != nil {
		return forecastRecord{}, fmt.Errorf("unmarshal forecast %s: %w", forecastVersion, err)
	}
	return rec, nil
}
