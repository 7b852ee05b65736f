package storage

import (
	"encoding/json"
	"io"
	"os"
)

type ExportData struct {
	Run     RunMetadata `json:"run"`
	Columns []string    `json:"columns"`
	Rows    [][]float64 `json:"rows"`
}

// Export loads a run and returns it as a single document.
func (s *Store) Export(runID string) (*ExportData, error) {
	meta, err := s.Load(runID)
	if err != nil {
		return nil, err
	}
	table, err := s.LoadStates(runID)
	if err != nil {
		return nil, err
	}
	return &ExportData{Run: *meta, Columns: table.Header, Rows: table.Rows}, nil
}

func ExportJSON(path string, data *ExportData) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()
	return WriteJSON(file, data)
}

func WriteJSON(w io.Writer, data *ExportData) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}
