package storage

import (
	"encoding/json"
	"io"
	"math"
	"os"

	"github.com/cible-colibri/colibri-poc-sub000/internal/experiment"
)

type ExportData struct {
	Run    *RunMetadata          `json:"run"`
	Steps  int                   `json:"steps"`
	Series map[string][]*float64 `json:"series"`
}

// WriteJSON writes the metadata and every column. NaN values, which JSON
// cannot carry, become null.
func WriteJSON(w io.Writer, meta *RunMetadata, cols []experiment.Column) error {
	data := ExportData{
		Run:    meta,
		Series: make(map[string][]*float64, len(cols)),
	}
	for _, c := range cols {
		data.Steps = max(data.Steps, len(c.Values))
		values := make([]*float64, len(c.Values))
		for i, v := range c.Values {
			if !math.IsNaN(v) && !math.IsInf(v, 0) {
				values[i] = &v
			}
		}
		data.Series[c.Name] = values
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}

func ExportJSON(path string, meta *RunMetadata, cols []experiment.Column) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()
	return WriteJSON(file, meta, cols)
}

func ExportCSV(path string, cols []experiment.Column) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()
	return WriteCSV(file, cols)
}
