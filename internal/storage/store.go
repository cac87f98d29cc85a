package storage

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/cible-colibri/colibri-poc-sub000/internal/config"
	"github.com/cible-colibri/colibri-poc-sub000/internal/experiment"
)

const (
	metadataFile = "metadata.json"
	seriesFile   = "series.csv"
	schemeFile   = "scheme.yaml"
)

type Store struct {
	baseDir string
}

func New(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

func (s *Store) Init() error {
	return os.MkdirAll(s.baseDir, 0755)
}

type ColumnInfo struct {
	Name string `json:"name"`
	Unit string `json:"unit,omitempty"`
}

type RunMetadata struct {
	ID                     string             `json:"id"`
	UUID                   string             `json:"uuid"`
	Scheme                 string             `json:"scheme"`
	Timestamp              time.Time          `json:"timestamp"`
	TimeSteps              int                `json:"time_steps"`
	IterateForConvergence  bool               `json:"iterate_for_convergence"`
	MaxIterations          int                `json:"maximum_number_of_iterations"`
	Modules                []string           `json:"modules"`
	NonConvergentTimeSteps []int              `json:"non_convergent_time_steps"`
	SimulationTime         float64            `json:"simulation_time"`
	Metrics                map[string]float64 `json:"metrics"`
	Columns                []ColumnInfo       `json:"columns"`
}

// Save writes a run directory holding metadata.json, series.csv and the
// scheme that produced the run, and returns the run ID.
func (s *Store) Save(res *experiment.Result) (string, error) {
	id := uuid.New()
	runID := fmt.Sprintf("%s_%s", res.Scheme.Name, strings.SplitN(id.String(), "-", 2)[0])
	runDir := filepath.Join(s.baseDir, runID)

	if err := os.MkdirAll(runDir, 0755); err != nil {
		return "", err
	}

	meta := RunMetadata{
		ID:                     runID,
		UUID:                   id.String(),
		Scheme:                 res.Scheme.Name,
		Timestamp:              time.Now(),
		TimeSteps:              res.Scheme.TimeSteps,
		IterateForConvergence:  res.Scheme.IterateForConvergence,
		MaxIterations:          res.Scheme.MaxIterations,
		NonConvergentTimeSteps: slices.Clone(res.Summary.NonConvergentTimeSteps),
		SimulationTime:         res.Summary.SimulationTime.Seconds(),
		Metrics:                res.Metrics,
	}
	if meta.NonConvergentTimeSteps == nil {
		meta.NonConvergentTimeSteps = []int{}
	}
	for _, m := range res.Scheme.Modules {
		meta.Modules = append(meta.Modules, m.Name+":"+m.Type)
	}
	for _, c := range res.Columns {
		meta.Columns = append(meta.Columns, ColumnInfo{Name: c.Name, Unit: c.Unit})
	}

	if err := writeFile(filepath.Join(runDir, metadataFile), func(w io.Writer) error {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(meta)
	}); err != nil {
		return "", err
	}
	if err := writeFile(filepath.Join(runDir, seriesFile), func(w io.Writer) error {
		return WriteCSV(w, res.Columns)
	}); err != nil {
		return "", err
	}
	if err := config.Save(filepath.Join(runDir, schemeFile), res.Scheme); err != nil {
		return "", err
	}

	return runID, nil
}

func writeFile(path string, write func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// WriteCSV writes one row per time step: the step index followed by one
// value per column. Missing values are written as NaN.
func WriteCSV(w io.Writer, cols []experiment.Column) error {
	cw := csv.NewWriter(w)

	header := make([]string, 0, len(cols)+1)
	header = append(header, "time_step")
	rows := 0
	for _, c := range cols {
		header = append(header, c.Name)
		rows = max(rows, len(c.Values))
	}
	if err := cw.Write(header); err != nil {
		return err
	}

	for i := 0; i < rows; i++ {
		row := make([]string, 0, len(cols)+1)
		row = append(row, strconv.Itoa(i))
		for _, c := range cols {
			v := math.NaN()
			if i < len(c.Values) {
				v = c.Values[i]
			}
			row = append(row, strconv.FormatFloat(v, 'f', 6, 64))
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

// List returns the stored runs, oldest first. Directories without readable
// metadata are skipped.
func (s *Store) List() ([]RunMetadata, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []RunMetadata{}, nil
		}
		return nil, err
	}

	runs := make([]RunMetadata, 0)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		meta, err := s.Load(entry.Name())
		if err != nil {
			continue
		}
		runs = append(runs, *meta)
	}

	slices.SortFunc(runs, func(a, b RunMetadata) int { return a.Timestamp.Compare(b.Timestamp) })
	return runs, nil
}

func (s *Store) Load(runID string) (*RunMetadata, error) {
	data, err := os.ReadFile(filepath.Join(s.baseDir, runID, metadataFile))
	if err != nil {
		return nil, err
	}

	var meta RunMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("storage: %s: %w", runID, err)
	}
	return &meta, nil
}

// LoadScheme returns the scheme a run was produced with.
func (s *Store) LoadScheme(runID string) (*config.Config, error) {
	return config.Load(filepath.Join(s.baseDir, runID, schemeFile))
}

// LoadSeries reads series.csv back into columns. Units come from the
// run metadata when it is available.
func (s *Store) LoadSeries(runID string) ([]experiment.Column, error) {
	file, err := os.Open(filepath.Join(s.baseDir, runID, seriesFile))
	if err != nil {
		return nil, err
	}
	defer file.Close()

	r := csv.NewReader(file)
	r.FieldsPerRecord = -1

	records, err := r.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return []experiment.Column{}, nil
	}

	units := map[string]string{}
	if meta, err := s.Load(runID); err == nil {
		for _, c := range meta.Columns {
			units[c.Name] = c.Unit
		}
	}

	header := records[0]
	cols := make([]experiment.Column, 0, max(len(header)-1, 0))
	for _, name := range header[1:] {
		cols = append(cols, experiment.Column{Name: name, Unit: units[name], Values: make([]float64, 0, len(records)-1)})
	}

	for _, record := range records[1:] {
		for j := range cols {
			v := math.NaN()
			if j+1 < len(record) {
				if parsed, err := strconv.ParseFloat(record[j+1], 64); err == nil {
					v = parsed
				}
			}
			cols[j].Values = append(cols[j].Values, v)
		}
	}

	return cols, nil
}

// SeriesPath returns the location of a run's series.csv.
func (s *Store) SeriesPath(runID string) string {
	return filepath.Join(s.baseDir, runID, seriesFile)
}
