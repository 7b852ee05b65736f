package storage

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"time"

	"github.com/san-kum/orbitsim/internal/config"
	"github.com/san-kum/orbitsim/internal/experiment"
	"github.com/san-kum/orbitsim/internal/spacecraft"
)

// Columns always present in states.csv, before the additional states.
var BaseColumns = []string{"time", "x", "y", "z", "vx", "vy", "vz", "mass", "a", "e", "i"}

type Store struct {
	baseDir string
	now     func() time.Time
}

func New(baseDir string) *Store {
	return &Store{baseDir: baseDir, now: time.Now}
}

func (s *Store) Init() error {
	return os.MkdirAll(s.baseDir, 0755)
}

type EventRecord struct {
	Name   string  `json:"name"`
	Time   float64 `json:"time"`
	Action string  `json:"action"`
}

type RunMetadata struct {
	ID           string             `json:"id"`
	Name         string             `json:"name"`
	Timestamp    time.Time          `json:"timestamp"`
	Epoch        time.Time          `json:"epoch"`
	Duration     float64            `json:"duration"`
	OutputStep   float64            `json:"output_step"`
	Integrator   string             `json:"integrator"`
	OrbitType    string             `json:"orbit_type"`
	AngleType    string             `json:"angle_type"`
	Mode         string             `json:"mode"`
	Samples      int                `json:"samples"`
	Calls        int                `json:"calls"`
	StoppedEarly bool               `json:"stopped_early"`
	Events       []EventRecord      `json:"events"`
	Metrics      map[string]float64 `json:"metrics"`
}

func newMetadata(id string, ts time.Time, cfg *config.Config, res *experiment.Result) RunMetadata {
	meta := RunMetadata{
		ID:           id,
		Name:         cfg.Name,
		Timestamp:    ts,
		Epoch:        cfg.Epoch,
		Duration:     cfg.Duration,
		OutputStep:   cfg.OutputStep,
		Integrator:   cfg.Integrator,
		OrbitType:    cfg.OrbitType,
		AngleType:    cfg.AngleType,
		Mode:         cfg.Mode,
		Samples:      len(res.Samples),
		Calls:        res.Calls,
		StoppedEarly: res.StoppedEarly,
		Metrics:      make(map[string]float64, len(res.Metrics)),
	}
	for _, ev := range res.Events {
		meta.Events = append(meta.Events, EventRecord{
			Name:   ev.Name,
			Time:   ev.Date.Sub(cfg.Epoch).Seconds(),
			Action: ev.Action.String(),
		})
	}
	// JSON has no NaN
	for name, v := range res.Metrics {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			meta.Metrics[name] = v
		}
	}
	return meta
}

// Save writes the metadata and sampled states of a run and returns its id.
func (s *Store) Save(cfg *config.Config, res *experiment.Result) (string, error) {
	ts := s.now()
	runID := fmt.Sprintf("%s_%s", cfg.Name, ts.UTC().Format("20060102T150405.000000000"))
	runDir := filepath.Join(s.baseDir, runID)

	if err := os.MkdirAll(runDir, 0755); err != nil {
		return "", err
	}

	metaFile, err := os.Create(filepath.Join(runDir, "metadata.json"))
	if err != nil {
		return "", err
	}
	defer metaFile.Close()

	enc := json.NewEncoder(metaFile)
	enc.SetIndent("", "  ")
	if err := enc.Encode(newMetadata(runID, ts, cfg, res)); err != nil {
		return "", err
	}

	csvFile, err := os.Create(filepath.Join(runDir, "states.csv"))
	if err != nil {
		return "", err
	}
	defer csvFile.Close()

	w := csv.NewWriter(csvFile)
	extra := additionalColumns(res.Samples)
	if err := w.Write(append(slices.Clone(BaseColumns), extra...)); err != nil {
		return "", err
	}
	for _, sample := range res.Samples {
		row, err := sampleRow(sample, extra)
		if err != nil {
			return "", err
		}
		if err := w.Write(row); err != nil {
			return "", err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", err
	}

	return runID, nil
}

// additionalColumns names one column per component of the additional
// states of the first sample: name, or name_k for vectors.
func additionalColumns(samples []experiment.Sample) []string {
	if len(samples) == 0 {
		return nil
	}
	first := samples[0].State
	var cols []string
	for _, name := range first.AdditionalNames() {
		v, _ := first.Additional(name)
		if len(v) == 1 {
			cols = append(cols, name)
			continue
		}
		for k := range v {
			cols = append(cols, fmt.Sprintf("%s_%d", name, k))
		}
	}
	return cols
}

func sampleRow(sample experiment.Sample, extra []string) ([]string, error) {
	s := sample.State
	o := s.Orbit()
	p, v := o.Position(), o.Velocity()
	values := []float64{sample.Time, p[0], p[1], p[2], v[0], v[1], v[2], s.Mass(), o.A(), o.E(), o.I()}
	values = append(values, flatten(s)...)
	if len(values) != len(BaseColumns)+len(extra) {
		return nil, fmt.Errorf("sample at %f has %d columns, expected %d", sample.Time, len(values), len(BaseColumns)+len(extra))
	}

	row := make([]string, len(values))
	for i, val := range values {
		row[i] = strconv.FormatFloat(val, 'g', -1, 64)
	}
	return row, nil
}

func flatten(s spacecraft.State) []float64 {
	var out []float64
	for _, name := range s.AdditionalNames() {
		v, _ := s.Additional(name)
		out = append(out, v...)
	}
	return out
}

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
	data, err := os.ReadFile(filepath.Join(s.baseDir, runID, "metadata.json"))
	if err != nil {
		return nil, err
	}

	var meta RunMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, err
	}

	return &meta, nil
}

// Table is the content of states.csv.
type Table struct {
	Header []string
	Rows   [][]float64
}

// Column returns the values of the named column.
func (t *Table) Column(name string) ([]float64, error) {
	idx := slices.Index(t.Header, name)
	if idx < 0 {
		return nil, fmt.Errorf("unknown column %q", name)
	}
	out := make([]float64, len(t.Rows))
	for i, row := range t.Rows {
		out[i] = row[idx]
	}
	return out, nil
}

func (s *Store) LoadStates(runID string) (*Table, error) {
	file, err := os.Open(filepath.Join(s.baseDir, runID, "states.csv"))
	if err != nil {
		return nil, err
	}
	defer file.Close()

	records, err := csv.NewReader(file).ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, errors.New("states.csv has no header")
	}

	t := &Table{Header: records[0], Rows: make([][]float64, 0, len(records)-1)}
	for i, record := range records[1:] {
		row := make([]float64, len(record))
		for j, field := range record {
			val, err := strconv.ParseFloat(field, 64)
			if err != nil {
				return nil, fmt.Errorf("row %d column %s: %w", i+1, t.Header[j], err)
			}
			row[j] = val
		}
		t.Rows = append(t.Rows, row)
	}
	return t, nil
}
