// Package storage keeps simulation runs on disk, one directory per run.
package storage

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/edaniels/golog"
	"github.com/san-kum/picascade/internal/config"
	"github.com/san-kum/picascade/internal/sim"
	"go.uber.org/zap"
)

const (
	metadataFile = "metadata.json"
	statesFile   = "states.csv"
	configFile   = "config.yaml"
)

var ErrNoRun = errors.New("storage: run not found")

type Store struct {
	baseDir string
	logger  golog.Logger
}

func New(baseDir string) *Store {
	return &Store{baseDir: baseDir, logger: zap.NewNop().Sugar()}
}

func (s *Store) SetLogger(l golog.Logger) { s.logger = l }

func (s *Store) Init() error {
	return os.MkdirAll(s.baseDir, 0755)
}

// Transition is a charger mode change as stored with a run.
type Transition struct {
	Time float64 `json:"time"`
	From string  `json:"from"`
	To   string  `json:"to"`
}

type RunMetadata struct {
	ID          string             `json:"id"`
	Plant       string             `json:"plant"`
	Controller  string             `json:"controller"`
	Integrator  string             `json:"integrator"`
	Timestamp   time.Time          `json:"timestamp"`
	Seed        int64              `json:"seed"`
	Dt          float64            `json:"dt"`
	Duration    float64            `json:"duration"`
	Noise       float64            `json:"noise,omitempty"`
	Steps       int                `json:"steps"`
	Metrics     map[string]float64 `json:"metrics"`
	Transitions []Transition       `json:"transitions,omitempty"`
}

// Save writes a new run directory holding meta, the configuration it was
// produced from and the sampled series. meta.ID and meta.Timestamp are
// assigned here.
func (s *Store) Save(meta RunMetadata, cfg *config.Config, result *sim.Result) (string, error) {
	now := time.Now()
	meta.ID = fmt.Sprintf("%s_%d", meta.Plant, now.UnixNano())
	meta.Timestamp = now
	meta.Steps = result.StepsTaken
	meta.Metrics = result.Metrics

	runDir := filepath.Join(s.baseDir, meta.ID)
	if err := os.MkdirAll(runDir, 0755); err != nil {
		return "", err
	}

	metaFile, err := os.Create(filepath.Join(runDir, metadataFile))
	if err != nil {
		return "", err
	}
	defer metaFile.Close()

	enc := json.NewEncoder(metaFile)
	enc.SetIndent("", "  ")
	if err := enc.Encode(meta); err != nil {
		return "", err
	}

	if cfg != nil {
		if err := config.Save(filepath.Join(runDir, configFile), cfg); err != nil {
			return "", err
		}
	}

	csvFile, err := os.Create(filepath.Join(runDir, statesFile))
	if err != nil {
		return "", err
	}
	defer csvFile.Close()

	if err := WriteCSV(csvFile, result); err != nil {
		return "", err
	}

	s.logger.Debugw("run saved", "id", meta.ID, "dir", runDir, "steps", meta.Steps)
	return meta.ID, nil
}

// WriteCSV writes one row per sampled state: time, state x*, then the
// measurement y* and control u* applied from that state. The final state
// has no measurement or control and leaves those columns empty.
func WriteCSV(out io.Writer, result *sim.Result) error {
	w := csv.NewWriter(out)

	if len(result.States) == 0 {
		w.Flush()
		return w.Error()
	}

	numOutputs, numControls := 0, 0
	if len(result.Outputs) > 0 {
		numOutputs = len(result.Outputs[0])
	}
	if len(result.Controls) > 0 {
		numControls = len(result.Controls[0])
	}

	header := []string{"time"}
	for i := range result.States[0] {
		header = append(header, fmt.Sprintf("x%d", i))
	}
	for i := 0; i < numOutputs; i++ {
		header = append(header, fmt.Sprintf("y%d", i))
	}
	for i := 0; i < numControls; i++ {
		header = append(header, fmt.Sprintf("u%d", i))
	}
	if err := w.Write(header); err != nil {
		return err
	}

	for i := range result.States {
		row := []string{formatFloat(result.Times[i])}
		for _, val := range result.States[i] {
			row = append(row, formatFloat(val))
		}
		row = appendPadded(row, result.Outputs, i, numOutputs)
		row = appendPadded(row, result.Controls, i, numControls)

		if err := w.Write(row); err != nil {
			return err
		}
	}

	w.Flush()
	return w.Error()
}

func appendPadded[T ~[]float64](row []string, series []T, i, width int) []string {
	if i < len(series) {
		for _, val := range series[i] {
			row = append(row, formatFloat(val))
		}
		return row
	}
	for j := 0; j < width; j++ {
		row = append(row, "")
	}
	return row
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 6, 64)
}

// List returns every readable run, oldest first.
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
			s.logger.Debugw("skipping run directory", "name", entry.Name(), "error", err)
			continue
		}
		runs = append(runs, *meta)
	}

	sort.Slice(runs, func(i, j int) bool { return runs[i].Timestamp.Before(runs[j].Timestamp) })
	return runs, nil
}

func (s *Store) Load(runID string) (*RunMetadata, error) {
	data, err := os.ReadFile(filepath.Join(s.baseDir, runID, metadataFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNoRun, runID)
		}
		return nil, err
	}

	var meta RunMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("storage: %s: %w", runID, err)
	}

	return &meta, nil
}

// LoadConfig returns the configuration a run was produced from.
func (s *Store) LoadConfig(runID string) (*config.Config, error) {
	cfg, err := config.Load(filepath.Join(s.baseDir, runID, configFile))
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: %s has no stored config", ErrNoRun, runID)
	}
	return cfg, err
}

// Series is the column data of a stored run. Missing cells load as NaN.
type Series struct {
	Columns []string
	Times   []float64
	Rows    [][]float64
}

// Column returns the named column, or nil.
func (s *Series) Column(name string) []float64 {
	idx := -1
	for i, c := range s.Columns {
		if c == name {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil
	}
	col := make([]float64, len(s.Rows))
	for i, row := range s.Rows {
		col[i] = math.NaN()
		if idx < len(row) {
			col[i] = row[idx]
		}
	}
	return col
}

// Prefixed returns the names of the columns starting with prefix, in file
// order.
func (s *Series) Prefixed(prefix string) []string {
	var names []string
	for _, c := range s.Columns {
		if strings.HasPrefix(c, prefix) {
			names = append(names, c)
		}
	}
	return names
}

func (s *Store) LoadSeries(runID string) (*Series, error) {
	file, err := os.Open(filepath.Join(s.baseDir, runID, statesFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNoRun, runID)
		}
		return nil, err
	}
	defer file.Close()

	r := csv.NewReader(file)
	r.FieldsPerRecord = -1

	records, err := r.ReadAll()
	if err != nil {
		return nil, err
	}

	series := &Series{}
	if len(records) == 0 {
		return series, nil
	}
	series.Columns = records[0][1:]

	for _, record := range records[1:] {
		if len(record) == 0 {
			continue
		}

		t, err := strconv.ParseFloat(record[0], 64)
		if err != nil {
			continue
		}
		series.Times = append(series.Times, t)

		row := make([]float64, len(record)-1)
		for j, cell := range record[1:] {
			val, err := strconv.ParseFloat(cell, 64)
			if err != nil {
				val = math.NaN()
			}
			row[j] = val
		}
		series.Rows = append(series.Rows, row)
	}

	return series, nil
}
