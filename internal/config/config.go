package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/san-kum/picascade/internal/pi"
	"github.com/san-kum/picascade/internal/plant"
	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"
)

const (
	DefaultDt       = 0.01
	DefaultDuration = 30.0

	DefaultChargeCurrent      = 3.0
	DefaultCVThreshold        = 49.6
	DefaultTerminationCurrent = 0.1
)

var ErrInvalid = errors.New("config: invalid")

type Config struct {
	Plant      string              `yaml:"plant"`
	Integrator string              `yaml:"integrator"`
	Controller string              `yaml:"controller"`
	Dt         float64             `yaml:"dt"`
	Duration   float64             `yaml:"duration"`
	Seed       int64               `yaml:"seed"`
	Noise      float64             `yaml:"noise"`
	Stages     []StageConfig       `yaml:"stages"`
	Charger    ChargerConfig       `yaml:"charger"`
	Battery    plant.BatteryParams `yaml:"battery"`
	Load       plant.LoadParams    `yaml:"load"`
	OpenLoop   []float64           `yaml:"open_loop,omitempty"`
}

// StageConfig describes one PI stage. Stages are listed outermost first.
type StageConfig struct {
	Name      string  `yaml:"name"`
	Kp        float64 `yaml:"kp"`
	Ki        float64 `yaml:"ki"`
	Kd        float64 `yaml:"kd,omitempty"`
	Lower     float64 `yaml:"lower"`
	Upper     float64 `yaml:"upper"`
	Reference float64 `yaml:"reference"`
	// Measure is the index of the plant output this stage is fed.
	Measure int `yaml:"measure"`
}

type ChargerConfig struct {
	ChargeCurrent      float64 `yaml:"charge_current"`
	CVThreshold        float64 `yaml:"cv_threshold"`
	TerminationCurrent float64 `yaml:"termination_current"`
}

func DefaultStages() []StageConfig {
	return []StageConfig{
		{Name: "voltage", Kp: 4, Ki: 0.75, Lower: 0, Upper: 3, Reference: 50.4, Measure: plant.OutVoltage},
		{Name: "current", Kp: 0, Ki: 0.75, Lower: 0, Upper: 100, Measure: plant.OutCurrent},
	}
}

func DefaultConfig() *Config {
	return &Config{
		Plant:      "battery",
		Integrator: "rk4",
		Controller: "charger",
		Dt:         DefaultDt,
		Duration:   DefaultDuration,
		Stages:     DefaultStages(),
		Charger: ChargerConfig{
			ChargeCurrent:      DefaultChargeCurrent,
			CVThreshold:        DefaultCVThreshold,
			TerminationCurrent: DefaultTerminationCurrent,
		},
		Battery: plant.DefaultBatteryParams(),
		Load:    plant.DefaultLoadParams(),
	}
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Clone returns a deep copy.
func (c *Config) Clone() *Config {
	out := *c
	out.Stages = append([]StageConfig(nil), c.Stages...)
	out.OpenLoop = append([]float64(nil), c.OpenLoop...)
	return &out
}

// Validate reports every problem in the configuration at once. Inverted
// stage limits are rejected here; pi.Stage.Compute never checks them.
func (c *Config) Validate() error {
	var err error
	if c.Dt <= 0 {
		err = multierr.Append(err, fmt.Errorf("%w: dt must be positive, got %g", ErrInvalid, c.Dt))
	}
	if c.Duration <= 0 {
		err = multierr.Append(err, fmt.Errorf("%w: duration must be positive, got %g", ErrInvalid, c.Duration))
	}
	if c.Noise < 0 {
		err = multierr.Append(err, fmt.Errorf("%w: noise must not be negative, got %g", ErrInvalid, c.Noise))
	}

	if c.Controller != "open" {
		if len(c.Stages) == 0 {
			err = multierr.Append(err, fmt.Errorf("%w: at least one stage is required", ErrInvalid))
		}
		seen := make(map[string]bool, len(c.Stages))
		for i, st := range c.Stages {
			if st.Name == "" {
				err = multierr.Append(err, fmt.Errorf("%w: stage %d has no name", ErrInvalid, i))
			} else if seen[st.Name] {
				err = multierr.Append(err, fmt.Errorf("%w: duplicate stage %q", ErrInvalid, st.Name))
			}
			seen[st.Name] = true
			if st.Measure < 0 {
				err = multierr.Append(err, fmt.Errorf("%w: stage %q measure index is negative", ErrInvalid, st.Name))
			}
			if verr := st.Build().Validate(); verr != nil {
				err = multierr.Append(err, fmt.Errorf("%w: stage %q: %w", ErrInvalid, st.Name, verr))
			}
		}
	}

	if c.Controller == "charger" {
		if v, ok := c.Stage("voltage"); !ok {
			err = multierr.Append(err, fmt.Errorf("%w: charger needs a stage named voltage", ErrInvalid))
		} else if float32(v.Reference) <= float32(c.Charger.CVThreshold) {
			// The first constant-voltage tick would see no positive error and
			// terminate at once.
			err = multierr.Append(err, fmt.Errorf("%w: voltage reference %g must exceed cv_threshold %g",
				ErrInvalid, v.Reference, c.Charger.CVThreshold))
		}
		if _, ok := c.Stage("current"); !ok {
			err = multierr.Append(err, fmt.Errorf("%w: charger needs a stage named current", ErrInvalid))
		}
		if c.Charger.CVThreshold <= 0 {
			err = multierr.Append(err, fmt.Errorf("%w: cv_threshold must be positive", ErrInvalid))
		}
		if c.Charger.TerminationCurrent < 0 {
			err = multierr.Append(err, fmt.Errorf("%w: termination_current must not be negative", ErrInvalid))
		}
	}

	switch c.Plant {
	case "battery":
		if perr := c.Battery.Validate(); perr != nil {
			err = multierr.Append(err, fmt.Errorf("%w: %w", ErrInvalid, perr))
		}
	case "load":
		if c.Load.TimeConstant <= 0 {
			err = multierr.Append(err, fmt.Errorf("%w: load time_constant must be positive", ErrInvalid))
		}
	}

	return err
}

func (c *Config) Stage(name string) (StageConfig, bool) {
	for _, st := range c.Stages {
		if st.Name == name {
			return st, true
		}
	}
	return StageConfig{}, false
}

// Bounds returns the stage whose reference the loop tracks and the stage
// whose limits bound the command. For the charger these are the voltage
// and current stages regardless of order.
func (c *Config) Bounds() (outer, inner StageConfig, ok bool) {
	if len(c.Stages) == 0 {
		return StageConfig{}, StageConfig{}, false
	}
	if c.Controller == "charger" {
		var vok, cok bool
		outer, vok = c.Stage("voltage")
		inner, cok = c.Stage("current")
		return outer, inner, vok && cok
	}
	return c.Stages[0], c.Stages[len(c.Stages)-1], true
}

// Build creates a reset pi.Stage from the configuration.
func (s StageConfig) Build() *pi.Stage {
	return &pi.Stage{
		KP:             float32(s.Kp),
		KI:             float32(s.Ki),
		KD:             float32(s.Kd),
		LowerLimit:     float32(s.Lower),
		UpperLimit:     float32(s.Upper),
		ReferencePoint: float32(s.Reference),
	}
}

// SetStageParam updates a stage parameter addressed as "<stage>.<param>".
func (c *Config) SetStageParam(stage, param string, value float64) error {
	for i := range c.Stages {
		if c.Stages[i].Name != stage {
			continue
		}
		st := &c.Stages[i]
		switch param {
		case "kp":
			st.Kp = value
		case "ki":
			st.Ki = value
		case "kd":
			st.Kd = value
		case "lower":
			st.Lower = value
		case "upper":
			st.Upper = value
		case "reference":
			st.Reference = value
		default:
			return fmt.Errorf("%w: %q", pi.ErrUnknownParam, param)
		}
		return nil
	}
	return fmt.Errorf("config: unknown stage %q", stage)
}
