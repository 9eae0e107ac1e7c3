package experiment

import (
	"math"

	"github.com/edaniels/golog"
	"github.com/san-kum/picascade/internal/sim"
)

// Progress is a sim.Observer that logs the measurement and command once
// per interval of simulated time.
type Progress struct {
	logger   golog.Logger
	interval float64
	bucket   int
}

func NewProgress(logger golog.Logger, interval float64) *Progress {
	return &Progress{logger: logger, interval: interval, bucket: -1}
}

func (p *Progress) OnStep(x, y sim.State, u sim.Control, t float64) {
	if p.interval <= 0 {
		return
	}
	// Any bucket change logs, which includes a restart at t=0.
	b := int(math.Floor(t/p.interval + 1e-9))
	if b == p.bucket {
		return
	}
	p.bucket = b
	p.logger.Infow("progress", "t", t, "y", []float64(y), "u", []float64(u))
}

// WatchProgress logs the loop state every interval seconds of simulated time.
func (e *Experiment) WatchProgress(logger golog.Logger, interval float64) {
	e.simulator.AddObserver(NewProgress(logger, interval))
}
