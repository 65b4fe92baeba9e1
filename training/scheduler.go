package training

import (
	"math"

	"github.com/tsawler/go-earlystop/earlystop"
)

// MetricLearningRate is the metric name under which the learning rate
// monitor publishes the current rate
const MetricLearningRate = "lr"

// LRScheduler defines the interface for learning rate scheduling strategies
type LRScheduler interface {
	// GetLR returns the learning rate for the current epoch
	GetLR(epoch int, baseLR float64) float64

	// GetName returns the scheduler name for logging
	GetName() string
}

// StepLRScheduler reduces learning rate by a factor every stepSize epochs
type StepLRScheduler struct {
	StepSize int     // Epochs between LR reductions
	Gamma    float64 // Multiplicative factor of LR decay
}

// NewStepLRScheduler creates a step learning rate scheduler
func NewStepLRScheduler(stepSize int, gamma float64) *StepLRScheduler {
	if stepSize <= 0 {
		stepSize = 30 // Default: reduce every 30 epochs
	}
	if gamma <= 0 || gamma >= 1 {
		gamma = 0.1 // Default: reduce by 10x
	}
	return &StepLRScheduler{
		StepSize: stepSize,
		Gamma:    gamma,
	}
}

func (s *StepLRScheduler) GetLR(epoch int, baseLR float64) float64 {
	times := epoch / s.StepSize
	return baseLR * math.Pow(s.Gamma, float64(times))
}

func (s *StepLRScheduler) GetName() string {
	return "StepLR"
}

// ExponentialLRScheduler decays learning rate exponentially
type ExponentialLRScheduler struct {
	Gamma float64 // Multiplicative factor of LR decay per epoch
}

// NewExponentialLRScheduler creates an exponential learning rate scheduler
func NewExponentialLRScheduler(gamma float64) *ExponentialLRScheduler {
	if gamma <= 0 || gamma >= 1 {
		gamma = 0.95 // Default: 5% reduction per epoch
	}
	return &ExponentialLRScheduler{
		Gamma: gamma,
	}
}

func (s *ExponentialLRScheduler) GetLR(epoch int, baseLR float64) float64 {
	return baseLR * math.Pow(s.Gamma, float64(epoch))
}

func (s *ExponentialLRScheduler) GetName() string {
	return "ExponentialLR"
}

// CosineAnnealingLRScheduler implements cosine annealing schedule
type CosineAnnealingLRScheduler struct {
	TMax   int     // Maximum number of epochs
	EtaMin float64 // Minimum learning rate
}

// NewCosineAnnealingLRScheduler creates a cosine annealing scheduler
func NewCosineAnnealingLRScheduler(tMax int, etaMin float64) *CosineAnnealingLRScheduler {
	if tMax <= 0 {
		tMax = 100 // Default: 100 epochs
	}
	if etaMin < 0 {
		etaMin = 0 // Default: anneal to 0
	}
	return &CosineAnnealingLRScheduler{
		TMax:   tMax,
		EtaMin: etaMin,
	}
}

func (s *CosineAnnealingLRScheduler) GetLR(epoch int, baseLR float64) float64 {
	if epoch >= s.TMax {
		return s.EtaMin
	}

	// Cosine annealing formula
	return s.EtaMin + (baseLR-s.EtaMin)*(1+math.Cos(math.Pi*float64(epoch)/float64(s.TMax)))/2
}

func (s *CosineAnnealingLRScheduler) GetName() string {
	return "CosineAnnealingLR"
}

// ReduceLROnPlateauScheduler reduces the learning rate when a monitored
// metric has stopped improving. Unlike the stateless schedulers it tracks
// state between calls; feed it one observation per validation cycle
// through Step.
type ReduceLROnPlateauScheduler struct {
	Monitor  string         // Metric fed to Step by the LR monitor callback
	Mode     earlystop.Mode // Direction of improvement for Monitor
	Factor   float64        // Multiplier applied to the LR on plateau
	Patience int            // Non-improving cycles tolerated before reducing
	MinDelta float64        // Margin a value must clear to count as improvement
	MinLR    float64        // Floor below which the LR is never reduced

	bestMetric  float64
	badEpochs   int
	currentLR   float64
	reductions  int
	initialized bool
}

// NewReduceLROnPlateauScheduler creates a plateau-based scheduler
func NewReduceLROnPlateauScheduler(monitor string, mode earlystop.Mode, factor float64, patience int) *ReduceLROnPlateauScheduler {
	if monitor == "" {
		monitor = earlystop.DefaultMonitor
	}
	if mode != earlystop.ModeMin && mode != earlystop.ModeMax {
		mode = earlystop.ModeMin // Default: minimize loss
	}
	if factor <= 0 || factor >= 1 {
		factor = 0.1
	}
	if patience < 0 {
		patience = 10
	}

	return &ReduceLROnPlateauScheduler{
		Monitor:  monitor,
		Mode:     mode,
		Factor:   factor,
		Patience: patience,
		MinDelta: 1e-4,
	}
}

// Step feeds one observation of the monitored metric and returns the
// learning rate to use next. The rate is multiplied by Factor once more
// than Patience observations in a row fail to improve, and the bad-epoch
// count starts over after each reduction.
func (s *ReduceLROnPlateauScheduler) Step(metric float64, currentLR float64) float64 {
	if !s.initialized {
		s.bestMetric = metric
		s.currentLR = currentLR
		s.initialized = true
		return currentLR
	}

	if earlystop.Improved(metric, s.bestMetric, s.MinDelta, s.Mode) {
		s.bestMetric = metric
		s.badEpochs = 0
	} else {
		s.badEpochs++
		if s.badEpochs > s.Patience {
			reduced := s.currentLR * s.Factor
			if reduced < s.MinLR {
				reduced = s.MinLR
			}
			if reduced < s.currentLR {
				s.reductions++
			}
			s.currentLR = reduced
			s.badEpochs = 0
		}
	}

	return s.currentLR
}

// Reductions returns how many times the LR has been reduced
func (s *ReduceLROnPlateauScheduler) Reductions() int {
	return s.reductions
}

func (s *ReduceLROnPlateauScheduler) GetLR(epoch int, baseLR float64) float64 {
	// The actual reduction happens in Step() based on metrics
	if s.initialized {
		return s.currentLR
	}
	return baseLR
}

func (s *ReduceLROnPlateauScheduler) GetName() string {
	return "ReduceLROnPlateau"
}

// NoOpScheduler maintains constant learning rate (default behavior)
type NoOpScheduler struct{}

func (s *NoOpScheduler) GetLR(epoch int, baseLR float64) float64 {
	return baseLR
}

func (s *NoOpScheduler) GetName() string {
	return "ConstantLR"
}

// LearningRateMonitor is a callback that drives a scheduler and publishes
// the current learning rate into the cycle metrics under MetricLearningRate,
// where history, checkpoints and other callbacks can see it
type LearningRateMonitor struct {
	BaseCallback
	scheduler LRScheduler
	baseLR    float64
	current   float64
}

// NewLearningRateMonitor creates a monitor for the given scheduler
func NewLearningRateMonitor(scheduler LRScheduler, baseLR float64) *LearningRateMonitor {
	if scheduler == nil {
		scheduler = &NoOpScheduler{}
	}
	return &LearningRateMonitor{
		scheduler: scheduler,
		baseLR:    baseLR,
		current:   baseLR,
	}
}

// Name identifies the monitor in callback state maps
func (m *LearningRateMonitor) Name() string {
	return "lr_monitor"
}

// OnValidationEnd steps plateau schedulers on their monitored metric and
// records the rate. Keep the monitor ahead of callbacks that read it.
func (m *LearningRateMonitor) OnValidationEnd(run *Run, metrics Metrics) error {
	if plateau, ok := m.scheduler.(*ReduceLROnPlateauScheduler); ok {
		if value, ok := metrics[plateau.Monitor]; ok {
			m.current = plateau.Step(value, m.current)
		}
	} else {
		m.current = m.scheduler.GetLR(run.Epoch(), m.baseLR)
	}
	metrics[MetricLearningRate] = m.current
	return nil
}

// OnEpochEnd records the rate on epochs without a validation pass
func (m *LearningRateMonitor) OnEpochEnd(run *Run, metrics Metrics) error {
	if _, ok := metrics[MetricLearningRate]; ok {
		return nil
	}
	if _, ok := m.scheduler.(*ReduceLROnPlateauScheduler); !ok {
		m.current = m.scheduler.GetLR(run.Epoch(), m.baseLR)
	}
	metrics[MetricLearningRate] = m.current
	return nil
}

// LR returns the most recently published learning rate
func (m *LearningRateMonitor) LR() float64 {
	return m.current
}
