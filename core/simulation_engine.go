package core

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gonum.org/v1/gonum/stat"

	"github.com/signalsfoundry/orbit-attitude-sim/internal/logging"
	"github.com/signalsfoundry/orbit-attitude-sim/timectrl"
)

const tracerName = "github.com/signalsfoundry/orbit-attitude-sim/core"

// ErrDuplicateEntity is returned when registering an ID twice.
var ErrDuplicateEntity = errors.New("entity already registered")

// SimulationMetricsRecorder receives per-tick measurements from the engine.
// internal/observability.SimCollector implements it.
type SimulationMetricsRecorder interface {
	ObserveTick(d time.Duration)
	AddDrawCommands(kind string, n int)
	IncPropagationFaults(entityID string)
	ObservePointingError(magnitude float64)
	SetEntities(n int)
}

// Summary describes a completed run.
type Summary struct {
	Ticks    int
	Entities int
	Segments int
	Arrows   int
	Faults   int

	// Magnitude statistics of the pre-correction pointing error across all
	// controlled entity steps.
	PointingErrorMean   float64
	PointingErrorStdDev float64
}

// SimulationEngine steps every registered entity once per tick, in
// registration order, and dispatches the resulting draw commands to a single
// renderer. All stepping happens on the TimeController's goroutine.
type SimulationEngine struct {
	renderer Renderer
	clock    *timectrl.TimeController
	log      logging.Logger
	metrics  SimulationMetricsRecorder

	mu            sync.RWMutex
	entities      []*Entity
	index         map[string]*Entity
	tickListeners []func(uint64)

	// run accumulators, only touched from the clock goroutine
	ticks     int
	segments  int
	arrows    int
	faults    int
	errSample []float64
}

// EngineOption configures a SimulationEngine.
type EngineOption func(*SimulationEngine)

// WithLogger sets the engine logger.
func WithLogger(l logging.Logger) EngineOption {
	return func(se *SimulationEngine) {
		if l != nil {
			se.log = l
		}
	}
}

// WithMetricsRecorder wires a metrics sink.
func WithMetricsRecorder(m SimulationMetricsRecorder) EngineOption {
	return func(se *SimulationEngine) { se.metrics = m }
}

// WithTimeController replaces the default accelerated controller.
func WithTimeController(tc *timectrl.TimeController) EngineOption {
	return func(se *SimulationEngine) {
		if tc != nil {
			se.clock = tc
		}
	}
}

// NewSimulationEngine constructs an engine drawing into r.
func NewSimulationEngine(r Renderer, opts ...EngineOption) *SimulationEngine {
	se := &SimulationEngine{
		renderer: r,
		clock:    timectrl.NewTimeController(0, timectrl.Accelerated),
		log:      logging.Noop(),
		index:    make(map[string]*Entity),
	}
	for _, opt := range opts {
		opt(se)
	}
	se.clock.AddListener(se.tick)
	return se
}

// Clock returns the controller driving the engine.
func (se *SimulationEngine) Clock() *timectrl.TimeController { return se.clock }

// Register adds an entity. Entities are stepped in registration order.
func (se *SimulationEngine) Register(e *Entity) error {
	if e == nil {
		return errors.New("nil entity")
	}
	se.mu.Lock()
	defer se.mu.Unlock()

	if _, exists := se.index[e.ID()]; exists {
		return fmt.Errorf("%w: %q", ErrDuplicateEntity, e.ID())
	}
	se.index[e.ID()] = e
	se.entities = append(se.entities, e)
	if se.metrics != nil {
		se.metrics.SetEntities(len(se.entities))
	}
	return nil
}

// Entity returns the registered entity with the given ID, or nil.
func (se *SimulationEngine) Entity(id string) *Entity {
	se.mu.RLock()
	defer se.mu.RUnlock()
	return se.index[id]
}

// Entities returns the registered entities in registration order.
func (se *SimulationEngine) Entities() []*Entity {
	se.mu.RLock()
	defer se.mu.RUnlock()
	return append([]*Entity(nil), se.entities...)
}

// RegisterTickListener registers fn to run after all entities have stepped.
func (se *SimulationEngine) RegisterTickListener(fn func(tick uint64)) {
	se.mu.Lock()
	defer se.mu.Unlock()
	se.tickListeners = append(se.tickListeners, fn)
}

// Run advances the simulation for the given number of ticks. Propagation
// faults are logged and skipped; cancellation of ctx stops the run between
// ticks and is returned alongside the partial summary.
func (se *SimulationEngine) Run(ctx context.Context, iterations int) (Summary, error) {
	if iterations < 0 {
		return Summary{}, fmt.Errorf("iterations must be non-negative, got %d", iterations)
	}

	se.ticks, se.segments, se.arrows, se.faults = 0, 0, 0, 0
	se.errSample = se.errSample[:0]

	entities := se.Entities()
	ctx, span := otel.Tracer(tracerName).Start(ctx, "simulation.run", trace.WithAttributes(
		attribute.Int("simulation.iterations", iterations),
		attribute.Int("simulation.entities", len(entities)),
		attribute.String("simulation.mode", se.clock.Mode.String()),
	))
	defer span.End()

	se.log.Info(ctx, "begin simulation",
		logging.Int("iterations", iterations),
		logging.Int("entities", len(entities)),
		logging.String("mode", se.clock.Mode.String()),
	)

	err := se.clock.Run(ctx, iterations)
	summary := se.summary(len(entities))

	span.SetAttributes(
		attribute.Int("simulation.ticks", summary.Ticks),
		attribute.Int("simulation.faults", summary.Faults),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		se.log.Warn(ctx, "simulation interrupted", logging.Int("ticks", summary.Ticks), logging.Err(err))
		return summary, err
	}

	se.log.Info(ctx, "finished simulation",
		logging.Int("ticks", summary.Ticks),
		logging.Int("segments", summary.Segments),
		logging.Int("arrows", summary.Arrows),
		logging.Int("faults", summary.Faults),
	)
	return summary, nil
}

func (se *SimulationEngine) tick(ctx context.Context, tick uint64) {
	start := time.Now()

	se.mu.RLock()
	entities := se.entities
	listeners := se.tickListeners
	se.mu.RUnlock()

	for _, e := range entities {
		cmds, err := e.Step(tick)
		if err != nil {
			se.recordFault(ctx, e, err)
			continue
		}

		if a := e.Attitude(); a != nil {
			mag := a.LastPointingError().Norm()
			se.errSample = append(se.errSample, mag)
			if se.metrics != nil {
				se.metrics.ObservePointingError(mag)
			}
			se.log.Debug(ctx, "disturbed attitude",
				logging.String("entity", e.ID()),
				logging.String("disturbance", a.LastDisturbance().String()),
				logging.Float64("pointing_error", mag),
				logging.Float64("pointing_angle_rad", a.LastPointingAngle()),
			)
		}

		Dispatch(se.renderer, cmds)
		se.countCommands(cmds)

		epoch := e.Epoch(tick)
		se.log.Debug(ctx, "step completed",
			logging.String("entity", e.ID()),
			logging.Int("tick", int(tick)),
			logging.Float64("jd", epoch.JD()),
			logging.Int("commands", len(cmds)),
		)
	}

	if f, ok := se.renderer.(Flusher); ok {
		f.Flush()
	}
	for _, fn := range listeners {
		fn(tick)
	}

	se.ticks++
	if se.metrics != nil {
		se.metrics.ObserveTick(time.Since(start))
	}
}

func (se *SimulationEngine) recordFault(ctx context.Context, e *Entity, err error) {
	se.faults++
	if se.metrics != nil {
		se.metrics.IncPropagationFaults(e.ID())
	}

	fields := []logging.Field{logging.String("entity", e.ID()), logging.Err(err)}
	var perr *PropagationError
	if errors.As(err, &perr) {
		fields = append(fields, logging.Int("tick", int(perr.Tick)), logging.Int("status", perr.Status))
		trace.SpanFromContext(ctx).AddEvent("propagation_fault", trace.WithAttributes(
			attribute.String("entity_id", perr.EntityID),
			attribute.Int64("tick", int64(perr.Tick)),
			attribute.Int("status", perr.Status),
		))
	}
	se.log.Warn(ctx, "propagation fault; skipping tick", fields...)
}

func (se *SimulationEngine) countCommands(cmds []DrawCommand) {
	var segments, arrows int
	for _, cmd := range cmds {
		switch cmd.Kind {
		case DrawSegment:
			segments++
		case DrawArrow:
			arrows++
		}
	}
	se.segments += segments
	se.arrows += arrows
	if se.metrics != nil {
		if segments > 0 {
			se.metrics.AddDrawCommands(DrawSegment.String(), segments)
		}
		if arrows > 0 {
			se.metrics.AddDrawCommands(DrawArrow.String(), arrows)
		}
	}
}

func (se *SimulationEngine) summary(entities int) Summary {
	s := Summary{
		Ticks:    se.ticks,
		Entities: entities,
		Segments: se.segments,
		Arrows:   se.arrows,
		Faults:   se.faults,
	}
	if len(se.errSample) > 0 {
		s.PointingErrorMean = stat.Mean(se.errSample, nil)
	}
	if len(se.errSample) > 1 {
		s.PointingErrorStdDev = stat.StdDev(se.errSample, nil)
	}
	return s
}
