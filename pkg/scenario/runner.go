package scenario

import (
	"context"
	"fmt"
	"reflect"
	"strings"

	"github.com/harun/drawerq/internal/tracing"
	"github.com/harun/drawerq/pkg/drawer"
	"github.com/harun/drawerq/pkg/navigation"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
)

// Frame is one visibility change observed by the simulated renderer.
type Frame struct {
	Step    int            `json:"step"`
	Op      Op             `json:"op"`
	Overlay drawer.Overlay `json:"overlay"`
}

// Label renders the overlay as "-" for none, "id" when shown and "id~"
// while its exit transition runs.
func (f Frame) Label() string {
	switch {
	case f.Overlay.Empty():
		return "-"
	case f.Overlay.Closing:
		return f.Overlay.ID + "~"
	default:
		return f.Overlay.ID
	}
}

// Timeline is the ordered list of frames produced by a run.
type Timeline struct {
	Scenario string  `json:"scenario"`
	Frames   []Frame `json:"frames"`
}

// Labels returns the label of every frame.
func (t *Timeline) Labels() []string {
	labels := make([]string, 0, len(t.Frames))
	for _, f := range t.Frames {
		labels = append(labels, f.Label())
	}
	return labels
}

// String joins the frame labels.
func (t *Timeline) String() string {
	return strings.Join(t.Labels(), " > ")
}

// ExpectationError reports a failed expect step.
type ExpectationError struct {
	Step  int
	Field string
	Want  interface{}
	Got   interface{}
}

func (e *ExpectationError) Error() string {
	return fmt.Sprintf("step %d: expected %s %v, got %v", e.Step, e.Field, e.Want, e.Got)
}

// Runner replays scenarios.
type Runner struct {
	logger zerolog.Logger
}

// NewRunner creates a runner.
func NewRunner(logger zerolog.Logger) *Runner {
	return &Runner{logger: logger.With().Str("component", "scenario").Logger()}
}

type run struct {
	sc    *Scenario
	ctrl  *drawer.Controller
	stack *navigation.Stack
	tl    *Timeline
	step  int
	op    Op
}

// Run replays sc against a fresh controller with invariant checks enabled.
// The timeline is returned even when a step fails.
func (r *Runner) Run(ctx context.Context, sc *Scenario) (*Timeline, error) {
	ctx, span := tracing.StartSpan(ctx, "drawerq/scenario", "scenario.run",
		attribute.String("scenario.name", sc.Name),
		attribute.Int("scenario.steps", len(sc.Steps)),
	)
	defer span.End()

	ctrl := drawer.New(
		drawer.WithLogger(r.logger),
		drawer.WithInvariantChecks(true),
		drawer.WithRefCountedLock(sc.RefCountedLock),
	)
	defer ctrl.Close()

	stack := navigation.NewStack(r.logger)
	ctrl.BindNavigation(stack)

	st := &run{
		sc:    sc,
		ctrl:  ctrl,
		stack: stack,
		tl:    &Timeline{Scenario: sc.Name},
	}

	cancel := ctrl.Subscribe(st.render)
	defer cancel()

	for i, step := range sc.Steps {
		if err := ctx.Err(); err != nil {
			return st.tl, err
		}

		st.step, st.op = i, step.Op
		if err := st.apply(ctx, step); err != nil {
			tracing.FailSpan(span, err)
			r.logger.Debug().Err(err).Str("scenario", sc.Name).Int("step", i).Msg("Scenario failed")
			return st.tl, err
		}
	}

	r.logger.Debug().
		Str("scenario", sc.Name).
		Int("frames", len(st.tl.Frames)).
		Msg("Scenario completed")
	return st.tl, nil
}

// render is the simulated rendering layer.
func (st *run) render(o drawer.Overlay) {
	st.tl.Frames = append(st.tl.Frames, Frame{Step: st.step, Op: st.op, Overlay: o})
	if st.sc.AutoAck && o.Closing {
		st.ctrl.Acknowledge(o.ID)
	}
}

func (st *run) scope(step Step) string {
	if step.App {
		return drawer.AppScope
	}
	if top, ok := st.stack.Top(); ok {
		return top.ID
	}
	return drawer.AppScope
}

func (st *run) apply(ctx context.Context, step Step) error {
	_, span := tracing.StartSpan(ctx, "drawerq/scenario", "scenario."+string(step.Op),
		attribute.Int("scenario.step", st.step),
		attribute.String("drawer.id", step.ID),
	)
	defer span.End()

	switch step.Op {
	case OpPush:
		st.stack.Push(step.Route)
	case OpPop:
		if !st.stack.Pop() {
			return fmt.Errorf("step %d: pop: navigation stack is empty", st.step)
		}
	case OpReplace:
		st.stack.Replace(step.Route)
	case OpOpen:
		st.ctrl.RequestOpen(step.ID, st.scope(step), step.Payload)
	case OpClose:
		st.ctrl.RequestClose(step.ID)
	case OpToggle:
		st.ctrl.Toggle(step.ID, st.scope(step), step.Payload)
	case OpForce:
		st.ctrl.ForceOpen(step.ID, st.scope(step), step.Payload)
	case OpAck:
		id := step.ID
		if id == "" {
			id = st.ctrl.Current().ID
		}
		st.ctrl.Acknowledge(id)
	case OpLock:
		st.ctrl.Lock()
	case OpUnlock:
		st.ctrl.Unlock()
	case OpExpect:
		return st.expect(step)
	default:
		return fmt.Errorf("step %d: unknown op %q", st.step, step.Op)
	}
	return nil
}

func (st *run) expect(step Step) error {
	current := st.ctrl.Current()

	if step.Current != nil && current.ID != *step.Current {
		return &ExpectationError{Step: st.step, Field: "current", Want: quoted(*step.Current), Got: quoted(current.ID)}
	}
	if step.Closing != nil && current.Closing != *step.Closing {
		return &ExpectationError{Step: st.step, Field: "closing", Want: *step.Closing, Got: current.Closing}
	}

	snap := st.ctrl.Snapshot()
	if step.Pending != nil {
		got := snap.PendingIDs()
		if got == nil {
			got = []string{}
		}
		if !reflect.DeepEqual(step.Pending, got) {
			return &ExpectationError{Step: st.step, Field: "pending", Want: step.Pending, Got: got}
		}
	}
	if step.Locked != nil && snap.Locked != *step.Locked {
		return &ExpectationError{Step: st.step, Field: "locked", Want: *step.Locked, Got: snap.Locked}
	}
	return nil
}

func quoted(id string) string {
	if id == "" {
		return "none"
	}
	return fmt.Sprintf("%q", id)
}
