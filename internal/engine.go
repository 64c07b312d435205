package internal

import (
	"errors"
	"fmt"
	"strings"

	cf "github.com/gnolang/jdowngrader/internal/classfile"
	"github.com/gnolang/jdowngrader/internal/replacers"
	"github.com/gnolang/jdowngrader/internal/rewrite"
	tt "github.com/gnolang/jdowngrader/internal/types"
)

var (
	// ErrUnsupportedVersion is returned for classes newer than the newest step.
	ErrUnsupportedVersion = errors.New("unsupported class version")
	// ErrStepDisabled is returned when lowering a class would need a step
	// the configuration disabled.
	ErrStepDisabled = errors.New("step disabled")
	// ErrUnknownStep is returned for a disabled step name that names no step.
	ErrUnknownStep = errors.New("unknown step")
	// ErrFloorTooLow is returned for a floor below the oldest step target.
	ErrFloorTooLow = errors.New("floor below oldest supported release")
)

// Engine runs the version steps over classes. An Engine is safe for
// concurrent use once built; each Downgrade call owns its class.
type Engine struct {
	// steps are ordered newest first.
	steps        []*rewrite.Step
	disabled     map[string]bool
	ignoredRules map[string]int
}

// NewEngine builds the step catalogue and applies the overrides to it.
func NewEngine(o tt.Overrides) (*Engine, error) {
	e := &Engine{steps: replacers.Steps()}
	if err := e.applyOverrides(o); err != nil {
		return nil, err
	}
	return e, nil
}

// Newest returns the newest class version the engine accepts.
func (e *Engine) Newest() cf.Version {
	return e.steps[0].Source
}

// Oldest returns the lowest version the engine can lower to.
func (e *Engine) Oldest() cf.Version {
	return e.steps[len(e.steps)-1].Target
}

// CheckFloor reports whether every step needed to reach floor from the
// newest supported version is enabled.
func (e *Engine) CheckFloor(floor cf.Version) error {
	if floor < e.Oldest() {
		return e.floorTooLow(floor)
	}
	for _, s := range e.steps {
		if s.Target >= floor && e.disabled[s.Name] {
			return fmt.Errorf("%w: %s is needed to reach Java %d", ErrStepDisabled, s.Name, floor.Release())
		}
	}
	return nil
}

// Downgrade lowers c in place until it is at or below floor. Steps run
// newest first; a step applies when its target is not below the floor and
// the class is still above that target. deps receives each shim class the
// rewritten code needs, once per name.
//
// A floor below the oldest step target, a class newer than the newest
// step and a class that would need a disabled step are rejected before
// anything is touched. If a step fails
// part way c may be partially rewritten and must be discarded.
func (e *Engine) Downgrade(c *cf.Class, floor cf.Version, deps tt.DepCollector) (tt.Result, error) {
	var res tt.Result
	if floor < e.Oldest() {
		return res, fmt.Errorf("%s: %w", c.Name, e.floorTooLow(floor))
	}
	if c.Version > e.Newest() {
		return res, fmt.Errorf("%s: %w: Java %d, newest supported is Java %d",
			c.Name, ErrUnsupportedVersion, c.Version.Release(), e.Newest().Release())
	}

	var plan []*rewrite.Step
	for _, s := range e.steps {
		if s.Target < floor || c.Version <= s.Target {
			continue
		}
		if e.disabled[s.Name] {
			return res, fmt.Errorf("%s: %w: %s", c.Name, ErrStepDisabled, s.Name)
		}
		plan = append(plan, s)
	}

	deps = deps.Dedup()
	for _, s := range plan {
		if err := s.Apply(c, deps, &res); err != nil {
			return res, fmt.Errorf("%s: %w", c.Name, err)
		}
	}
	return res, nil
}

func (e *Engine) floorTooLow(floor cf.Version) error {
	return fmt.Errorf("%w: Java %d, oldest supported is Java %d",
		ErrFloorTooLow, floor.Release(), e.Oldest().Release())
}

// Fingerprint identifies the rule set an engine applies. Two engines with
// the same fingerprint rewrite any class identically.
func (e *Engine) Fingerprint() string {
	var sb strings.Builder
	for _, s := range e.steps {
		sb.WriteString(s.Name)
		if e.disabled[s.Name] {
			sb.WriteString("!")
		}
		sb.WriteString(";")
	}
	for _, k := range sortedKeys(e.ignoredRules) {
		sb.WriteString("-")
		sb.WriteString(k)
	}
	return sb.String()
}
