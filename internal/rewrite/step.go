package rewrite

import (
	"errors"
	"fmt"

	cf "github.com/gnolang/jdowngrader/internal/classfile"
	tt "github.com/gnolang/jdowngrader/internal/types"
)

const lambdaMetafactory = "java/lang/invoke/LambdaMetafactory"

// ErrClassTooNew is returned by Step.Apply for classes above the step's
// source version.
var ErrClassTooNew = errors.New("class version above step source")

// Hook is a structural fixup run before or after the call-site scan.
type Hook func(c *cf.Class, deps tt.DepCollector, res *tt.Result) error

// Step lowers classes from one release to the previous one.
type Step struct {
	Name   string
	Source cf.Version
	Target cf.Version

	Calls   *Registry
	Members []Inserter
	Remaps  *RemapTable
	Pre     []Hook
	Post    []Hook
}

// NewStep returns an empty step from source down to target.
func NewStep(source, target cf.Version) (*Step, error) {
	if source < target {
		return nil, fmt.Errorf("invalid step: source %d below target %d", source.Release(), target.Release())
	}
	return &Step{
		Name:   StepName(source, target),
		Source: source,
		Target: target,
		Calls:  NewRegistry(),
		Remaps: NewRemapTable(),
	}, nil
}

// MustStep is like NewStep but panics on an invalid version pair.
func MustStep(source, target cf.Version) *Step {
	s, err := NewStep(source, target)
	if err != nil {
		panic(err)
	}
	return s
}

// StepName returns the configuration name of the step source -> target,
// e.g. "java9-to-java8".
func StepName(source, target cf.Version) string {
	return fmt.Sprintf("java%d-to-java%d", source.Release(), target.Release())
}

// Apply lowers c to the step's target version. Classes already at or below
// the target are left untouched.
func (s *Step) Apply(c *cf.Class, deps tt.DepCollector, res *tt.Result) error {
	if c.Version > s.Source {
		return fmt.Errorf("%w: %s is version %d, %s handles up to %d",
			ErrClassTooNew, c.Name, c.Version.Release(), s.Name, s.Source.Release())
	}
	if c.Version <= s.Target {
		return nil
	}
	if deps == nil {
		deps = tt.NoDeps
	}

	for _, h := range s.Pre {
		if err := h(c, deps, res); err != nil {
			return fmt.Errorf("%s: pre-transform: %w", s.Name, err)
		}
	}
	if s.Calls.Len() > 0 {
		if err := s.replaceCalls(c, deps, res); err != nil {
			return fmt.Errorf("%s: %w", s.Name, err)
		}
	}
	for _, in := range s.Members {
		in.insert(c, deps, res)
	}
	if s.Remaps.Len() > 0 {
		*c = *s.Remaps.Apply(c, deps, res)
	}
	for _, h := range s.Post {
		if err := h(c, deps, res); err != nil {
			return fmt.Errorf("%s: post-transform: %w", s.Name, err)
		}
	}

	c.Version = s.Target
	if c.MinorVersion == cf.PreviewMinor {
		c.MinorVersion = 0
	}
	res.Applied++
	return nil
}

// replaceCalls rewrites every registered call site of the methods c declares
// when the scan starts. Methods added on the way are not scanned.
func (s *Step) replaceCalls(c *cf.Class, deps tt.DepCollector, res *tt.Result) error {
	b := &bridges{class: c}
	methods := append([]*cf.Method(nil), c.Methods...)
	for _, m := range methods {
		if m.Code == nil {
			continue
		}
		out := make([]cf.Insn, 0, len(m.Code.Insns))
		changed := false
		for _, in := range m.Code.Insns {
			switch i := in.(type) {
			case *cf.MethodInsn:
				rule, ok := s.Calls.Lookup(i.Owner, i.Name, i.Desc)
				if !ok {
					break
				}
				ctx := &Context{
					Class: c, Method: m,
					Op: i.Op, Owner: i.Owner, Name: i.Name, Desc: i.Desc, Interface: i.Interface,
					Deps: deps, Result: res,
				}
				repl, err := Expand(rule, ctx)
				if err != nil {
					return fmt.Errorf("%s.%s%s: %w", c.Name, m.Name, m.Desc, err)
				}
				out = append(out, repl...)
				changed = true
				res.Replaced++
				continue
			case *cf.InvokeDynamicInsn:
				if err := s.bridgeHandles(c, m, i, b, deps, res); err != nil {
					return fmt.Errorf("%s.%s%s: %w", c.Name, m.Name, m.Desc, err)
				}
			}
			out = append(out, in)
		}
		if changed {
			m.Code.Insns = out
		}
	}
	return nil
}

// bridgeHandles repoints registered method handles captured by a lambda
// metafactory call site to freshly synthesized bridges.
func (s *Step) bridgeHandles(c *cf.Class, m *cf.Method, indy *cf.InvokeDynamicInsn, b *bridges, deps tt.DepCollector, res *tt.Result) error {
	bsm := indy.Bootstrap
	if bsm.Owner != lambdaMetafactory || (bsm.Name != "metafactory" && bsm.Name != "altMetafactory") {
		return nil
	}
	var args []any
	for k, arg := range indy.Args {
		h, ok := arg.(cf.Handle)
		if !ok || !h.IsMethod() || h.Kind == cf.H_NEWINVOKESPECIAL {
			continue
		}
		rule, ok := s.Calls.Lookup(h.Owner, h.Name, h.Desc)
		if !ok {
			continue
		}
		ctx := &Context{
			Class: c, Method: m,
			Op: handleOpcode(h.Kind), Owner: h.Owner, Name: h.Name, Desc: h.Desc, Interface: h.Interface,
			Deps: deps, Result: res,
		}
		nh, err := b.bridge(ctx, rule, h)
		if err != nil {
			return err
		}
		if args == nil {
			args = append([]any(nil), indy.Args...)
		}
		args[k] = nh
		res.Replaced++
	}
	if args != nil {
		indy.Args = args
	}
	return nil
}

func handleOpcode(kind uint8) cf.Opcode {
	switch kind {
	case cf.H_INVOKESTATIC:
		return cf.INVOKESTATIC
	case cf.H_INVOKESPECIAL:
		return cf.INVOKESPECIAL
	case cf.H_INVOKEINTERFACE:
		return cf.INVOKEINTERFACE
	default:
		return cf.INVOKEVIRTUAL
	}
}
