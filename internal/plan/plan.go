package plan

import (
	"fmt"
	"strings"
)

// Element is one node of a plan tree: exactly one of Step or Sub is set.
type Element struct {
	Step Step
	Sub  *Plan
}

// Plan is a tree of steps for obtaining Want units of Target.
type Plan struct {
	Target   string
	Want     int
	Elements []Element
}

func New(target string, want int) *Plan {
	return &Plan{Target: target, Want: want}
}

// Add appends a step.
func (p *Plan) Add(s Step) *Plan {
	if s != nil {
		p.Elements = append(p.Elements, Element{Step: s})
	}
	return p
}

// AddSub appends a nested plan. Nil and empty sub-plans are dropped.
func (p *Plan) AddSub(sub *Plan) *Plan {
	if sub != nil && !sub.Empty() {
		p.Elements = append(p.Elements, Element{Sub: sub})
	}
	return p
}

// Empty reports whether the tree holds no steps at all.
func (p *Plan) Empty() bool {
	if p == nil {
		return true
	}
	for _, e := range p.Elements {
		if e.Step != nil {
			return false
		}
		if !e.Sub.Empty() {
			return false
		}
	}
	return true
}

// Flatten lists the steps depth-first in construction order. Every step
// appended to the tree appears exactly once.
func (p *Plan) Flatten() []Step {
	var out []Step
	p.walk(func(s Step) { out = append(out, s) })
	return out
}

func (p *Plan) walk(fn func(Step)) {
	if p == nil {
		return
	}
	for _, e := range p.Elements {
		if e.Step != nil {
			fn(e.Step)
			continue
		}
		e.Sub.walk(fn)
	}
}

// Len counts steps in the whole tree.
func (p *Plan) Len() int {
	n := 0
	p.walk(func(Step) { n++ })
	return n
}

// Uses reports whether any step in the tree is of kind k.
func (p *Plan) Uses(k Kind) bool {
	found := false
	p.walk(func(s Step) {
		if s.Kind() == k {
			found = true
		}
	})
	return found
}

// Cost sums the cost of every step in the tree.
func (p *Plan) Cost() float64 {
	var c float64
	p.walk(func(s Step) { c += StepCost(s) })
	return c
}

// Result counts how many units of the plan's target the tree produces.
func (p *Plan) Result() int {
	if p == nil {
		return 0
	}
	return ResultOf(p, p.Target)
}

// Sufficient reports whether the tree covers Want.
func (p *Plan) Sufficient() bool {
	return p != nil && p.Result() >= p.Want
}

// ResultOf counts how many units of item the steps of p contribute.
func ResultOf(p *Plan, item string) int {
	n := 0
	p.walk(func(s Step) {
		if s.Item() == item {
			n += s.Count()
		}
	})
	return n
}

// Join returns a plan whose flattening is a's steps followed by b's. Used to
// hand nested searches everything committed so far without copying steps.
func Join(a, b *Plan) *Plan {
	j := &Plan{}
	if a != nil {
		j.Target, j.Want = a.Target, a.Want
		j.Elements = append(j.Elements, Element{Sub: a})
	}
	if b != nil {
		j.Elements = append(j.Elements, Element{Sub: b})
	}
	return j
}

// Describe renders the tree, one step per line, indented by depth.
func Describe(p *Plan) string {
	var sb strings.Builder
	if p != nil {
		fmt.Fprintf(&sb, "%d %s (result %d, cost %.1f)\n", p.Want, p.Target, p.Result(), p.Cost())
	}
	describe(&sb, p, 1)
	return sb.String()
}

func describe(sb *strings.Builder, p *Plan, depth int) {
	if p == nil {
		return
	}
	indent := strings.Repeat("  ", depth)
	for _, e := range p.Elements {
		if e.Step != nil {
			sb.WriteString(indent)
			sb.WriteString(Summary(e.Step))
			sb.WriteByte('\n')
			continue
		}
		fmt.Fprintf(sb, "%s%d %s:\n", indent, e.Sub.Want, e.Sub.Target)
		describe(sb, e.Sub, depth+1)
	}
}
