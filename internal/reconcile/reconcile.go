// Package reconcile diffs the desired artifact set against the installed one
// and produces an ordered change plan.
package reconcile

import (
	"fmt"
	"sort"

	"dron/internal/unit"
)

// OpKind is one reconciliation operation type.
type OpKind int

const (
	Unchanged OpKind = iota
	Create
	Update
	Delete
)

func (k OpKind) String() string {
	switch k {
	case Create:
		return "create"
	case Update:
		return "update"
	case Delete:
		return "delete"
	default:
		return "unchanged"
	}
}

// Op is one planned operation. Artifact is the desired artifact for
// Create/Update/Unchanged and the installed one for Delete. Previous carries
// the installed body for Update so callers can show a diff.
type Op struct {
	Kind     OpKind
	Artifact unit.Artifact
	Previous *unit.Artifact
}

// Plan is the ordered operation list: Updates, then Creates, then Deletes,
// with timer deletes ahead of service deletes so a timer never outlives its
// target. Constructed fresh per apply invocation and consumed once.
type Plan struct {
	Ops []Op
}

// Changes counts operations that actually mutate state.
func (p *Plan) Changes() int {
	n := 0
	for _, op := range p.Ops {
		if op.Kind != Unchanged {
			n++
		}
	}
	return n
}

// Count returns the number of operations of the given kind.
func (p *Plan) Count(kind OpKind) int {
	n := 0
	for _, op := range p.Ops {
		if op.Kind == kind {
			n++
		}
	}
	return n
}

// Desired returns the artifacts the plan wants present (creates + updates).
func (p *Plan) Desired() []unit.Artifact {
	var out []unit.Artifact
	for _, op := range p.Ops {
		if op.Kind == Create || op.Kind == Update {
			out = append(out, op.Artifact)
		}
	}
	return out
}

// Error is an internal-consistency fault: the reconciler was about to cross
// the managed-namespace boundary. It should never occur in normal operation
// and is treated as fatal.
type Error struct {
	Name   string
	Reason string
}

func (e *Error) Error() string {
	return fmt.Sprintf("reconcile: %s: %s", e.Name, e.Reason)
}

// Diff computes the change plan.
//
// Identity is the artifact file name; equality is byte equality of bodies.
// Installed artifacts without the managed marker are foreign: they are never
// deleted, and colliding with one by name is an error rather than a
// takeover.
func Diff(desired, installed []unit.Artifact) (*Plan, error) {
	desiredBy := make(map[string]unit.Artifact, len(desired))
	for _, a := range desired {
		desiredBy[a.Name] = a
	}
	installedBy := make(map[string]unit.Artifact, len(installed))
	for _, a := range installed {
		installedBy[a.Name] = a
	}

	var updates, creates, deletes, unchanged []Op

	names := make([]string, 0, len(desired))
	for _, a := range desired {
		names = append(names, a.Name)
	}
	sort.Strings(names)

	for _, name := range names {
		want := desiredBy[name]
		have, ok := installedBy[name]
		if !ok {
			creates = append(creates, Op{Kind: Create, Artifact: want})
			continue
		}
		if !unit.IsManaged(have.Body) {
			return nil, &Error{Name: name, Reason: "desired unit collides with a unit not managed by dron"}
		}
		if have.Body == want.Body {
			unchanged = append(unchanged, Op{Kind: Unchanged, Artifact: want})
			continue
		}
		prev := have
		updates = append(updates, Op{Kind: Update, Artifact: want, Previous: &prev})
	}

	// Deletions: installed-only names, managed ones only. Sorted with
	// timers first so a schedule unit never points at an already-removed
	// service.
	var goners []unit.Artifact
	for name, have := range installedBy {
		if _, ok := desiredBy[name]; ok {
			continue
		}
		if !unit.IsManaged(have.Body) {
			continue
		}
		goners = append(goners, have)
	}
	sort.Slice(goners, func(i, j int) bool {
		if goners[i].Kind != goners[j].Kind {
			return goners[i].Kind == unit.KindTimer
		}
		return goners[i].Name < goners[j].Name
	})
	for _, g := range goners {
		prev := g
		deletes = append(deletes, Op{Kind: Delete, Artifact: g, Previous: &prev})
	}

	ops := make([]Op, 0, len(updates)+len(creates)+len(deletes)+len(unchanged))
	ops = append(ops, updates...)
	ops = append(ops, creates...)
	ops = append(ops, deletes...)
	ops = append(ops, unchanged...)
	return &Plan{Ops: ops}, nil
}
