// Package state reads the unit files currently installed in the unit
// directory. It is strictly read-only: the applier is the only component
// allowed to mutate the directory.
package state

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"dron/internal/unit"
)

// Read enumerates every service and timer unit file in dir, managed or not,
// in name order and shaped like the renderer's output so the sets are
// directly diff-comparable.
//
// Foreign units (no managed marker) are included deliberately: the
// reconciler must see them to refuse a name collision instead of planning a
// create that would overwrite someone else's file. Use Managed to narrow to
// dron's own units.
//
// A missing directory is a first run, not an error: it yields an empty set.
func Read(dir string) ([]unit.Artifact, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read unit dir %s: %w", dir, err)
	}

	var out []unit.Artifact
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		kind, ok := unit.KindOf(e.Name())
		if !ok {
			continue
		}
		b, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, fmt.Errorf("read unit %s: %w", e.Name(), err)
		}
		out = append(out, unit.Artifact{Kind: kind, Name: e.Name(), Body: string(b)})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Managed filters artifacts down to the ones carrying the managed marker.
func Managed(artifacts []unit.Artifact) []unit.Artifact {
	var out []unit.Artifact
	for _, a := range artifacts {
		if unit.IsManaged(a.Body) {
			out = append(out, a)
		}
	}
	return out
}
