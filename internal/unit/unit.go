package unit

import "strings"

// Kind tags what a rendered artifact describes: the thing to run, or the
// schedule that triggers it.
type Kind string

const (
	KindService Kind = "service"
	KindTimer   Kind = "timer"
)

// Suffix returns the unit file name suffix for this kind.
func (k Kind) Suffix() string { return "." + string(k) }

// Artifact is one rendered unit file: immutable, diffed by (Name, Body).
type Artifact struct {
	Kind Kind
	// Name is the canonical file name, e.g. "backup.service".
	Name string
	// Body is the full rendered text. Rendering is deterministic, so two
	// artifacts with equal bodies are byte-identical.
	Body string
}

// JobName strips the kind suffix from the artifact file name.
func (a Artifact) JobName() string {
	return strings.TrimSuffix(a.Name, a.Kind.Suffix())
}

// KindOf derives the artifact kind from a unit file name.
func KindOf(name string) (Kind, bool) {
	switch {
	case strings.HasSuffix(name, ".service"):
		return KindService, true
	case strings.HasSuffix(name, ".timer"):
		return KindTimer, true
	default:
		return "", false
	}
}

// Marker identifies unit files owned by this tool. Anything without it is
// foreign state and must never be touched.
const Marker = "(MANAGED BY DRON)"

// legacy marker written by old releases; still recognized on read.
const legacyMarker = "<MANAGED BY DRON>"

// IsManaged reports whether a unit file body carries the managed marker.
func IsManaged(body string) bool {
	return strings.Contains(body, Marker) || strings.Contains(body, legacyMarker)
}
