package job

import (
	"fmt"
	"regexp"
	"strings"
)

// Spec is one user-declared job: what to run, when to run it, and any raw
// unit properties to pass through to the rendered unit.
type Spec struct {
	// Name identifies the job and derives the unit file names
	// (<name>.service / <name>.timer). Unique within a drontab.
	Name string

	// When is the trigger schedule. A zero When (Kind == Always) means the
	// job has no timer: it is started manually or runs as a persistent
	// service.
	When When

	// Command is the full command line, already in its final form.
	Command string

	// OnFailure lists commands to run when the job exits non-zero.
	OnFailure []string

	// Extra carries raw unit properties appended verbatim to the rendered
	// service unit. Keys may address a section explicitly ("[Unit]After");
	// bare keys default to [Service]. Order is preserved.
	Extra []Property
}

// Property is one key=value line destined for a unit file section.
type Property struct {
	Key   string
	Value string
}

// SpecError reports a malformed job spec. It is always detected before any
// unit file is rendered or written.
type SpecError struct {
	Name   string
	Reason string
}

func (e *SpecError) Error() string {
	if e.Name == "" {
		return "invalid job spec: " + e.Reason
	}
	return fmt.Sprintf("invalid job spec %q: %s", e.Name, e.Reason)
}

// Unit names may only use characters systemd accepts in the unit name
// position; the dot is excluded because we append the type suffix ourselves.
var reUnitName = regexp.MustCompile(`^[A-Za-z0-9_][A-Za-z0-9_:\-]*$`)

const maxNameLen = 200

// Validate checks the per-spec invariants (name shape, command presence).
// Cross-spec invariants (name uniqueness) are the loader's business.
func (s *Spec) Validate() error {
	name := strings.TrimSpace(s.Name)
	if name == "" {
		return &SpecError{Reason: "name is required"}
	}
	if len(name) > maxNameLen {
		return &SpecError{Name: name, Reason: "name too long"}
	}
	if !reUnitName.MatchString(name) {
		return &SpecError{Name: name, Reason: "name must match " + reUnitName.String()}
	}
	if strings.TrimSpace(s.Command) == "" {
		return &SpecError{Name: name, Reason: "command is required"}
	}
	for _, p := range s.Extra {
		if strings.TrimSpace(p.Key) == "" {
			return &SpecError{Name: name, Reason: "extra property with empty key"}
		}
	}
	return nil
}
