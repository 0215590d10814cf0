package unit

import (
	"fmt"
	"regexp"
	"strings"

	"dron/internal/job"
)

// header precedes every managed unit body. The marker inside it is what
// IsManaged keys on.
var header = fmt.Sprintf(`# %s
# If you do any manual changes, they will be overridden on the next dron run
`, Marker)

// Render compiles one job spec into its unit artifacts: always a service,
// plus a timer when the schedule calls for one.
//
// Rendering is a pure function of the spec. Nothing here reads the
// environment, so calling it repeatedly for diffing is free and the output
// is byte-stable.
func Render(spec job.Spec) ([]Artifact, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}

	out := []Artifact{{
		Kind: KindService,
		Name: spec.Name + KindService.Suffix(),
		Body: renderService(spec),
	}}

	if spec.When.HasTimer() {
		out = append(out, Artifact{
			Kind: KindTimer,
			Name: spec.Name + KindTimer.Suffix(),
			Body: renderTimer(spec),
		})
	}
	return out, nil
}

// RenderAll renders every spec, collecting all errors instead of stopping at
// the first so the user sees every problem in one pass.
func RenderAll(specs []job.Spec) ([]Artifact, []error) {
	var artifacts []Artifact
	var errs []error
	for _, s := range specs {
		a, err := Render(s)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		artifacts = append(artifacts, a...)
	}
	return artifacts, errs
}

// reSectionKey splits "[Unit]After" into its section and key. Keys without
// a section land in [Service].
var reSectionKey = regexp.MustCompile(`^(\[\w+\])(.+)$`)

func renderService(spec job.Spec) string {
	sections := newSectionList()
	sections.add("[Unit]", fmt.Sprintf("Description=Service for %s %s", spec.Name, Marker))
	sections.add("[Service]", "ExecStart="+spec.Command)

	// OnFailure= can't carry arguments, so failure hooks go through an
	// ExecStopPost shell guard instead ($$ keeps the variable out of
	// systemd's own expansion).
	for _, action := range spec.OnFailure {
		sections.add("[Service]",
			fmt.Sprintf("ExecStopPost=/bin/sh -c 'if [ $$EXIT_STATUS != 0 ]; then %s; fi'", action))
	}

	for _, p := range spec.Extra {
		section := "[Service]"
		key := p.Key
		if m := reSectionKey.FindStringSubmatch(p.Key); m != nil {
			section = m[1]
			key = m[2]
		}
		sections.add(section, key+"="+p.Value)
	}

	return sections.render()
}

func renderTimer(spec job.Spec) string {
	sections := newSectionList()
	sections.add("[Unit]", fmt.Sprintf("Description=Timer for %s %s", spec.Name, Marker))
	for _, p := range spec.When.TimerLines() {
		sections.add("[Timer]", p.Key+"="+p.Value)
	}
	sections.add("[Install]", "WantedBy=timers.target")
	return sections.render()
}

// sectionList accumulates unit file sections in first-seen order.
type sectionList struct {
	order []string
	lines map[string][]string
}

func newSectionList() *sectionList {
	return &sectionList{lines: map[string][]string{}}
}

func (s *sectionList) add(section, line string) {
	if _, ok := s.lines[section]; !ok {
		s.order = append(s.order, section)
	}
	s.lines[section] = append(s.lines[section], line)
}

func (s *sectionList) render() string {
	var b strings.Builder
	b.WriteString(header)
	for _, section := range s.order {
		b.WriteString("\n")
		b.WriteString(section)
		b.WriteString("\n")
		b.WriteString(strings.Join(s.lines[section], "\n"))
		b.WriteString("\n")
	}
	return b.String()
}
