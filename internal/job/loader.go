package job

import (
	"errors"
	"fmt"
	"os"
	"strings"

	yaml "go.yaml.in/yaml/v3"
)

// Loader produces job specs from a user-editable source. The pipeline only
// ever sees the resulting []Spec; how they were declared is the loader's
// private business.
type Loader interface {
	Load(path string) ([]Spec, error)
}

// TabLoader loads the YAML drontab format:
//
//	defaults:
//	  on_failure:
//	    - notify
//	jobs:
//	  - name: borg-backup-home
//	    when: daily
//	    command: /home/user/scripts/run-borg /home/user
//	    extra:
//	      CPUQuota: 50%
//	      "[Unit]After": network-online.target
//
// Unknown fields are rejected so typos fail loudly instead of being dropped.
type TabLoader struct{}

type tabDoc struct {
	Defaults tabDefaults `yaml:"defaults"`
	Jobs     []tabJob    `yaml:"jobs"`
}

type tabDefaults struct {
	OnFailure []string `yaml:"on_failure"`
}

type tabJob struct {
	Name      string        `yaml:"name"`
	When      string        `yaml:"when"`
	Timer     orderedProps  `yaml:"timer"`
	Command   commandValue  `yaml:"command"`
	OnFailure *[]string     `yaml:"on_failure"`
	Extra     orderedProps  `yaml:"extra"`
}

func (TabLoader) Load(path string) ([]Spec, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open drontab: %w", err)
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)

	var doc tabDoc
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("parse drontab %s: %w", path, err)
	}
	if len(doc.Jobs) == 0 {
		return nil, nil
	}

	specs := make([]Spec, 0, len(doc.Jobs))
	seen := make(map[string]struct{}, len(doc.Jobs))
	var errs []error
	for _, j := range doc.Jobs {
		spec, err := j.toSpec(doc.Defaults)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if _, dup := seen[spec.Name]; dup {
			errs = append(errs, &SpecError{Name: spec.Name, Reason: "duplicate job name"})
			continue
		}
		seen[spec.Name] = struct{}{}
		specs = append(specs, spec)
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return specs, nil
}

func (j tabJob) toSpec(defaults tabDefaults) (Spec, error) {
	spec := Spec{
		Name:    strings.TrimSpace(j.Name),
		Command: strings.TrimSpace(string(j.Command)),
		Extra:   j.Extra,
	}

	if len(j.Timer) > 0 {
		if strings.TrimSpace(j.When) != "" {
			return Spec{}, &SpecError{Name: spec.Name, Reason: "'when' and 'timer' are mutually exclusive"}
		}
		spec.When = When{Kind: RawTimer, Timer: j.Timer}
	} else {
		w, err := ParseWhen(j.When)
		if err != nil {
			return Spec{}, &SpecError{Name: spec.Name, Reason: err.Error()}
		}
		spec.When = w
	}

	if j.OnFailure != nil {
		spec.OnFailure = expandFailureActions(*j.OnFailure)
	} else {
		spec.OnFailure = expandFailureActions(defaults.OnFailure)
	}

	if err := spec.Validate(); err != nil {
		return Spec{}, err
	}
	return spec, nil
}

// expandFailureActions resolves the "notify" shorthand into the dron failure
// hook. %n is expanded by systemd to the failing unit's name.
func expandFailureActions(actions []string) []string {
	if len(actions) == 0 {
		return nil
	}
	out := make([]string, 0, len(actions))
	for _, a := range actions {
		if strings.TrimSpace(a) == "notify" {
			a = "dron notify %n"
		}
		out = append(out, a)
	}
	return out
}

// commandValue accepts either a single string or an argv list.
type commandValue string

func (c *commandValue) UnmarshalYAML(n *yaml.Node) error {
	switch n.Kind {
	case yaml.ScalarNode:
		var s string
		if err := n.Decode(&s); err != nil {
			return err
		}
		*c = commandValue(s)
		return nil
	case yaml.SequenceNode:
		var argv []string
		if err := n.Decode(&argv); err != nil {
			return err
		}
		*c = commandValue(joinCommand(argv))
		return nil
	default:
		return fmt.Errorf("command must be a string or a list of strings (line %d)", n.Line)
	}
}

// joinCommand quotes argv elements the way systemd's ExecStart expects.
func joinCommand(argv []string) string {
	parts := make([]string, 0, len(argv))
	for _, a := range argv {
		if a == "" || strings.ContainsAny(a, " \t\"'\\") {
			a = `"` + strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(a) + `"`
		}
		parts = append(parts, a)
	}
	return strings.Join(parts, " ")
}

// orderedProps decodes a YAML mapping while preserving author order, which a
// plain map[string]string would destroy. Order matters: rendered output must
// be byte-stable and systemd treats repeated keys positionally.
type orderedProps []Property

func (o *orderedProps) UnmarshalYAML(n *yaml.Node) error {
	if n.Kind != yaml.MappingNode {
		return fmt.Errorf("expected a mapping (line %d)", n.Line)
	}
	props := make([]Property, 0, len(n.Content)/2)
	for i := 0; i+1 < len(n.Content); i += 2 {
		k := n.Content[i]
		v := n.Content[i+1]
		if v.Kind != yaml.ScalarNode {
			return fmt.Errorf("property %q must be a scalar (line %d)", k.Value, v.Line)
		}
		props = append(props, Property{Key: k.Value, Value: v.Value})
	}
	*o = props
	return nil
}
