package config

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Plan describes an experiment: one executable, a list of labeled
// invocations, repeated a number of times. Invocations are listed as steps,
// generated from a parameter sweep over a dataset, or both.
type Plan struct {
	Name            string        `yaml:"name"`
	Exe             string        `yaml:"exe"`
	AdditionalFlags []string      `yaml:"additional_flags"`
	ReportFlag      string        `yaml:"report_flag,omitempty"` // flag the binary takes to write a timing report
	Repeat          int           `yaml:"repeat"`
	Timeout         time.Duration `yaml:"timeout,omitempty"` // per step, 0 = none
	Steps           []Step        `yaml:"steps"`

	Parameters []Parameter `yaml:"parameters,omitempty"`
	Dataset    []Dataset   `yaml:"dataset,omitempty"`

	expanded bool
}

// Parameter is one swept flag. While it is varied over Values, every other
// parameter is passed at its Nominal value.
type Parameter struct {
	Name    string   `yaml:"name"`
	Flag    string   `yaml:"flag"`
	Values  []string `yaml:"values"`
	Nominal string   `yaml:"nominal"`
}

// Dataset is one source/target pair the sweep runs on
type Dataset struct {
	Name  string `yaml:"name,omitempty"` // defaults to sigma_<Sigma>, then the base name of Q
	P     string `yaml:"p"`
	Q     string `yaml:"q"`
	Sigma string `yaml:"sigma,omitempty"`
}

// Dataset input flags of the registration binary
const (
	SourceFlag = "-p"
	TargetFlag = "-q"
)

// Label returns the name used in generated step labels
func (d Dataset) Label() string {
	switch {
	case d.Name != "":
		return d.Name
	case d.Sigma != "":
		return "sigma_" + d.Sigma
	default:
		return strings.TrimSuffix(filepath.Base(d.Q), filepath.Ext(d.Q))
	}
}

// Step is one labeled invocation of the plan executable
type Step struct {
	Label string            `yaml:"label"`
	Args  []string          `yaml:"args"`
	Env   map[string]string `yaml:"env,omitempty"`
}

// LoadPlan reads and validates a plan file
func LoadPlan(path string) (*Plan, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open plan: %w", err)
	}
	defer f.Close()

	plan, err := ParsePlan(f)
	if err != nil {
		return nil, fmt.Errorf("plan %s: %w", path, err)
	}
	return plan, nil
}

// ParsePlan decodes a YAML plan. Unknown keys are rejected.
func ParsePlan(r io.Reader) (*Plan, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read plan: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var plan Plan
	if err := dec.Decode(&plan); err != nil {
		return nil, fmt.Errorf("failed to parse plan: %w", err)
	}
	if plan.Repeat == 0 {
		plan.Repeat = 1
	}
	if err := plan.Expand(); err != nil {
		return nil, err
	}
	if err := plan.Validate(); err != nil {
		return nil, err
	}
	return &plan, nil
}

// Validate checks required fields and label uniqueness
func (p *Plan) Validate() error {
	if p.Name == "" {
		return fmt.Errorf("name: required")
	}
	if p.Exe == "" {
		return fmt.Errorf("exe: required")
	}
	if p.Repeat < 1 {
		return fmt.Errorf("repeat: must be at least 1, got %d", p.Repeat)
	}
	if p.Timeout < 0 {
		return fmt.Errorf("timeout: must not be negative, got %s", p.Timeout)
	}
	if err := p.validateSweep(); err != nil {
		return err
	}
	if len(p.Steps) == 0 {
		return fmt.Errorf("steps: at least one step required")
	}

	seen := make(map[string]bool, len(p.Steps))
	for i, s := range p.Steps {
		if s.Label == "" {
			return fmt.Errorf("steps[%d].label: required", i)
		}
		if seen[s.Label] {
			return fmt.Errorf("steps[%d].label: duplicate label %q", i, s.Label)
		}
		seen[s.Label] = true
	}
	return nil
}

// Command returns the argument vector for a step (without the executable)
func (p *Plan) Command(s Step) []string {
	args := make([]string, 0, len(p.AdditionalFlags)+len(s.Args))
	args = append(args, p.AdditionalFlags...)
	args = append(args, s.Args...)
	return args
}

func (p *Plan) validateSweep() error {
	if len(p.Parameters) > 0 && len(p.Dataset) == 0 {
		return fmt.Errorf("dataset: required when parameters are set")
	}
	if len(p.Dataset) > 0 && len(p.Parameters) == 0 {
		return fmt.Errorf("parameters: required when dataset is set")
	}

	flags := make(map[string]bool, len(p.Parameters))
	for i, par := range p.Parameters {
		switch {
		case par.Name == "":
			return fmt.Errorf("parameters[%d].name: required", i)
		case par.Flag == "":
			return fmt.Errorf("parameters[%d].flag: required", i)
		case par.Nominal == "":
			return fmt.Errorf("parameters[%d].nominal: required", i)
		case flags[par.Flag]:
			return fmt.Errorf("parameters[%d].flag: duplicate flag %q", i, par.Flag)
		}
		flags[par.Flag] = true
	}
	for i, d := range p.Dataset {
		if d.P == "" || d.Q == "" {
			return fmt.Errorf("dataset[%d]: p and q are required", i)
		}
	}
	return nil
}

// CountExperiments returns the number of steps the sweep generates: every
// value of every parameter, on every dataset entry.
func (p *Plan) CountExperiments() int {
	values := 0
	for _, par := range p.Parameters {
		values += len(par.Values)
	}
	return values * len(p.Dataset)
}

// Expand appends the sweep's steps, labeled <param>=<value>/<dataset>, to
// the listed steps. Parameters without values only contribute their nominal
// value. Calling Expand again has no effect.
func (p *Plan) Expand() error {
	if p.expanded {
		return nil
	}
	if err := p.validateSweep(); err != nil {
		return err
	}
	p.expanded = true

	for _, par := range p.Parameters {
		for _, val := range par.Values {
			for _, d := range p.Dataset {
				args := []string{SourceFlag, d.P, TargetFlag, d.Q, par.Flag, val}
				for _, other := range p.Parameters {
					if other.Flag != par.Flag {
						args = append(args, other.Flag, other.Nominal)
					}
				}
				p.Steps = append(p.Steps, Step{
					Label: fmt.Sprintf("%s=%s/%s", par.Name, val, d.Label()),
					Args:  args,
				})
			}
		}
	}
	return nil
}
