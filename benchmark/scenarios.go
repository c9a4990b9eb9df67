package benchmark

import (
	"fmt"
	"os"
	"slices"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/nvr-ai/go-detect/images"
	"github.com/nvr-ai/go-detect/inference"
)

// Scenario is one pipeline configuration timed over the corpus.
type Scenario struct {
	Name       string           `json:"name"        yaml:"name"`
	Iterations int              `json:"iterations"  yaml:"iterations"`
	WarmupRuns int              `json:"warmup_runs" yaml:"warmup_runs"`
	Pipeline   inference.Config `json:"pipeline"    yaml:"pipeline"`
}

// Validate checks the run counts and the pipeline configuration.
func (s Scenario) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("scenario name is required")
	}
	if s.Iterations <= 0 {
		return fmt.Errorf("scenario %s: iterations must be positive, got %d", s.Name, s.Iterations)
	}
	if s.WarmupRuns < 0 {
		return fmt.Errorf("scenario %s: warmup_runs must not be negative, got %d", s.Name, s.WarmupRuns)
	}
	if err := s.Pipeline.Validate(); err != nil {
		return errors.Wrapf(err, "scenario %s", s.Name)
	}
	return nil
}

// ScenarioBuilder helps build test scenarios with fluent API
type ScenarioBuilder struct {
	scenario Scenario
}

// NewScenarioBuilder creates a new scenario builder over a base pipeline
// configuration.
func NewScenarioBuilder(name string, base inference.Config) *ScenarioBuilder {
	base.Classes = slices.Clone(base.Classes)
	return &ScenarioBuilder{
		scenario: Scenario{
			Name:       name,
			Iterations: 100,
			WarmupRuns: 10,
			Pipeline:   base,
		},
	}
}

// WithTargetShortSide sets the resize target.
func (sb *ScenarioBuilder) WithTargetShortSide(side int) *ScenarioBuilder {
	sb.scenario.Pipeline.TargetShortSide = side
	return sb
}

// WithResample sets the resampler name.
func (sb *ScenarioBuilder) WithResample(name string) *ScenarioBuilder {
	sb.scenario.Pipeline.Resample = name
	return sb
}

// WithThresholds sets the confidence and IoU thresholds.
func (sb *ScenarioBuilder) WithThresholds(confidence, iou float32) *ScenarioBuilder {
	sb.scenario.Pipeline.ConfidenceThreshold = confidence
	sb.scenario.Pipeline.IoUThreshold = iou
	return sb
}

// WithIterations sets the number of test iterations
func (sb *ScenarioBuilder) WithIterations(iterations int) *ScenarioBuilder {
	sb.scenario.Iterations = iterations
	return sb
}

// WithWarmupRuns sets the number of warmup runs
func (sb *ScenarioBuilder) WithWarmupRuns(warmups int) *ScenarioBuilder {
	sb.scenario.WarmupRuns = warmups
	return sb
}

// Build returns the configured test scenario
func (sb *ScenarioBuilder) Build() Scenario {
	return sb.scenario
}

// ScenarioSet represents a collection of related test scenarios
type ScenarioSet struct {
	Name        string     `json:"name"        yaml:"name"`
	Description string     `json:"description" yaml:"description"`
	Scenarios   []Scenario `json:"scenarios"   yaml:"scenarios"`
}

// QuickScenarios returns a single short run of the base configuration.
func QuickScenarios(base inference.Config) *ScenarioSet {
	return &ScenarioSet{
		Name:        "Quick Performance Test",
		Description: "Short run of the configured pipeline",
		Scenarios: []Scenario{
			NewScenarioBuilder("quick", base).WithIterations(20).WithWarmupRuns(2).Build(),
		},
	}
}

// ResolutionScenarios compares resize targets.
func ResolutionScenarios(base inference.Config, sides ...int) *ScenarioSet {
	if len(sides) == 0 {
		sides = []int{320, 480, 640, 800, 1024}
	}
	set := &ScenarioSet{
		Name:        "Resolution Comparison",
		Description: "Tests the pipeline at different target short sides",
	}
	for _, side := range sides {
		set.Scenarios = append(set.Scenarios,
			NewScenarioBuilder(fmt.Sprintf("short_side_%d", side), base).WithTargetShortSide(side).Build())
	}
	return set
}

// ResamplerScenarios compares every registered resampler.
func ResamplerScenarios(base inference.Config) *ScenarioSet {
	set := &ScenarioSet{
		Name:        "Resampler Comparison",
		Description: "Tests the pipeline with each resampling filter",
	}
	for _, name := range images.ResamplerNames() {
		set.Scenarios = append(set.Scenarios,
			NewScenarioBuilder("resample_"+name, base).WithResample(name).Build())
	}
	return set
}

// SaveScenarioSet writes a scenario set as YAML.
func SaveScenarioSet(set *ScenarioSet, filename string) error {
	data, err := yaml.Marshal(set)
	if err != nil {
		return errors.Wrap(err, "failed to marshal scenario set")
	}
	if err := os.WriteFile(filename, data, 0o644); err != nil {
		return errors.Wrap(err, "failed to write scenario set")
	}
	return nil
}

// LoadScenarioSet reads a YAML scenario set. Each scenario starts from the
// builder defaults over base, so files only list what they change.
func LoadScenarioSet(filename string, base inference.Config) (*ScenarioSet, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read scenario set")
	}

	var raw struct {
		Name        string      `yaml:"name"`
		Description string      `yaml:"description"`
		Scenarios   []yaml.Node `yaml:"scenarios"`
	}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, errors.Wrap(err, "failed to parse scenario set")
	}

	set := &ScenarioSet{Name: raw.Name, Description: raw.Description}
	for i := range raw.Scenarios {
		s := NewScenarioBuilder(fmt.Sprintf("scenario_%d", i), base).Build()
		if err := raw.Scenarios[i].Decode(&s); err != nil {
			return nil, errors.Wrapf(err, "failed to parse scenario %d", i)
		}
		if err := s.Validate(); err != nil {
			return nil, err
		}
		set.Scenarios = append(set.Scenarios, s)
	}
	return set, nil
}
