package benchmark

import (
	"fmt"
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// ScenarioBuilder helps build test scenarios with fluent API
type ScenarioBuilder struct {
	scenario Scenario
}

// NewScenarioBuilder starts from the player-overlay defaults: stride 32, batch 16, cap 4000,
// threshold 0.9, no pyramid.
func NewScenarioBuilder(name string) *ScenarioBuilder {
	return &ScenarioBuilder{
		scenario: Scenario{
			Name:       name,
			Stride:     32,
			BatchSize:  16,
			MaxWindows: 4000,
			Threshold:  0.9,
			Iterations: 50,
			WarmupRuns: 5,
		},
	}
}

// WithStride sets the window step.
func (sb *ScenarioBuilder) WithStride(stride int) *ScenarioBuilder {
	sb.scenario.Stride = stride
	return sb
}

// WithBatchSize sets the batch size for processing
func (sb *ScenarioBuilder) WithBatchSize(batchSize int) *ScenarioBuilder {
	sb.scenario.BatchSize = batchSize
	return sb
}

// WithMaxWindows sets the per-frame window cap.
func (sb *ScenarioBuilder) WithMaxWindows(limit int) *ScenarioBuilder {
	sb.scenario.MaxWindows = limit
	return sb
}

// WithPyramid enables multi-scale scanning.
func (sb *ScenarioBuilder) WithPyramid(scale float64) *ScenarioBuilder {
	sb.scenario.PyramidScale = scale
	return sb
}

// WithThreshold sets the detection threshold.
func (sb *ScenarioBuilder) WithThreshold(threshold float32) *ScenarioBuilder {
	sb.scenario.Threshold = threshold
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
	Name        string     `yaml:"name"`
	Description string     `yaml:"description"`
	Scenarios   []Scenario `yaml:"scenarios"`
}

// QuickScenarios compares batch sizes at the default stride.
func QuickScenarios() *ScenarioSet {
	set := &ScenarioSet{
		Name:        "Quick",
		Description: "Batch sizes at stride 32",
	}
	for _, batch := range []int{1, 16, 64} {
		set.Scenarios = append(set.Scenarios,
			NewScenarioBuilder(fmt.Sprintf("quick_b%d", batch)).WithBatchSize(batch).Build())
	}
	return set
}

// StrideScenarios compares window steps at the default batch size. Smaller strides find
// players more precisely but hit the window cap sooner.
func StrideScenarios() *ScenarioSet {
	set := &ScenarioSet{
		Name:        "Stride",
		Description: "Window steps at batch 16",
	}
	for _, stride := range []int{8, 16, 32, 64} {
		set.Scenarios = append(set.Scenarios,
			NewScenarioBuilder(fmt.Sprintf("stride_%d", stride)).WithStride(stride).Build())
	}
	return set
}

// PyramidScenarios compares single-scale scanning with two pyramid factors.
func PyramidScenarios() *ScenarioSet {
	set := &ScenarioSet{
		Name:        "Pyramid",
		Description: "Single scale against 1.25 and 1.5 pyramids",
	}
	for _, scale := range []float64{0, 1.25, 1.5} {
		set.Scenarios = append(set.Scenarios,
			NewScenarioBuilder(fmt.Sprintf("pyramid_%.2f", scale)).WithPyramid(scale).WithMaxWindows(20000).Build())
	}
	return set
}

// SaveScenarioSet saves a scenario set to a YAML file
func SaveScenarioSet(set *ScenarioSet, filename string) error {
	data, err := yaml.Marshal(set)
	if err != nil {
		return errors.Wrap(err, "marshal scenario set")
	}
	if err := os.WriteFile(filename, data, 0o644); err != nil {
		return errors.Wrap(err, "write scenario file")
	}
	return nil
}

// LoadScenarioSet loads a scenario set from a YAML file. Omitted scenario fields take the
// builder defaults.
func LoadScenarioSet(filename string) (*ScenarioSet, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, errors.Wrap(err, "read scenario file")
	}

	var raw struct {
		Name        string      `yaml:"name"`
		Description string      `yaml:"description"`
		Scenarios   []yaml.Node `yaml:"scenarios"`
	}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, errors.Wrap(err, "unmarshal scenario set")
	}

	set := &ScenarioSet{Name: raw.Name, Description: raw.Description}
	for i, node := range raw.Scenarios {
		s := NewScenarioBuilder(fmt.Sprintf("scenario_%d", i)).Build()
		if err := node.Decode(&s); err != nil {
			return nil, errors.Wrapf(err, "scenario %d", i)
		}
		set.Scenarios = append(set.Scenarios, s)
	}
	return set, nil
}
