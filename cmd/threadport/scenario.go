// scenario.go defines the YAML stress-scenario format.
package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/kolkov/threadport/thread"
)

// allWorkloads lists every workload the stress command knows, in run
// order.
var allWorkloads = []string{"mutex", "rwlock", "cond", "sem", "tls", "cancel", "timer"}

// Scenario configures one stress run. The zero value is not runnable;
// applyDefaults fills omitted fields with host-sized values.
type Scenario struct {
	// Name labels the run in reports.
	Name string `yaml:"name"`

	// Threads is the number of worker threads per workload.
	Threads int `yaml:"threads"`

	// Iterations is the per-thread operation count for the loop-shaped
	// workloads.
	Iterations int `yaml:"iterations"`

	// Workloads selects which workloads run; empty means all.
	Workloads []string `yaml:"workloads"`
}

// defaultScenario returns the built-in scenario used when no file is
// given.
func defaultScenario() Scenario {
	s := Scenario{Name: "default"}
	s.applyDefaults()
	return s
}

// loadScenario reads and validates a scenario file.
func loadScenario(path string) (Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Scenario{}, fmt.Errorf("read scenario: %w", err)
	}
	var s Scenario
	if err := yaml.Unmarshal(data, &s); err != nil {
		return Scenario{}, fmt.Errorf("yaml unmarshal: %w", err)
	}
	s.applyDefaults()
	if err := s.validate(); err != nil {
		return Scenario{}, fmt.Errorf("scenario validation: %w", err)
	}
	return s, nil
}

// applyDefaults fills omitted fields. Thread counts scale with the
// usable CPUs so the default scenario contends on every host.
func (s *Scenario) applyDefaults() {
	if s.Name == "" {
		s.Name = "unnamed"
	}
	if s.Threads <= 0 {
		s.Threads = 2 * thread.NumCPU()
		if s.Threads < 4 {
			s.Threads = 4
		}
	}
	if s.Iterations <= 0 {
		s.Iterations = 5000
	}
	if len(s.Workloads) == 0 {
		s.Workloads = append([]string(nil), allWorkloads...)
	}
}

// validate rejects workload names the stress command does not know.
func (s *Scenario) validate() error {
	known := make(map[string]bool, len(allWorkloads))
	for _, name := range allWorkloads {
		known[name] = true
	}
	for _, name := range s.Workloads {
		if !known[name] {
			return fmt.Errorf("unknown workload %q (known: %v)", name, allWorkloads)
		}
	}
	return nil
}
