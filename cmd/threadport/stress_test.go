// stress_test.go tests the 'threadport stress' command.
package main

import (
	"bytes"
	"strings"
	"testing"
)

// tinyScenario returns a scenario small enough for test runs while
// still contending.
func tinyScenario(workloads ...string) Scenario {
	s := Scenario{
		Name:       "tiny",
		Threads:    4,
		Iterations: 50,
		Workloads:  workloads,
	}
	if len(s.Workloads) == 0 {
		s.Workloads = append([]string(nil), allWorkloads...)
	}
	return s
}

// TestRunStress_AllWorkloads runs every workload at a small size and
// verifies the report.
func TestRunStress_AllWorkloads(t *testing.T) {
	var buf bytes.Buffer
	s := tinyScenario()

	if err := runStress(s, &buf); err != nil {
		t.Fatalf("runStress() error: %v\noutput:\n%s", err, buf.String())
	}

	out := buf.String()
	for _, name := range allWorkloads {
		if !strings.Contains(out, name) {
			t.Errorf("Expected workload %q in report, got:\n%s", name, out)
		}
	}
	if !strings.Contains(out, "workloads passed") {
		t.Errorf("Expected pass summary in report, got:\n%s", out)
	}
}

// TestRunStress_SingleWorkload verifies workload selection.
func TestRunStress_SingleWorkload(t *testing.T) {
	var buf bytes.Buffer
	s := tinyScenario("mutex")

	if err := runStress(s, &buf); err != nil {
		t.Fatalf("runStress() error: %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, "mutex") {
		t.Errorf("Expected mutex in report, got:\n%s", out)
	}
	if strings.Contains(out, "rwlock") {
		t.Errorf("Expected only the mutex workload, got:\n%s", out)
	}
}

// TestRunWorkload_Unknown verifies the dispatcher rejects names the
// scenario validator would also reject.
func TestRunWorkload_Unknown(t *testing.T) {
	if err := runWorkload("warp", tinyScenario()); err == nil {
		t.Fatal("Expected error for unknown workload, got nil")
	}
}

// TestStressCancel_Counts verifies the cancel workload's own
// bookkeeping at a minimal size.
func TestStressCancel_Counts(t *testing.T) {
	s := Scenario{Name: "cancel-only", Threads: 2, Iterations: 1, Workloads: []string{"cancel"}}
	if err := stressCancel(s); err != nil {
		t.Fatalf("stressCancel() error: %v", err)
	}
}
