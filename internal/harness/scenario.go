package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/roach88/idsync/internal/engine"
)

// Scenario defines one reconcile scenario: the starting documents of both
// stores, the operation to run and what the report and the stores must look
// like afterwards.
type Scenario struct {
	// Name uniquely identifies this scenario. It also names the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Operation is one of reconcile, sync or propagate. Default: reconcile.
	Operation string `yaml:"operation,omitempty"`

	// RunID is the fixed run id. Default: "test-run-default".
	RunID string `yaml:"run_id,omitempty"`

	Workers int  `yaml:"workers,omitempty"`
	DryRun  bool `yaml:"dry_run,omitempty"`

	// Target describes the target collection. Required for reconcile and sync.
	Target *engine.TargetSpec `yaml:"target,omitempty"`

	// Customers are identity documents in the default identity layout
	// (CustomerID, fullName, phone, email).
	Customers []Document `yaml:"customers,omitempty"`

	// Documents seed the live target collection.
	Documents []Document `yaml:"documents"`

	// Mirror seeds the snapshot mirror (sync only).
	Mirror []Document `yaml:"mirror,omitempty"`

	// Mapping and Fields drive propagate.
	Mapping map[string]string `yaml:"mapping,omitempty"`
	Fields  []string          `yaml:"fields,omitempty"`

	// FailKeys makes updates of these record keys fail on the live store.
	FailKeys []string `yaml:"fail_keys,omitempty"`

	Expect Expectations `yaml:"expect"`
}

// Operation names.
const (
	OpReconcile = "reconcile"
	OpSync      = "sync"
	OpPropagate = "propagate"
)

// Expectations are checked after the operation runs. Every part is optional.
type Expectations struct {
	// Report checks the live report (reconcile, sync).
	Report *ReportExpect `yaml:"report,omitempty"`

	// MirrorReport checks the mirror report (sync).
	MirrorReport *ReportExpect `yaml:"mirror_report,omitempty"`

	// Propagate checks the propagate report.
	Propagate *PropagateExpect `yaml:"propagate,omitempty"`

	// Documents checks the final live store.
	Documents []DocumentCheck `yaml:"documents,omitempty"`

	// MirrorDocuments checks the final mirror.
	MirrorDocuments []DocumentCheck `yaml:"mirror_documents,omitempty"`
}

// ReportExpect lists report values to check. Nil fields are not checked.
type ReportExpect struct {
	Updated        *int           `yaml:"updated,omitempty"`
	AlreadyCorrect *int           `yaml:"already_correct,omitempty"`
	NotFound       *int           `yaml:"not_found,omitempty"`
	Skipped        *int           `yaml:"skipped,omitempty"`
	Failed         *int           `yaml:"failed,omitempty"`
	ByTier         map[string]int `yaml:"by_tier,omitempty"`

	// UnmatchedKeys, SkippedKeys and FailedKeys are compared in order.
	UnmatchedKeys []string `yaml:"unmatched_keys,omitempty"`
	SkippedKeys   []string `yaml:"skipped_keys,omitempty"`
	FailedKeys    []string `yaml:"failed_keys,omitempty"`
}

// PropagateExpect lists propagate report values to check.
type PropagateExpect struct {
	Matched  *int64 `yaml:"matched,omitempty"`
	Modified *int64 `yaml:"modified,omitempty"`
	Failed   *int   `yaml:"failed,omitempty"`
}

// DocumentCheck finds one document by the single field in Where and checks
// that every field in Fields (dot paths allowed) holds the given value.
type DocumentCheck struct {
	Where  Document `yaml:"where"`
	Fields Document `yaml:"fields"`
}

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // catches typos like "expects:"
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if scenario.Operation == "" {
		scenario.Operation = OpReconcile
	}
	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	switch s.Operation {
	case OpReconcile, OpSync:
		if s.Target == nil {
			return fmt.Errorf("target is required for %s", s.Operation)
		}
		if err := s.Target.Validate(); err != nil {
			return fmt.Errorf("target: %w", err)
		}
		if s.Expect.Propagate != nil {
			return fmt.Errorf("expect.propagate is only valid for propagate")
		}
	case OpPropagate:
		if len(s.Fields) == 0 {
			return fmt.Errorf("fields list is required for propagate")
		}
		if len(s.Mapping) == 0 {
			return fmt.Errorf("mapping is required for propagate")
		}
	default:
		return fmt.Errorf("unknown operation %q", s.Operation)
	}

	if s.Operation != OpSync && (len(s.Mirror) > 0 || s.Expect.MirrorReport != nil || len(s.Expect.MirrorDocuments) > 0) {
		return fmt.Errorf("mirror is only valid for sync")
	}

	for i, c := range append(append([]DocumentCheck{}, s.Expect.Documents...), s.Expect.MirrorDocuments...) {
		if len(c.Where.Object) != 1 {
			return fmt.Errorf("expect document check %d: where needs exactly one field", i)
		}
		if len(c.Fields.Object) == 0 {
			return fmt.Errorf("expect document check %d: fields is required", i)
		}
	}
	return nil
}
