package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/roach88/posync/internal/config"
	"github.com/roach88/posync/internal/engine"
)

// Scenario defines a scripted sync scenario.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Config overrides engine timing and policy.
	Config ScenarioConfig `yaml:"config,omitempty"`

	// Queue lists the uids queued before the first step, oldest first.
	// Each order gets ID "id-<uid>".
	Queue []string `yaml:"queue,omitempty"`

	// Remote maps uids to their scripted outcome. Unlisted uids are accepted.
	Remote map[string]string `yaml:"remote,omitempty"`

	// Steps run in order.
	Steps []Step `yaml:"steps"`

	// Assertions validate the final result.
	Assertions []Assertion `yaml:"assertions"`

	// SessionID is the id every session gets. Defaults to "test-session".
	SessionID string `yaml:"session_id,omitempty"`
}

// ScenarioConfig overrides engine settings. Zero values keep the defaults.
type ScenarioConfig struct {
	SessionDeadline config.Duration `yaml:"session_deadline,omitempty"`
	Pace            *config.Duration `yaml:"pace,omitempty"`
	Backoff         config.Duration `yaml:"backoff,omitempty"`
	RejectPolicy    string          `yaml:"reject_policy,omitempty"`
}

// engineOptions translates the overrides into engine options.
func (c ScenarioConfig) engineOptions() ([]engine.Option, error) {
	var opts []engine.Option
	if c.SessionDeadline > 0 {
		opts = append(opts, engine.WithSessionDeadline(c.SessionDeadline.Std()))
	}
	if c.Pace != nil {
		opts = append(opts, engine.WithPace(c.Pace.Std()))
	}
	if c.Backoff > 0 {
		opts = append(opts, engine.WithBackoff(c.Backoff.Std()))
	}
	policy, err := engine.ParseRejectPolicy(c.RejectPolicy)
	if err != nil {
		return nil, err
	}
	return append(opts, engine.WithRejectPolicy(policy)), nil
}

// Step is one scenario action. Exactly one field must be set.
type Step struct {
	// Sync runs one session.
	Sync bool `yaml:"sync,omitempty"`

	// Submit submits a new order with this uid through the offline submitter.
	Submit string `yaml:"submit,omitempty"`

	// Advance moves the virtual clock forward.
	Advance config.Duration `yaml:"advance,omitempty"`

	// Remote replaces the scripted outcome of the listed uids.
	Remote map[string]string `yaml:"remote,omitempty"`
}

func (s Step) kind() (string, error) {
	var kinds []string
	if s.Sync {
		kinds = append(kinds, "sync")
	}
	if s.Submit != "" {
		kinds = append(kinds, "submit")
	}
	if s.Advance > 0 {
		kinds = append(kinds, "advance")
	}
	if len(s.Remote) > 0 {
		kinds = append(kinds, "remote")
	}
	switch len(kinds) {
	case 0:
		return "", fmt.Errorf("one of sync, submit, advance or remote is required")
	case 1:
		return kinds[0], nil
	default:
		return "", fmt.Errorf("only one of sync, submit, advance or remote may be set, got %v", kinds)
	}
}

// Remote outcomes.
const (
	OutcomeAccept      = "accept"
	OutcomeReject      = "reject"
	OutcomeUnavailable = "unavailable"
	OutcomeFatal       = "fatal"
)

func validOutcome(o string) bool {
	switch o {
	case OutcomeAccept, OutcomeReject, OutcomeUnavailable, OutcomeFatal:
		return true
	}
	return false
}

// Assertion validates the final result.
type Assertion struct {
	// Type specifies the assertion type:
	// - "queue": queued uids, oldest first, equal Expect
	// - "submitted": uids the remote accepted, in order, equal Expect
	// - "cached": uids left in the host cache equal Expect
	// - "state": the final engine state equals State
	// - "report": a session report matches Report
	// - "signals": Count events of State (and Synthetic, if set) were published
	Type string `yaml:"type"`

	Expect []string `yaml:"expect,omitempty"`

	State string `yaml:"state,omitempty"`

	Report *ReportExpect `yaml:"report,omitempty"`

	Synthetic *bool `yaml:"synthetic,omitempty"`
	Count     *int  `yaml:"count,omitempty"`
}

// ReportExpect is a subset match on a session report.
// Unset fields are not checked.
type ReportExpect struct {
	// Session indexes the sessions in run order; negative counts from the
	// end. Defaults to -1, the last session.
	Session   *int     `yaml:"session,omitempty"`
	Outcome   string   `yaml:"outcome,omitempty"`
	Status    string   `yaml:"status,omitempty"`
	Attempted *int     `yaml:"attempted,omitempty"`
	Succeeded *int     `yaml:"succeeded,omitempty"`
	Remaining *int     `yaml:"remaining,omitempty"`
	Rejected  []string `yaml:"rejected,omitempty"`
}

// Assertion types.
const (
	AssertQueue     = "queue"
	AssertSubmitted = "submitted"
	AssertCached    = "cached"
	AssertState     = "state"
	AssertReport    = "report"
	AssertSignals   = "signals"
)

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
	// Parse YAML with strict field validation (catches typos like "assertion:" vs "assertions:")
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
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

	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	if _, err := engine.ParseRejectPolicy(s.Config.RejectPolicy); err != nil {
		return fmt.Errorf("config: %w", err)
	}

	seen := make(map[string]bool, len(s.Queue))
	for i, uid := range s.Queue {
		if uid == "" {
			return fmt.Errorf("queue[%d]: uid is required", i)
		}
		if seen[uid] {
			return fmt.Errorf("queue[%d]: duplicate uid %q", i, uid)
		}
		seen[uid] = true
	}

	if err := validateOutcomes("remote", s.Remote); err != nil {
		return err
	}

	for i, step := range s.Steps {
		if _, err := step.kind(); err != nil {
			return fmt.Errorf("steps[%d]: %w", i, err)
		}
		if err := validateOutcomes(fmt.Sprintf("steps[%d].remote", i), step.Remote); err != nil {
			return err
		}
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}

	return nil
}

func validateOutcomes(field string, outcomes map[string]string) error {
	for uid, outcome := range outcomes {
		if !validOutcome(outcome) {
			return fmt.Errorf("%s: unknown outcome %q for %s (want accept, reject, unavailable or fatal)", field, outcome, uid)
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertQueue, AssertSubmitted, AssertCached:
		if a.Expect == nil {
			return fmt.Errorf("assertions[%d]: expect is required for %s (use [] for none)", index, a.Type)
		}
	case AssertState:
		if a.State == "" {
			return fmt.Errorf("assertions[%d]: state is required for state", index)
		}
	case AssertReport:
		if a.Report == nil {
			return fmt.Errorf("assertions[%d]: report is required for report", index)
		}
	case AssertSignals:
		if a.State == "" {
			return fmt.Errorf("assertions[%d]: state is required for signals", index)
		}
		if a.Count == nil || *a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for signals", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}
