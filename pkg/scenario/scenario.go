package scenario

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"
)

// Op names a scenario step.
type Op string

const (
	OpPush    Op = "push"
	OpPop     Op = "pop"
	OpReplace Op = "replace"
	OpOpen    Op = "open"
	OpClose   Op = "close"
	OpToggle  Op = "toggle"
	OpForce   Op = "force"
	OpAck     Op = "ack"
	OpLock    Op = "lock"
	OpUnlock  Op = "unlock"
	OpExpect  Op = "expect"
)

// Scenario is a parsed scenario file.
type Scenario struct {
	Name           string `json:"name"`
	Description    string `json:"description,omitempty"`
	AutoAck        bool   `json:"auto_ack"`
	RefCountedLock bool   `json:"ref_counted_lock,omitempty"`
	Steps          []Step `json:"steps"`
}

// Step is one scripted interaction or assertion.
type Step struct {
	Op      Op          `json:"op"`
	ID      string      `json:"id,omitempty"`
	Route   string      `json:"route,omitempty"`
	App     bool        `json:"app,omitempty"`
	Payload interface{} `json:"payload,omitempty"`
	Comment string      `json:"comment,omitempty"`

	// expect
	Current *string  `json:"current,omitempty"`
	Closing *bool    `json:"closing,omitempty"`
	Pending []string `json:"pending,omitempty"`
	Locked  *bool    `json:"locked,omitempty"`
}

var schemaLoader = gojsonschema.NewStringLoader(Schema)

// Parse validates data against Schema and decodes it.
func Parse(data []byte) (*Scenario, error) {
	if err := validateSchema(data); err != nil {
		return nil, err
	}

	var sc Scenario
	if err := json.Unmarshal(data, &sc); err != nil {
		return nil, fmt.Errorf("failed to parse scenario JSON: %w", err)
	}
	return &sc, nil
}

// ParseYAML converts a YAML document to JSON and parses it.
func ParseYAML(data []byte) (*Scenario, error) {
	var doc interface{}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse scenario YAML: %w", err)
	}

	jsonData, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to convert scenario YAML: %w", err)
	}
	return Parse(jsonData)
}

// IsScenarioFile reports whether path has a scenario file extension.
func IsScenarioFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".yaml", ".yml":
		return true
	default:
		return false
	}
}

// Load reads and parses a scenario file. Files ending in .yaml or .yml are
// read as YAML, anything else as JSON.
func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	parse := Parse
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		parse = ParseYAML
	}

	sc, err := parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return sc, nil
}

func validateSchema(data []byte) error {
	result, err := gojsonschema.Validate(schemaLoader, gojsonschema.NewBytesLoader(data))
	if err != nil {
		return fmt.Errorf("schema validation error: %w", err)
	}

	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return fmt.Errorf("schema validation errors: %s", strings.Join(msgs, "; "))
	}

	return nil
}
