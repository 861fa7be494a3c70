package firebreak

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

var (
	// ErrInvalidStructure marks a terminal payload that failed schema
	// validation. Not retried.
	ErrInvalidStructure = errors.New("firebreak: invalid analysis structure")
	// ErrIncomplete marks a well-formed result whose status never reached
	// completed; distinguished from a parse failure.
	ErrIncomplete = errors.New("firebreak: analysis not completed")
	// ErrInconclusive marks a run that terminated without ever reaching the
	// structuring tool.
	ErrInconclusive = errors.New("firebreak: analysis inconclusive")
)

// ParseResult parses and validates the terminal structured payload. Unknown
// fields are rejected: the structuring call is the one place correctness is
// mechanically checked.
func ParseResult(raw json.RawMessage) (*AnalysisResult, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()

	var result AnalysisResult
	if err := dec.Decode(&result); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidStructure, err)
	}
	if err := result.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidStructure, err)
	}
	return &result, nil
}

// CheckCompleted enforces that only completed analyses reach persistence.
func CheckCompleted(result *AnalysisResult) error {
	if result.AnalysisState.Status != StatusCompleted {
		return fmt.Errorf("%w: status %q", ErrIncomplete, result.AnalysisState.Status)
	}
	return nil
}
