package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/arthur-debert/nanotree/nanotree"
)

// CLIError represents a user-friendly CLI error with context and suggestions
type CLIError struct {
	Operation   string   // The operation that failed (e.g., "move", "add child")
	Cause       string   // The underlying cause (e.g., "node not found")
	Details     string   // Additional technical details
	Suggestions []string // Helpful suggestions for the user
	Underlying  error    // Original error for debugging
}

// Error implements the error interface
func (e *CLIError) Error() string {
	var msg strings.Builder

	if e.Operation != "" {
		msg.WriteString(fmt.Sprintf("Failed to %s", e.Operation))
	} else {
		msg.WriteString("Operation failed")
	}
	if e.Cause != "" {
		msg.WriteString(fmt.Sprintf(": %s", e.Cause))
	}
	if e.Details != "" {
		msg.WriteString(fmt.Sprintf(" (%s)", e.Details))
	}
	if len(e.Suggestions) > 0 {
		msg.WriteString("\n\nSuggestions:")
		for i, suggestion := range e.Suggestions {
			msg.WriteString(fmt.Sprintf("\n  %d. %s", i+1, suggestion))
		}
	}
	return msg.String()
}

// Unwrap returns the underlying error for error chain compatibility
func (e *CLIError) Unwrap() error {
	return e.Underlying
}

// NewValidationError creates an error for bad arguments
func NewValidationError(operation, field, value string, suggestions ...string) *CLIError {
	return &CLIError{
		Operation:   operation,
		Cause:       fmt.Sprintf("invalid %s: %q", field, value),
		Suggestions: suggestions,
	}
}

// NewConfigError creates an error for configuration issues
func NewConfigError(operation string, underlying error, suggestions ...string) *CLIError {
	return &CLIError{
		Operation:   operation,
		Cause:       "configuration error",
		Details:     underlying.Error(),
		Suggestions: suggestions,
		Underlying:  underlying,
	}
}

// NewTreeError describes a failed tree operation by its error kind
func NewTreeError(operation string, underlying error) *CLIError {
	e := &CLIError{
		Operation:  operation,
		Cause:      "tree operation failed",
		Underlying: underlying,
	}
	if underlying != nil {
		e.Details = underlying.Error()
	}

	switch {
	case errors.Is(underlying, nanotree.ErrNotFound):
		e.Cause = "node not found"
		e.Suggestions = []string{"Run 'nanotree ls' to see the paths in the tree"}
	case errors.Is(underlying, nanotree.ErrInvalidPath):
		e.Cause = "malformed path"
		e.Suggestions = []string{"Paths are whole steps of the configured step length, e.g. 0001 or 00010002"}
	case errors.Is(underlying, nanotree.ErrInvalidPosition):
		e.Cause = "position not allowed"
		e.Suggestions = []string{
			"Sibling positions: first-sibling, left, right, last-sibling, sorted-sibling",
			"Moves also accept first-child, last-child, sorted-child",
			"With order_by configured only the sorted positions are allowed",
		}
	case errors.Is(underlying, nanotree.ErrCycle):
		e.Cause = "a node cannot move below itself"
	case errors.Is(underlying, nanotree.ErrPathOverflow):
		e.Cause = "no room left in that level"
		e.Suggestions = []string{"Use a longer step_length or a larger alphabet for new trees"}
	case errors.Is(underlying, nanotree.ErrInvalidConfig):
		e.Cause = "tree file does not match the configuration"
		e.Suggestions = []string{"Open the tree with the alphabet and step_length it was created with"}
	case errors.Is(underlying, nanotree.ErrCorrupt):
		e.Cause = "tree is inconsistent"
	}
	return e
}
