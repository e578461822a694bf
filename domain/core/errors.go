package core

import (
	"errors"
	"fmt"
)

// Domain errors - centralized error definitions
var (
	// Configuration errors
	ErrSchemaInvalid          = errors.New("invalid schema definition")
	ErrInvalidHyperparameters = errors.New("invalid hyperparameters")

	// Data contract errors
	ErrDataContract     = errors.New("data contract violation")
	ErrMissingColumn    = fmt.Errorf("%w: missing column", ErrDataContract)
	ErrInsufficientData = fmt.Errorf("%w: insufficient data", ErrDataContract)
	ErrUndefinedMetric  = fmt.Errorf("%w: undefined metric", ErrDataContract)

	// Artifact errors
	ErrArtifactIO     = errors.New("artifact i/o failure")
	ErrArtifactExists = fmt.Errorf("%w: artifact already exists", ErrArtifactIO)
	ErrModelNotFitted = errors.New("model not fitted")
)

// NewMissingColumnsError reports every absent column of a table in one error.
func NewMissingColumnsError(kind string, columns []string) error {
	return fmt.Errorf("%w: %s %v", ErrMissingColumn, kind, columns)
}

// NewInsufficientDataError describes why a partition or metric could not be computed.
func NewInsufficientDataError(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInsufficientData, fmt.Sprintf(format, args...))
}

// NewSchemaError joins all schema problems under ErrSchemaInvalid.
func NewSchemaError(problems []string) error {
	return fmt.Errorf("%w: %v", ErrSchemaInvalid, problems)
}

// Error checking helpers
func IsConfigurationError(err error) bool {
	return errors.Is(err, ErrSchemaInvalid) || errors.Is(err, ErrInvalidHyperparameters)
}

func IsDataContractError(err error) bool {
	return errors.Is(err, ErrDataContract)
}

func IsArtifactError(err error) bool {
	return errors.Is(err, ErrArtifactIO)
}
