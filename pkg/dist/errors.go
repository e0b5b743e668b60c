package dist

import "fmt"

// InvalidDistributionError is returned by Validate when a distribution's
// parameters are out of range for its Kind. Construction of a Machine that
// contains an invalid distribution fails with this error wrapped in.
type InvalidDistributionError struct {
	Kind   Kind
	Reason string
}

func (e *InvalidDistributionError) Error() string {
	return fmt.Sprintf("dist: invalid %s distribution: %s", e.Kind, e.Reason)
}

func invalid(kind Kind, format string, args ...any) error {
	return &InvalidDistributionError{Kind: kind, Reason: fmt.Sprintf(format, args...)}
}
