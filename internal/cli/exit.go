package cli

import "fmt"

// ExitComponentIssues is the exit code of check --strict when a component
// is not operational.
const ExitComponentIssues = 2

// ExitError carries a process exit code other than 1.
type ExitError struct {
	ExitCode int
	Reason   string
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("exit %d: %s", e.ExitCode, e.Reason)
}
