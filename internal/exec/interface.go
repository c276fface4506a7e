// Package exec provides an interface for running install commands.
package exec

import (
	"context"
)

// CommandRunner runs external commands on behalf of an install action.
// Tests substitute a fake to avoid touching the host.
type CommandRunner interface {
	// Run executes a command and returns combined stdout/stderr output.
	// env entries are appended to the current process environment.
	Run(ctx context.Context, env []string, name string, args ...string) (output []byte, err error)

	// RunShell executes a command line through "sh -c".
	RunShell(ctx context.Context, env []string, command string) (output []byte, err error)
}
