// Package install provides the local install actions run for each deployable.
package install

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strconv"
	"text/template"
	"time"

	"github.com/ShayCichocki/orlo-deployer/internal/exec"
	"github.com/ShayCichocki/orlo-deployer/pkg/models"
)

// DefaultDelay is how long the simulated install takes.
const DefaultDelay = time.Second

// Result is the outcome of one install action.
type Result struct {
	// Command is the command line that was (or would have been) run.
	Command string
	// Success is false only when the action could detect a failed install.
	Success bool
	// Output is whatever the action produced, for results reporting.
	Output string
}

// Installer performs the local side effect for a deployable.
// A returned error aborts the run; a failed install is reported
// through Result.Success instead.
type Installer interface {
	Install(ctx context.Context, d models.Deployable, rollback bool) (Result, error)
}

// Error reports a deployable whose install action failed.
type Error struct {
	Deployable models.Deployable
	Output     string
}

func (e *Error) Error() string {
	return fmt.Sprintf("install %s version %s failed", e.Deployable.Name, e.Deployable.Version)
}

// Simulated stands in for a package manager: it echoes the apt-get
// command it would run and waits a fixed delay. It never fails.
type Simulated struct {
	Out   io.Writer
	Delay time.Duration
}

// NewSimulated returns a Simulated installer echoing to out.
func NewSimulated(out io.Writer, delay time.Duration) *Simulated {
	if out == nil {
		out = io.Discard
	}
	return &Simulated{Out: out, Delay: delay}
}

// Install echoes the command and waits for the delay or ctx.
func (s *Simulated) Install(ctx context.Context, d models.Deployable, rollback bool) (Result, error) {
	command := fmt.Sprintf("apt-get install %s=%s", d.Name, d.Version)
	fmt.Fprintf(s.Out, "# %s\n", command)

	if s.Delay > 0 {
		timer := time.NewTimer(s.Delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return Result{Command: command}, ctx.Err()
		case <-timer.C:
		}
	}
	return Result{Command: command, Success: true}, nil
}

// templateData is what a command template can reference.
type templateData struct {
	Name     string
	Version  string
	Rollback bool
}

// Command runs a shell command rendered from a text/template, e.g.
// "apt-get install -y {{.Name}}={{.Version}}".
type Command struct {
	tmpl   *template.Template
	runner exec.CommandRunner
	out    io.Writer
}

// NewCommand parses the command template.
func NewCommand(command string, runner exec.CommandRunner, out io.Writer) (*Command, error) {
	tmpl, err := template.New("install").Option("missingkey=error").Parse(command)
	if err != nil {
		return nil, fmt.Errorf("parse install command: %w", err)
	}
	if runner == nil {
		runner = exec.NewRunner()
	}
	if out == nil {
		out = io.Discard
	}
	return &Command{tmpl: tmpl, runner: runner, out: out}, nil
}

// Install renders and runs the command. A non-zero exit is a failed
// install, not an error; a cancelled context is an error.
func (c *Command) Install(ctx context.Context, d models.Deployable, rollback bool) (Result, error) {
	var buf bytes.Buffer
	if err := c.tmpl.Execute(&buf, templateData{Name: d.Name, Version: d.Version, Rollback: rollback}); err != nil {
		return Result{}, fmt.Errorf("render install command for %s: %w", d.Name, err)
	}
	command := buf.String()
	fmt.Fprintf(c.out, "# %s\n", command)

	env := []string{
		"ORLO_PACKAGE_NAME=" + d.Name,
		"ORLO_PACKAGE_VERSION=" + d.Version,
		"ORLO_PACKAGE_ROLLBACK=" + strconv.FormatBool(rollback),
	}
	output, err := c.runner.RunShell(ctx, env, command)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return Result{Command: command, Output: string(output)}, ctxErr
	}
	return Result{Command: command, Success: err == nil, Output: string(output)}, nil
}

// Verify the installers implement Installer at compile time.
var (
	_ Installer = (*Simulated)(nil)
	_ Installer = (*Command)(nil)
)
