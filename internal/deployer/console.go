package deployer

import (
	"fmt"
	"io"

	"github.com/fatih/color"

	"github.com/ShayCichocki/orlo-deployer/internal/orlo"
	"github.com/ShayCichocki/orlo-deployer/pkg/models"
)

// Console prints the human-readable progress lines of a run.
type Console struct {
	out io.Writer

	request  *color.Color
	release  *color.Color
	install  *color.Color
	finished *color.Color
}

// NewConsole returns a Console writing to out. A nil out discards output.
func NewConsole(out io.Writer) *Console {
	if out == nil {
		out = io.Discard
	}
	return &Console{
		out:      out,
		request:  color.New(color.Faint),
		release:  color.New(color.FgCyan, color.Bold),
		install:  color.New(color.FgYellow),
		finished: color.New(color.FgGreen, color.Bold),
	}
}

// Writer is where install actions echo their commands.
func (c *Console) Writer() io.Writer {
	return c.out
}

// Banner prints the program name and version.
func (c *Console) Banner(version string) {
	fmt.Fprintf(c.out, "Orlo Deployer v%s\n", version)
}

// Observe echoes every orchestrator request URL. It is registered as an
// orlo.Observer.
func (c *Console) Observe(call orlo.Call) {
	c.request.Fprintf(c.out, " -> %s\n", call.URL)
}

// ReleaseID prints the id of the tracked release.
func (c *Console) ReleaseID(id models.ID) {
	c.release.Fprintf(c.out, "Orlo release ID %s\n", id)
}

// Installing announces a deployable before its install action runs.
func (c *Console) Installing(d models.Deployable) {
	c.install.Fprintf(c.out, "Installing %s version %s\n", d.Name, d.Version)
}

// Finished prints the final line of a successful run.
func (c *Console) Finished() {
	c.finished.Fprintln(c.out, "Finished!")
}
