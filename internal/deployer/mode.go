package deployer

import "github.com/ShayCichocki/orlo-deployer/pkg/models"

// Mode says whether a run reports to the orchestrator.
// It is either Standalone or Tracked.
type Mode interface {
	isMode()
	// Name is the short form recorded in the run journal.
	Name() string
}

// Standalone runs install actions locally and makes no orchestrator calls.
type Standalone struct{}

func (Standalone) isMode() {}

// Name returns "standalone".
func (Standalone) Name() string { return "standalone" }

// Tracked reports every step against Release.
type Tracked struct {
	Release *models.Release
}

func (Tracked) isMode() {}

// Name returns "tracked".
func (Tracked) Name() string { return "tracked" }

// ReleaseID returns the tracked release's id, or "" for any other mode.
func ReleaseID(m Mode) models.ID {
	if t, ok := m.(Tracked); ok && t.Release != nil {
		return t.Release.ID
	}
	return ""
}
