package bootstrap

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/kbukum/wonderwhisper/component"
)

// Summary prints the startup tree: components with their descriptions
// and live health.
type Summary struct {
	serviceName     string
	version         string
	startupDuration time.Duration
	out             io.Writer
}

// NewSummary creates a summary writing to out. A nil out uses os.Stderr.
func NewSummary(serviceName, version string, out io.Writer) *Summary {
	if out == nil {
		out = os.Stderr
	}
	return &Summary{serviceName: serviceName, version: version, out: out}
}

// SetStartupDuration records the total startup time.
func (s *Summary) SetStartupDuration(d time.Duration) {
	s.startupDuration = d
}

// Display writes the summary including live health from the registry.
func (s *Summary) Display(ctx context.Context, registry *component.Registry) {
	w := s.out
	fmt.Fprintf(w, "\n🎙  %s %s started in %.2fs\n\n", s.serviceName, s.version, s.startupDuration.Seconds())

	var comps []component.Component
	if registry != nil {
		comps = registry.All()
	}
	if len(comps) == 0 {
		fmt.Fprintf(w, "   └── No components registered\n\n")
		return
	}

	health := make(map[string]component.Health, len(comps))
	for _, h := range registry.HealthAll(ctx) {
		health[h.Name] = h
	}

	fmt.Fprintf(w, "📦 Components\n")
	healthy := 0
	for i, c := range comps {
		prefix := "├──"
		if i == len(comps)-1 {
			prefix = "└──"
		}
		name, details := c.Name(), ""
		if d, ok := c.(component.Describable); ok {
			desc := d.Describe()
			if desc.Name != "" {
				name = desc.Name
			}
			details = desc.Details
			if desc.Type != "" {
				details = "[" + desc.Type + "] " + details
			}
		}
		h, ok := health[c.Name()]
		if !ok {
			h = component.Health{Name: c.Name(), Status: component.StatusHealthy}
		}
		if h.Status == component.StatusHealthy {
			healthy++
		}
		msg := ""
		if h.Message != "" {
			msg = " (" + h.Message + ")"
		}
		fmt.Fprintf(w, "   %s %s %s: %s%s\n", prefix, healthStatusIcon(h.Status), name, strings.TrimSpace(details), msg)
	}
	fmt.Fprintf(w, "\n")

	if healthy == len(comps) {
		fmt.Fprintf(w, "✅ All components healthy (%d/%d)\n\n", healthy, len(comps))
	} else {
		fmt.Fprintf(w, "⚠️  Some components have issues (%d/%d healthy)\n\n", healthy, len(comps))
	}
}

func healthStatusIcon(status component.HealthStatus) string {
	switch status {
	case component.StatusHealthy:
		return "✅"
	case component.StatusDegraded:
		return "⚠️"
	case component.StatusUnhealthy:
		return "❌"
	default:
		return "❓"
	}
}
