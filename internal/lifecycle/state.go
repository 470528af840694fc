package lifecycle

import (
	"strings"

	"github.com/pkg/errors"
)

// State is the process-level bootstrap state. It only moves forward.
type State int32

const (
	Unloaded State = iota
	ModuleLoaded
	ArchiveRegistered
	EngineRunning
)

func (s State) String() string {
	switch s {
	case Unloaded:
		return "unloaded"
	case ModuleLoaded:
		return "module-loaded"
	case ArchiveRegistered:
		return "archive-registered"
	case EngineRunning:
		return "engine-running"
	default:
		return "unknown"
	}
}

// Ordering places archive registration relative to the base start behaviour.
type Ordering int

const (
	// RegisterBeforeBase registers the archive, then runs the base
	// behaviour. Use it when the base reads bundled resources itself.
	RegisterBeforeBase Ordering = iota
	// RegisterAfterBase runs the base behaviour first. Use it when the base
	// is what caches the package path that registration reads.
	RegisterAfterBase
)

func (o Ordering) String() string {
	if o == RegisterAfterBase {
		return "after"
	}
	return "before"
}

// ParseOrdering parses "before" or "after".
func ParseOrdering(s string) (Ordering, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "before", "":
		return RegisterBeforeBase, nil
	case "after":
		return RegisterAfterBase, nil
	default:
		return 0, errors.Errorf("unknown ordering %q (want before or after)", s)
	}
}
