package technique

import "fmt"

// State is the lifecycle state of a Runner.
type State uint32

const (
	Configuring State = iota
	Armed
	Running
	Stopped
	Faulted
)

func (s State) String() string {
	switch s {
	case Configuring:
		return "configuring"
	case Armed:
		return "armed"
	case Running:
		return "running"
	case Stopped:
		return "stopped"
	case Faulted:
		return "faulted"
	}
	return fmt.Sprintf("state(%d)", uint32(s))
}
