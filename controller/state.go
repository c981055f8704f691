package controller

// State is a frame loop phase.
type State int32

const (
	// Idle is the state before Run.
	Idle State = iota
	// Capturing grabs the region.
	Capturing
	// Scanning enumerates and classifies windows.
	Scanning
	// Selecting finalizes the best window.
	Selecting
	// Mapping converts the detection to screen coordinates.
	Mapping
	// Emitting presents the frame and optionally clicks.
	Emitting
	// Throttling yields before the next frame.
	Throttling
	// Stopped is terminal.
	Stopped
)

var stateNames = [...]string{
	Idle:       "idle",
	Capturing:  "capturing",
	Scanning:   "scanning",
	Selecting:  "selecting",
	Mapping:    "mapping",
	Emitting:   "emitting",
	Throttling: "throttling",
	Stopped:    "stopped",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}
