package flight

// State is the lifecycle position of a Cell.
type State uint32

const (
	// StateEmpty means no value and no computation in flight.
	StateEmpty State = iota
	// StateComputing means one caller is running the producer.
	StateComputing
	// StateReady means the value is stored and will never change.
	StateReady
)

func (s State) String() string {
	switch s {
	case StateEmpty:
		return "empty"
	case StateComputing:
		return "computing"
	case StateReady:
		return "ready"
	default:
		return "unknown"
	}
}
