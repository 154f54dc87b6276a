package codec

// State is the lifecycle state of an Encoder or Decoder.
type State int

const (
	StateUnconfigured State = iota
	StateConfigured
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateUnconfigured:
		return "unconfigured"
	case StateConfigured:
		return "configured"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}
