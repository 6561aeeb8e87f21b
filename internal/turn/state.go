package turn

// State is the conversational phase of a session. Transitions happen on
// transcript events and turn lifecycle edges; Interrupted is transient
// and immediately resolves back to Listening.
type State int32

const (
	StateIdle State = iota
	StateListening
	StateEvaluating
	StateGenerating
	StateSynthesizing
	StateInterrupted
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateListening:
		return "listening"
	case StateEvaluating:
		return "evaluating"
	case StateGenerating:
		return "generating"
	case StateSynthesizing:
		return "synthesizing"
	case StateInterrupted:
		return "interrupted"
	default:
		return "unknown"
	}
}
