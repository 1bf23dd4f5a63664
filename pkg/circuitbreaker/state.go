package circuitbreaker

// State is the position of a single breaker.
type State string

const (
	StateClosed   State = "closed"
	StateOpen     State = "open"
	StateHalfOpen State = "half_open"
)

func (s State) String() string { return string(s) }
