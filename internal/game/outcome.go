package game

// Outcome is the result of a single card effect. A failed effect is still a
// recorded outcome, not an interpreter error.
type Outcome struct {
	Message string `json:"message,omitempty"`
	Failure string `json:"failure,omitempty"`
}

// Failed reports whether the effect failed.
func (o Outcome) Failed() bool {
	return o.Failure != ""
}

// String returns the message or the failure.
func (o Outcome) String() string {
	if o.Failed() {
		return o.Failure
	}
	return o.Message
}

// Outcomes is the result of a repeated effect. It stops at the first failure.
type Outcomes struct {
	Messages []string `json:"messages"`
	Failure  string   `json:"failure,omitempty"`
}

// Failed reports whether one of the repetitions failed.
func (o Outcomes) Failed() bool {
	return o.Failure != ""
}

func succeeded(message string) Outcome {
	return Outcome{Message: message}
}

func failed(reason string) Outcome {
	return Outcome{Failure: reason}
}
