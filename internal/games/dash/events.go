package dash

// Feedback is the tag shown when a low obstacle is cleared closely.
type Feedback string

const (
	FeedbackNone    Feedback = ""
	FeedbackPerfect Feedback = "perfect"
	FeedbackNear    Feedback = "near"
)

// DistanceEvent reports travel for one frame.
type DistanceEvent struct {
	Pixels float64
	Units  float64 // score units credited for this frame
}

// PassEvent reports an obstacle whose trailing edge crossed the runner.
type PassEvent struct {
	Seq    int
	Kind   Kind
	Passed int // obstacles passed so far this attempt
}

// ComboEvent reports the combo after a pass, or zero after a crash.
type ComboEvent struct {
	Combo int
}

// FeedbackEvent reports a close clearance over a low obstacle.
type FeedbackEvent struct {
	Tag       Feedback
	Clearance float64
}

// CrashEvent is emitted once per attempt.
type CrashEvent struct {
	Frame    uint64
	Travel   float64
	Passed   int
	Obstacle int // Seq of the obstacle hit
}

func (DistanceEvent) GameEvent() {}
func (PassEvent) GameEvent()     {}
func (ComboEvent) GameEvent()    {}
func (FeedbackEvent) GameEvent() {}
func (CrashEvent) GameEvent()    {}
