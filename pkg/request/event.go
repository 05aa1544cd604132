package request

// EventName distinguishes the payload kinds a request stream emits.
type EventName string

const (
	EventProgress EventName = "progress"
	EventOK       EventName = "ok"
	EventError    EventName = "error"
	EventAbort    EventName = "abort"
	EventTimeout  EventName = "timeout"
	EventComplete EventName = "complete"
)

// Event is one payload of a request stream. Which fields are meaningful
// depends on Name:
//
//	progress  Indeterminate, Loaded, Progress (0-100), Total
//	ok        Response, Status, Loaded, OK
//	error     Error, Status, StatusText, Loaded
//	abort     nothing
//	timeout   Error, Status (408)
//	complete  Loaded, OK, Status
type Event struct {
	Name          EventName
	Error         error
	Indeterminate bool
	Loaded        int64
	OK            bool
	Progress      float64
	Response      any
	Status        int
	StatusText    string
	Total         int64
}

// Terminal reports whether the event settles the request.
func (e Event) Terminal() bool {
	switch e.Name {
	case EventOK, EventError, EventAbort, EventTimeout:
		return true
	}
	return false
}
