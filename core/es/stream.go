package es

// EventStream is the ordered history of one aggregate, or a suffix of it.
// Events are sorted ascending by playhead.
type EventStream struct {
	AggregateID ID
	Events      []DomainEvent
}

func NewEventStream(id ID, events ...DomainEvent) *EventStream {
	return &EventStream{AggregateID: id, Events: events}
}

func (s *EventStream) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Events)
}

func (s *EventStream) Empty() bool { return s.Len() == 0 }

// Last returns the final event of the stream.
func (s *EventStream) Last() (DomainEvent, bool) {
	if s.Empty() {
		return DomainEvent{}, false
	}
	return s.Events[len(s.Events)-1], true
}

// Deleted reports whether the final event marks the aggregate as deleted.
func (s *EventStream) Deleted() bool {
	last, ok := s.Last()
	return ok && last.IsDeletion()
}

// Playhead is the playhead the next event appended to this stream would get.
func (s *EventStream) Playhead() Playhead {
	last, ok := s.Last()
	if !ok {
		return 0
	}
	return last.Playhead().Next()
}

// AggregateType of the stream, taken from the first event.
func (s *EventStream) AggregateType() string {
	if s.Empty() {
		return ""
	}
	return s.Events[0].AggregateType()
}
