package calendar

// Payload is what a gateway hands back for one call: either typed records
// or the free-text message of a tool-call provider.
type Payload interface {
	payload()
}

// StructuredPayload carries typed records. Only the fields relevant to the
// operation are set.
type StructuredPayload struct {
	Calendars   []CalendarInfo
	Events      []Event
	Colors      []Color
	FreeBusy    map[string][]BusyInterval
	Event       *Event
	Calendar    *CalendarInfo
	CurrentTime *CurrentTime
}

// ProsePayload carries a free-text provider response.
type ProsePayload struct {
	Message string
}

func (*StructuredPayload) payload() {}
func (*ProsePayload) payload()      {}
