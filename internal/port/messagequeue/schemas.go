package messagequeue

// QueryRequestedPayload is the schema for queries.requested messages.
type QueryRequestedPayload struct {
	Keyword string `json:"keyword"`
	Mode    string `json:"mode"`
}

// QueryRecordedPayload is the schema for queries.recorded messages.
type QueryRecordedPayload struct {
	ID            string   `json:"id"`
	Keyword       string   `json:"keyword"`
	Mode          string   `json:"mode"`
	SourcesFailed []string `json:"sources_failed"`
	SummaryFailed bool     `json:"summary_failed"`
}
