package models

// ResultCode classifies a check-in outcome so callers can branch without
// parsing messages.
type ResultCode string

const (
	ResultOK                 ResultCode = "ok"
	ResultInvalidInput       ResultCode = "invalid_input"
	ResultNotFound           ResultCode = "not_found"
	ResultInvalidStatus      ResultCode = "invalid_status"
	ResultWrongEvent         ResultCode = "wrong_event"
	ResultForbidden          ResultCode = "forbidden"
	ResultAlreadyCheckedIn   ResultCode = "already_checked_in"
	ResultNotCheckedIn       ResultCode = "not_checked_in"
	ResultStorageUnavailable ResultCode = "storage_unavailable"
	ResultRemoteUnavailable  ResultCode = "remote_unavailable"
)

// CheckInResult is the single result shape returned by the check-in state
// machine, identical for the connected and deferred paths. Success and
// AlreadyCheckedIn are mutually exclusive.
type CheckInResult struct {
	Success          bool       `json:"success"`
	Code             ResultCode `json:"code"`
	Message          string     `json:"message"`
	AttendeeName     string     `json:"attendee_name,omitempty"`
	TicketCode       string     `json:"ticket_code,omitempty"`
	AlreadyCheckedIn bool       `json:"already_checked_in,omitempty"`
	Offline          bool       `json:"offline,omitempty"`
}

// SyncResult summarizes one drain of the pending action queue.
type SyncResult struct {
	Synced int    `json:"synced"`
	Failed int    `json:"failed"`
	Error  string `json:"error,omitempty"`
}
