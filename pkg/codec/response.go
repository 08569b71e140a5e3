package codec

import "encoding/json"

// ResponseStatus is the status field of a response envelope's data object.
type ResponseStatus string

const (
	StatusSuccess ResponseStatus = "success"
	StatusError   ResponseStatus = "error"
)

// ResponseData is the payload of a message_type=response envelope, spec §6.
type ResponseData struct {
	Status        ResponseStatus `json:"status"`
	Message       string         `json:"message,omitempty"`
	JobID         string         `json:"job_id,omitempty"`
	QueuePosition int            `json:"queue_position,omitempty"`
	ErrorCode     string         `json:"error_code,omitempty"`
	Timestamp     string         `json:"timestamp"`
	Extra         map[string]any `json:"-"`
}

// MarshalJSON merges Extra into the object alongside the named fields, so
// callers (e.g. the status snapshot) can attach additional keys without a
// bespoke struct per message type.
func (r ResponseData) MarshalJSON() (b []byte, err error) {
	type alias ResponseData
	base := map[string]any{}
	var plain []byte
	if plain, err = json.Marshal(alias(r)); err != nil {
		return nil, err
	}
	if err = json.Unmarshal(plain, &base); err != nil {
		return nil, err
	}
	for k, v := range r.Extra {
		base[k] = v
	}
	return json.Marshal(base)
}

// Success builds a success response envelope.
func Success(data ResponseData) *Envelope {
	data.Status = StatusSuccess
	if data.Timestamp == "" {
		data.Timestamp = NowTimestamp()
	}
	return toEnvelope(data)
}

// ErrorResponse builds an error response envelope with the given wire
// error code and client-safe message (never the offending input value,
// spec §4.3, and never an internal path or secret, spec §7).
func ErrorResponse(code, message string) *Envelope {
	data := ResponseData{
		Status:    StatusError,
		Message:   message,
		ErrorCode: code,
		Timestamp: NowTimestamp(),
	}
	return toEnvelope(data)
}

// ErrorResponseWithField builds an error response envelope that additionally
// names the offending field, per spec §4.3 (VALIDATION_ERROR carries the
// field name, never the rejected value).
func ErrorResponseWithField(code, message, field string) *Envelope {
	data := ResponseData{
		Status:    StatusError,
		Message:   message,
		ErrorCode: code,
		Timestamp: NowTimestamp(),
		Extra:     map[string]any{"field": field},
	}
	return toEnvelope(data)
}

func toEnvelope(data ResponseData) *Envelope {
	raw, _ := json.Marshal(data)
	return &Envelope{
		Version:     "1.0",
		MessageType: "response",
		Timestamp:   data.Timestamp,
		Data:        raw,
	}
}
