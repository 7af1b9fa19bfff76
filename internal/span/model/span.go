package model

import "time"

// Timestamp is the start time of a span as whole seconds plus a nanosecond adjustment.
type Timestamp struct {
	Seconds    int64 `json:"seconds"`
	NanoAdjust int64 `json:"nano_adjust"`
}

func TimestampFromUnixNano(unixNano uint64) Timestamp {
	return Timestamp{
		Seconds:    int64(unixNano / uint64(time.Second)),
		NanoAdjust: int64(unixNano % uint64(time.Second)),
	}
}

// Time normalizes the adjustment, so NanoAdjust may exceed a second or be negative.
func (ts Timestamp) Time() time.Time {
	return time.Unix(ts.Seconds, ts.NanoAdjust)
}

type Span struct {
	LandscapeToken string    `json:"landscape_token"`
	TraceID        string    `json:"trace_id,omitempty"`
	SpanID         string    `json:"span_id,omitempty"`
	StartTime      Timestamp `json:"start_time"`
	HostIPAddress  string    `json:"host_ip_address"`
	Hostname       string    `json:"hostname"`
	AppName        string    `json:"app_name"`
	AppPID         int64     `json:"app_pid"`
	AppLanguage    string    `json:"app_language"`
	OperationName  string    `json:"operation_name"` // pkg.sub.ClassName.methodName
}
