package api

// RadiusSession is one RADIUS accounting session as reported by the identity
// backend. StopTime is empty for sessions that are still open.
type RadiusSession struct {
	SessionID        string `json:"session_id"`
	CallingStationID string `json:"calling_station_id"`
	StartTime        string `json:"start_time"`
	StopTime         string `json:"stop_time,omitempty"`
	SessionTime      int64  `json:"session_time"`
	InputOctets      int64  `json:"input_octets"`
	OutputOctets     int64  `json:"output_octets"`
}

// Open reports whether the session is still running.
func (s RadiusSession) Open() bool {
	return s.StopTime == ""
}
