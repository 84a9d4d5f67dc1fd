package domain

// SessionState models the recording lifecycle.
type SessionState string

const (
	SessionStateIdle       SessionState = "idle"
	SessionStateArmed      SessionState = "armed"
	SessionStateStopping   SessionState = "stopping"
	SessionStateFinalizing SessionState = "finalizing"
	SessionStateDelivering SessionState = "delivering"
)

// SessionStateReason provides a structured reason for state transitions.
type SessionStateReason string

const (
	SessionReasonBackendReady       SessionStateReason = "backend_ready"
	SessionReasonRecordingStarted   SessionStateReason = "recording_started"
	SessionReasonStopRequested      SessionStateReason = "stop_requested"
	SessionReasonFinalizing         SessionStateReason = "finalizing"
	SessionReasonArtifactReady      SessionStateReason = "artifact_ready"
	SessionReasonArtifactPartial    SessionStateReason = "artifact_partial"
	SessionReasonCaptureEnded       SessionStateReason = "capture_ended"
	SessionReasonReclaimed          SessionStateReason = "reclaimed"
	SessionReasonCaptureFailedEarly SessionStateReason = "capture_failed_early"
)

// ErrorCode identifies non-fatal and fatal backend errors.
type ErrorCode string

const (
	ErrorCodeStartup   ErrorCode = "startup"
	ErrorCodeDisplay   ErrorCode = "display"
	ErrorCodeEncoder   ErrorCode = "encoder"
	ErrorCodeCapture   ErrorCode = "capture"
	ErrorCodeFinalize  ErrorCode = "finalize"
	ErrorCodeDelivery  ErrorCode = "delivery"
	ErrorCodeInputHook ErrorCode = "input_hook"
)

// CursorShape is the closed classification of pointer shapes kept per sample.
type CursorShape string

const (
	CursorShapeDefault CursorShape = "default"
	CursorShapeText    CursorShape = "text"
	CursorShapePointer CursorShape = "pointer"
	CursorShapeOther   CursorShape = "other"
)

// InputSample is one timestamped pointer observation. Coordinates are
// relative to the recorded display's origin, never the virtual desktop.
type InputSample struct {
	X         int         `json:"x"`
	Y         int         `json:"y"`
	Timestamp float64     `json:"timestamp"`
	IsPressed bool        `json:"isPressed"`
	Shape     CursorShape `json:"cursorShape"`
}

// DisplayDescriptor is a read-only snapshot of one output device.
type DisplayDescriptor struct {
	ID        int    `json:"id"`
	Name      string `json:"name"`
	OriginX   int    `json:"originX"`
	OriginY   int    `json:"originY"`
	Width     int    `json:"width"`
	Height    int    `json:"height"`
	IsPrimary bool   `json:"isPrimary"`
}

// Quality selects the encoder bitrate tier.
type Quality string

const (
	QualityLow      Quality = "low"
	QualityStandard Quality = "standard"
	QualityHigh     Quality = "high"
)

// Bitrate maps a quality tier to a target bitrate in bits per second.
// Unknown values fall back to the standard tier.
func (q Quality) Bitrate() int {
	switch q {
	case QualityLow:
		return 2_500_000
	case QualityHigh:
		return 8_000_000
	default:
		return 5_000_000
	}
}

// ArtifactDescriptor describes the encoded output of one session.
// Ready flips true only once finalization has concluded, whether the
// encoder finished gracefully or was abandoned at the deadline.
type ArtifactDescriptor struct {
	Path         string `json:"path"`
	DeclaredSize int64  `json:"declaredSize"`
	Ready        bool   `json:"ready"`
}

// DeliveryKind identifies which media-delivery strategy produced a reference.
type DeliveryKind string

const (
	DeliveryKindWhole   DeliveryKind = "whole"
	DeliveryKindChunked DeliveryKind = "chunked"
	DeliveryKindServer  DeliveryKind = "server"
)

// DeliveryReference is what StopRecording hands to the frontend: the full
// artifact bytes, a chunk count to pull sequentially, or a local URL.
type DeliveryReference struct {
	Kind        DeliveryKind `json:"kind"`
	Bytes       []byte       `json:"bytes,omitempty"`
	TotalChunks int          `json:"totalChunks,omitempty"`
	URL         string       `json:"url,omitempty"`
}

// Status summarizes the current runtime status.
type Status struct {
	State   SessionState `json:"state"`
	Active  bool         `json:"active"`
	Message string       `json:"message,omitempty"`
}
