package defs

// Protocol data structures
type (
	// HelloData is the first frame each side writes on a new connection
	HelloData struct {
		PeerID  string `json:"peer_id"`
		Version string `json:"version"`
	}

	// ErrorData represents data sent with error frames
	ErrorData struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	}
)

// Error codes carried by error frames
const (
	ErrCodeBadHello        = 1001
	ErrCodeVersionMismatch = 1002
	ErrCodeUnknownFrame    = 1016
)
