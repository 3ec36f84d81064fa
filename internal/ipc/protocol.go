package ipc

// Commands understood by the session owner.
const (
	CommandStatus = "status" // report session state
	CommandStop   = "stop"   // finish the current answer
	CommandEnd    = "end"    // finish the whole session
)

// Request is one newline-delimited JSON command sent to the session
// owner.
type Request struct {
	Command string `json:"command"`
}

// Response is the owner's reply to one Request.
type Response struct {
	OK      bool   `json:"ok"`
	State   string `json:"state,omitempty"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}
