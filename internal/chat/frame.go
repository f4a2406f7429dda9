package chat

// Frame is the JSON envelope exchanged on the /chat channel. Type decides
// which of the remaining fields are meaningful.
type Frame struct {
	Type    string       `json:"type"`
	Email   string       `json:"email,omitempty"`
	Name    string       `json:"name,omitempty"`
	From    string       `json:"from,omitempty"`
	Text    string       `json:"text,omitempty"`
	Waiting []WaiterInfo `json:"waiting,omitempty"`
}

const (
	// FrameStartChat is sent by an operator to claim a waiting visitor.
	FrameStartChat = "startChat"
	// FrameMessage carries chat text in either direction.
	FrameMessage = "message"
	// FrameChatStarted tells both sides a pair now exists.
	FrameChatStarted = "chatStarted"
	// FrameChatEnded tells the surviving side its peer is gone.
	FrameChatEnded = "chatEnded"
	// FrameQueueUpdate pushes the waiting list to every operator.
	FrameQueueUpdate = "queueUpdate"
)

// WaiterInfo is the operator-visible summary of one queued visitor.
type WaiterInfo struct {
	Email   string `json:"email"`
	Name    string `json:"name"`
	Waiting int64  `json:"waitingSeconds"`
}
