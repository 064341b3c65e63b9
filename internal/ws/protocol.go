package ws

import "time"

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 8 << 10
	sendBuffer     = 64
)

// ProtocolVersion is returned in the X-Protocol-Version upgrade header.
const ProtocolVersion = "1"
