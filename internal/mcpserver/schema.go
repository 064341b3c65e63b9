package mcpserver

const (
	defaultRoomLimit = 50
	maxRoomLimit     = 200
)

func clampLimit(limit int) int {
	if limit <= 0 {
		return defaultRoomLimit
	}
	if limit > maxRoomLimit {
		return maxRoomLimit
	}
	return limit
}
