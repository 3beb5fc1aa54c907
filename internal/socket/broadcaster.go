package socket

// Broadcaster turns service events into websocket messages. It implements
// service.Notifier.
type Broadcaster struct {
	hub *Hub
}

func NewBroadcaster(hub *Hub) *Broadcaster {
	return &Broadcaster{hub: hub}
}

func projectRoom(id string) string   { return "project:" + id }
func workspaceRoom(id string) string { return "workspace:" + id }
func userRoom(id string) string      { return "user:" + id }

// ============================================
// Progress
// ============================================

// ProgressUpdated goes to the project room and, when the payload names the
// workspace, to the workspace room as well.
func (b *Broadcaster) ProgressUpdated(projectID string, payload map[string]interface{}) {
	b.hub.SendToRoom(projectRoom(projectID), MessageProgressUpdated, payload, "")
	if ws, ok := payload["workspaceId"].(string); ok && ws != "" {
		b.hub.SendToRoom(workspaceRoom(ws), MessageProgressUpdated, payload, "")
	}
}

func (b *Broadcaster) TaskProgressUpdated(projectID string, payload map[string]interface{}) {
	b.hub.SendToRoom(projectRoom(projectID), MessageTaskProgressUpdated, payload, "")
}

// ============================================
// Timers
// ============================================

func (b *Broadcaster) TimerStarted(userID string, payload map[string]interface{}) {
	b.hub.SendToUser(userID, MessageTimerStarted, payload)
}

func (b *Broadcaster) TimerStopped(userID string, payload map[string]interface{}) {
	b.hub.SendToUser(userID, MessageTimerStopped, payload)
}

func (b *Broadcaster) TimerStale(userID string, payload map[string]interface{}) {
	b.hub.SendToUser(userID, MessageTimerStale, payload)
}
