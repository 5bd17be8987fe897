package domain

// NetworkState is the device reachability as last reported by the OS or a probe.
type NetworkState struct {
	IsConnected bool `json:"isConnected"`
	// IsInternetReachable is nil while reachability is still unknown.
	IsInternetReachable *bool  `json:"isInternetReachable"`
	ConnectionType      string `json:"connectionType,omitempty"`
}

// IsOffline is true when disconnected or when the internet is known to be unreachable.
// An unknown reachability does not count as offline.
func (s NetworkState) IsOffline() bool {
	return !s.IsConnected || (s.IsInternetReachable != nil && !*s.IsInternetReachable)
}

// Reachable is a helper for building NetworkState literals.
func Reachable(v bool) *bool {
	return &v
}

// AppState is the foreground/background state reported by the app lifecycle.
type AppState string

const (
	AppStateActive     AppState = "active"
	AppStateBackground AppState = "background"
	AppStateInactive   AppState = "inactive"
)
