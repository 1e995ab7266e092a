package client

// StartResult acknowledges a started simulation run.
type StartResult struct {
	Status    string `json:"status"`
	ID        string `json:"id"`
	StartTime string `json:"start_time"`
	Sessions  int    `json:"sessions"`
	DelayMs   int    `json:"delay_ms"`
}

// apiError mirrors the daemon's error envelope.
type apiError struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
