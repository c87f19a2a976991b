package api

// HelloMessage is the first frame every websocket client receives.
type HelloMessage struct {
	Type            string      `json:"type"`
	Ts              int64       `json:"ts"`
	ProtocolVersion int         `json:"protocolVersion"`
	Server          ServerIdent `json:"server"`
}

type ServerIdent struct {
	Name string `json:"name"`
	Env  string `json:"env"`
}

// HealthResponse answers GET /api/health.
type HealthResponse struct {
	OK                 bool          `json:"ok"`
	UptimeSec          int64         `json:"uptimeSec"`
	WsClientsConnected int           `json:"wsClientsConnected"`
	Session            HealthSession `json:"session"`
	LastTickTs         int64         `json:"lastTickTs"`
}

type HealthSession struct {
	State string `json:"state"`
}

// VersionResponse answers GET /api/version.
type VersionResponse struct {
	OK      bool   `json:"ok"`
	Version string `json:"version"`
}
