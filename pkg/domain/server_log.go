package domain

import "time"

// LogSource enumerates where a ServerLog line originated.
type LogSource string

const (
	LogSourceApp         LogSource = "app"
	LogSourceStdout      LogSource = "stdout"
	LogSourceStderr      LogSource = "stderr"
	LogSourceHTTPRequest LogSource = "http-request"
	LogSourceHTTPResponse LogSource = "http-response"
	LogSourceSSEEvent    LogSource = "sse-event"
	LogSourceConnection  LogSource = "connection"
	LogSourceOAuth       LogSource = "oauth"
	LogSourceServer      LogSource = "server"
)

// ServerLog is one append-only line record for a (space, server) log
// stream.
type ServerLog struct {
	Timestamp time.Time
	Level     string
	Source    LogSource
	Message   string
	Metadata  map[string]string
}
