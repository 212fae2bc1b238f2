package botzie

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/invopop/jsonschema"
)

// ServerDescriptor is the game server resolved by the browser agent. It is
// carried as opaque metadata and never parsed or validated.
type ServerDescriptor struct {
	Server     string `json:"server,omitempty"`
	Port       int    `json:"port,omitempty"`
	Region     string `json:"region,omitempty"`
	WSURL      string `json:"wsUrl,omitempty"`
	RealServer bool   `json:"realServer,omitempty"`
}

// SessionConfig is the payload of a start command.
type SessionConfig struct {
	Nickname         string            `json:"nickname" jsonschema:"minLength=1,description=Player nickname the bots are named after"`
	RoomURL          string            `json:"roomUrl" jsonschema:"minLength=1,description=Room or server address the bots target"`
	BotCount         int               `json:"botCount" jsonschema:"minimum=1,maximum=50,description=Number of bots to create"`
	FeedingEnabled   bool              `json:"feedingEnabled,omitempty"`
	SplittingEnabled bool              `json:"splittingEnabled,omitempty"`
	ServerInfo       *ServerDescriptor `json:"serverInfo,omitempty"`
}

// Validate checks the recognised fields. It never mutates the config.
func (c SessionConfig) Validate() error {
	if strings.TrimSpace(c.Nickname) == "" || strings.TrimSpace(c.RoomURL) == "" {
		field := "nickname"
		if strings.TrimSpace(c.Nickname) != "" {
			field = "roomUrl"
		}
		return &ValidationError{Field: field, Reason: "nickname and server URL are required"}
	}
	if c.BotCount < MinBotCount || c.BotCount > MaxBotCount {
		return &ValidationError{
			Field:  "botCount",
			Reason: fmt.Sprintf("bot count must be between %d and %d", MinBotCount, MaxBotCount),
		}
	}
	return nil
}

// clone deep-copies the server descriptor so sessions never share it.
func (c SessionConfig) clone() SessionConfig {
	if c.ServerInfo != nil {
		info := *c.ServerInfo
		c.ServerInfo = &info
	}
	return c
}

// DecodeSessionConfig reads a start payload, rejecting unknown fields and
// trailing data. An empty body decodes to the zero config so validation
// reports the missing fields.
func DecodeSessionConfig(r io.Reader) (SessionConfig, error) {
	var cfg SessionConfig
	if r == nil {
		return cfg, nil
	}
	decoder := json.NewDecoder(r)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&cfg); err != nil {
		if errors.Is(err, io.EOF) {
			return SessionConfig{}, nil
		}
		return SessionConfig{}, &ValidationError{Field: "body", Reason: fmt.Sprintf("malformed payload: %v", err)}
	}
	if decoder.More() {
		return SessionConfig{}, &ValidationError{Field: "body", Reason: "malformed payload: unexpected trailing data"}
	}
	return cfg, nil
}

// SessionConfigSchema reflects the JSON schema of the start payload.
func SessionConfigSchema() *jsonschema.Schema {
	reflector := jsonschema.Reflector{
		ExpandedStruct: true,
	}
	schema := reflector.Reflect(new(SessionConfig))
	schema.Title = "Bot Swarm Start Command"
	schema.Description = "Starts a swarm of simulated bots against a game room."
	return schema
}

// SessionInfo is a read-only view of a live session.
type SessionInfo struct {
	ID        string        `json:"sessionId"`
	Config    SessionConfig `json:"config"`
	CreatedAt time.Time     `json:"createdAt"`
	Bots      []BotSnapshot `json:"bots,omitempty"`
}
