package botzie

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func TestSessionConfigValidate(t *testing.T) {
	tests := []struct {
		name      string
		cfg       SessionConfig
		wantField string
	}{
		{name: "valid", cfg: validConfig("Ann", 3)},
		{name: "minimum", cfg: validConfig("Ann", MinBotCount)},
		{name: "maximum", cfg: validConfig("Ann", MaxBotCount)},
		{name: "zero bots", cfg: validConfig("Ann", 0), wantField: "botCount"},
		{name: "too many bots", cfg: validConfig("Ann", 51), wantField: "botCount"},
		{name: "empty nickname", cfg: SessionConfig{RoomURL: "room", BotCount: 1}, wantField: "nickname"},
		{name: "blank nickname", cfg: SessionConfig{Nickname: "  ", RoomURL: "room", BotCount: 1}, wantField: "nickname"},
		{name: "empty room", cfg: SessionConfig{Nickname: "Ann", BotCount: 1}, wantField: "roomUrl"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantField == "" {
				if err != nil {
					t.Fatalf("expected valid config, got %v", err)
				}
				return
			}
			var validation *ValidationError
			if !errors.As(err, &validation) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if validation.Field != tt.wantField {
				t.Fatalf("expected field %q, got %q", tt.wantField, validation.Field)
			}
		})
	}
}

func TestValidateBotCountMessageNamesBounds(t *testing.T) {
	err := validConfig("Ann", 51).Validate()
	if err == nil {
		t.Fatal("expected rejection for 51 bots")
	}
	var validation *ValidationError
	if !errors.As(err, &validation) {
		t.Fatalf("expected ValidationError, got %T", err)
	}
	if validation.Reason != "bot count must be between 1 and 50" {
		t.Fatalf("unexpected reason %q", validation.Reason)
	}
}

func TestDecodeSessionConfig(t *testing.T) {
	cfg, err := DecodeSessionConfig(strings.NewReader(`{
		"nickname": "Ann",
		"roomUrl": "wss://room",
		"botCount": 3,
		"feedingEnabled": true,
		"serverInfo": {"server": "eu.host", "port": 443, "region": "EU", "wsUrl": "wss://eu.host", "realServer": true}
	}`))
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if cfg.Nickname != "Ann" || cfg.BotCount != 3 || !cfg.FeedingEnabled {
		t.Fatalf("unexpected config %+v", cfg)
	}
	if cfg.ServerInfo == nil || cfg.ServerInfo.Port != 443 || !cfg.ServerInfo.RealServer {
		t.Fatalf("unexpected server info %+v", cfg.ServerInfo)
	}
}

func TestDecodeSessionConfigRejectsMalformed(t *testing.T) {
	for name, body := range map[string]string{
		"unknown field":  `{"nickname":"Ann","roomUrl":"r","botCount":1,"speed":9}`,
		"wrong type":     `{"nickname":"Ann","roomUrl":"r","botCount":"three"}`,
		"trailing data":  `{"nickname":"Ann","roomUrl":"r","botCount":1} {}`,
		"truncated json": `{"nickname":`,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := DecodeSessionConfig(strings.NewReader(body))
			if !IsValidation(err) {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}
}

func TestDecodeEmptyBodyFailsValidation(t *testing.T) {
	cfg, err := DecodeSessionConfig(strings.NewReader(""))
	if err != nil {
		t.Fatalf("expected empty body to decode, got %v", err)
	}
	if err := cfg.Validate(); !IsValidation(err) {
		t.Fatalf("expected empty config to fail validation, got %v", err)
	}
}

func TestSessionConfigSchema(t *testing.T) {
	schema := SessionConfigSchema()
	if schema.Title == "" {
		t.Fatal("expected schema title")
	}
	data, err := json.Marshal(schema)
	if err != nil {
		t.Fatalf("marshal schema: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal schema: %v", err)
	}
	props, ok := decoded["properties"].(map[string]any)
	if !ok {
		t.Fatalf("expected properties in schema, got %s", data)
	}
	for _, field := range []string{"nickname", "roomUrl", "botCount", "feedingEnabled", "serverInfo"} {
		if _, ok := props[field]; !ok {
			t.Fatalf("expected %q in schema properties", field)
		}
	}
	botCount, _ := props["botCount"].(map[string]any)
	if botCount["maximum"] != float64(MaxBotCount) {
		t.Fatalf("expected botCount maximum %d, got %v", MaxBotCount, botCount["maximum"])
	}
}

func TestPlaceholderBots(t *testing.T) {
	cfg := validConfig("Ann", 3)
	cfg.ServerInfo = &ServerDescriptor{Region: "EU"}
	bots := PlaceholderBots("s-1", cfg)
	if len(bots) != 3 {
		t.Fatalf("expected 3 placeholders, got %d", len(bots))
	}
	for i, bot := range bots {
		if bot.ID != BotID(i+1) || bot.Nickname != BotNickname("Ann", i+1) {
			t.Fatalf("unexpected placeholder identity %+v", bot)
		}
		if bot.Status != StatusConnecting || bot.Mass != 0 {
			t.Fatalf("expected connecting placeholder, got %+v", bot)
		}
		if bot.Region != "EU" || bot.SessionID != "s-1" {
			t.Fatalf("expected descriptor copy, got %+v", bot)
		}
	}
}
