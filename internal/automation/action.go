// Copyright 2024 Seakee.  All rights reserved.
// Use of this source code is governed by a MIT style
// license that can be found in the LICENSE file.

package automation

import (
	"encoding/json"

	"github.com/pkg/errors"
)

// ActionConfig is the typed settings an ActionKind consumes.
type ActionConfig interface {
	actionConfig()
}

type (
	// SendMessageConfig backs the SendMessage action.
	SendMessageConfig struct {
		TargetNode   uint32  `json:"targetNode"`
		MessageText  string  `json:"messageText"`
		ChannelIndex *uint32 `json:"channelIndex"`
	}

	// SendToChannelConfig backs the SendToChannel action. ChannelIndex 0 is
	// the broadcast channel and implies WantAck=false regardless of config.
	SendToChannelConfig struct {
		ChannelIndex uint32 `json:"channelIndex"`
		MessageText  string `json:"messageText"`
		WantAck      bool   `json:"wantAck"`
	}

	// PlaySoundConfig backs the PlaySound action.
	PlaySoundConfig struct {
		Rtttl string `json:"rtttl"`
	}

	// PushNotificationConfig backs the PushNotification action.
	PushNotificationConfig struct {
		Title string `json:"title"`
		Body  string `json:"body"`
		Sound string `json:"sound"`
	}

	// TriggerWebhookConfig backs the TriggerWebhook action.
	TriggerWebhookConfig struct {
		URL string `json:"url"`
	}

	// LogEventConfig backs the LogEvent action.
	LogEventConfig struct {
		Message string `json:"message"`
	}

	// TriggerShortcutConfig backs the TriggerShortcut action.
	TriggerShortcutConfig struct {
		ShortcutName string `json:"shortcutName"`
	}

	// GlyphPatternConfig backs the GlyphPattern action.
	GlyphPatternConfig struct {
		Pattern string `json:"pattern"`
	}
)

func (SendMessageConfig) actionConfig()      {}
func (SendToChannelConfig) actionConfig()    {}
func (PlaySoundConfig) actionConfig()        {}
func (EmptyConfig) actionConfig()            {}
func (PushNotificationConfig) actionConfig() {}
func (TriggerWebhookConfig) actionConfig()   {}
func (LogEventConfig) actionConfig()         {}
func (TriggerShortcutConfig) actionConfig()  {}
func (GlyphPatternConfig) actionConfig()     {}

// Action pairs an ActionKind with its typed config. Actions on one
// Automation execute strictly in declaration order.
type Action struct {
	Kind   ActionKind
	Config ActionConfig
}

type actionEnvelope struct {
	Type   ActionKind      `json:"type"`
	Config json.RawMessage `json:"config"`
}

// MarshalJSON renders the action as {"type":"...","config":{...}}.
func (a Action) MarshalJSON() ([]byte, error) {
	cfg, err := json.Marshal(a.Config)
	if err != nil {
		return nil, errors.Wrap(err, "marshal action config")
	}
	return json.Marshal(actionEnvelope{Type: a.Kind, Config: cfg})
}

// UnmarshalJSON parses {"type":"...","config":{...}} into the typed config
// variant matching Type.
func (a *Action) UnmarshalJSON(data []byte) error {
	var env actionEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return errors.Wrap(err, "unmarshal action envelope")
	}

	cfg, err := newActionConfig(env.Type)
	if err != nil {
		return err
	}

	if len(env.Config) > 0 && string(env.Config) != "null" {
		if err := json.Unmarshal(env.Config, cfg); err != nil {
			return errors.Wrapf(err, "unmarshal %s action config", env.Type)
		}
	}

	a.Kind = env.Type
	a.Config = derefActionConfig(cfg)
	return nil
}

func newActionConfig(kind ActionKind) (interface{}, error) {
	switch kind {
	case ActionSendMessage:
		return &SendMessageConfig{}, nil
	case ActionSendToChannel:
		return &SendToChannelConfig{}, nil
	case ActionPlaySound:
		return &PlaySoundConfig{}, nil
	case ActionVibrate, ActionUpdateWidget:
		return &EmptyConfig{}, nil
	case ActionPushNotification:
		return &PushNotificationConfig{}, nil
	case ActionTriggerWebhook:
		return &TriggerWebhookConfig{}, nil
	case ActionLogEvent:
		return &LogEventConfig{}, nil
	case ActionTriggerShortcut:
		return &TriggerShortcutConfig{}, nil
	case ActionGlyphPattern:
		return &GlyphPatternConfig{}, nil
	default:
		return nil, errors.Errorf("unknown action kind %q", kind)
	}
}

func derefActionConfig(cfg interface{}) ActionConfig {
	switch c := cfg.(type) {
	case *SendMessageConfig:
		return *c
	case *SendToChannelConfig:
		return *c
	case *PlaySoundConfig:
		return *c
	case *EmptyConfig:
		return *c
	case *PushNotificationConfig:
		return *c
	case *TriggerWebhookConfig:
		return *c
	case *LogEventConfig:
		return *c
	case *TriggerShortcutConfig:
		return *c
	case *GlyphPatternConfig:
		return *c
	default:
		return nil
	}
}
