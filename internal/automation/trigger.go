// Copyright 2024 Seakee.  All rights reserved.
// Use of this source code is governed by a MIT style
// license that can be found in the LICENSE file.

package automation

import (
	"encoding/json"

	"github.com/pkg/errors"
)

// TriggerConfig is the typed settings a TriggerKind consumes. Each kind owns
// exactly one concrete implementation; should_trigger type-switches on it
// instead of re-parsing a generic map on every event.
type TriggerConfig interface {
	triggerConfig()
}

type (
	// NodeFilterConfig matches NodeOnline, NodeOffline, PositionChanged,
	// and MessageReceived triggers: nil NodeNum means "any node".
	NodeFilterConfig struct {
		NodeNum *uint32 `json:"nodeNum"`
	}

	// BatteryLowConfig backs the BatteryLow trigger.
	BatteryLowConfig struct {
		NodeNum          *uint32 `json:"nodeNum"`
		BatteryThreshold int     `json:"batteryThreshold"`
	}

	// MessageContainsConfig backs the MessageContains trigger.
	MessageContainsConfig struct {
		NodeNum *uint32 `json:"nodeNum"`
		Keyword string  `json:"keyword"`
	}

	// GeofenceConfig backs GeofenceEnter and GeofenceExit triggers.
	GeofenceConfig struct {
		NodeNum      *uint32 `json:"nodeNum"`
		CenterLat    float64 `json:"centerLat"`
		CenterLon    float64 `json:"centerLon"`
		RadiusMeters float64 `json:"radiusMeters"`
	}

	// NodeSilentConfig backs the NodeSilent trigger.
	NodeSilentConfig struct {
		NodeNum *uint32 `json:"nodeNum"`
		Minutes int     `json:"silentDuration"`
	}

	// ScheduledConfig backs the Scheduled trigger, binding an automation to
	// one ScheduleSpec by id.
	ScheduledConfig struct {
		ScheduleID string `json:"scheduleId"`
	}

	// SignalWeakConfig backs the SignalWeak trigger.
	SignalWeakConfig struct {
		NodeNum         *uint32 `json:"nodeNum"`
		SignalThreshold float64 `json:"signalThreshold"`
	}

	// ChannelActivityConfig backs the ChannelActivity trigger.
	ChannelActivityConfig struct {
		ChannelIndex *uint32 `json:"channelIndex"`
		ChannelName  string  `json:"channelName"`
	}

	// DetectionSensorConfig backs the DetectionSensor trigger.
	DetectionSensorConfig struct {
		NodeNum            *uint32 `json:"nodeNum"`
		SensorNameContains string  `json:"sensorNameContains"`
		DetectedState      *bool   `json:"detectedState"`
	}

	// EmptyConfig backs triggers that carry no settings (BatteryFull, Manual).
	EmptyConfig struct{}
)

func (NodeFilterConfig) triggerConfig()      {}
func (BatteryLowConfig) triggerConfig()      {}
func (MessageContainsConfig) triggerConfig() {}
func (GeofenceConfig) triggerConfig()        {}
func (NodeSilentConfig) triggerConfig()      {}
func (ScheduledConfig) triggerConfig()       {}
func (SignalWeakConfig) triggerConfig()      {}
func (ChannelActivityConfig) triggerConfig() {}
func (DetectionSensorConfig) triggerConfig() {}
func (EmptyConfig) triggerConfig()           {}

// Trigger pairs a TriggerKind with the typed config it consumes. Immutable
// within one Automation version: callers replace the whole Trigger to change
// it, never mutate Config fields in place after registration.
type Trigger struct {
	Kind   TriggerKind
	Config TriggerConfig
}

type triggerEnvelope struct {
	Type   TriggerKind     `json:"type"`
	Config json.RawMessage `json:"config"`
}

// MarshalJSON renders the trigger as {"type":"...","config":{...}} per the
// persisted automation schema.
func (t Trigger) MarshalJSON() ([]byte, error) {
	cfg, err := json.Marshal(t.Config)
	if err != nil {
		return nil, errors.Wrap(err, "marshal trigger config")
	}
	return json.Marshal(triggerEnvelope{Type: t.Kind, Config: cfg})
}

// UnmarshalJSON parses {"type":"...","config":{...}} into the typed config
// variant matching Type, rejecting unknown kinds at parse time.
func (t *Trigger) UnmarshalJSON(data []byte) error {
	var env triggerEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return errors.Wrap(err, "unmarshal trigger envelope")
	}

	cfg, err := newTriggerConfig(env.Type)
	if err != nil {
		return err
	}

	if len(env.Config) > 0 && string(env.Config) != "null" {
		if err := json.Unmarshal(env.Config, cfg); err != nil {
			return errors.Wrapf(err, "unmarshal %s trigger config", env.Type)
		}
	}

	t.Kind = env.Type
	t.Config = derefTriggerConfig(cfg)
	return nil
}

func newTriggerConfig(kind TriggerKind) (interface{}, error) {
	switch kind {
	case TriggerNodeOnline, TriggerNodeOffline, TriggerPositionChanged, TriggerMessageReceived:
		return &NodeFilterConfig{}, nil
	case TriggerBatteryLow:
		return &BatteryLowConfig{}, nil
	case TriggerBatteryFull, TriggerManual:
		return &EmptyConfig{}, nil
	case TriggerMessageContains:
		return &MessageContainsConfig{}, nil
	case TriggerGeofenceEnter, TriggerGeofenceExit:
		return &GeofenceConfig{}, nil
	case TriggerNodeSilent:
		return &NodeSilentConfig{}, nil
	case TriggerScheduled:
		return &ScheduledConfig{}, nil
	case TriggerSignalWeak:
		return &SignalWeakConfig{}, nil
	case TriggerChannelActivity:
		return &ChannelActivityConfig{}, nil
	case TriggerDetectionSensor:
		return &DetectionSensorConfig{}, nil
	default:
		return nil, errors.Errorf("unknown trigger kind %q", kind)
	}
}

// derefTriggerConfig unwraps the pointer newTriggerConfig returns back into
// the value type stored on Trigger.Config.
func derefTriggerConfig(cfg interface{}) TriggerConfig {
	switch c := cfg.(type) {
	case *NodeFilterConfig:
		return *c
	case *BatteryLowConfig:
		return *c
	case *EmptyConfig:
		return *c
	case *MessageContainsConfig:
		return *c
	case *GeofenceConfig:
		return *c
	case *NodeSilentConfig:
		return *c
	case *ScheduledConfig:
		return *c
	case *SignalWeakConfig:
		return *c
	case *ChannelActivityConfig:
		return *c
	case *DetectionSensorConfig:
		return *c
	default:
		return nil
	}
}
