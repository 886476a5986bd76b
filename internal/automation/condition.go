// Copyright 2024 Seakee.  All rights reserved.
// Use of this source code is governed by a MIT style
// license that can be found in the LICENSE file.

package automation

import (
	"encoding/json"

	"github.com/pkg/errors"
)

// ConditionConfig is the typed settings a ConditionKind consumes.
type ConditionConfig interface {
	conditionConfig()
}

type (
	// TimeRangeConfig backs the TimeRange condition. Start/End are "HH:MM"
	// in local time; a range that crosses midnight (End < Start) is valid.
	TimeRangeConfig struct {
		TimeStart string `json:"timeStart"`
		TimeEnd   string `json:"timeEnd"`
	}

	// DayOfWeekConfig backs the DayOfWeek condition. Days are 0-6, 0=Sunday.
	DayOfWeekConfig struct {
		Days []int `json:"days"`
	}

	// BatteryThresholdConfig backs BatteryAbove and BatteryBelow.
	BatteryThresholdConfig struct {
		Threshold int `json:"threshold"`
	}

	// NodePresenceConfig backs the NodeOnline and NodeOffline conditions.
	NodePresenceConfig struct {
		NodeNum uint32 `json:"nodeNum"`
	}

	// GeofenceMembershipConfig backs WithinGeofence and OutsideGeofence.
	GeofenceMembershipConfig struct {
		NodeNum      uint32  `json:"nodeNum"`
		CenterLat    float64 `json:"centerLat"`
		CenterLon    float64 `json:"centerLon"`
		RadiusMeters float64 `json:"radiusMeters"`
	}
)

func (TimeRangeConfig) conditionConfig()          {}
func (DayOfWeekConfig) conditionConfig()          {}
func (BatteryThresholdConfig) conditionConfig()   {}
func (NodePresenceConfig) conditionConfig()       {}
func (GeofenceMembershipConfig) conditionConfig() {}

// Condition pairs a ConditionKind with its typed config. Conditions on one
// Automation are evaluated in declaration order as a logical AND chain.
type Condition struct {
	Kind   ConditionKind
	Config ConditionConfig
}

type conditionEnvelope struct {
	Type   ConditionKind   `json:"type"`
	Config json.RawMessage `json:"config"`
}

// MarshalJSON renders the condition as {"type":"...","config":{...}}.
func (c Condition) MarshalJSON() ([]byte, error) {
	cfg, err := json.Marshal(c.Config)
	if err != nil {
		return nil, errors.Wrap(err, "marshal condition config")
	}
	return json.Marshal(conditionEnvelope{Type: c.Kind, Config: cfg})
}

// UnmarshalJSON parses {"type":"...","config":{...}} into the typed config
// variant matching Type.
func (c *Condition) UnmarshalJSON(data []byte) error {
	var env conditionEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return errors.Wrap(err, "unmarshal condition envelope")
	}

	cfg, err := newConditionConfig(env.Type)
	if err != nil {
		return err
	}

	if len(env.Config) > 0 && string(env.Config) != "null" {
		if err := json.Unmarshal(env.Config, cfg); err != nil {
			return errors.Wrapf(err, "unmarshal %s condition config", env.Type)
		}
	}

	c.Kind = env.Type
	c.Config = derefConditionConfig(cfg)
	return nil
}

func newConditionConfig(kind ConditionKind) (interface{}, error) {
	switch kind {
	case ConditionTimeRange:
		return &TimeRangeConfig{}, nil
	case ConditionDayOfWeek:
		return &DayOfWeekConfig{}, nil
	case ConditionBatteryAbove, ConditionBatteryBelow:
		return &BatteryThresholdConfig{}, nil
	case ConditionNodeOnline, ConditionNodeOffline:
		return &NodePresenceConfig{}, nil
	case ConditionWithinGeofence, ConditionOutsideGeofence:
		return &GeofenceMembershipConfig{}, nil
	default:
		return nil, errors.Errorf("unknown condition kind %q", kind)
	}
}

func derefConditionConfig(cfg interface{}) ConditionConfig {
	switch c := cfg.(type) {
	case *TimeRangeConfig:
		return *c
	case *DayOfWeekConfig:
		return *c
	case *BatteryThresholdConfig:
		return *c
	case *NodePresenceConfig:
		return *c
	case *GeofenceMembershipConfig:
		return *c
	default:
		return nil
	}
}
