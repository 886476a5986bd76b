// Copyright 2024 Seakee.  All rights reserved.
// Use of this source code is governed by a MIT style
// license that can be found in the LICENSE file.

// Package interpolate implements safe substitution of {{token}} placeholders
// in action strings (message bodies, notification titles) per spec.md §4.6.
package interpolate

import (
	"fmt"
	"regexp"
	"time"

	"github.com/seakee/meshomaton/internal/automation"
)

var tokenPattern = regexp.MustCompile(`\{\{([a-zA-Z0-9_.]+)\}\}`)

// TriggerContext supplies the trigger-config-derived values §4.6 lists
// (threshold, keyword, zone.radius, silent.duration, signal.threshold,
// channel.name). Zero values are fine when a given trigger kind doesn't use
// one of these.
type TriggerContext struct {
	Threshold       string
	Keyword         string
	ZoneRadius      string
	SilentDuration  string
	SignalThreshold string
	ChannelName     string
}

// Interpolator substitutes {{token}} placeholders using an Event and a
// TriggerContext. Unknown tokens are preserved verbatim.
type Interpolator struct{}

// New builds an Interpolator. It carries no state; one instance is safe to
// share across automations.
func New() *Interpolator {
	return &Interpolator{}
}

// Render substitutes every recognised token in s. now is the clock reading
// used for the {{time}} token.
func (Interpolator) Render(s string, event automation.Event, trig TriggerContext, now time.Time) string {
	return tokenPattern.ReplaceAllStringFunc(s, func(match string) string {
		token := match[2 : len(match)-2]
		value, ok := resolveToken(token, event, trig, now)
		if !ok {
			return match
		}
		return value
	})
}

// InvalidTokens returns every {{token}} in s that Render would not
// substitute, without mutating s. Used by editor-time validation.
func (Interpolator) InvalidTokens(s string) []string {
	var invalid []string
	for _, match := range tokenPattern.FindAllStringSubmatch(s, -1) {
		if !knownToken(match[1]) {
			invalid = append(invalid, match[1])
		}
	}
	return invalid
}

func knownToken(token string) bool {
	switch token {
	case "node.name", "node.num", "battery", "location", "message", "time",
		"sensor.name", "sensor.state", "threshold", "keyword", "zone.radius",
		"silent.duration", "signal.threshold", "channel.name":
		return true
	default:
		return false
	}
}

func resolveToken(token string, event automation.Event, trig TriggerContext, now time.Time) (string, bool) {
	switch token {
	case "node.name":
		if event.NodeName != "" {
			return event.NodeName, true
		}
		return "Unknown", true
	case "node.num":
		if event.NodeNum != 0 {
			return fmt.Sprintf("%x", event.NodeNum), true
		}
		return "", true
	case "battery":
		if event.BatteryLevel != nil {
			return fmt.Sprintf("%d%%", *event.BatteryLevel), true
		}
		return "?%", true
	case "location":
		if event.Latitude != nil && event.Longitude != nil {
			return fmt.Sprintf("%.5f, %.5f", *event.Latitude, *event.Longitude), true
		}
		return "Unknown", true
	case "message":
		return event.MessageText, true
	case "time":
		return now.Format(time.RFC3339), true
	case "sensor.name":
		return event.SensorName, true
	case "sensor.state":
		if event.SensorDetected != nil && *event.SensorDetected {
			return "detected", true
		}
		return "clear", true
	case "threshold":
		return trig.Threshold, true
	case "keyword":
		return trig.Keyword, true
	case "zone.radius":
		return trig.ZoneRadius, true
	case "silent.duration":
		return trig.SilentDuration, true
	case "signal.threshold":
		return trig.SignalThreshold, true
	case "channel.name":
		return trig.ChannelName, true
	default:
		return "", false
	}
}
