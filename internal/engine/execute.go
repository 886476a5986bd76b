// Copyright 2024 Seakee.  All rights reserved.
// Use of this source code is governed by a MIT style
// license that can be found in the LICENSE file.

package engine

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"
	oteltrace "go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/seakee/meshomaton/internal/automation"
	"github.com/seakee/meshomaton/internal/effector"
	"github.com/seakee/meshomaton/internal/interpolate"
	"github.com/seakee/meshomaton/internal/metrics"
)

// executeAutomation runs every Action in declaration order, recording a
// result for each, then persists the trigger bookkeeping and a LogEntry.
// A panicking action is recovered the way the teacher's scheduled-job
// runner recovers a handler panic: it never takes the engine down, it just
// becomes a failed ActionResult.
func (e *Engine) executeAutomation(ctx context.Context, a *automation.Automation, event automation.Event, now time.Time) {
	ctx, span := tracer.Start(ctx, "execute_automation",
		oteltrace.WithAttributes(attribute.String("automation.id", a.ID)))
	defer span.End()

	trig := interpolate.TriggerContext{
		Threshold:       triggerThreshold(a.Trigger),
		Keyword:         triggerKeyword(a.Trigger),
		ZoneRadius:      triggerZoneRadius(a.Trigger),
		SilentDuration:  triggerSilentDuration(a.Trigger),
		SignalThreshold: triggerSignalThreshold(a.Trigger),
		ChannelName:     triggerChannelName(a.Trigger),
	}

	results := make([]automation.ActionResult, 0, len(a.Actions))
	names := make([]string, 0, len(a.Actions))
	allSucceeded := true

	for _, act := range a.Actions {
		name := string(act.Kind)
		names = append(names, name)
		result := e.runActionRecovered(ctx, act, event, trig, now)
		if !result.Success {
			allSucceeded = false
		}
		results = append(results, result)

		outcome := "success"
		if !result.Success {
			outcome = "failure"
		}
		metrics.ActionsTotal.WithLabelValues(name, outcome).Inc()
	}
	if allSucceeded {
		metrics.AutomationTriggersTotal.WithLabelValues(a.ID).Inc()
	}

	key := throttleKey{automationID: a.ID, triggerKind: a.Trigger.Kind}
	e.mu.Lock()
	e.lastTriggerTime[key] = now
	e.mu.Unlock()

	if err := e.repo.RecordTrigger(a.ID, now); err != nil {
		e.logError(ctx, "record trigger failed", zap.String("automationId", a.ID), zap.Error(err))
	}

	entry := automation.LogEntry{
		AutomationID:   a.ID,
		Name:           a.Name,
		Timestamp:      now,
		Success:        allSucceeded,
		TriggerDetails: describeEvent(event),
		ActionNames:    names,
		ActionResults:  results,
	}
	if !allSucceeded {
		entry.ErrorMessage = firstActionError(results)
	}
	if err := e.repo.AppendLog(entry); err != nil {
		e.logError(ctx, "append log entry failed", zap.String("automationId", a.ID), zap.Error(err))
	}
}

// runActionRecovered executes one action, converting a panic into a failed
// ActionResult instead of propagating it.
func (e *Engine) runActionRecovered(ctx context.Context, act automation.Action, event automation.Event, trig interpolate.TriggerContext, now time.Time) (result automation.ActionResult) {
	result.Name = string(act.Kind)

	defer func() {
		if r := recover(); r != nil {
			result.Success = false
			result.Error = fmt.Sprintf("panic: %v", r)
			e.logError(ctx, "action execution panicked", zap.String("action", result.Name), zap.Any("recover", r))
		}
	}()

	err := e.runAction(ctx, act, event, trig, now)
	if err != nil {
		result.Success = false
		result.Error = err.Error()
		return result
	}
	result.Success = true
	return result
}

func (e *Engine) runAction(ctx context.Context, act automation.Action, event automation.Event, trig interpolate.TriggerContext, now time.Time) error {
	render := func(s string) string { return e.interp.Render(s, event, trig, now) }

	switch cfg := act.Config.(type) {
	case automation.SendMessageConfig:
		if e.effectors.Messenger == nil {
			return effector.Unavailable{Effector: "messenger"}
		}
		return e.effectors.Messenger.SendToNode(ctx, cfg.TargetNode, cfg.ChannelIndex, render(cfg.MessageText))

	case automation.SendToChannelConfig:
		if e.effectors.Messenger == nil {
			return effector.Unavailable{Effector: "messenger"}
		}
		wantAck := cfg.WantAck && cfg.ChannelIndex != 0
		return e.effectors.Messenger.SendToChannel(ctx, cfg.ChannelIndex, render(cfg.MessageText), wantAck)

	case automation.PlaySoundConfig:
		if e.effectors.Audio == nil {
			return effector.Unavailable{Effector: "audio"}
		}
		return e.effectors.Audio.PlayRtttl(ctx, cfg.Rtttl)

	case automation.EmptyConfig:
		if act.Kind == automation.ActionVibrate {
			if e.effectors.Haptics == nil {
				return effector.Unavailable{Effector: "haptics"}
			}
			return e.effectors.Haptics.Vibrate(ctx)
		}
		// ActionUpdateWidget: platform-owned, no effector call needed here.
		return nil

	case automation.PushNotificationConfig:
		if e.effectors.Notifier == nil {
			return effector.Unavailable{Effector: "notifier"}
		}
		return e.effectors.Notifier.Notify(ctx, render(cfg.Title), render(cfg.Body), cfg.Sound)

	case automation.TriggerWebhookConfig:
		if e.effectors.Webhook == nil {
			return effector.Unavailable{Effector: "webhook"}
		}
		return e.effectors.Webhook.Trigger(ctx, cfg.URL, event.NodeName, render("{{message}}"), describeEvent(event))

	case automation.LogEventConfig:
		e.logError(ctx, "logEvent action: "+render(cfg.Message))
		return nil

	case automation.TriggerShortcutConfig:
		if e.effectors.Shortcut == nil {
			return effector.Unavailable{Effector: "shortcut"}
		}
		return e.effectors.Shortcut.Run(ctx, cfg.ShortcutName, shortcutInputJSON(event))

	case automation.GlyphPatternConfig:
		if e.effectors.Glyph == nil {
			return effector.Unavailable{Effector: "glyph"}
		}
		return e.effectors.Glyph.Play(ctx, cfg.Pattern)

	default:
		return fmt.Errorf("unrecognized action config for kind %s", act.Kind)
	}
}

func firstActionError(results []automation.ActionResult) string {
	for _, r := range results {
		if !r.Success {
			return r.Name + ": " + r.Error
		}
	}
	return ""
}

func describeEvent(event automation.Event) string {
	return fmt.Sprintf("kind=%s node=%d", event.Kind, event.NodeNum)
}

func shortcutInputJSON(event automation.Event) string {
	return fmt.Sprintf(`{"nodeNum":%d,"nodeName":%q,"message":%q}`, event.NodeNum, event.NodeName, event.MessageText)
}

func triggerThreshold(t automation.Trigger) string {
	switch cfg := t.Config.(type) {
	case automation.BatteryLowConfig:
		return strconv.Itoa(cfg.BatteryThreshold)
	default:
		return ""
	}
}

func triggerKeyword(t automation.Trigger) string {
	if cfg, ok := t.Config.(automation.MessageContainsConfig); ok {
		return cfg.Keyword
	}
	return ""
}

func triggerZoneRadius(t automation.Trigger) string {
	if cfg, ok := t.Config.(automation.GeofenceConfig); ok {
		return strconv.FormatFloat(cfg.RadiusMeters, 'f', -1, 64)
	}
	return ""
}

func triggerSilentDuration(t automation.Trigger) string {
	if cfg, ok := t.Config.(automation.NodeSilentConfig); ok {
		return strconv.Itoa(cfg.Minutes)
	}
	return ""
}

func triggerSignalThreshold(t automation.Trigger) string {
	if cfg, ok := t.Config.(automation.SignalWeakConfig); ok {
		return strconv.FormatFloat(cfg.SignalThreshold, 'f', -1, 64)
	}
	return ""
}

func triggerChannelName(t automation.Trigger) string {
	if cfg, ok := t.Config.(automation.ChannelActivityConfig); ok {
		return cfg.ChannelName
	}
	return ""
}
