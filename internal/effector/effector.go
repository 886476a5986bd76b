// Copyright 2024 Seakee.  All rights reserved.
// Use of this source code is governed by a MIT style
// license that can be found in the LICENSE file.

// Package effector defines the side-effect traits the Engine executes
// actions through (Notifier, Messenger, Haptics, AudioPlayer, Webhook,
// Glyph, ShortcutRunner) plus concrete implementations. The Engine never
// imports a concrete effector directly; it is wired whichever ones a
// deployment has available, and treats a missing one as EffectorUnavailable
// rather than a fatal error.
package effector

import "context"

// Notifier displays a local push notification, optionally with a custom
// sound prepared ahead of playback.
type Notifier interface {
	Notify(ctx context.Context, title, body, sound string) error
}

// Messenger sends a mesh-radio text message, either to one target node or
// to a broadcast/normal channel.
type Messenger interface {
	SendToNode(ctx context.Context, targetNode uint32, channelIndex *uint32, text string) error
	SendToChannel(ctx context.Context, channelIndex uint32, text string, wantAck bool) error
}

// Haptics drives the device's vibration motor.
type Haptics interface {
	Vibrate(ctx context.Context) error
}

// AudioPlayer plays an RTTTL ringtone string or a named notification sound.
type AudioPlayer interface {
	PlayRtttl(ctx context.Context, rtttl string) error
	PlaySound(ctx context.Context, name string) error
}

// Webhook performs a TriggerWebhook action's outbound HTTP call. value1-3
// follow the Maker-webhook-style convention the teacher's resty client
// already speaks (node name; location-or-message; context list).
type Webhook interface {
	Trigger(ctx context.Context, url, value1, value2, value3 string) error
}

// Glyph dispatches a named lighting/glyph pattern; unknown pattern names
// fall back to a generic "triggered" pattern at the caller's discretion.
type Glyph interface {
	Play(ctx context.Context, pattern string) error
}

// ShortcutRunner launches a platform shortcut by name with a JSON input
// payload built from event fields. Platform-gated (iOS-only per spec);
// absent entirely on platforms without shortcut support.
type ShortcutRunner interface {
	Run(ctx context.Context, name string, inputJSON string) error
}

// Unavailable is the error the Engine produces for an action whose
// effector was never wired into it. ActionResult
// construction treats it as EffectorUnavailable, never a fatal error.
type Unavailable struct {
	Effector string
}

func (e Unavailable) Error() string {
	return e.Effector + " effector not configured"
}
