// Copyright 2024 Seakee.  All rights reserved.
// Use of this source code is governed by a MIT style
// license that can be found in the LICENSE file.

// Package feishumsg implements effector.Notifier/effector.Messenger on top
// of sk-pkg/feishu, the same group-webhook robot client the teacher wires
// up for panic alerts (bootstrap.loadFeishu).
package feishumsg

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
	"github.com/sk-pkg/feishu"
)

// Client forwards PushNotification/SendMessage actions to a Feishu group
// chat. It is a pragmatic stand-in for the mesh-radio Messenger/Notifier
// traits in deployments that route automation output to a chat channel
// instead of (or in addition to) the mesh itself.
type Client struct {
	manager *feishu.Manager
}

// New wraps an already-configured feishu.Manager (see bootstrap.loadFeishu).
func New(manager *feishu.Manager) *Client {
	return &Client{manager: manager}
}

// Notify sends title/body as one group text message.
func (c *Client) Notify(ctx context.Context, title, body, _ string) error {
	if c.manager == nil {
		return errors.New("feishu manager not configured")
	}
	return c.manager.SendGroupTextMessage(ctx, title+"\n"+body)
}

// SendToNode has no mesh-radio transport here; it forwards the text to the
// configured group chat tagged with the target node.
func (c *Client) SendToNode(ctx context.Context, targetNode uint32, _ *uint32, text string) error {
	if c.manager == nil {
		return errors.New("feishu manager not configured")
	}
	return c.manager.SendGroupTextMessage(ctx, fmt.Sprintf("[node %d] %s", targetNode, text))
}

// SendToChannel forwards a channel broadcast the same way.
func (c *Client) SendToChannel(ctx context.Context, channelIndex uint32, text string, _ bool) error {
	if c.manager == nil {
		return errors.New("feishu manager not configured")
	}
	return c.manager.SendGroupTextMessage(ctx, text)
}
