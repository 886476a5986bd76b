// Copyright 2024 Seakee.  All rights reserved.
// Use of this source code is governed by a MIT style
// license that can be found in the LICENSE file.

// Package webhook implements the effector.Webhook trait with resty, the
// same HTTP client the teacher uses for its IP-monitor job
// (app/job/monitor/ip.go).
package webhook

import (
	"context"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"
	"github.com/sk-pkg/logger"
	"go.uber.org/zap"
)

// Client is the TriggerWebhook action's effector.Webhook implementation.
// It requires the external webhook service to be active; a non-2xx
// response or transport error is surfaced as a TransientActionError to the
// caller, which becomes a failed ActionResult.
type Client struct {
	http *resty.Client
	log  *logger.Manager
}

// New builds a webhook Client with a bounded per-call timeout, matching the
// teacher's pattern of a fresh resty.Client per call site.
func New(log *logger.Manager) *Client {
	return &Client{
		http: resty.New().SetTimeout(10 * time.Second),
		log:  log,
	}
}

// Trigger posts value1/value2/value3 as a JSON body to url.
func (c *Client) Trigger(ctx context.Context, url, value1, value2, value3 string) error {
	res, err := c.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(map[string]string{"value1": value1, "value2": value2, "value3": value3}).
		Post(url)
	if err != nil {
		if c.log != nil {
			c.log.Error(ctx, "webhook call failed", zap.String("url", url), zap.Error(err))
		}
		return errors.Wrap(err, "webhook request")
	}
	if res.StatusCode() >= 300 {
		return errors.Errorf("webhook returned status %d", res.StatusCode())
	}
	return nil
}
