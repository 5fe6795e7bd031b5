// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 The syncbox Authors

package manager

import (
	"context"

	"github.com/google/uuid"

	"github.com/syncbox/syncbox/internal/logger"
	"github.com/syncbox/syncbox/internal/rest"
)

// PushManager handles the push-notification side channel: registering this
// device with the server and fanning an incoming "data may be available"
// signal into a background refresh. The platform transport itself is owned
// by the host, which calls OnPush when a signal arrives.
type PushManager struct {
	client         rest.Client
	registrationID string
	onPush         func()
	logger         *logger.Logger
}

// NewPushManager builds a push manager. An empty registrationID gets a
// generated one. onPush runs on every received signal.
func NewPushManager(client rest.Client, registrationID string, onPush func(), log *logger.Logger) *PushManager {
	if registrationID == "" {
		registrationID = uuid.NewString()
	}
	return &PushManager{
		client:         client,
		registrationID: registrationID,
		onPush:         onPush,
		logger:         log,
	}
}

// RegistrationID returns the id this device registers under.
func (p *PushManager) RegistrationID() string {
	return p.registrationID
}

// Register announces the registration id to the server. Fire-and-forget:
// a failure is logged, not returned, and the next Register retries.
func (p *PushManager) Register(ctx context.Context) {
	resp, err := p.client.Put(ctx, nil, "control", p.registrationID)
	if err != nil || !resp.OK() {
		p.logger.Warn().
			Str("func", "PushManager.Register").
			Str("registration_id", p.registrationID).
			Msg("push registration failed")
		return
	}
	p.logger.Debug().
		Str("func", "PushManager.Register").
		Str("registration_id", p.registrationID).
		Msg("push registration accepted")
}

// Unregister removes the registration on the server, fire-and-forget.
func (p *PushManager) Unregister(ctx context.Context) {
	resp, err := p.client.Delete(ctx, "control", p.registrationID)
	if err != nil || !resp.OK() {
		p.logger.Warn().
			Str("func", "PushManager.Unregister").
			Str("registration_id", p.registrationID).
			Msg("push unregistration failed")
	}
}

// OnPush is the host's entry point for a received push signal. The refresh
// runs on its own goroutine so platform callbacks return immediately.
func (p *PushManager) OnPush() {
	if p.onPush == nil {
		return
	}
	go p.onPush()
}
