// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package autologout

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// slowGateway blocks every call until ctx is done.
type slowGateway struct{}

func (slowGateway) TimeLeft(ctx context.Context) (int, error) {
	<-ctx.Done()
	return 0, ctx.Err()
}

func (slowGateway) KeepAlive(ctx context.Context) error {
	<-ctx.Done()
	return ctx.Err()
}

func (slowGateway) Logout(ctx context.Context) error {
	<-ctx.Done()
	return ctx.Err()
}

func TestProbe_GetRemaining(t *testing.T) {
	tests := []struct {
		name    string
		reply   probeReply
		want    int
		wantErr error
	}{
		{name: "time left", reply: probeReply{secs: 42}, want: 42},
		{name: "zero", reply: probeReply{secs: 0}, want: 0},
		{name: "negative clamps to zero", reply: probeReply{secs: -5}, want: 0},
		{name: "auth expired", reply: probeReply{err: fmt.Errorf("status 403: %w", ErrAuthExpired)}, wantErr: ErrAuthExpired},
		{name: "transport failure", reply: probeReply{err: errors.New("connection reset")}, wantErr: ErrUnreachable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gw := (&fakeGateway{}).reply(tt.reply)
			p := NewProbe(gw, time.Second)

			got, err := p.GetRemaining(context.Background())
			if tt.wantErr != nil {
				require.Error(t, err)
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.SecondsLeft)
			assert.Equal(t, tt.want == 0, got.Expired())
		})
	}
}

func TestProbe_RequestTimeoutIsUnreachable(t *testing.T) {
	p := NewProbe(slowGateway{}, 10*time.Millisecond)

	_, err := p.GetRemaining(context.Background())
	assert.ErrorIs(t, err, ErrUnreachable)
	assert.True(t, IsUnreachable(err))
	assert.False(t, IsAuthExpired(err))

	assert.ErrorIs(t, p.KeepAlive(context.Background()), ErrUnreachable)
	assert.ErrorIs(t, p.Logout(context.Background()), ErrUnreachable)
}

func TestProbe_KeepAliveAndLogoutMapErrors(t *testing.T) {
	gw := &fakeGateway{keepAliveErr: ErrAuthExpired}
	p := NewProbe(gw, 0)

	assert.ErrorIs(t, p.KeepAlive(context.Background()), ErrAuthExpired)
	assert.NoError(t, p.Logout(context.Background()))
	assert.ErrorIs(t, p.Logout(context.Background()), ErrAuthExpired, "session already gone")
}

func TestRemainingTime_Duration(t *testing.T) {
	assert.Equal(t, 45*time.Second, RemainingTime{SecondsLeft: 45}.Duration())
	assert.True(t, RemainingTime{}.Expired())
}

func TestPolicy_Validate(t *testing.T) {
	p := testPolicy()
	require.NoError(t, p.Validate())

	p.IdleTimeout = MinIdleTimeout - time.Second
	assert.ErrorIs(t, p.Validate(), ErrConfigInvalid)

	p = testPolicy()
	p.Padding = -time.Second
	assert.ErrorIs(t, p.Validate(), ErrConfigInvalid)

	p = testPolicy()
	p.RedirectURL = ""
	assert.ErrorIs(t, p.Validate(), ErrConfigInvalid)

	p = testPolicy()
	p.Padding = 0
	assert.NoError(t, p.Validate(), "zero padding is allowed")
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "ACTIVE", StateActive.String())
	assert.Equal(t, "WARNING_OPEN", StateWarningOpen.String())
	assert.Equal(t, "LOGGED_OUT", StateLoggedOut.String())
	assert.Equal(t, "UNKNOWN", State(99).String())
	assert.True(t, StateLoggedOut.IsTerminal())
	assert.False(t, StateConfirmingLogout.IsTerminal())
	assert.Equal(t, "padding_fired", EventPaddingFired.String())
}
