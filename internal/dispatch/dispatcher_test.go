package dispatch

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDispatch_Unregistered(t *testing.T) {
	d := New()

	tests := []struct {
		name EventName
		want Result
	}{
		{ConnectionStatus, Result{}},
		{MessageSent, Result{}},
		{EnqueuedCommand, Result{}},
		{Command, Result{ResponseCode: 200, ResponseMessage: "{}"}},
		{SettingsUpdated, Result{ResponseCode: 200, ResponseMessage: "completed"}},
	}

	for _, tt := range tests {
		t.Run(tt.name.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, d.Dispatch(Event{Name: tt.name}))
		})
	}
}

func TestDispatch_CallbackReceivesEvent(t *testing.T) {
	d := New()

	var got Event
	require.NoError(t, d.On(Command, func(info *CallbackInfo) {
		got = info.Event
	}))

	res := d.Dispatch(Event{Name: Command, Payload: []byte(`{}`), Tag: "reboot"})

	assert.True(t, res.Invoked)
	assert.Equal(t, 200, res.ResponseCode)
	assert.Equal(t, "{}", res.ResponseMessage)
	assert.Equal(t, "reboot", got.Tag)
	assert.Equal(t, []byte(`{}`), got.Payload)
}

func TestDispatch_SetResponse(t *testing.T) {
	d := New()
	require.NoError(t, d.On(SettingsUpdated, func(info *CallbackInfo) {
		info.SetResponse(400, "rejected")
	}))

	res := d.Dispatch(Event{Name: SettingsUpdated, Tag: "temp"})
	assert.Equal(t, Result{Invoked: true, ResponseCode: 400, ResponseMessage: "rejected"}, res)
}

func TestOn_LastRegistrationWins(t *testing.T) {
	d := New()
	var calls []string

	require.NoError(t, d.On(MessageSent, func(*CallbackInfo) { calls = append(calls, "first") }))
	require.NoError(t, d.On(MessageSent, func(*CallbackInfo) { calls = append(calls, "second") }))
	d.Dispatch(Event{Name: MessageSent})

	assert.Equal(t, []string{"second"}, calls)
}

func TestOn_NilRemoves(t *testing.T) {
	d := New()
	require.NoError(t, d.On(ConnectionStatus, func(*CallbackInfo) {}))
	assert.True(t, d.Dispatch(Event{Name: ConnectionStatus}).Invoked)

	require.NoError(t, d.On(ConnectionStatus, nil))
	assert.False(t, d.Dispatch(Event{Name: ConnectionStatus}).Invoked)
}

func TestOn_UnknownEvent(t *testing.T) {
	err := New().On(EventName(42), func(*CallbackInfo) {})
	assert.ErrorIs(t, err, ErrUnknownEvent)
}

func TestParseEventName(t *testing.T) {
	for _, e := range Events() {
		got, err := ParseEventName(e.String())
		require.NoError(t, err)
		assert.Equal(t, e, got)
	}

	got, err := ParseEventName("command")
	require.NoError(t, err)
	assert.Equal(t, Command, got)

	_, err = ParseEventName("Nope")
	assert.ErrorIs(t, err, ErrUnknownEvent)
	assert.Equal(t, "EventName(0)", EventName(0).String())
}
