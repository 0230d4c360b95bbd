package whatsapp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, "inst-1", "token-1")
}

func TestSendText_Succeeds(t *testing.T) {
	t.Parallel()

	var got sendRequest
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"status":"success","message_id":"wamid.123"}`))
	})

	id, err := client.SendText(context.Background(), "919876543210", "hello")
	require.NoError(t, err)
	require.Equal(t, "wamid.123", id)
	require.Equal(t, "919876543210", got.Number)
	require.Equal(t, "text", got.Type)
	require.Equal(t, "hello", got.Message)
	require.Equal(t, "inst-1", got.InstanceID)
	require.Equal(t, "token-1", got.AccessToken)
}

func TestSendText_ProviderErrorStatus(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"status":"error","message":"instance not connected"}`))
	})

	_, err := client.SendText(context.Background(), "919876543210", "hello")
	require.Error(t, err)
	require.Contains(t, err.Error(), "instance not connected")
}

func TestSendText_HTTPErrorStatus(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(`upstream exploded`))
	})

	_, err := client.SendText(context.Background(), "919876543210", "hello")
	require.Error(t, err)
	require.Contains(t, err.Error(), "502")
	require.Contains(t, err.Error(), "upstream exploded")
}

func TestSendText_MissingMessageIDIsStillSuccess(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"status":"success"}`))
	})

	id, err := client.SendText(context.Background(), "919876543210", "hello")
	require.NoError(t, err)
	require.Empty(t, id)
}

func TestConfigured(t *testing.T) {
	t.Parallel()

	require.True(t, NewClient("", "inst", "token").Configured())
	require.False(t, NewClient("", "", "token").Configured())
	require.False(t, NewClient("", "inst", "").Configured())
	require.False(t, NewClient("", " ", " ").Configured())
}
