package evolution_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/healthconcierge/wa-concierge/pkg/evolution"
)

func TestNormalizeJID(t *testing.T) {
	assert.Equal(t, "15551234567@s.whatsapp.net", evolution.NormalizeJID("+1 555-1234567"))
	assert.Equal(t, "123@lid", evolution.NormalizeJID("123@lid"))
}

func TestSendTextSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/message/sendText/clinic-a", r.URL.Path)
		assert.Equal(t, "secret", r.Header.Get("apikey"))

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "15551234567@s.whatsapp.net", body["number"])

		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]any{"key": map[string]string{"id": "wamid.123"}})
	}))
	defer server.Close()

	client := evolution.New(server.URL, "secret", 5*time.Second)
	result, err := client.SendText(t.Context(), "clinic-a", "15551234567@s.whatsapp.net", "hi there", 0)
	require.NoError(t, err)
	assert.Equal(t, "wamid.123", result.MessageID)
}

func TestSendTextNon2xxReturnsError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := evolution.New(server.URL, "secret", 5*time.Second)
	_, err := client.SendText(t.Context(), "clinic-a", "15551234567@s.whatsapp.net", "hi", 0)
	assert.Error(t, err)
}

func TestConnectionState(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/instance/connectionState/clinic-a", r.URL.Path)
		_ = json.NewEncoder(w).Encode(map[string]string{"state": "open"})
	}))
	defer server.Close()

	client := evolution.New(server.URL, "secret", 5*time.Second)
	state, err := client.ConnectionState(t.Context(), "clinic-a")
	require.NoError(t, err)
	assert.Equal(t, "open", state)
}
