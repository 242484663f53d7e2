package extract_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pkordes/itinerary/internal/extract"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name  string
		reply string
		want  int
		err   bool
	}{
		{"plain array", `[{"tipo":"vuelo"},{"tipo":"hotel"}]`, 2, false},
		{"fenced with tag", "Here you go:\n```json\n[{\"tipo\":\"vuelo\"}]\n```\n", 1, false},
		{"fenced without tag", "```[{\"tipo\":\"vuelo\"}]```", 1, false},
		{"empty array", `[]`, 0, false},
		{"single object", `{"tipo":"hotel"}`, 1, false},
		{"empty objects dropped", `[{}, {"tipo":"hotel"}]`, 1, false},
		{"prose", `I could not find any reservation.`, 0, true},
		{"truncated", `[{"tipo":"vuelo",`, 0, true},
		{"blank", "  ", 0, true},
		{"array of scalars", `[1, 2]`, 0, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := extract.Parse(tc.reply)
			if tc.err {
				assert.ErrorIs(t, err, extract.ErrUnparseable)
				return
			}
			require.NoError(t, err)
			assert.Len(t, got, tc.want)
		})
	}
}

func TestParse_NestedPassengers(t *testing.T) {
	got, err := extract.Parse(`[{"tipo":"vuelo","pasajeros":[{"nombre":"PEREZ/JUAN"}]}]`)

	require.NoError(t, err)
	require.Len(t, got, 1)
	people := got[0].People()
	require.Len(t, people, 1)
	assert.Equal(t, "PEREZ/JUAN", people[0].Name)
}

func newServer(t *testing.T, status int, reply string) (*httptest.Server, *http.Header) {
	t.Helper()
	seen := &http.Header{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*seen = r.Header.Clone()
		var body map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(reply))
	}))
	t.Cleanup(srv.Close)
	return srv, seen
}

func textReply(text string) string {
	b, _ := json.Marshal(map[string]any{
		"content": []map[string]string{{"type": "text", "text": text}},
	})
	return string(b)
}

func TestClient_Extract(t *testing.T) {
	srv, seen := newServer(t, http.StatusOK, textReply("```json\n[{\"tipo\":\"vuelo\",\"codigo_reserva\":\"ABC123\"}]\n```"))
	c := extract.New(extract.Config{APIKey: "k-test", URL: srv.URL})

	got, err := c.Extract(context.Background(), "Booking ABC123")

	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "ABC123", got[0].String("codigo_reserva"))
	assert.Equal(t, "k-test", seen.Get("x-api-key"))
	assert.Equal(t, "2023-06-01", seen.Get("anthropic-version"))
}

func TestClient_Extract_FailsClosed(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"server error", http.StatusInternalServerError, `{"error":{"type":"api_error","message":"overloaded"}}`},
		{"rate limited", http.StatusTooManyRequests, `{}`},
		{"not json", http.StatusOK, `<html>gateway</html>`},
		{"prose reply", http.StatusOK, textReply("Sorry, I cannot help with that.")},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			srv, _ := newServer(t, tc.status, tc.body)
			c := extract.New(extract.Config{APIKey: "k", URL: srv.URL})

			got, err := c.Extract(context.Background(), "text")

			assert.Error(t, err)
			assert.Empty(t, got)
		})
	}
}

func TestClient_Extract_NoKey(t *testing.T) {
	_, err := extract.New(extract.Config{}).Extract(context.Background(), "text")

	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "API key"))
}
