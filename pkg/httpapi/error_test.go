package httpapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteError(t *testing.T) {
	rec := httptest.NewRecorder()
	require.NoError(t, WriteError(rec, http.StatusConflict, "req-1", "ASPTT_NO_BATCH", "nothing to roll back"))

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "application/json")
	var env ErrorEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	assert.Equal(t, "ASPTT_NO_BATCH", env.Code)
	assert.Equal(t, "req-1", env.Meta["request_id"])
}

func TestDecodeJSON(t *testing.T) {
	type body struct {
		ClubID int64 `json:"club_id"`
	}

	var b body
	require.NoError(t, DecodeJSON(strings.NewReader(`{"club_id": 7}`), &b))
	assert.Equal(t, int64(7), b.ClubID)

	var empty body
	require.NoError(t, DecodeJSON(strings.NewReader(""), &empty))
	assert.Zero(t, empty.ClubID)

	assert.Error(t, DecodeJSON(strings.NewReader(`{"club": 7}`), &b))
	assert.Error(t, DecodeJSON(strings.NewReader(`{"club_id": 7} {}`), &b))
}
