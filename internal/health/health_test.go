package health

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLivenessHandlerAlwaysOK(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()

	LivenessHandler()(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var st Status
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &st))
	assert.True(t, st.OK)
	assert.Equal(t, "ok", st.Message)
	assert.False(t, st.Database)
}

func TestDBHandlerNilPoolIsUnhealthy(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/health/db", nil)
	w := httptest.NewRecorder()

	DBHandler(nil)(w, req)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	var st Status
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &st))
	assert.False(t, st.OK)
	assert.False(t, st.Database)
}

func TestStatusJSONOmitsEmptyFields(t *testing.T) {
	data, err := json.Marshal(Status{OK: true})
	require.NoError(t, err)
	assert.NotContains(t, string(data), "message")
	assert.NotContains(t, string(data), "database")
}
