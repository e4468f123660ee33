package response_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/matsen/bibrename/internal/server/response"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSON(t *testing.T) {
	w := httptest.NewRecorder()
	response.JSON(w, map[string]string{"status": "ok"})

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	data := body["data"].(map[string]any)
	assert.Equal(t, "ok", data["status"])
}

func TestError(t *testing.T) {
	w := httptest.NewRecorder()
	response.Error(w, http.StatusNotFound, response.CodeNotFound, "DOI not found in first two pages", nil)

	assert.Equal(t, http.StatusNotFound, w.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	errObj := body["error"].(map[string]any)
	assert.Equal(t, "NOT_FOUND", errObj["code"])
	assert.Equal(t, "DOI not found in first two pages", errObj["message"])
	_, hasDetails := errObj["details"]
	assert.False(t, hasDetails)
}

func TestErrorWithDetails(t *testing.T) {
	w := httptest.NewRecorder()
	response.Error(w, http.StatusRequestEntityTooLarge, response.CodeTooLarge, "too large",
		map[string]int64{"limit_bytes": 20 << 20})

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	details := body["error"].(map[string]any)["details"].(map[string]any)
	assert.Equal(t, float64(20<<20), details["limit_bytes"])
}
