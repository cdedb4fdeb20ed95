package common_test

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/quote-editor/internal/common"
)

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.9:4242"
	require.Equal(t, "192.0.2.9", common.ClientIP(req))

	req.Header.Set("X-Real-IP", "not-an-ip")
	require.Equal(t, "192.0.2.9", common.ClientIP(req))

	req.Header.Set("X-Real-IP", "198.51.100.4")
	require.Equal(t, "198.51.100.4", common.ClientIP(req))

	req.Header.Set("X-Forwarded-For", " 203.0.113.7 , 10.0.0.1")
	require.Equal(t, "203.0.113.7", common.ClientIP(req))
}

func TestQueryInt(t *testing.T) {
	q := url.Values{"limit": {" 12 "}, "bad": {"x"}}
	require.Equal(t, 12, common.QueryInt(q, "limit", 10))
	require.Equal(t, 10, common.QueryInt(q, "bad", 10))
	require.Equal(t, 10, common.QueryInt(q, "missing", 10))
}

func TestWriteAppError(t *testing.T) {
	rr := httptest.NewRecorder()
	require.False(t, common.WriteAppError(rr, errors.New("plain")))

	cause := errors.New("unexpected EOF")
	err := common.BadRequest("invalid payload", cause).WithDetails(map[string]string{"field": "pax"})
	require.ErrorIs(t, err, cause)
	require.True(t, common.WriteAppError(rr, err))
	require.Equal(t, http.StatusBadRequest, rr.Code)

	var body struct {
		Error common.ErrorBody `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	require.Equal(t, "BAD_REQUEST", body.Error.Code)
	require.Equal(t, "invalid payload", body.Error.Message)
}

func TestJSONKeepsMarkup(t *testing.T) {
	rr := httptest.NewRecorder()
	common.JSON(rr, http.StatusOK, map[string]string{"title": "Fjords & <Glaciers>"})
	require.Contains(t, rr.Body.String(), "Fjords & <Glaciers>")
	require.Equal(t, "application/json; charset=utf-8", rr.Header().Get("Content-Type"))
}
