package httputil

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/NandhanI20020/IMS-sub000/pkg/actor"
	"github.com/NandhanI20020/IMS-sub000/pkg/errors"
	"github.com/NandhanI20020/IMS-sub000/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeResponse(t *testing.T, rec *httptest.ResponseRecorder) Response {
	t.Helper()
	var resp Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestError_AppError(t *testing.T) {
	rec := httptest.NewRecorder()
	Error(rec, errors.InsufficientAvailable(3, 5))

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	resp := decodeResponse(t, rec)
	assert.False(t, resp.Success)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "INSUFFICIENT_AVAILABLE", resp.Error.Code)
}

func TestError_ContextAndUnknown(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"deadline", context.DeadlineExceeded, http.StatusGatewayTimeout, "TIMEOUT"},
		{"cancelled", context.Canceled, http.StatusServiceUnavailable, "REQUEST_CANCELLED"},
		{"plain", assert.AnError, http.StatusInternalServerError, "INTERNAL_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			Error(rec, tt.err)
			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.code, decodeResponse(t, rec).Error.Code)
		})
	}
}

type quantityRequest struct {
	ProductID string `json:"product_id" validate:"required"`
	Quantity  int64  `json:"quantity" validate:"gt=0"`
}

func TestDecodeAndValidate(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"product_id":"p1","quantity":2}`))
		var req quantityRequest
		require.NoError(t, DecodeAndValidate(r, &req))
		assert.Equal(t, int64(2), req.Quantity)
	})

	t.Run("unknown field", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"product_id":"p1","quantity":2,"extra":1}`))
		var req quantityRequest
		err := DecodeAndValidate(r, &req)
		assert.Equal(t, "INPUT_ERROR", errors.Code(err))
	})

	t.Run("validation", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"quantity":0}`))
		var req quantityRequest
		err := DecodeAndValidate(r, &req)
		require.Error(t, err)

		var appErr *errors.AppError
		require.True(t, errors.As(err, &appErr))
		assert.Equal(t, "VALIDATION_ERROR", appErr.Code)
		assert.Contains(t, appErr.Details, "ProductID")
		assert.Contains(t, appErr.Details, "Quantity")
	})
}

func TestActorHeaders(t *testing.T) {
	var got *actor.Actor
	var userID, email, role string
	h := ActorHeaders(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = actor.FromContext(r.Context())
		userID = GetUserID(r.Context())
		email = GetUserEmail(r.Context())
		role = GetUserRole(r.Context())
	}))

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set(HeaderUserID, "u1")
	r.Header.Set(HeaderUserEmail, "ops@ims.test")
	r.Header.Set(HeaderUserRole, actor.RoleManager)
	r.Header.Set(HeaderWarehouseID, "wh-1")
	h.ServeHTTP(httptest.NewRecorder(), r)

	require.NotNil(t, got)
	assert.Equal(t, "u1", got.ID)
	assert.Equal(t, "wh-1", got.WarehouseID)
	assert.Equal(t, "u1", userID)
	assert.Equal(t, "ops@ims.test", email)
	assert.Equal(t, actor.RoleManager, role)

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	assert.True(t, got.IsSystem())
}

func TestRecoverer(t *testing.T) {
	var buf bytes.Buffer
	h := Recoverer(logger.NewWithWriter("test", &buf))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry), buf.String())
	assert.Equal(t, "panic: boom", entry["error"])
	assert.Equal(t, "error", entry["level"])
}

func TestLogger_RequestAndUserFields(t *testing.T) {
	var buf bytes.Buffer
	chain := RequestID(Logger(logger.NewWithWriter("test", &buf))(ActorHeaders(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNoContent)
		}),
	)))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/inventory/stock/update", nil)
	req.Header.Set("X-Request-ID", "req-1")
	req.Header.Set(HeaderUserID, "u1")
	chain.ServeHTTP(httptest.NewRecorder(), req)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry), buf.String())
	assert.Equal(t, "req-1", entry["request_id"])
	assert.Equal(t, "u1", entry["user_id"])
	assert.EqualValues(t, http.StatusNoContent, entry["status"])
}

func TestRateLimit(t *testing.T) {
	_, err := RateLimit("lots")
	require.Error(t, err)

	mw, err := RateLimit("2-M")
	require.NoError(t, err)
	h := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		NoContent(w)
	}))

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		codes = append(codes, rec.Code)
	}
	assert.Equal(t, []int{http.StatusNoContent, http.StatusNoContent, http.StatusTooManyRequests}, codes)
}
