package common

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeResponse(t *testing.T) {
	var out struct {
		ID string `json:"id"`
	}
	meta, err := DecodeResponse([]byte(`{"success":true,"data":{"id":"t1"},"meta":{"page":2,"total":41}}`), &out)
	require.NoError(t, err)
	assert.Equal(t, "t1", out.ID)
	require.NotNil(t, meta)
	assert.Equal(t, 2, meta.Page)
	assert.Equal(t, int64(41), meta.Total)
}

func TestDecodeResponse_EmptyAndNull(t *testing.T) {
	var out map[string]string
	_, err := DecodeResponse(nil, &out)
	assert.NoError(t, err)

	_, err = DecodeResponse([]byte(`{"success":true,"data":null}`), &out)
	assert.NoError(t, err)
	assert.Nil(t, out)

	_, err = DecodeResponse([]byte(`{"success":true,"data":{"a":"b"}}`), nil)
	assert.NoError(t, err)
}

func TestDecodeResponse_Failure(t *testing.T) {
	_, err := DecodeResponse([]byte(`{"success":false,"error":{"code":404,"error_code":"TICKET_NOT_FOUND","message":"ticket not found"}}`), nil)
	require.Error(t, err)

	var appErr *AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, "TICKET_NOT_FOUND", appErr.ErrorCode)
	assert.Equal(t, http.StatusNotFound, appErr.HTTPStatus())
	assert.Equal(t, "ticket not found", appErr.Error())
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestDecodeResponse_Malformed(t *testing.T) {
	_, err := DecodeResponse([]byte(`<html>`), nil)
	assert.Error(t, err)

	var out struct{ ID int }
	_, err = DecodeResponse([]byte(`{"success":true,"data":{"ID":"x"}}`), &out)
	assert.Error(t, err)
}

func TestDecodeErrorBody(t *testing.T) {
	appErr, ok := DecodeErrorBody([]byte(`{"success":false,"error":{"code":409,"message":"ticket already closed"}}`))
	require.True(t, ok)
	assert.True(t, errors.Is(appErr, ErrConflict))

	_, ok = DecodeErrorBody([]byte(`upstream timeout`))
	assert.False(t, ok)
}

func TestSentinelForStatus(t *testing.T) {
	assert.Equal(t, ErrValidation, SentinelForStatus(http.StatusUnprocessableEntity))
	assert.Equal(t, ErrRateLimited, SentinelForStatus(http.StatusTooManyRequests))
	assert.Equal(t, ErrInternalServer, SentinelForStatus(http.StatusBadGateway))
	assert.Nil(t, SentinelForStatus(http.StatusTeapot))
}
