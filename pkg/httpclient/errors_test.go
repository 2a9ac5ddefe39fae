package httpclient

import (
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	apperrors "github.com/karyatek/storefront/pkg/errors"
)

func respWithBody(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(strings.NewReader(body)),
	}
}

func TestParseResponseError_StructuredBody(t *testing.T) {
	resp := respWithBody(http.StatusNotFound, `{"error":{"code":"NOT_FOUND","message":"no such user"}}`)

	err := ParseResponseError(resp, "identity-provider")

	assert.True(t, errors.Is(err, apperrors.ErrNotFound))
	assert.Contains(t, err.Error(), "no such user")
}

func TestParseResponseError_UnauthorizedMapsToSentinel(t *testing.T) {
	resp := respWithBody(http.StatusUnauthorized, `{"error":{"code":"INVALID_TOKEN","message":"token expired"}}`)

	err := ParseResponseError(resp, "identity-provider")

	assert.True(t, errors.Is(err, apperrors.ErrUnauthorized))
}

func TestParseResponseError_UnstructuredBody(t *testing.T) {
	resp := respWithBody(http.StatusBadGateway, "upstream exploded")

	err := ParseResponseError(resp, "media-cdn")

	assert.Contains(t, err.Error(), "media-cdn")
	assert.Contains(t, err.Error(), "502")
	assert.Contains(t, err.Error(), "upstream exploded")
}

func TestIsClientError(t *testing.T) {
	assert.True(t, IsClientError(http.StatusBadRequest))
	assert.True(t, IsClientError(http.StatusUnprocessableEntity))
	assert.False(t, IsClientError(http.StatusOK))
	assert.False(t, IsClientError(http.StatusInternalServerError))
}
