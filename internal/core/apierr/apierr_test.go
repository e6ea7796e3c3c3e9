package apierr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromKeepsTaggedError(t *testing.T) {
	base := New(http.StatusTooManyRequests, CodeQuotaExceeded, errors.New("daily limit")).WithStage("quota")
	wrapped := fmt.Errorf("ask: %w", base)

	got := From(wrapped)
	require.NotNil(t, got)
	assert.Equal(t, http.StatusTooManyRequests, got.Status)
	assert.Equal(t, "quota", got.Stage)
	assert.Equal(t, "daily limit", got.Error())
}

func TestFromDefaultsToInternal(t *testing.T) {
	got := From(errors.New("boom"))
	assert.Equal(t, http.StatusInternalServerError, got.Status)
	assert.Equal(t, CodeInternal, got.Code)
	assert.Nil(t, From(nil))
}

func TestWithStageDoesNotMutate(t *testing.T) {
	base := New(http.StatusBadGateway, CodeModelFailed, nil)
	tagged := base.WithStage("model").WithDetail("status 503")
	assert.Empty(t, base.Stage)
	assert.Equal(t, "model", tagged.Stage)
	assert.Equal(t, "status 503", tagged.Detail)
	assert.Equal(t, CodeModelFailed, tagged.Error())
}
