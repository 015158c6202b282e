package apperr

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected Kind
	}{
		{"nil", nil, ""},
		{"typed", New(KindNotFound, "job not found"), KindNotFound},
		{"wrapped typed", fmt.Errorf("lookup: %w", New(KindTooLarge, "big")), KindTooLarge},
		{"deadline", fmt.Errorf("run: %w", context.DeadlineExceeded), KindTimeout},
		{"plain", errors.New("boom"), KindInternal},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			assert.Equal(t, test.expected, KindOf(test.err))
		})
	}
}

func TestSentinelMatching(t *testing.T) {
	err := fmt.Errorf("get status: %w", New(KindNotFound, "download not found"))

	assert.ErrorIs(t, err, ErrNotFound)
	assert.NotErrorIs(t, err, ErrNotReady)
	assert.NotErrorIs(t, New(KindNotFound, "a"), New(KindNotFound, "b"))
}

func TestWrapKeepsCause(t *testing.T) {
	cause := errors.New("exit status 1")
	err := Wrap(KindExtraction, "Unsupported URL", cause)

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "Unsupported URL: exit status 1", err.Error())
	assert.Equal(t, "Unsupported URL", Message(err))
	assert.Equal(t, "boom", Message(errors.New("boom")))
}

func TestHTTPStatus(t *testing.T) {
	tests := map[Kind]int{
		KindInvalidURL:   http.StatusBadRequest,
		KindExtraction:   http.StatusBadRequest,
		KindNotFound:     http.StatusNotFound,
		KindNotReady:     http.StatusConflict,
		KindTimeout:      http.StatusRequestTimeout,
		KindTooLarge:     http.StatusRequestEntityTooLarge,
		KindBusy:         http.StatusServiceUnavailable,
		KindUnauthorized: http.StatusUnauthorized,
		KindInternal:     http.StatusInternalServerError,
	}

	for kind, status := range tests {
		assert.Equal(t, status, HTTPStatus(kind), "kind %s", kind)
	}
}
