package ai

import (
	"context"
	"errors"
	"net/http"
	"testing"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/require"

	apperr "github.com/openparl/hansardsearch/server/internal/errors"
)

func TestProviderRejectsEmptyInput(t *testing.T) {
	p, err := NewProvider(&Config{APIKey: "test", Dim: 8})
	require.NoError(t, err)

	_, err = p.Embed(context.Background(), nil)
	require.True(t, apperr.IsCode(err, apperr.ErrCodeInvalidArgument))

	_, err = p.Embed(context.Background(), []string{"fine", ""})
	require.True(t, apperr.IsCode(err, apperr.ErrCodePermanentService))
}

func TestProviderDimension(t *testing.T) {
	p, err := NewProvider(&Config{APIKey: "test", Dim: 1024})
	require.NoError(t, err)
	require.Equal(t, 1024, p.Dimension())

	p, err = NewProvider(nil)
	require.NoError(t, err)
	require.Equal(t, 768, p.Dimension())
}

func TestClassifyServiceError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code apperr.ErrorCode
	}{
		{"rate limit", &openai.APIError{HTTPStatusCode: http.StatusTooManyRequests}, apperr.ErrCodeTransientService},
		{"server error", &openai.APIError{HTTPStatusCode: http.StatusBadGateway}, apperr.ErrCodeTransientService},
		{"bad request", &openai.APIError{HTTPStatusCode: http.StatusBadRequest}, apperr.ErrCodePermanentService},
		{"unauthorized", &openai.APIError{HTTPStatusCode: http.StatusUnauthorized}, apperr.ErrCodePermanentService},
		{"unknown shape", errors.New("proxy hiccup"), apperr.ErrCodeTransientService},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			classified := classifyServiceError(tt.err)
			require.True(t, apperr.IsCode(classified, tt.code), "got %v", classified)
		})
	}
}

func TestClassifyServiceErrorPassesThroughCancellation(t *testing.T) {
	require.ErrorIs(t, classifyServiceError(context.Canceled), context.Canceled)
	require.ErrorIs(t, classifyServiceError(context.DeadlineExceeded), context.DeadlineExceeded)
}
