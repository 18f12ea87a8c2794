package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockLLMService_Defaults(t *testing.T) {
	mock := NewMockLLMService()
	ctx := context.Background()

	require.NoError(t, mock.InitModel(ctx, "any"))

	out, err := mock.Generate(ctx, testRequest())
	require.NoError(t, err)
	assert.Equal(t, mockNarration, out)

	assert.Equal(t, []string{"any"}, mock.InitModelCalls)
	assert.Equal(t, 1, mock.CallCount())
	assert.Equal(t, "> look around", mock.GenerateCalls[0].Context)
}

func TestMockLLMService_ScriptedResponses(t *testing.T) {
	mock := NewMockLLMService()
	mock.GenerateFunc = func(ctx context.Context, req Request) (string, error) {
		return "Scripted narration.", nil
	}
	mock.InitModelFunc = func(ctx context.Context, modelName string) error {
		return errors.New("init refused")
	}

	out, err := mock.Generate(context.Background(), testRequest())
	require.NoError(t, err)
	assert.Equal(t, "Scripted narration.", out)

	assert.Error(t, mock.InitModel(context.Background(), "any"))
}
