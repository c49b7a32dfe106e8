package app

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quillhq/quill/internal/config"
)

func TestResolveProvider(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"empty falls back to the default", "", config.ProviderGoogleAI},
		{"googleai accepted", config.ProviderGoogleAI, config.ProviderGoogleAI},
		{"gemini is an alias for googleai", config.ProviderGemini, config.ProviderGoogleAI},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := resolveProvider(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	t.Run("unknown provider rejected", func(t *testing.T) {
		_, err := resolveProvider("openai")
		assert.ErrorContains(t, err, "unsupported provider")
	})
}
