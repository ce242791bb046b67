package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("STORE_BACKEND", "memory")
	t.Setenv("TOKEN_TTL", "2h")
	t.Setenv("BCRYPT_COST", "not-a-number")
	t.Setenv("AWS_USE_SECRETS", "")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, StoreMemory, cfg.StoreBackend)
	assert.Equal(t, 2*time.Hour, cfg.TokenTTL)
	assert.Equal(t, 10, cfg.BcryptCost)
	assert.Equal(t, "artcraft", cfg.MongoDBName)
}

func TestLoadConfig_Validation(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"missing secret", map[string]string{"JWT_SECRET": ""}},
		{"bad backend", map[string]string{"JWT_SECRET": "x", "STORE_BACKEND": "postgres"}},
		{"sns without topic", map[string]string{"JWT_SECRET": "x", "EVENT_BUS": "sns", "CHECKOUT_SNS_TOPIC_ARN": ""}},
		{"kafka without brokers", map[string]string{"JWT_SECRET": "x", "EVENT_BUS": "kafka", "KAFKA_BROKERS": ""}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("AWS_USE_SECRETS", "")
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := LoadConfig()
			assert.Error(t, err)
		})
	}
}
