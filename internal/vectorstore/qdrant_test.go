package vectorstore_test

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	grpccodes "google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/fyrsmithlabs/steward/internal/vectorstore"
)

func TestValidateCollectionName(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		wantError bool
	}{
		{"valid simple", "steward_rules", false},
		{"valid with numbers", "rules_v2", false},
		{"empty", "", true},
		{"uppercase", "Steward_Rules", true},
		{"path traversal", "../etc/passwd", true},
		{"spaces", "steward rules", true},
		{"too long", "a123456789a123456789a123456789a123456789a123456789a123456789a1234", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := vectorstore.ValidateCollectionName(tt.input)
			if tt.wantError {
				assert.ErrorIs(t, err, vectorstore.ErrInvalidCollectionName)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestIsTransientError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"unavailable", status.Error(grpccodes.Unavailable, "down"), true},
		{"deadline", status.Error(grpccodes.DeadlineExceeded, "slow"), true},
		{"resource exhausted", status.Error(grpccodes.ResourceExhausted, "throttled"), true},
		{"aborted", status.Error(grpccodes.Aborted, "conflict"), true},
		{"not found", status.Error(grpccodes.NotFound, "missing"), false},
		{"invalid argument", status.Error(grpccodes.InvalidArgument, "bad"), false},
		{"unauthenticated", status.Error(grpccodes.Unauthenticated, "denied"), false},
		{"plain error", errors.New("boom"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, vectorstore.IsTransientError(tt.err))
		})
	}
}

func TestQdrantConfig_Validate(t *testing.T) {
	valid := vectorstore.QdrantConfig{
		Host:           "localhost",
		Port:           6334,
		CollectionName: "steward_memories",
		VectorSize:     384,
	}
	assert.NoError(t, valid.Validate())

	noHost := valid
	noHost.Host = ""
	assert.ErrorIs(t, noHost.Validate(), vectorstore.ErrInvalidConfig)

	badPort := valid
	badPort.Port = 70000
	assert.ErrorIs(t, badPort.Validate(), vectorstore.ErrInvalidConfig)

	noCollection := valid
	noCollection.CollectionName = ""
	assert.ErrorIs(t, noCollection.Validate(), vectorstore.ErrInvalidConfig)

	noSize := valid
	noSize.VectorSize = 0
	assert.ErrorIs(t, noSize.Validate(), vectorstore.ErrInvalidConfig)
}

func TestQdrantConfig_ApplyDefaults(t *testing.T) {
	config := vectorstore.QdrantConfig{}
	config.ApplyDefaults()

	assert.Equal(t, 3, config.MaxRetries)
	assert.Equal(t, time.Second, config.RetryBackoff)
	assert.Equal(t, 50*1024*1024, config.MaxMessageSize)
	assert.Equal(t, 5, config.CircuitBreakerThreshold)
	assert.NotNil(t, config.Isolation)
	assert.Equal(t, "payload", config.Isolation.Mode())
}
