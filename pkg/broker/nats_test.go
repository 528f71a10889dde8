package broker

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/busca-ativa-api/pkg/config"
)

func TestNewNATSDisabled(t *testing.T) {
	conn, err := NewNATS(config.NATSConfig{}, nil)
	require.NoError(t, err)
	assert.Nil(t, conn)
}

func TestNewNATSUnreachable(t *testing.T) {
	conn, err := NewNATS(config.NATSConfig{URL: "nats://127.0.0.1:1", Name: "test", ReconnectWait: time.Millisecond}, nil)
	assert.Error(t, err)
	assert.Nil(t, conn)
}
