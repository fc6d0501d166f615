package main

import (
	"context"
	"errors"
	"testing"

	"room-monitor/internal/config"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestStartService_ConfigErrorRunsDegraded(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)

	s := startService(context.Background(), nil, errors.New(`invalid MQTT_QOS 5`), zap.New(core))

	assert.Nil(t, s)
	entries := logs.FilterMessage("Failed to load config, running degraded").All()
	assert.Len(t, entries, 1)
}

func TestStartService_ConstructionErrorRunsDegraded(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)

	cfg := &config.Config{}
	cfg.Redis.Enabled = true
	cfg.Redis.Addr = "127.0.0.1:1"

	s := startService(context.Background(), cfg, nil, zap.New(core))

	assert.Nil(t, s)
	assert.Equal(t, 1, logs.FilterMessage("Failed to create room monitor service, running degraded").Len())
}
