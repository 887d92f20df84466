package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContextAccessors(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, Verb(ctx))
	assert.Empty(t, Ring(ctx))
	assert.Empty(t, KeyName(ctx))

	ctx = WithVerb(ctx, "get")
	ctx = WithRing(ctx, "login")
	ctx = WithKeyName(ctx, "mail")

	assert.Equal(t, "get", Verb(ctx))
	assert.Equal(t, "login", Ring(ctx))
	assert.Equal(t, "mail", KeyName(ctx))
}

func TestCorrelationHandler_InjectsAttrs(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewCorrelationHandler(slog.NewJSONHandler(&buf, nil)))

	ctx := WithKeyName(WithRing(WithVerb(context.Background(), "get"), "login"), "mail")
	logger.InfoContext(ctx, "resolved entry")

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "get", record["verb"])
	assert.Equal(t, "login", record["ring"])
	assert.Equal(t, "mail", record["key"])
}

func TestCorrelationHandler_SkipsEmptyValues(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewCorrelationHandler(slog.NewJSONHandler(&buf, nil)))

	logger.InfoContext(context.Background(), "no correlation")

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.NotContains(t, record, "verb")
	assert.NotContains(t, record, "ring")
	assert.NotContains(t, record, "key")
}
