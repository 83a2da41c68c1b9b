package main

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommandsRegistered(t *testing.T) {
	root := newRootCmd()

	names := map[string]bool{}
	for _, cmd := range root.Commands() {
		names[cmd.Name()] = true
	}
	assert.True(t, names["serve"])
	assert.True(t, names["version"])

	for _, flag := range []string{"config", "log-level"} {
		assert.NotNil(t, root.PersistentFlags().Lookup(flag), flag)
	}
}

func TestVersionCommand(t *testing.T) {
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"version"})

	require.NoError(t, root.Execute())
	assert.Equal(t, "streamrelay dev\n", out.String())
}

func TestServeRejectsInvalidConfig(t *testing.T) {
	t.Setenv("CONNECTION_STRING", "")
	t.Setenv("NAME", "")
	t.Setenv("STREAMRELAY_PUBSUB_SYSTEM", "channel")
	t.Setenv("STREAMRELAY_TOPIC", "")

	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs([]string{"serve"})

	err := root.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "topic: required")
}

func TestServeRunsUntilCancelled(t *testing.T) {
	t.Setenv("CONNECTION_STRING", "")
	t.Setenv("NAME", "quotes")
	t.Setenv("STREAMRELAY_PUBSUB_SYSTEM", "channel")
	t.Setenv("STREAMRELAY_LISTEN_ADDRESS", "127.0.0.1:0")
	t.Setenv("STREAMRELAY_METRICS_ENABLED", "false")

	root := newRootCmd()
	var out syncBuffer
	root.SetOut(&out)
	root.SetArgs([]string{"serve", "--log-level", "debug"})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- root.ExecuteContext(ctx) }()

	require.Eventually(t, func() bool {
		return strings.Contains(out.String(), "Serving subscribers")
	}, 5*time.Second, 10*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("serve did not stop")
	}
	assert.Contains(t, out.String(), `"service":"streamrelay"`)
}
