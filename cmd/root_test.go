package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand_HasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}

	for _, name := range []string{"process", "serve", "worker", "enqueue", "migrate"} {
		assert.True(t, names[name], "expected subcommand %q not found", name)
	}
}

func TestRootCommand_Metadata(t *testing.T) {
	assert.Equal(t, "check-cli", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)
}

func TestProcessCommand_Flags(t *testing.T) {
	tenant := processCmd.Flags().Lookup("tenant")
	require.NotNil(t, tenant)
	assert.Equal(t, "default", tenant.DefValue)
	require.NotNil(t, processCmd.Flags().Lookup("check"))
}

func TestEnqueueCommand_Flags(t *testing.T) {
	require.NotNil(t, enqueueCmd.Flags().Lookup("image"))
	require.NotNil(t, enqueueCmd.Flags().Lookup("tenant"))
}

func TestNewCheck(t *testing.T) {
	c := newCheck("acme", "/scans/Check-001.JPG")
	assert.Equal(t, "acme", c.TenantID)
	assert.Equal(t, "/scans/Check-001.JPG", c.FileURL)
	assert.Equal(t, "jpg", c.FileType)
	assert.Equal(t, "uploaded", string(c.Status))
}
