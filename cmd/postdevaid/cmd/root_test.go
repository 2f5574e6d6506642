package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewRootCmd_RegistersSubcommands(t *testing.T) {
	root := NewRootCmd()

	names := map[string]bool{}
	for _, c := range root.Commands() {
		names[c.Name()] = true
	}

	assert.True(t, names["serve"])
	assert.True(t, names["status"])
	assert.True(t, names["dashboard"])
	assert.True(t, names["version"])
}

func TestNewRootCmd_Use(t *testing.T) {
	assert.Equal(t, "postdevaid", NewRootCmd().Use)
}
