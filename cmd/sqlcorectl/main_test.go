package main

import "testing"

func TestNewRootCmd_RegistersAllSubcommands(t *testing.T) {
	// Arrange
	root := newRootCmd()

	// Act
	names := map[string]bool{}
	for _, c := range root.Commands() {
		names[c.Name()] = true
	}

	// Assert
	for _, want := range []string{"history", "audit", "breaker", "validate", "version"} {
		if !names[want] {
			t.Fatalf("expected subcommand %q to be registered, got %v", want, names)
		}
	}
}
