package core

import (
	"testing"
)

func TestCommandRegistry(t *testing.T) {
	registry := NewCommandRegistry()

	// Register a command
	var called bool
	handler := func(data *[]byte) error {
		called = true
		return nil
	}

	id := registry.Register("test_command", "arg=%u", handler)

	if id != 0 {
		t.Errorf("Expected first command to have ID 0, got %d", id)
	}

	cmd, ok := registry.GetCommand(id)
	if !ok {
		t.Fatal("Failed to retrieve registered command")
	}

	if cmd.Name != "test_command" {
		t.Errorf("Expected command name 'test_command', got '%s'", cmd.Name)
	}

	var data []byte
	if err := registry.Dispatch(id, &data); err != nil {
		t.Errorf("Dispatch failed: %v", err)
	}

	if !called {
		t.Error("Command handler was not called")
	}

	// Unknown command
	if err := registry.Dispatch(999, &data); err == nil {
		t.Error("Expected error for unknown command ID")
	}
}

func TestCommandRegistryMultiple(t *testing.T) {
	registry := NewCommandRegistry()

	id1 := registry.Register("command1", "arg1=%u", func(data *[]byte) error { return nil })
	id2 := registry.Register("command2", "arg2=%u", func(data *[]byte) error { return nil })
	id3 := registry.Register("command3", "arg3=%u", func(data *[]byte) error { return nil })

	if id1 != 0 || id2 != 1 || id3 != 2 {
		t.Errorf("Command IDs not sequential: %d, %d, %d", id1, id2, id3)
	}

	for i := uint16(0); i < 3; i++ {
		if _, ok := registry.GetCommand(i); !ok {
			t.Errorf("Command %d not found", i)
		}
	}

	if registry.Count() != 3 {
		t.Errorf("Expected 3 commands, got %d", registry.Count())
	}
}

func TestCommandRegistryDuplicateName(t *testing.T) {
	registry := NewCommandRegistry()

	first := registry.Register("set_motor", "index=%c value=%hu", func(data *[]byte) error { return nil })
	again := registry.Register("set_motor", "", nil)

	if first != again {
		t.Errorf("Re-registering returned ID %d, expected %d", again, first)
	}

	cmd, ok := registry.GetCommandByName("set_motor")
	if !ok {
		t.Fatal("Command not found by name")
	}
	if cmd.Format != "index=%c value=%hu" {
		t.Errorf("Original format replaced: %q", cmd.Format)
	}

	if _, ok := registry.GetCommandByName("missing"); ok {
		t.Error("Unexpected command found by name")
	}
}

func TestCommandRegistryNilHandler(t *testing.T) {
	registry := NewCommandRegistry()
	id := registry.Register("placeholder", "", nil)

	var data []byte
	if err := registry.Dispatch(id, &data); err == nil {
		t.Error("Expected error dispatching a command without a handler")
	}
}
