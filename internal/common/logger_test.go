package common

import "testing"

func TestGetLoggerReturnsSingleton(t *testing.T) {
	first := GetLogger()
	if first == nil {
		t.Fatal("Expected a logger instance")
	}
	if second := GetLogger(); second != first {
		t.Error("Expected the same logger instance on repeat calls")
	}
}

func TestInitLogger(t *testing.T) {
	config := DefaultConfig()
	config.Logging.Level = "debug"

	logger := InitLogger(config)
	if logger == nil {
		t.Fatal("Expected a configured logger")
	}

	// InitLogger replaces the global instance
	if GetLogger() != logger {
		t.Error("Expected the global logger to be replaced")
	}
}
