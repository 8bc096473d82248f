package common

import (
	"bytes"
	"strings"
	"testing"

	"github.com/lni/dragonboat/v4/logger"
)

func TestParseBackend(t *testing.T) {
	for in, want := range map[string]Backend{
		"memory":    BackendMemory,
		" Bolt ":    BackendBolt,
		"datastore": BackendDatastore,
		"DYNAMODB":  BackendDynamoDB,
		"remote":    BackendRemote,
	} {
		got, err := ParseBackend(in)
		if err != nil {
			t.Errorf("ParseBackend(%q) failed: %v", in, err)
		}
		if got != want {
			t.Errorf("ParseBackend(%q) = %q, want %q", in, got, want)
		}
	}
	if _, err := ParseBackend("redis"); err == nil {
		t.Error("expected error for unknown backend")
	}
}

func TestParseLogLevel(t *testing.T) {
	if lvl, err := ParseLogLevel("warn"); err != nil || lvl != logger.WARNING {
		t.Errorf("ParseLogLevel(warn) = %v, %v", lvl, err)
	}
	if _, err := ParseLogLevel("verbose"); err == nil {
		t.Error("expected error for unknown level")
	}
}

func TestLoggerFormatAndLevel(t *testing.T) {
	var buf bytes.Buffer
	old := output
	output = &buf
	defer func() { output = old }()

	l := CreateLogger("records")
	l.SetLevel(logger.WARNING)
	l.Infof("hidden %d", 1)
	l.Warningf("shown %d", 2)

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("info message logged at warning level: %q", out)
	}
	if !strings.Contains(out, "WARN  | records    | shown 2") {
		t.Errorf("unexpected log line: %q", out)
	}
}

func TestClientConfigString(t *testing.T) {
	c := ClientConfig{
		Backend:       BackendDynamoDB,
		Kind:          "Book",
		TimeoutSecond: 5,
		DynamoDB:      DynamoDBConf{Table: "records"},
		LogLevel:      "info",
	}
	s := c.String()
	for _, want := range []string{"DYNAMODB", "records", "(default)", "Book", "5 sec"} {
		if !strings.Contains(s, want) {
			t.Errorf("config string misses %q:\n%s", want, s)
		}
	}
	if strings.Contains(s, "BOLT") {
		t.Errorf("config string shows unused backend section:\n%s", s)
	}
}
