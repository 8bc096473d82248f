package common

import (
	"fmt"
	"strings"
)

// --------------------------------------------------------------------------
// Backend selection
// --------------------------------------------------------------------------

type Backend string

const (
	BackendMemory    Backend = "memory"
	BackendBolt      Backend = "bolt"
	BackendDatastore Backend = "datastore"
	BackendDynamoDB  Backend = "dynamodb"
	BackendRemote    Backend = "remote"
)

// ParseBackend validates a backend name from the command line.
func ParseBackend(s string) (Backend, error) {
	switch b := Backend(strings.ToLower(strings.TrimSpace(s))); b {
	case BackendMemory, BackendBolt, BackendDatastore, BackendDynamoDB, BackendRemote:
		return b, nil
	default:
		return "", fmt.Errorf("invalid backend %q (expected one of: memory, bolt, datastore, dynamodb, remote)", s)
	}
}

// --------------------------------------------------------------------------
// Client configuration struct
// --------------------------------------------------------------------------

type BoltConf struct {
	Path           string
	LockTimeoutSec int
}

type CloudDatastoreConf struct {
	ProjectID string
}

type DynamoDBConf struct {
	Table          string
	Region         string
	Endpoint       string
	ConsistentRead bool
}

// RemoteConf points to other recstore servers
type RemoteConf struct {
	Endpoints  []string
	RetryCount int
}

// ClientConfig holds everything needed to open a datastore client.
type ClientConfig struct {
	Backend       Backend
	Kind          string
	TimeoutSecond int

	// Backend specific settings, only the one matching Backend is used
	Bolt      BoltConf
	Datastore CloudDatastoreConf
	DynamoDB  DynamoDBConf
	Remote    RemoteConf

	// Logging configuration
	LogLevel string
}

// String returns a formatted string representation of the client configuration
func (c *ClientConfig) String() string {
	var sb strings.Builder

	// Create helper functions for consistent formatting
	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}

	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}

	addSection("Client Configuration")
	addField("Backend", string(c.Backend))
	addField("Kind", c.Kind)
	addField("Timeout", fmt.Sprintf("%d sec", c.TimeoutSecond))

	switch c.Backend {
	case BackendBolt:
		addSection("Bolt")
		addField("Path", c.Bolt.Path)
		addField("Lock Timeout", fmt.Sprintf("%d sec", c.Bolt.LockTimeoutSec))
	case BackendDatastore:
		addSection("Cloud Datastore")
		addField("Project", c.Datastore.ProjectID)
	case BackendDynamoDB:
		addSection("DynamoDB")
		addField("Table", c.DynamoDB.Table)
		addField("Region", orDefault(c.DynamoDB.Region))
		addField("Endpoint", orDefault(c.DynamoDB.Endpoint))
		addField("Consistent Read", fmt.Sprintf("%t", c.DynamoDB.ConsistentRead))
	case BackendRemote:
		addSection("Remote")
		addField("Endpoints", strings.Join(c.Remote.Endpoints, ", "))
		addField("Retries", fmt.Sprintf("%d", c.Remote.RetryCount))
	}

	addSection("Logging")
	addField("Log Level", c.LogLevel)

	return sb.String()
}

// --------------------------------------------------------------------------
// Server configuration struct
// --------------------------------------------------------------------------

// ServerConfig configures the HTTP server in front of the record operations.
type ServerConfig struct {
	// HTTP api settings
	Endpoint string

	// Whether to expose /metrics
	Metrics bool

	// The datastore the server talks to (Kind is taken from the request path)
	Client ClientConfig
}

// String returns a formatted string representation of the configuration
func (c *ServerConfig) String() string {
	var sb strings.Builder

	sb.WriteString("\nHTTP SERVER\n")
	sb.WriteString(fmt.Sprintf("  %-22s: %s\n", "Endpoint", c.Endpoint))
	sb.WriteString(fmt.Sprintf("  %-22s: %t\n", "Metrics", c.Metrics))
	sb.WriteString(c.Client.String())

	return sb.String()
}

func orDefault(s string) string {
	if s == "" {
		return "(default)"
	}
	return s
}
