package util

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ValentinKolb/recstore/lib/common"
	"github.com/ValentinKolb/recstore/lib/datastore"
	"github.com/ValentinKolb/recstore/lib/records"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	// Wrap is the number of characters to Wrap the help text at
	Wrap int = 50
)

// WrapString wraps a string at Wrap characters
func WrapString(text string) string {
	var wrappedLines []string
	var currentLine strings.Builder
	lineWidth := 0

	for _, word := range strings.Fields(text) {
		wordWidth := len(word)

		// Check if we need to wrap
		if lineWidth > 0 && lineWidth+1+wordWidth > Wrap {
			wrappedLines = append(wrappedLines, currentLine.String())
			currentLine.Reset()
			lineWidth = 0
		}

		// Add space before word (if not first word on line)
		if lineWidth > 0 {
			currentLine.WriteString(" ")
			lineWidth++
		}

		currentLine.WriteString(word)
		lineWidth += wordWidth
	}

	if currentLine.Len() > 0 {
		wrappedLines = append(wrappedLines, currentLine.String())
	}

	return strings.Join(wrappedLines, "\n")
}

// SetupClientFlags adds the datastore selection flags to a command
func SetupClientFlags(cmd *cobra.Command) {
	key := "backend"
	cmd.PersistentFlags().String(key, "memory", WrapString("The datastore backend to use (memory, bolt, datastore, dynamodb, remote)"))

	key = "kind"
	cmd.PersistentFlags().String(key, "Record", WrapString("The kind of the records to work on"))

	key = "timeout"
	cmd.PersistentFlags().Int(key, 10, WrapString("The timeout in seconds of a single datastore request"))

	key = "bolt-path"
	cmd.PersistentFlags().String(key, "records.db", WrapString("(bolt) Path of the database file, created if missing"))

	key = "bolt-lock-timeout"
	cmd.PersistentFlags().Int(key, 1, WrapString("(bolt) How long to wait for the file lock in seconds"))

	key = "project"
	cmd.PersistentFlags().String(key, "", WrapString("(datastore) The Google Cloud project id"))

	key = "dynamo-table"
	cmd.PersistentFlags().String(key, "records", WrapString("(dynamodb) Name of the table (partition key 'kind' (S), sort key 'id' (N))"))

	key = "dynamo-region"
	cmd.PersistentFlags().String(key, "", WrapString("(dynamodb) AWS region, defaults to the region of the AWS environment"))

	key = "dynamo-endpoint"
	cmd.PersistentFlags().String(key, "", WrapString("(dynamodb) Custom endpoint, e.g. http://localhost:8000 for DynamoDB local"))

	key = "dynamo-consistent-read"
	cmd.PersistentFlags().Bool(key, false, WrapString("(dynamodb) Use strongly consistent reads"))

	key = "remote-endpoints"
	cmd.PersistentFlags().String(key, "http://localhost:8080", WrapString("(remote) Base URLs of recstore servers. Multiple endpoints can be specified as a comma-separated list, requests are distributed round-robin"))

	key = "remote-retries"
	cmd.PersistentFlags().Int(key, 3, WrapString("(remote) How many times to send a request before giving up"))

	key = "log-level"
	cmd.PersistentFlags().String(key, "warn", WrapString("LogLevel is the level at which logs will be output (debug, info, warn, error)"))
}

// InitClientConfig initializes configuration from environment variables
func InitClientConfig() {
	// load env files
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	// initialize viper
	viper.SetEnvPrefix("recstore")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv() // read in environment variables that match
}

// GetClientConfig reads client configuration from viper
func GetClientConfig() (*common.ClientConfig, error) {
	backend, err := common.ParseBackend(viper.GetString("backend"))
	if err != nil {
		return nil, err
	}

	conf := &common.ClientConfig{
		Backend:       backend,
		Kind:          viper.GetString("kind"),
		TimeoutSecond: viper.GetInt("timeout"),
		Bolt: common.BoltConf{
			Path:           viper.GetString("bolt-path"),
			LockTimeoutSec: viper.GetInt("bolt-lock-timeout"),
		},
		Datastore: common.CloudDatastoreConf{
			ProjectID: viper.GetString("project"),
		},
		DynamoDB: common.DynamoDBConf{
			Table:          viper.GetString("dynamo-table"),
			Region:         viper.GetString("dynamo-region"),
			Endpoint:       viper.GetString("dynamo-endpoint"),
			ConsistentRead: viper.GetBool("dynamo-consistent-read"),
		},
		Remote: common.RemoteConf{
			Endpoints:  strings.Split(viper.GetString("remote-endpoints"), ","),
			RetryCount: viper.GetInt("remote-retries"),
		},
		LogLevel: viper.GetString("log-level"),
	}

	return conf, nil
}

// BindCommandFlags binds a command's flags to viper
func BindCommandFlags(cmd *cobra.Command) error {
	return viper.BindPFlags(cmd.Flags())
}

// --------------------------------------------------------------------------
// Record arguments
// --------------------------------------------------------------------------

// ParseFields converts "field=value" arguments into a record.
// Values that are valid JSON are decoded (numbers as int64 or float64),
// everything else is kept as a string.
func ParseFields(args []string) (records.Record, error) {
	rec := make(records.Record, len(args))
	for _, arg := range args {
		name, raw, ok := strings.Cut(arg, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid field %q (expected field=value)", arg)
		}
		rec[name] = raw
		if isSingleJSONValue(raw) {
			if v, err := datastore.DecodeJSON(strings.NewReader(raw)); err == nil {
				rec[name] = v
			}
		}
	}
	return rec, nil
}

// isSingleJSONValue reports whether raw holds exactly one JSON value
// (DecodeJSON stops after the first one, so "1 2" would decode to 1)
func isSingleJSONValue(raw string) bool {
	dec := json.NewDecoder(strings.NewReader(raw))
	var v json.RawMessage
	if err := dec.Decode(&v); err != nil {
		return false
	}
	return !dec.More()
}

// PrintJSON writes v as indented JSON to the command's output
func PrintJSON(cmd *cobra.Command, v interface{}) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), string(out))
	return err
}
