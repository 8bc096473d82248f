package serve

import (
	"context"
	"time"

	cmdUtil "github.com/ValentinKolb/recstore/cmd/util"
	"github.com/ValentinKolb/recstore/lib/api"
	"github.com/ValentinKolb/recstore/lib/backends"
	"github.com/ValentinKolb/recstore/lib/common"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	serveCmdConfig = &common.ServerConfig{}
	ServeCmd       = &cobra.Command{
		Use:     "serve",
		Short:   "Start the recstore HTTP server",
		Long:    `Start the recstore HTTP server with the specified configuration. The configuration can be set via command line flags or environment variables. The format of the environment variables is RECSTORE_<flag> (e.g. RECSTORE_DYNAMO_TABLE=records)`,
		PreRunE: processConfig,
		RunE:    run,
	}
)

func init() {
	// initialize viper
	cobra.OnInitialize(cmdUtil.InitClientConfig)

	// add the datastore flags (the kind of a request is taken from its path)
	cmdUtil.SetupClientFlags(ServeCmd)

	// add flags
	key := "endpoint"
	ServeCmd.PersistentFlags().String(key, "0.0.0.0:8080", cmdUtil.WrapString("The address on which the API will listen (e.g. localhost:8080)"))

	key = "metrics"
	ServeCmd.PersistentFlags().Bool(key, true, cmdUtil.WrapString("Expose Prometheus metrics at GET /metrics"))
}

// processConfig reads the configuration from the command line flags and environment variables and converts them to the server configuration
func processConfig(cmd *cobra.Command, _ []string) error {
	// bind the flags to viper
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	clientConf, err := cmdUtil.GetClientConfig()
	if err != nil {
		return err
	}

	serveCmdConfig.Endpoint = viper.GetString("endpoint")
	serveCmdConfig.Metrics = viper.GetBool("metrics")
	serveCmdConfig.Client = *clientConf

	return common.InitLoggers(clientConf.LogLevel)
}

// run opens the datastore and serves the HTTP api until the server fails
func run(_ *cobra.Command, _ []string) error {
	ctx := context.Background()
	if t := serveCmdConfig.Client.TimeoutSecond; t > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(t)*time.Second)
		defer cancel()
	}
	client, err := backends.Open(ctx, serveCmdConfig.Client)
	if err != nil {
		return err
	}
	defer client.Close()

	return api.NewServer(*serveCmdConfig, client).Serve()
}
