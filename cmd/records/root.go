package records

import (
	"context"
	"time"

	"github.com/ValentinKolb/recstore/cmd/util"
	"github.com/ValentinKolb/recstore/lib/backends"
	"github.com/ValentinKolb/recstore/lib/common"
	"github.com/ValentinKolb/recstore/lib/records"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/spf13/cobra"
)

var Logger = logger.GetLogger("cmd")

var (
	clientConfig *common.ClientConfig
	ref          records.Ref

	// RecordCommands represents the record command group
	RecordCommands = &cobra.Command{
		Use:                "records",
		Short:              "Read and write records of a kind",
		PersistentPreRunE:  setupClient,
		PersistentPostRunE: closeClient,
	}
)

func init() {
	// Initialize viper
	cobra.OnInitialize(util.InitClientConfig)

	// Add datastore flags to the record commands
	util.SetupClientFlags(RecordCommands)

	// Add subcommands
	RecordCommands.AddCommand(readCmd)
	RecordCommands.AddCommand(listCmd)
	RecordCommands.AddCommand(createCmd)
	RecordCommands.AddCommand(updateCmd)
	RecordCommands.AddCommand(removeCmd)
	RecordCommands.AddCommand(perfTestCmd)
}

// setupClient opens the configured datastore
func setupClient(cmd *cobra.Command, _ []string) error {
	// Bind command flags to viper
	if err := util.BindCommandFlags(cmd); err != nil {
		return err
	}

	conf, err := util.GetClientConfig()
	if err != nil {
		return err
	}
	if err := common.InitLoggers(conf.LogLevel); err != nil {
		return err
	}

	ctx, cancel := requestContext(conf)
	defer cancel()

	client, err := backends.Open(ctx, *conf)
	if err != nil {
		return err
	}

	clientConfig = conf
	ref = records.Ref{Client: client, Kind: conf.Kind}
	return nil
}

// closeClient releases the datastore opened by setupClient
func closeClient(_ *cobra.Command, _ []string) error {
	if ref.Client == nil {
		return nil
	}
	err := ref.Client.Close()
	ref = records.Ref{}
	return err
}

// requestContext returns a context bounded by the configured timeout
func requestContext(conf *common.ClientConfig) (context.Context, context.CancelFunc) {
	if conf.TimeoutSecond <= 0 {
		return context.WithCancel(context.Background())
	}
	return context.WithTimeout(context.Background(), time.Duration(conf.TimeoutSecond)*time.Second)
}
