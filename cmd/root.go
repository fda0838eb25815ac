package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/ValentinKolb/confcache/cmd/entries"
	"github.com/ValentinKolb/confcache/cmd/util"
	"github.com/ValentinKolb/confcache/lib/common"
	"github.com/VictoriaMetrics/metrics"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	Version = "0.3.0"
)

var (

	// RootCmd represents the base command when called without any subcommands
	RootCmd = &cobra.Command{
		Use:   "confcache",
		Short: "configuration cache for build descriptions",
		Long: fmt.Sprintf(`confcache (v%s)

Stores configured build models as compact object graphs and restores
them with shared references, cycles and construction services intact.`, Version),
		SilenceUsage:      true,
		PersistentPreRunE: setup,
		PersistentPostRun: printMetrics,
	}
	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of confcache",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("confcache v%s\n", Version)
		},
	}
)

func init() {
	// Initialize viper
	cobra.OnInitialize(util.InitConfig)

	// Add Commands
	entries.AddCommands(RootCmd)
	RootCmd.AddCommand(versionCmd)

	// Add Flags
	util.SetupCacheFlags(RootCmd.PersistentFlags())
	key := "print-metrics"
	RootCmd.PersistentFlags().Bool(key, false, util.WrapString("Print the collected metrics in the prometheus text format after the command"))
}

// setup binds the flags, validates the configuration and initializes the loggers
func setup(cmd *cobra.Command, _ []string) error {
	if err := util.BindCommandFlags(cmd); err != nil {
		return err
	}
	config := util.GetConfig()
	if err := config.Validate(); err != nil {
		return err
	}
	common.InitLoggers(config)
	util.Log.Debugf("configuration:%s", config.String())
	return nil
}

func printMetrics(_ *cobra.Command, _ []string) {
	if viper.GetBool("print-metrics") {
		fmt.Println()
		metrics.WritePrometheus(os.Stdout, false)
	}
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the RootCmd.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := RootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}
