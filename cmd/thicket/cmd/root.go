package cmd

import (
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "thicket",
	Short: "Thicket manages private encrypted filesystems",
	Long: `Thicket stores an encrypted, content-addressed filesystem in a
pluggable block store. Every version of the tree is kept: writes append
to an authenticated forest and return a new root id, and any previously
published root id stays readable.

Access is granted by sharing the root access key, sealed to a
recipient's published exchange key. A seed plus a forest root id is all
a reader needs to open the tree.
`,
}

// used to patch over calls to os.Exit() during test
var logFatalln = log.Fatalln
var logFatalf = log.Fatalf

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	log.SetFlags(0)
	cobra.OnInitialize(initConfig)
	addStoreFlags(rootCmd)
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	viper.SetDefault("backend", backendLocalFS)
	viper.SetDefault("loglevel", "info")
	if os.Getenv("THICKET_CONFIG") != "" {
		viper.SetConfigFile(os.Getenv("THICKET_CONFIG"))
	} else {
		viper.AddConfigPath(".")
		viper.AddConfigPath("$HOME/.thicket")
		viper.AddConfigPath("/etc/thicket")
		viper.SetConfigName("thicket")
	}

	viper.SetEnvPrefix("thicket")
	viper.AutomaticEnv() // read in environment variables that match
	if err := viper.ReadInConfig(); err == nil {
		log.Println("Using config file:", viper.ConfigFileUsed())
	}
	populateFlagDefaults(&thicketFlags)
}
