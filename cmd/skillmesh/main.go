package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/skillmesh/skillmesh/pkg/logger"
)

func init() {
	// Environment variables
	viper.SetEnvPrefix("SKILLMESH")
	viper.AutomaticEnv()

	// Config file support
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("$HOME/.skillmesh")
	viper.AddConfigPath(".")

	// Load config file if it exists (ignore errors if it doesn't)
	_ = viper.ReadInConfig()
}

var rootCmd = &cobra.Command{
	Use:   "skillmesh",
	Short: "Skill document ingestion and resolution engine",
	Long: `Skillmesh ingests skill documents from git repositories and local
directories, resolves them into a prioritized registry and serves them to
agents over MCP and HTTP.`,
	PersistentPreRun: func(cmd *cobra.Command, _ []string) {
		logger.SetLogLevel(viper.GetString("log_level"))
		logger.SetLogFormat(viper.GetString("log_format"))
	},
	Run: func(cmd *cobra.Command, _ []string) {
		cmd.Help()
		os.Exit(1)
	},
}

func main() {
	// Global flags
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "text", "Log format (text, json)")
	rootCmd.PersistentFlags().String("repository", "", "Skill repository URL (overrides config)")
	rootCmd.PersistentFlags().String("branch", "", "Skill repository branch (overrides config)")
	rootCmd.PersistentFlags().String("local-dir", "", "Local skills directory (overrides config)")
	rootCmd.PersistentFlags().String("overrides", "", "Path to a skill override file (overrides config)")
	rootCmd.PersistentFlags().String("profile", "", "Named configuration profile to apply")

	viper.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level"))
	viper.BindPFlag("log_format", rootCmd.PersistentFlags().Lookup("log-format"))
	viper.BindPFlag("repository.url", rootCmd.PersistentFlags().Lookup("repository"))
	viper.BindPFlag("repository.branch", rootCmd.PersistentFlags().Lookup("branch"))
	viper.BindPFlag("local_dir", rootCmd.PersistentFlags().Lookup("local-dir"))
	viper.BindPFlag("overrides", rootCmd.PersistentFlags().Lookup("overrides"))
	viper.BindPFlag("profile", rootCmd.PersistentFlags().Lookup("profile"))

	// Subcommands
	rootCmd.AddCommand(withTracing(serveCmd))
	rootCmd.AddCommand(skillCmd)
	rootCmd.AddCommand(versionCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
