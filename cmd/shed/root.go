package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/barnettlynn/she-core/internal/applog"
	"github.com/barnettlynn/she-core/internal/policy"
)

var debug bool

// slotPolicy is the parsed --policy file, resolved once in bindRootFlags and
// consulted by serve/provision when they write a slot without an
// authenticated flags field of their own.
var slotPolicy policy.Policy

var rootCmd = &cobra.Command{
	CompletionOptions: cobra.CompletionOptions{
		DisableDefaultCmd: true,
	},
	Use:   "shed",
	Short: "SHE HSM core dispatch server",
	Long: `shed runs the SHE (Secure Hardware Extension) command core as a
standalone service: it holds one SHE context per client and dispatches
SET_UID, secure-boot, key-update, export, PRNG and bulk-crypto commands
against a configurable keystore backend.`,
}

func init() {
	applog.Init()

	rootCmd.PersistentFlags().Bool("debug", false, "enable debug logging")
	rootCmd.PersistentFlags().String("config", "", "path to a config file in a format viper reads (JSON, YAML, TOML, ...)")
	rootCmd.PersistentFlags().String("policy", "", "path to a JSONC slot-policy file")
}

// Execute runs the root command. Called once from main.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func bindRootFlags(cmd *cobra.Command) error {
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}
	if configPath := viper.GetString("config"); configPath != "" {
		viper.SetConfigFile(configPath)
		if err := viper.ReadInConfig(); err != nil {
			return fmt.Errorf("read config file: %w", err)
		}
	}
	debug = viper.GetBool("debug")
	applog.SetDebug(debug)

	if policyPath := viper.GetString("policy"); policyPath != "" {
		p, err := policy.Load(policyPath)
		if err != nil {
			return fmt.Errorf("load policy file: %w", err)
		}
		slotPolicy = p
	}
	return nil
}
