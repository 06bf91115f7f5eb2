// =============================================================================
// Order/Invoice Reconciler - Root Command
// =============================================================================
//
// This file defines the root command for the Cobra CLI. All other commands
// are attached to it.
//
// COBRA CLI STRUCTURE:
//   rootCmd (reconciler)
//   ├── reconcileCmd (reconciler reconcile)
//   ├── batchCmd     (reconciler batch)
//   ├── profilesCmd  (reconciler profiles)
//   └── versionCmd   (reconciler version)
//
// CONFIGURATION:
//   Before any subcommand runs, the root command:
//   1. Loads config.yaml (optional) through viper
//   2. Initializes the global zap logger
//
// =============================================================================

package cmd

import (
	"fmt"
	"os"
	"sort"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ginjaninja78/order-invoice-reconciler/internal/config"
)

// =============================================================================
// GLOBAL VARIABLES
// =============================================================================

// cfgFile holds the path to the main configuration file.
var cfgFile string

// verbose forces debug logging.
var verbose bool

// mainConfig is loaded once in PersistentPreRunE.
var mainConfig *config.MainConfig

// =============================================================================
// ROOT COMMAND DEFINITION
// =============================================================================

var rootCmd = &cobra.Command{
	Use:   "reconciler",
	Short: "Order/Invoice Reconciler - check supplier invoices against order ledgers",
	Long: `Order/Invoice Reconciler compares an order ledger ("Base") with a supplier
invoice ("Factura"), classifies every title as matched, short, over, missing
or unordered, applies publisher discounts and totals what is payable per
country.

Key Features:
  - CSV and XLSX ledgers, semi-structured invoices with section headers
  - Reconciliation profiles per supplier (columns, match mode, discounts)
  - XLSX report with one sheet per view
  - Concurrent batch runs with automatic archival

Example Usage:
  reconciler reconcile --orders base.xlsx --invoice factura.xlsx
  reconciler batch                     # Process every run in the input directory
  reconciler batch --dry-run           # Show what would be processed
  reconciler profiles                  # Validate and list profiles`,

	SilenceUsage: true,

	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return err
		}
		if verbose {
			cfg.Log.Level = "debug"
		}
		if err := config.InitLogger(cfg.Log); err != nil {
			return err
		}
		mainConfig = cfg
		zap.L().Debug("configuration loaded", zap.String("config", cfgFile), zap.String("profiles_dir", cfg.ProfilesDir))
		return nil
	},

	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

// =============================================================================
// EXECUTE FUNCTION
// =============================================================================

// Execute runs the root command. It is called by main.main().
func Execute() {
	err := rootCmd.Execute()
	_ = zap.L().Sync()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile,
		"config",
		"config.yaml",
		"Path to the main configuration file",
	)

	rootCmd.PersistentFlags().BoolVarP(
		&verbose,
		"verbose",
		"v",
		false,
		"Enable verbose output for debugging",
	)
}

// =============================================================================
// PROFILE SELECTION
// =============================================================================

// loadProfiles returns the profiles in the configured directory sorted by
// code. The built-in default profile is used when the directory holds none.
func loadProfiles() ([]*config.Profile, error) {
	byCode, err := config.LoadProfiles(mainConfig.ProfilesDir)
	if err != nil {
		return nil, err
	}
	if len(byCode) == 0 {
		zap.L().Debug("no profiles found, using built-in default", zap.String("dir", mainConfig.ProfilesDir))
		return []*config.Profile{config.DefaultProfile()}, nil
	}

	profiles := make([]*config.Profile, 0, len(byCode))
	for _, p := range byCode {
		profiles = append(profiles, p)
	}
	sort.Slice(profiles, func(i, j int) bool { return profiles[i].ProfileCode < profiles[j].ProfileCode })
	return profiles, nil
}

// selectProfile returns the profile with the given code. An empty code
// selects the built-in default unless a profile file overrides it.
func selectProfile(code string) (*config.Profile, error) {
	byCode, err := config.LoadProfiles(mainConfig.ProfilesDir)
	if err != nil {
		return nil, err
	}
	if code == "" {
		code = config.DefaultProfile().ProfileCode
		if p, ok := byCode[code]; ok {
			return p, nil
		}
		return config.DefaultProfile(), nil
	}
	p, ok := byCode[code]
	if !ok {
		return nil, eris.Errorf("profile %q not found in %s", code, mainConfig.ProfilesDir)
	}
	return p, nil
}
