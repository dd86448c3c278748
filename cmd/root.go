/*
Copyright © 2025 Joseph Goksu josephgoksu@gmail.com
*/
package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ansible-policy/gatekeeper/internal/config"
	"github.com/ansible-policy/gatekeeper/internal/logging"
)

// version is the application version.
// Set via ldflags at build time: -ldflags "-X github.com/ansible-policy/gatekeeper/cmd.version=1.0.0"
// Defaults to "dev" for local development builds.
var version = "dev"

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "gatekeeper",
	Short: "Compile and evaluate Ansible policybooks against a policy engine",
	Long: `gatekeeper compiles policybook YAML into target-policy-language
(Rego) documents, installs them under a project's policy root, selects
which ones apply for a given run, and drives an external policy engine
binary to evaluate scanned Ansible artifacts against them.`,
	Run: func(cmd *cobra.Command, args []string) {
		if len(args) == 0 {
			_ = cmd.Help()
			os.Exit(0)
		}
	},
}

// Execute runs the root command (subcommands register themselves in
// their init functions) and exits 1 on error. Called once by main.main().
func Execute() {
	defer logging.HandlePanic()
	logging.SetVersion(version)
	if len(os.Args) > 1 {
		logging.SetCommand(strings.Join(os.Args[1:], " "))
	}

	rootCmd.SuggestionsMinimumDistance = 2
	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true

	if err := rootCmd.Execute(); err != nil {
		PrintError(err.Error(), err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().Bool("verbose", false, "Enable verbose (debug-level) logging")
	rootCmd.PersistentFlags().Bool("json", false, "Output machine-readable JSON")
	rootCmd.PersistentFlags().Bool("quiet", false, "Minimal output")
	rootCmd.PersistentFlags().Bool("force", false, "Overwrite already-installed policy sources")
	rootCmd.PersistentFlags().String("install-root", "", "Compiled policy install root (default <project>/.ansible-policy/policies)")
	rootCmd.PersistentFlags().String("selector-config", "", "Selector config file path (default <project>/.ansible-policy/config.ini)")
	rootCmd.PersistentFlags().String("engine-binary", "", "Policy engine binary (default opa)")
	rootCmd.PersistentFlags().String("audit-dir", "", "Audit trail SQLite directory (default <project>/.ansible-policy/audit)")

	for _, name := range []string{"verbose", "json", "quiet", "force", "install-root", "selector-config", "engine-binary", "audit-dir"} {
		_ = viper.BindPFlag(name, rootCmd.PersistentFlags().Lookup(name))
	}

	rootCmd.SetHelpTemplate(`{{if .Long}}
{{.Long}}
{{else}}
  {{.Short}}
{{end}}
  Usage: {{.UseLine}}
{{if .HasAvailableSubCommands}}
  Commands:
{{range .Commands}}{{if (or .IsAvailableCommand (eq .Name "help"))}}    {{rpad .Name .NamePadding }} {{.Short}}
{{end}}{{end}}{{end}}{{if .HasAvailableLocalFlags}}
  Flags:
{{.LocalFlags.FlagUsages | trimTrailingWhitespaces}}{{end}}{{if .HasAvailableInheritedFlags}}

  Global Flags:
{{.InheritedFlags.FlagUsages | trimTrailingWhitespaces}}{{end}}
`)
}

// initConfig wires viper to read ANSIBLE_POLICY_* environment overrides
// for every bound flag, following internal/config.EnvPrefix.
func initConfig() {
	viper.SetEnvPrefix(config.EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

// GetVersion returns the application version.
func GetVersion() string {
	return version
}

// loadSettings resolves internal/config.Settings for the current
// invocation, always rooted at the current working directory.
func loadSettings() (*config.Settings, error) {
	wd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("get working directory: %w", err)
	}
	return config.Load(wd)
}
