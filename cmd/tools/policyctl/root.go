// cmd/tools/policyctl/root.go
package main

import (
	"policy-extraction-workers/internal/common/logger"
	"policy-extraction-workers/pkg/registry"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

type globalOptions struct {
	rulesPath string
	logLevel  string
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}

	root := &cobra.Command{
		Use:   "policyctl",
		Short: "Operate the policy field extraction engine",
		Long: `policyctl maps OCR field bags to policy records locally and maintains the
extraction rules registry (field aliases, currency synonyms, schedule patterns).`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// A missing .env is normal outside a deployment.
			_ = godotenv.Load()
		},
	}

	root.PersistentFlags().StringVar(&opts.rulesPath, "rules", "", "Rules file (YAML or JSON); empty uses the embedded rules")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "warn", "Log level written to stderr")

	root.AddCommand(newMapCmd(opts))
	root.AddCommand(newRulesCmd(opts))
	return root
}

func (o *globalOptions) loadRules() (*registry.RulesRegistry, error) {
	return registry.Load(o.rulesPath)
}

func (o *globalOptions) logger() logger.Logger {
	zl, err := logger.NewWithOutput(o.logLevel, "console", "stderr")
	if err != nil {
		return logger.NewNoOpLogger()
	}
	return logger.NewZapAdapter(zl)
}
