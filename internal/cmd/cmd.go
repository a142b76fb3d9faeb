// Package cmd assembles the kigalisim command-line driver: a cobra command
// tree mirroring the teacher's internal/cmd + inmaputil/cmd.go split
// between a lightweight Root and the heavier per-command logic.
package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/kigalisim/core/internal/config"
	"github.com/kigalisim/core/qubectalk"
	"github.com/kigalisim/core/sim"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

const version = "0.1.0"

var cfg = config.New()

// Root is the main command, mirroring the teacher's Root tree.
var Root = &cobra.Command{
	Use:               "kigalisim",
	Short:             "A deterministic stock-and-flow simulator for Montreal Protocol substances.",
	Long:              `kigalisim runs QubecTalk programs describing substance sales, banks, recharge, retirement and recovery, and reports per-year consumption and emissions metrics.`,
	PersistentPreRunE: cfg.PersistentPreRunE(),
	DisableAutoGenTag: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("kigalisim v%s\n", version)
	},
	DisableAutoGenTag: true,
}

var validateCmd = &cobra.Command{
	Use:   "validate [file]",
	Short: "Parse a QubecTalk source file and report errors without running it.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		src, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		program, err := qubectalk.Parse(string(src))
		if err != nil {
			return err
		}
		fmt.Printf("ok: %d polic(y/ies), %d scenario(s)\n", len(program.Policies), len(program.Scenarios))
		return nil
	},
	DisableAutoGenTag: true,
}

var scenarioNames []string

var runCmd = &cobra.Command{
	Use:   "run [file]",
	Short: "Run selected scenarios from a QubecTalk source file.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		src, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		program, err := qubectalk.Parse(string(src))
		if err != nil {
			return err
		}

		log := logrus.New()
		if lvl, err := logrus.ParseLevel(cfg.GetString("logLevel")); err == nil {
			log.SetLevel(lvl)
		}

		executor := sim.NewExecutor(log)
		results, errs := executor.Run(context.Background(), program, scenarioNames)

		for results != nil || errs != nil {
			select {
			case r, ok := <-results:
				if !ok {
					results = nil
					continue
				}
				fmt.Printf("%s\ttrial=%d\tyear=%d\t%s/%s\tdomestic=%s\timport=%s\tequipment=%s\tconsumption=%s\n",
					r.ScenarioName, r.TrialNumber, r.Year, r.Application, r.Substance,
					r.Domestic.String(), r.Import.String(), r.Population.String(), r.Consumption.String())
			case e, ok := <-errs:
				if !ok {
					errs = nil
					continue
				}
				if e != nil {
					return e
				}
			}
		}
		return nil
	},
	DisableAutoGenTag: true,
}

func init() {
	cfg.BindFlags(Root.PersistentFlags())
	runCmd.Flags().StringSliceVar(&scenarioNames, "scenario", nil, "scenario names to run (default: all)")

	Root.AddCommand(versionCmd)
	Root.AddCommand(validateCmd)
	Root.AddCommand(runCmd)
}
