// Root of command-line argument parsing.
// This file was based off the standard cobra template, see
// https://github.com/spf13/cobra
package cmd

import (
	"fmt"
	"os"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/objtools/storctl/pkg/command"
	"github.com/objtools/storctl/pkg/config"
	"github.com/objtools/storctl/pkg/failure"
	"github.com/objtools/storctl/pkg/version"
)

var rootCfg struct {
	cfgFile string
	debug   bool
	detail  int
	headers []string
}

// ctl holds the per-invocation handler state, built by the root
// PersistentPreRunE once the global flags are known.
var ctl *tool

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "storctl [-d] [-D] [-h header]... command [args...]",
	Short: "Manage cloud storage buckets and objects",
	Long: `storctl copies, lists, and manages objects across cloud storage
providers, addressing them with s3:// and gs:// URIs and local paths.`,
	Version:           version.Version,
	SilenceUsage:      true,
	SilenceErrors:     true,
	TraverseChildren:  true,
	CompletionOptions: cobra.CompletionOptions{DisableDefaultCmd: true},
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		headers, err := parseHeaders(rootCfg.headers)
		if err != nil {
			cmd.Root().Usage()
			return err
		}

		logger := logrus.New()
		if debugLevel() >= 2 {
			logger.SetLevel(logrus.DebugLevel)
		} else {
			logger.SetLevel(logrus.WarnLevel)
		}

		mgrArgs := map[string]interface{}{"logger": logger}
		if rootCfg.cfgFile != "" {
			mgrArgs["config-file"] = rootCfg.cfgFile
		}
		mgr, err := config.NewManager(mgrArgs)
		if err != nil {
			return errors.Wrap(err, "Failed to initialize configuration")
		}
		if err := mgr.Bootstrap(); err != nil {
			return err
		}

		ctl = newTool(mgr, debugLevel(), headers)
		return nil
	},
	Args: cobra.ArbitraryArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 {
			return cmd.Help()
		}
		_, err := command.Lookup(args[0])
		return err
	},
}

var helpCmd = &cobra.Command{
	Use:   "help",
	Short: "Print usage for storctl",
	RunE: func(cmd *cobra.Command, args []string) error {
		return rootCmd.Help()
	},
}

// debugLevel maps the global flags onto the numeric debug scale: -d logs
// transport requests, each -D raises the level by one beyond that.
func debugLevel() int {
	level := 0
	if rootCfg.debug {
		level = 2
	}
	if rootCfg.detail > 0 {
		level = 2 + rootCfg.detail
	}
	return level
}

// Execute runs one invocation end to end and exits with the code assigned
// by the failure taxonomy. This is called by main() once.
func Execute() {
	err := rootCmd.Execute()
	if err == nil {
		return
	}
	msg, code := failure.Classify(err, debugLevel())
	if msg != "" {
		out := os.Stderr
		var cmdErr *command.Error
		if errors.As(err, &cmdErr) && cmdErr.Informational {
			out = os.Stdout
		}
		fmt.Fprintln(out, msg)
	}
	os.Exit(code)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&rootCfg.cfgFile, "config", "",
		"config file (default is ~/.storctl/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&rootCfg.debug, "debug", "d", false,
		"log transport requests")
	rootCmd.PersistentFlags().CountVarP(&rootCfg.detail, "detailedDebug", "D",
		"log transport payloads; repeat for stack traces on unexpected failures")
	rootCmd.PersistentFlags().StringArrayVarP(&rootCfg.headers, "header", "h", nil,
		"extra header to send on every request, as name:value")

	rootCmd.Flags().Bool("help", false, "help for storctl")
	rootCmd.Flags().Lookup("help").Hidden = true
	rootCmd.SetVersionTemplate("storctl version {{.Version}}\n")
	rootCmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return &command.Error{Reason: err.Error()}
	})

	rootCmd.SetHelpCommand(helpCmd)
	addCommand(helpCmd, mustSpec("help"))
}
