package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/objtools/storctl/pkg/version"
)

var verCmd = &cobra.Command{
	Use:   "ver",
	Short: "Print the tool version",
	RunE: func(cmd *cobra.Command, args []string) error {
		configVer := ""
		if v := ctl.mgr.ConfigVersion(); v != "" {
			configVer = fmt.Sprintf(", config file version %s", v)
		}
		fmt.Fprintf(ctl.out, "storctl version %s%s\n", version.Version, configVer)
		return nil
	},
}

func init() {
	addCommand(verCmd, mustSpec("ver"))
}
