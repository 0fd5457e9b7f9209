package cmd

import (
	"github.com/spf13/cobra"

	"github.com/objtools/storctl/pkg/acl"
	"github.com/objtools/storctl/pkg/command"
	"github.com/objtools/storctl/pkg/provider"
)

// mustSpec fetches a dispatch-table row. A missing row is a wiring bug, not
// a runtime condition.
func mustSpec(name string) command.Spec {
	s, err := command.Lookup(name)
	if err != nil {
		panic(err)
	}
	return s
}

// addCommand registers a handler under its dispatch-table contract: the
// row's arity and URI rules become the cobra Args validator, and commands
// marked XML-sensitive verify the ACL codec before running. Every command
// pre-declares a long-only --help flag so cobra leaves -h free for the
// header global (and for cat's banner flag).
func addCommand(cmd *cobra.Command, s command.Spec) {
	cmd.Args = func(_ *cobra.Command, args []string) error {
		return command.Validate(s, args)
	}
	if s.UsesXML {
		cmd.PreRunE = func(_ *cobra.Command, _ []string) error {
			for _, name := range provider.Names() {
				if err := acl.CheckCodec(provider.VocabularyFor(name)); err != nil {
					return &command.Error{Reason: err.Error()}
				}
			}
			return nil
		}
	}
	cmd.Flags().Bool("help", false, "help for "+s.Name)
	cmd.Flags().Lookup("help").Hidden = true
	rootCmd.AddCommand(cmd)
}
