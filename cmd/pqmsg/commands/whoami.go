package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

func whoamiCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Print the local DID and algorithm choices",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := e.open(false)
			if err != nil {
				return err
			}
			id, err := m.Identity()
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "DID:       %s\n", id.DID)
			fmt.Fprintf(w, "KEM:       %s\n", id.KEMScheme)
			fmt.Fprintf(w, "Signature: %s\n", id.SigScheme)
			return nil
		},
	}
}
