package commands

import (
	"errors"
	"fmt"

	"github.com/pqmsg/pqmsg/internal/store"
	"github.com/spf13/cobra"
)

func initCmd(e *env) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Generate the local identity and store it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := e.openStore()
			if err != nil {
				return err
			}

			_, err = st.GetCurrentIdentity()
			switch {
			case err == nil && !force:
				return errors.New("identity already exists (use --force to replace it)")
			case err == nil:
				if err := st.ClearIdentity(); err != nil {
					return err
				}
			case !errors.Is(err, store.ErrNotFound):
				return fmt.Errorf("load identity: %w", err)
			}

			m, err := e.open(true)
			if err != nil {
				return err
			}
			id, err := m.Identity()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Identity created.\nDID: %s\n", id.DID)
			if e.passphrase == "" {
				fmt.Fprintln(cmd.ErrOrStderr(), "Warning: no passphrase set; keys are stored unsealed.")
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "replace an existing identity")
	return cmd
}
