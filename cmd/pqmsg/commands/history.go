package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

func historyCmd(e *env) *cobra.Command {
	var markRead bool
	cmd := &cobra.Command{
		Use:   "history <did>",
		Short: "Print the conversation with a contact",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := e.open(false)
			if err != nil {
				return err
			}
			msgs, err := m.History(args[0])
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			for i := range msgs {
				printMessage(w, m, &msgs[i])
			}

			if markRead {
				n, err := m.MarkRead(args[0])
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "%d marked read\n", n)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&markRead, "mark-read", false, "mark received messages as read")
	return cmd
}
