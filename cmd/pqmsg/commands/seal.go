package commands

import (
	"fmt"
	"io"
	"strings"

	"github.com/pqmsg/pqmsg"
	"github.com/spf13/cobra"
)

// seal: encrypt and sign without a relay; the envelope is printed for
// out-of-band delivery.
func sealCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "seal <did> <text>...",
		Short: "Encrypt a message to a contact and print the envelope",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := e.open(false)
			if err != nil {
				return err
			}
			sealed, err := m.OnSendRequested(cmd.Context(), args[0], strings.Join(args[1:], " "))
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), pqmsg.EncodeEnvelopeText(sealed))
			return nil
		},
	}
}

func openCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "open <did> <envelope|->",
		Short: "Verify and decrypt an envelope from a contact",
		Long:  "Verify and decrypt an envelope from a contact. Pass - to read the envelope from stdin.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			text := args[1]
			if text == "-" {
				data, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return err
				}
				text = string(data)
			}

			decoded, err := pqmsg.DecodeEnvelopeText(strings.TrimSpace(text))
			if err != nil {
				return err
			}
			m, err := e.open(false)
			if err != nil {
				return err
			}
			msg, err := m.Receive(cmd.Context(), args[0], decoded)
			if err != nil {
				return err
			}
			printMessage(cmd.OutOrStdout(), m, msg)
			return nil
		},
	}
}
