package commands

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func contactCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "contact",
		Short: "Exchange contact cards and list contacts",
	}
	cmd.AddCommand(contactExportCmd(e), contactAddCmd(e), contactListCmd(e))
	return cmd
}

func contactExportCmd(e *env) *cobra.Command {
	var name, out string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the local contact card",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := e.open(false)
			if err != nil {
				return err
			}
			if out != "" {
				if err := m.ExportCardToFile(name, out); err != nil {
					return err
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "Contact card written to %s\n", out)
				return nil
			}

			card, err := m.ExportCard(name)
			if err != nil {
				return err
			}
			data, err := card.Marshal()
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "display name to put on the card")
	cmd.Flags().StringVarP(&out, "out", "o", "", "write the card to a file instead of stdout")
	return cmd
}

func contactAddCmd(e *env) *cobra.Command {
	var name string
	cmd := &cobra.Command{
		Use:   "add <file>",
		Short: "Import a contact card",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := e.open(false)
			if err != nil {
				return err
			}
			c, err := m.ImportCardFromFile(args[0], name)
			if err != nil {
				return err
			}
			label := c.Name
			if label == "" {
				label = "contact"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added %s %s\n", label, c.DID)
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "local name for the contact (default: name on the card)")
	return cmd
}

func contactListCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List known contacts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := e.open(false)
			if err != nil {
				return err
			}
			contacts, err := m.Contacts()
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "NAME\tDID\tKEM\tSIGNATURE")
			for _, c := range contacts {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", c.Name, c.DID, c.KEMScheme, c.SigScheme)
			}
			return tw.Flush()
		},
	}
}
