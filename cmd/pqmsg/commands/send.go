package commands

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/pqmsg/pqmsg"
	"github.com/spf13/cobra"
)

const defaultConnectTimeout = 30 * time.Second

var errNoRelay = errors.New("no relay configured; use --relay or set PQMSG_RELAY")

// connect starts the delivery channel and waits for the first connection.
func connect(ctx context.Context, m *pqmsg.Messenger, timeout time.Duration) error {
	if err := m.Start(ctx); err != nil {
		if errors.Is(err, pqmsg.ErrNoTransport) {
			return errNoRelay
		}
		return err
	}
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := m.WaitConnected(waitCtx); err != nil {
		return fmt.Errorf("connect to relay: %w", err)
	}
	return nil
}

func sendCmd(e *env) *cobra.Command {
	var timeout time.Duration
	cmd := &cobra.Command{
		Use:   "send <did> <text>...",
		Short: "Encrypt a message and send it through the relay",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := e.open(false)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			if err := connect(ctx, m, timeout); err != nil {
				return err
			}
			sealed, err := m.OnSendRequested(ctx, args[0], strings.Join(args[1:], " "))
			if err != nil {
				return err
			}
			if err := m.Flush(ctx); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Sent %s\n", pqmsg.Fingerprint(sealed))
			return nil
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", defaultConnectTimeout, "give up after this long")
	return cmd
}
