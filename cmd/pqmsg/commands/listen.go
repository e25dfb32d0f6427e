package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
)

func listenCmd(e *env) *cobra.Command {
	var (
		from    []string
		count   int
		timeout time.Duration
	)
	cmd := &cobra.Command{
		Use:   "listen",
		Short: "Connect to the relay and print incoming messages",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := e.open(false)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			if timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, timeout)
				defer cancel()
			}

			// Subscribe before connecting so queued messages are not missed.
			msgs := m.Watch(ctx, from...)
			if err := connect(ctx, m, defaultConnectTimeout); err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "Listening as %s\n", m.DID())

			w := cmd.OutOrStdout()
			for received := 0; count <= 0 || received < count; {
				select {
				case <-ctx.Done():
					return nil
				case msg := <-msgs:
					if msg == nil {
						continue
					}
					printMessage(w, m, msg)
					received++
				}
			}
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&from, "from", nil, "only print messages from these DIDs")
	cmd.Flags().IntVarP(&count, "count", "n", 0, "exit after this many messages")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "exit after this long")
	return cmd
}
