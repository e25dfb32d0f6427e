package commands

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pqmsg/pqmsg/internal/relay"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 5 * time.Second

func relayCmd(e *env) *cobra.Command {
	var (
		addr      string
		queueSize int
	)
	cmd := &cobra.Command{
		Use:   "relay",
		Short: "Run a relay that routes envelopes between connected DIDs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			hub := relay.NewHub(relay.Config{QueueSize: queueSize, Logger: e.logger})
			hub.Start()
			defer hub.Stop()

			ln, err := net.Listen("tcp", addr)
			if err != nil {
				return err
			}
			srv := &http.Server{
				Handler:           hub.Handler(),
				ReadHeaderTimeout: 10 * time.Second,
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Relay listening on ws://%s/\n", ln.Addr())

			errCh := make(chan error, 1)
			go func() { errCh <- srv.Serve(ln) }()

			select {
			case err := <-errCh:
				if errors.Is(err, http.ErrServerClosed) {
					return nil
				}
				return err
			case <-ctx.Done():
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8700", "listen address")
	cmd.Flags().IntVar(&queueSize, "queue", relay.DefaultQueueSize, "frames held per offline DID")
	return cmd
}
