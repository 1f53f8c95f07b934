package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/arvindnair/webanalyzer/internal/httpapi"
	"github.com/arvindnair/webanalyzer/internal/run"
)

func newServeCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the read-side HTTP API and the run trigger endpoint",
		RunE: func(cmd *cobra.Command, args []string) error {
			sink := newSink()
			st, cleanup, err := buildStore(cmd.Context(), sink)
			if err != nil {
				return err
			}
			defer cleanup()

			driver := run.NewDriver(st, sink)
			api := httpapi.NewServer(st, driver, sink)

			srv := &http.Server{
				Addr:              addr,
				Handler:           api.Router(),
				ReadHeaderTimeout: 10 * time.Second,
			}

			go func() {
				<-cmd.Context().Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = srv.Shutdown(shutdownCtx)
			}()

			fmt.Printf("listening on %s\n", addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", ":8080", "listen address")
	return cmd
}
