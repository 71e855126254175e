package command

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/cayleygraph/catalog/clog"
	"github.com/cayleygraph/catalog/exporter"
	chttp "github.com/cayleygraph/catalog/internal/http"
)

const keyRequestTimeout = "http.timeout"

func NewHttpCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "http",
		Short: "Serve the catalog over HTTP on the given host and port.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			host, _ := cmd.Flags().GetString("host")
			ns, _ := cmd.Flags().GetString(flagNamespace)
			return withCatalog(cmd, func(ctx context.Context, h *Handle) error {
				router := chttp.NewRouter(h.Catalog, &chttp.Config{
					Timeout:   viper.GetDuration(keyRequestTimeout),
					Namespace: ns,
				})
				phost := host
				if host, port, err := net.SplitHostPort(host); err == nil && host == "" {
					phost = net.JoinHostPort("localhost", port)
				}
				clog.Infof("listening on %s, schema at http://%s/api/v1/schema", host, phost)
				srv := &http.Server{Addr: host, Handler: router}
				go func() {
					<-ctx.Done()
					srv.Close()
				}()
				err := srv.ListenAndServe()
				if err == http.ErrServerClosed {
					return nil
				}
				return err
			})
		},
	}
	cmd.Flags().String("host", "127.0.0.1:64210", "host:port to listen on")
	cmd.Flags().DurationP("timeout", "t", 30*time.Second, "elapsed time until an individual request times out")
	cmd.Flags().String(flagNamespace, exporter.DefaultNamespace, "IRI prefix of exported quads")
	viper.BindPFlag(keyRequestTimeout, cmd.Flags().Lookup("timeout"))
	return cmd
}
