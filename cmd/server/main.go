package main

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	"github.com/xtding233/cosstream/internal/checkpoint"
	"github.com/xtding233/cosstream/internal/config"
	"github.com/xtding233/cosstream/internal/httpapi"
	"github.com/xtding233/cosstream/internal/rpc"
	"github.com/xtding233/cosstream/internal/stream"
)

type options struct {
	configDir string
	profile   string
	httpAddr  string
	grpcAddr  string
	watch     time.Duration
}

func newRootCmd() *cobra.Command {
	var opts options
	cmd := &cobra.Command{
		Use:   "cosstream",
		Short: "Serve reproducible cosine data streams over HTTP and gRPC",
		Long: `cosstream hosts named streams of (x, cos(x) + noise) samples.
Streams can be checkpointed, rewound and restored; dataset defaults come from
layered YAML under <config>/datasets and can be hot-reloaded.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context(), opts)
		},
	}
	f := cmd.Flags()
	f.StringVar(&opts.configDir, "config", "config", "config base directory (holds datasets/*.yaml)")
	f.StringVar(&opts.profile, "profile", "", "dataset profile layered over datasets/default.yaml")
	f.StringVar(&opts.httpAddr, "http", "", "HTTP listen address (overrides config)")
	f.StringVar(&opts.grpcAddr, "grpc", "", "gRPC listen address (overrides config)")
	f.DurationVar(&opts.watch, "watch", 0, "poll config files at this interval and reload defaults; 0 disables")
	return cmd
}

// serve runs both servers until ctx is done or one of them fails.
func serve(ctx context.Context, opts options) error {
	loader := config.NewLoader(opts.configDir)
	_, settings, err := loader.Resolve(opts.profile, config.Overrides{})
	if err != nil {
		return err
	}
	if opts.httpAddr != "" {
		settings.Server.HTTPAddr = opts.httpAddr
	}
	if opts.grpcAddr != "" {
		settings.Server.GRPCAddr = opts.grpcAddr
	}

	store, err := checkpoint.NewStore(settings.Checkpoint.Backend, settings.Checkpoint.Path)
	if err != nil {
		return err
	}
	if err := store.Init(ctx); err != nil {
		return err
	}
	defer store.Close()

	reg := stream.NewRegistry(settings.Params, store)
	log.Printf("config version=%q profile=%q params=%+v checkpoint=%s",
		settings.Version, opts.profile, settings.Params, settings.Checkpoint.Backend)

	httpSrv := &http.Server{
		Addr:              settings.Server.HTTPAddr,
		Handler:           httpapi.New(reg),
		ReadHeaderTimeout: 10 * time.Second,
	}
	grpcSrv := grpc.NewServer()
	rpc.Register(grpcSrv, rpc.NewServer(reg))

	lis, err := net.Listen("tcp", settings.Server.GRPCAddr)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Printf("http listening on %s ...", settings.Server.HTTPAddr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		log.Printf("grpc listening on %s ...", lis.Addr())
		if err := grpcSrv.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			return err
		}
		return nil
	})
	if opts.watch > 0 {
		w := config.NewFileWatcher(loader.WatchedFiles(opts.profile), opts.watch, func(path string) {
			loader.Invalidate()
			_, s, err := loader.Resolve(opts.profile, config.Overrides{})
			if err != nil {
				log.Printf("reload %s: %v (keeping previous defaults)", path, err)
				return
			}
			reg.SetDefaults(s.Params)
			log.Printf("reloaded %s: params=%+v", path, s.Params)
		})
		g.Go(func() error {
			w.Run(gctx)
			return nil
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		log.Println("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		err := httpSrv.Shutdown(shutdownCtx)
		grpcSrv.GracefulStop()
		return err
	})
	return g.Wait()
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		log.Printf("error: %v", err)
		stop()
		os.Exit(1)
	}
}
