package cmd

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/Andrandra1na/AMER-SMA/httpapi"
	"github.com/Andrandra1na/AMER-SMA/jobs"
	"github.com/Andrandra1na/AMER-SMA/metrics"
	"github.com/Andrandra1na/AMER-SMA/watch"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the job dispatcher, profile watcher and ops HTTP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()

		counters := metrics.New()
		pipeline := buildPipeline(st, counters)
		dispatcher := jobs.New(pipeline, st, counters, log, conf.Jobs.QueueSize, conf.Jobs.Workers, conf.JobTimeout())
		dispatcher.Start(ctx)

		if conf.Profiles.Watch {
			if err := watch.New(conf.Profiles.Dir, st, log).Start(ctx); err != nil {
				log.WithError(err).Warn("profile watcher not started")
			}
		}

		if log.IsLevelEnabled(logrus.DebugLevel) {
			gin.SetMode(gin.DebugMode)
		} else {
			gin.SetMode(gin.ReleaseMode)
		}
		srv := &http.Server{
			Addr:              conf.HTTP.Addr,
			Handler:           httpapi.NewRouter(st, dispatcher, counters, log).Engine(),
			ReadHeaderTimeout: 10 * time.Second,
		}
		errCh := make(chan error, 1)
		go func() {
			log.WithField("addr", srv.Addr).Info("ops server listening")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
		}()

		select {
		case <-ctx.Done():
			log.Info("shutting down")
		case err = <-errCh:
			log.WithError(err).Error("ops server stopped")
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if serr := srv.Shutdown(shutdownCtx); serr != nil {
			log.WithError(serr).Warn("ops server shutdown")
		}
		dispatcher.Stop(shutdownCtx)
		return err
	},
}
