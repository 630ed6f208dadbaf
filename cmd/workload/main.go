package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"
	"time"

	"github.com/knadh/koanf"
	"github.com/muesli/coral"
	"github.com/pbitips/workload/internal/database"
	"github.com/pbitips/workload/internal/server"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

var (
	version  = "dev"
	revision = "none"
	date     = "unknown"

	cfg string
)

func main() {
	c := &coral.Command{
		Use:     "workload",
		Short:   "Published items catalog of the theming workload",
		Version: fmt.Sprintf("%s - build %.7s @ %s - %s", version, revision, date, runtime.Version()),
		Args:    coral.ExactArgs(0),
	}
	c.PersistentFlags().StringVarP(&cfg, "config", "c", "", "Configuration file")
	c.AddCommand(initCmd)
	c.AddCommand(reindexCmd)
	c.AddCommand(serverCmd)

	if err := c.Execute(); err != nil {
		logrus.Fatalf("%+v", err)
	}
}

func setup() (*koanf.Koanf, error) {
	konf, err := load(cfg)
	if err != nil {
		return nil, err
	}
	return konf, configureLogger(konf)
}

var (
	initCmd = &coral.Command{
		Use:   "init",
		Short: "Init the database",
		Args:  coral.ExactArgs(0),
		RunE: func(c *coral.Command, _ []string) error {
			konf, err := setup()
			if err != nil {
				return err
			}

			db, err := database.Open(c.Context(), databaseOptions(konf))
			if err != nil {
				return errors.Wrap(err, "could not open database")
			}
			defer db.Close()

			table := konf.String("published_table")
			if err = db.Init(c.Context(), table); err != nil {
				return err
			}
			logrus.WithField("table", table).Info("database initialized")
			return nil
		},
	}

	//
	reindexCmd = &coral.Command{
		Use:   "reindex",
		Short: "Reindex the database (storm only)",
		Args:  coral.ExactArgs(0),
		RunE: func(_ *coral.Command, _ []string) error {
			konf, err := setup()
			if err != nil {
				return err
			}

			opts := databaseOptions(konf)
			if opts.Driver != database.DriverStorm {
				return errors.Errorf("reindex is not supported by the %s driver", opts.Driver)
			}

			codec, err := database.StormCodec(opts.Codec)
			if err != nil {
				return err
			}
			return database.StormReIndex(opts.Path, codec, konf.String("published_table"))
		},
	}

	//
	//
	serverCmd = &coral.Command{
		Use:   "server",
		Short: "Start server",
		Args:  coral.ExactArgs(0),
		RunE: func(c *coral.Command, _ []string) error {
			konf, err := setup()
			if err != nil {
				return err
			}

			if konf.String("published_table") == "" {
				return errors.New("published_table not found")
			}

			db, err := database.Open(c.Context(), databaseOptions(konf))
			if err != nil {
				return errors.Wrap(err, "could not open database")
			}
			defer db.Close()

			if konf.Bool("bypass_auth") {
				logrus.Warn("authentication is bypassed, every caller is a local admin")
			}

			engine := server.EchoEngine(server.IOC{
				Version:        version,
				Database:       db,
				PublishedTable: konf.String("published_table"),
				BypassAuth:     konf.Bool("bypass_auth"),
			})
			engine.HideBanner = true
			server.PrintRoutes(engine)

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			errc := make(chan error, 1)
			go func() {
				errc <- serve(engine.Server, engine.Start, konf.String("address"))
			}()

			select {
			case err = <-errc:
				return err
			case <-ctx.Done():
				logrus.Info("shutting down server")
				shutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				return errors.Wrap(engine.Shutdown(shutdown), "could not shutdown server")
			}
		},
	}
)

// serve listens on a TCP address or on a unix socket (unix:/path/to/socket).
func serve(srv interface{ Serve(net.Listener) error }, start func(string) error, address string) error {
	message := "could not run server"
	logrus.Infof("Server listening on %s", address)

	parts := strings.Split(address, ":")
	if len(parts) == 2 && parts[0] == "unix" {
		socketFile := parts[1]
		if _, err := os.Stat(socketFile); err == nil {
			logrus.Infof("Removing existing %s", socketFile)
			os.Remove(socketFile)
		}
		defer os.Remove(socketFile)

		listener, err := net.Listen(parts[0], socketFile)
		if err != nil {
			return err
		}
		return errors.Wrap(srv.Serve(listener), message)
	}
	return errors.Wrap(start(address), message)
}
