package main

import (
	"io"
	"os"
	"strings"

	"github.com/knadh/koanf"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/pbitips/workload/internal/database"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

const envPrefix = "WORKLOAD_"

var defaults = map[string]any{
	"address":         "localhost:5000",
	"log.level":       "info",
	"log.format":      "text",
	"log.max_size":    100,
	"log.max_backups": 3,
	"log.max_age":     28,
	"bypass_auth":     false,
	"published_table": "PublishedItems",
	"store.driver":    database.DriverStorm,
	"store.path":      "workload.db",
	"store.codec":     database.CodecMsgpack,
}

// load reads the configuration file, if any, then the environment.
// Environment variables use a double underscore as key separator (e.g. WORKLOAD_STORE__DRIVER).
func load(filename string) (*koanf.Koanf, error) {
	konf := koanf.New(".")

	if err := konf.Load(confmap.Provider(defaults, "."), nil); err != nil {
		return nil, errors.Wrap(err, "could not load defaults")
	}

	if filename != "" {
		if err := konf.Load(file.Provider(filename), yaml.Parser()); err != nil {
			return nil, errors.Wrapf(err, "could not load %s", filename)
		}
	}

	err := konf.Load(env.Provider(envPrefix, ".", func(s string) string {
		s = strings.ToLower(strings.TrimPrefix(s, envPrefix))
		return strings.ReplaceAll(s, "__", ".")
	}), nil)
	return konf, errors.Wrap(err, "could not load environment")
}

// configureLogger applies the log section of the configuration to the standard logrus logger.
func configureLogger(konf *koanf.Koanf) error {
	level, err := logrus.ParseLevel(konf.String("log.level"))
	if err != nil {
		return errors.Wrap(err, "invalid log.level")
	}
	logrus.SetLevel(level)

	switch strings.ToLower(konf.String("log.format")) {
	case "json":
		logrus.SetFormatter(&logrus.JSONFormatter{})
	case "", "text":
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	default:
		return errors.Errorf("invalid log.format %q", konf.String("log.format"))
	}

	var output io.Writer = os.Stderr
	if filename := konf.String("log.file"); filename != "" {
		output = io.MultiWriter(os.Stderr, &lumberjack.Logger{
			Filename:   filename,
			MaxSize:    konf.Int("log.max_size"), // megabytes
			MaxBackups: konf.Int("log.max_backups"),
			MaxAge:     konf.Int("log.max_age"), // days
			Compress:   konf.Bool("log.compress"),
		})
	}
	logrus.SetOutput(output)

	return nil
}

func databaseOptions(konf *koanf.Koanf) database.Options {
	return database.Options{
		Driver:   konf.String("store.driver"),
		Path:     konf.String("store.path"),
		Codec:    konf.String("store.codec"),
		Region:   konf.String("store.dynamodb.region"),
		Endpoint: konf.String("store.dynamodb.endpoint"),
	}
}
