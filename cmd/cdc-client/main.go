// Command cdc-client connects to a MaxScale CDC listener and writes the
// requested stream to standard output: JSON records one per line, Avro
// bytes verbatim.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	kingpin "gopkg.in/alecthomas/kingpin.v2"

	cdc "github.com/streamhouse/go-maxscale-cdc"
	"github.com/streamhouse/go-maxscale-cdc/config"
	"github.com/streamhouse/go-maxscale-cdc/rabbitmq"
)

var (
	host = kingpin.Flag("host", "CDC server host (default localhost)").
		String()
	port = kingpin.Flag("port", "CDC server port (default 4001)").
		Short('P').
		Int()
	user = kingpin.Flag("user", "Username for authentication").
		Short('u').
		String()
	password = kingpin.Flag("password", "Password for authentication").
			Short('p').
			String()
	format = kingpin.Flag("format", "Stream format, JSON or AVRO (default JSON)").
		Short('f').
		Enum("JSON", "AVRO")
	configFile = kingpin.Flag("config", "Optional YAML config file (explicit flags override it)").
			String()
	table = kingpin.Arg("FILE", "Requested object, DATABASE.TABLE[.VERSION]").
		Required().
		String()
)

func main() {
	kingpin.Parse()
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, nil)))

	cfg, err := buildConfig()
	if err != nil {
		slog.Error("configuration", "error", err)
		os.Exit(1)
	}

	out := os.Stdout
	handler := func(msg *cdc.Message) []rabbitmq.PublishMessage {
		if msg.Format.IsJSON() {
			fmt.Fprintf(out, "%s\n", msg.Data)
		} else {
			_, _ = out.Write(msg.Data)
		}
		return nil
	}

	conn, err := cdc.NewConnector(*cfg, handler)
	if err != nil {
		slog.Error("new connector", "error", err)
		os.Exit(1)
	}
	defer conn.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	go func() {
		// A decoder blocked in a receive only notices cancellation once the
		// socket is closed under it.
		<-ctx.Done()
		conn.Close()
	}()

	// A signal-driven shutdown surfaces as a closed-connection error from
	// the decode loop; only failures unrelated to the signal are fatal.
	if err := conn.Start(ctx); err != nil && ctx.Err() == nil {
		if errors.Is(err, cdc.ErrIdleExhausted) {
			slog.Error("stream went idle", "error", err)
		} else {
			slog.Error("stream failed", "error", err)
		}
		os.Exit(1)
	}
}

func buildConfig() (*config.Connector, error) {
	cfg := &config.Connector{}
	if *configFile != "" {
		loaded, err := config.ReadConfigYaml(*configFile)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	// Flags left unset keep whatever the config file (or SetDefault) says.
	if *host != "" {
		cfg.CDC.Host = *host
	}
	if *port != 0 {
		cfg.CDC.Port = *port
	}
	if *user != "" {
		cfg.CDC.User = *user
	}
	if *password != "" {
		cfg.CDC.Password = *password
	}
	if *format != "" {
		cfg.CDC.Format = *format
	}
	cfg.CDC.Table = *table
	return cfg, nil
}
