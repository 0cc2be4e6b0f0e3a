package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/safem8/controller/internal/alert"
	"github.com/safem8/controller/internal/command"
	"github.com/safem8/controller/internal/config"
	"github.com/safem8/controller/internal/gamepad"
	"github.com/safem8/controller/internal/hub"
	"github.com/safem8/controller/internal/influx"
	"github.com/safem8/controller/internal/joystick"
	"github.com/safem8/controller/internal/logging"
	"github.com/safem8/controller/internal/monitor"
	"github.com/safem8/controller/internal/relay"
	"github.com/safem8/controller/internal/rtdb"
	"github.com/safem8/controller/internal/server"
	"github.com/safem8/controller/internal/store"
	"github.com/safem8/controller/internal/tray"
)

// os.Interrupt covers Ctrl+C on every platform.
var shutdownSignals = []os.Signal{os.Interrupt, syscall.SIGTERM}

func main() {
	flags := pflag.NewFlagSet("safem8", pflag.ExitOnError)
	if err := config.BindFlags(flags); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	_ = flags.Parse(os.Args[1:])

	configDir, _ := flags.GetString("config-dir")
	if err := config.Load(configDir); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if noTray, _ := flags.GetBool("no-tray"); noTray {
		viper.Set("tray.enabled", false)
	}

	cfg, err := config.FromViper()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	logs, err := logging.Setup(logging.Options{
		Level:       cfg.LogLevel,
		GelfEnabled: cfg.Graylog.Enabled,
		GelfAddr:    cfg.Graylog.Address,
	})
	if err != nil {
		logs.Logger.Warn().Err(err).Msg("Graylog disabled")
	}
	defer logs.Close()

	if err := run(cfg, logs); err != nil {
		logs.Logger.Error().Err(err).Msg("SAFEM8 stopped with error")
		logs.Close()
		os.Exit(1)
	}
}

func run(cfg config.Config, logs *logging.Loggers) error {
	log := logs.Logger
	ctx, stop := signal.NotifyContext(context.Background(), shutdownSignals...)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	mapper, err := joystick.NewMapper(cfg.Joystick.MaxDrag)
	if err != nil {
		return err
	}

	// Outbound commands: the database is always written, the relay mirrors it.
	db := rtdb.New(cfg.RTDB.URL, cfg.RTDB.AuthToken, cfg.RTDB.Timeout, log)
	writers := command.MultiWriter{db}
	if cfg.Relay.Enabled {
		rc := relay.New(cfg.Relay.URL, log)
		defer rc.Close()
		writers = append(writers, rc)
	}
	// In-flight writes outlive ctx so the final stop still goes out.
	dispatcher := command.NewDispatcher(context.Background(), writers, cfg.RTDB.Timeout, log)

	// Sensor history and telemetry.
	var (
		recorders []monitor.Recorder
		history   server.History
	)
	notifiers := alert.Fanout{alert.NewLog(log)}

	if cfg.Store.Enabled {
		st, err := store.Open(store.Config{Driver: cfg.Store.Driver, DSN: cfg.Store.DSN}, log)
		if err != nil {
			log.Error().Err(err).Msg("History store disabled")
		} else {
			defer st.Close()
			recorders = append(recorders, st)
			notifiers = append(notifiers, st)
			history = st
		}
	}
	if cfg.Influx.Enabled {
		ex, err := influx.Connect(ctx, influx.Config{
			URL:    cfg.Influx.URL,
			Token:  cfg.Influx.Token,
			Org:    cfg.Influx.Org,
			Bucket: cfg.Influx.Bucket,
			Device: cfg.Influx.Device,
		}, log)
		if err != nil {
			log.Error().Err(err).Msg("InfluxDB export disabled")
		} else {
			defer ex.Close()
			recorders = append(recorders, ex)
		}
	}

	h := hub.NewHub(log)
	bc := hub.NewBroadcaster(h)
	notifiers = append(notifiers, bc)

	mon := monitor.New(db, monitor.Options{
		Paths: monitor.Paths{
			Temperature: cfg.Sensors.Temperature,
			Humidity:    cfg.Sensors.Humidity,
			Battery:     cfg.Sensors.Battery,
			AirQuality:  cfg.Sensors.AirQuality,
			FaceLog:     cfg.Sensors.FaceLog,
		},
		TemperatureLimit: cfg.Alert.TemperatureLimit,
		Capacity:         cfg.Notifications.Capacity,
	}, notifiers, log, recorders...)

	var wg sync.WaitGroup
	wg.Go(func() { h.Run(ctx) })
	wg.Go(func() { bc.Run(ctx, mon) })

	if cfg.RTDB.URL == "" {
		log.Warn().Msg("rtdb.url is not set; sensor feeds are off and commands will fail")
	} else {
		wg.Go(func() {
			if err := mon.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error().Err(err).Msg("Sensor monitor stopped")
			}
		})
	}

	if cfg.Gamepad.Enabled {
		reader := gamepad.NewReader(log)
		bridge := gamepad.NewBridge(mapper, dispatcher, log, logs.TraceSample)
		wg.Go(func() {
			if err := reader.Run(ctx); err != nil {
				log.Error().Err(err).Msg("Gamepad disabled")
			}
		})
		wg.Go(func() { bridge.Run(ctx, reader.Changes()) })
	}

	frontend, err := frontendFS()
	if err != nil {
		return err
	}
	srv := server.New(h, bc, dispatcher, mon, history, server.Options{
		Addr:     cfg.ListenAddr,
		Mapper:   mapper,
		Frontend: frontend,
	}, log)
	serverErr := make(chan error, 1)
	go func() {
		serverErr <- srv.ListenAndServe()
	}()

	url := panelURL(cfg.ListenAddr)
	log.Info().Str("panel", url).Float64("maxDrag", mapper.MaxRadius).Msg("SAFEM8 controller started")

	if cfg.Tray.Enabled && tray.Supported() {
		t := tray.New(tray.Options{
			PanelURL: url,
			OnStop:   func() { dispatcher.Joystick(joystick.Stop) },
			OnExit:   cancel,
		}, log)
		go t.Run(tray.Icon())
		defer t.Quit()
	} else {
		log.Info().Msg("Press Ctrl+C to exit")
	}

	var runErr error
	select {
	case <-ctx.Done():
		log.Info().Msg("Shutting down")
	case err := <-serverErr:
		if err != nil {
			runErr = fmt.Errorf("http server: %w", err)
		}
	}
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("HTTP server shutdown error")
	}

	wg.Wait()
	// hijacked websocket connections outlive Shutdown; their pumps may still
	// send a release
	h.Wait()
	dispatcher.Close(joystick.Stop)

	log.Info().Msg("SAFEM8 controller stopped")
	return runErr
}

// panelURL turns a listen address into a browsable URL.
func panelURL(addr string) string {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return "http://" + addr
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "localhost"
	}
	return "http://" + net.JoinHostPort(host, port)
}
