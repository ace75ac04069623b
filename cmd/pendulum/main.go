package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/ngmaloney/pendulum/internal/appmsg"
	"github.com/ngmaloney/pendulum/internal/config"
	"github.com/ngmaloney/pendulum/internal/observability"
	"github.com/ngmaloney/pendulum/internal/persist"
	"github.com/ngmaloney/pendulum/internal/ui"
	"github.com/ngmaloney/pendulum/internal/weather"
)

func main() {
	configPath := flag.String("config", "", "Path to the watch configuration file (YAML)")
	snapshot := flag.String("snapshot", "", "Write a single frame as PNG to this path and exit")
	at := flag.String("at", "", "Time shown by --snapshot as HH:MM (default: now)")
	flag.Parse()

	if *at != "" && *snapshot == "" {
		fmt.Println("Error: --at requires --snapshot.")
		os.Exit(1)
	}

	if err := run(*configPath, *snapshot, *at); err != nil {
		fmt.Printf("Error running application: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath, snapshot, at string) error {
	cfg, err := config.LoadWatch(configPath)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	logger, err := observability.NewFileLogger(cfg.LogPath, cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	defer func() {
		if err := observability.FlushTelemetry(context.Background(), logger); err != nil {
			fmt.Fprintf(os.Stderr, "flushing logs: %v\n", err)
		}
	}()

	store, err := persist.Open(cfg.StorePath)
	if err != nil {
		logger.Error("opening store", zap.String("path", cfg.StorePath), zap.Error(err))
		return err
	}
	defer store.Close()

	use24h := cfg.ClockStyle.Use24Hour(os.Getenv)

	if snapshot != "" {
		shownAt := time.Now()
		if at != "" {
			shownAt, err = parseClock(at, shownAt)
			if err != nil {
				return err
			}
		}
		return writeSnapshot(snapshot, cfg, store, shownAt, use24h, logger)
	}

	opts := ui.Options{
		Platform:  cfg.Platform,
		Use24Hour: use24h,
		Logger:    logger,
	}
	if cfg.WeatherEnabled {
		channel := appmsg.NewChannel(appmsg.NewHTTPTransport(cfg.CompanionURL, cfg.CompanionTimeout), logger, appmsg.Options{})
		defer channel.Close()
		opts.Weather = weather.NewManager(store, channel, logger)
		opts.Events = channel.Events()
		logger.Info("weather enabled", zap.String("companion_url", cfg.CompanionURL))
	}

	p := tea.NewProgram(ui.NewModel(opts), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		logger.Error("program exited", zap.Error(err))
		return err
	}
	return nil
}

// parseClock returns day at the wall-clock time given as HH:MM
func parseClock(s string, day time.Time) (time.Time, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --at %q (want HH:MM)", s)
	}
	return time.Date(day.Year(), day.Month(), day.Day(), t.Hour(), t.Minute(), 0, 0, day.Location()), nil
}

// offline never reaches the companion; a snapshot shows only what is
// already persisted
type offline struct{}

func (offline) Send(context.Context, *appmsg.Dictionary) string { return "" }

func writeSnapshot(path string, cfg *config.Watch, store *persist.Store, at time.Time, use24h bool, logger *zap.Logger) error {
	frame := ui.Frame{
		Hour:   at.Hour(),
		Minute: at.Minute(),
		Time:   ui.FormatTime(at, use24h),
	}

	if cfg.WeatherEnabled {
		reading := weather.UnknownReading()
		m := weather.NewManager(store, offline{}, logger)
		unsubscribe := m.Subscribe(func(r weather.Reading) { reading = r })
		m.Request(context.Background())
		unsubscribe()
		frame.Temperature = ui.FormatTemperature(reading)
		frame.Conditions = ui.FormatConditions(reading)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating snapshot: %w", err)
	}
	if err := ui.NewDisplay(cfg.Platform, cfg.WeatherEnabled).WritePNG(f, frame); err != nil {
		f.Close()
		return err
	}
	logger.Info("snapshot written", zap.String("path", path), zap.String("time", frame.Time))
	return f.Close()
}
