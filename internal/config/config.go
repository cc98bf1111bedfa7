// Package config holds the server settings and binds them to command-line
// flags with environment fallbacks.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v3"
)

// Config is everything cmd/server needs to start.
type Config struct {
	Addr   string
	DBPath string
	WebDir string

	CleanupInterval time.Duration
	SessionMaxAge   time.Duration

	BotDelay         time.Duration
	MatchRevealDelay time.Duration
	MismatchDelay    time.Duration
	RestartDelay     time.Duration
	TickInterval     time.Duration

	Debug bool
}

// Default returns the settings used when nothing is overridden.
func Default() Config {
	return Config{
		Addr:             ":8080",
		DBPath:           "games.db",
		WebDir:           "web",
		CleanupInterval:  time.Minute,
		SessionMaxAge:    time.Hour,
		BotDelay:         500 * time.Millisecond,
		MatchRevealDelay: 500 * time.Millisecond,
		MismatchDelay:    time.Second,
		RestartDelay:     3 * time.Second,
		TickInterval:     time.Second,
	}
}

// Validate reports every unusable setting at once.
func (c Config) Validate() error {
	var errs []error
	if c.Addr == "" {
		errs = append(errs, errors.New("addr is required"))
	}
	if c.DBPath == "" {
		errs = append(errs, errors.New("db path is required"))
	}
	positive := []struct {
		name string
		d    time.Duration
	}{
		{"cleanup interval", c.CleanupInterval},
		{"session max age", c.SessionMaxAge},
		{"bot delay", c.BotDelay},
		{"match reveal delay", c.MatchRevealDelay},
		{"mismatch delay", c.MismatchDelay},
		{"restart delay", c.RestartDelay},
		{"tick interval", c.TickInterval},
	}
	for _, p := range positive {
		if p.d <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive, got %s", p.name, p.d))
		}
	}
	return errors.Join(errs...)
}

// LoadDotEnv loads variables from the given files (".env" when none are
// named) without overriding the environment. Missing files are skipped.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}

// Flags returns the command-line flags for every setting, defaulted from
// Default and overridable from the environment.
func Flags() []cli.Flag {
	d := Default()
	return []cli.Flag{
		&cli.StringFlag{Name: "port", Value: d.Addr[1:], Usage: "HTTP port", Sources: cli.EnvVars("PORT")},
		&cli.StringFlag{Name: "db", Value: d.DBPath, Usage: "SQLite database path", Sources: cli.EnvVars("DB_PATH")},
		&cli.StringFlag{Name: "web", Value: d.WebDir, Usage: "directory of static files", Sources: cli.EnvVars("WEB_DIR")},
		&cli.DurationFlag{Name: "cleanup-interval", Value: d.CleanupInterval, Sources: cli.EnvVars("CLEANUP_INTERVAL")},
		&cli.DurationFlag{Name: "session-max-age", Value: d.SessionMaxAge, Sources: cli.EnvVars("SESSION_MAX_AGE")},
		&cli.DurationFlag{Name: "bot-delay", Value: d.BotDelay, Usage: "pause before the tic-tac-toe bot moves", Sources: cli.EnvVars("BOT_DELAY")},
		&cli.DurationFlag{Name: "reveal-delay", Value: d.MatchRevealDelay, Usage: "how long a matched pair stays highlighted", Sources: cli.EnvVars("REVEAL_DELAY")},
		&cli.DurationFlag{Name: "mismatch-delay", Value: d.MismatchDelay, Usage: "how long a mismatched pair stays face up", Sources: cli.EnvVars("MISMATCH_DELAY")},
		&cli.DurationFlag{Name: "restart-delay", Value: d.RestartDelay, Usage: "pause before an auto-restarting round deals again", Sources: cli.EnvVars("RESTART_DELAY")},
		&cli.DurationFlag{Name: "tick-interval", Value: d.TickInterval, Usage: "memory clock refresh", Sources: cli.EnvVars("TICK_INTERVAL")},
		&cli.BoolFlag{Name: "debug", Usage: "development logging", Sources: cli.EnvVars("DEBUG")},
	}
}

// FromCommand reads the flags declared by Flags.
func FromCommand(cmd *cli.Command) Config {
	return Config{
		Addr:             ":" + cmd.String("port"),
		DBPath:           cmd.String("db"),
		WebDir:           cmd.String("web"),
		CleanupInterval:  cmd.Duration("cleanup-interval"),
		SessionMaxAge:    cmd.Duration("session-max-age"),
		BotDelay:         cmd.Duration("bot-delay"),
		MatchRevealDelay: cmd.Duration("reveal-delay"),
		MismatchDelay:    cmd.Duration("mismatch-delay"),
		RestartDelay:     cmd.Duration("restart-delay"),
		TickInterval:     cmd.Duration("tick-interval"),
		Debug:            cmd.Bool("debug"),
	}
}
