package config

import (
	"flag"
	"os"
	"strconv"

	"github.com/pkg/errors"
)

// Flags are the command line options.
type Flags struct {
	ConfigPath string
	Setup      bool
	Debug      bool
}

// ParseFlags parses args (without the program name).
func ParseFlags(args []string) (Flags, error) {
	var f Flags
	fs := flag.NewFlagSet("rsibot", flag.ContinueOnError)
	fs.StringVar(&f.ConfigPath, "config", "", "path to yaml config")
	fs.BoolVar(&f.Setup, "setup", false, "run the interactive configuration wizard")
	fs.BoolVar(&f.Debug, "debug", false, "enable development logging")
	if err := fs.Parse(args); err != nil {
		return Flags{}, err
	}
	return f, nil
}

// Get parses flags from os.Args and loads the configuration they point to.
// Without --config the stock two-strategy registry is used.
func Get() (Config, Flags, error) {
	flags, err := ParseFlags(os.Args[1:])
	if err != nil {
		return Config{}, Flags{}, err
	}

	cfg := Default()
	if flags.ConfigPath != "" {
		cfg, err = Load(flags.ConfigPath)
		if err != nil {
			return Config{}, Flags{}, err
		}
	}

	if err := ApplyEnv(&cfg, os.Getenv); err != nil {
		return Config{}, Flags{}, err
	}
	return cfg, flags, nil
}

// ApplyEnv fills secrets that never live in the yaml file.
func ApplyEnv(cfg *Config, getenv func(string) string) error {
	cfg.Telegram.Token = getenv("TELEGRAM_TOKEN")
	if chat := getenv("TELEGRAM_CHAT_ID"); chat != "" {
		id, err := strconv.ParseInt(chat, 10, 64)
		if err != nil {
			return errors.Wrapf(err, "invalid TELEGRAM_CHAT_ID %q", chat)
		}
		cfg.Telegram.AllowedChatID = id
	}
	cfg.Web.Token = getenv("WEB_TOKEN")
	if cfg.Web.Enabled && len(cfg.Web.AutocertDomains) > 0 && cfg.Web.Token == "" {
		return errors.New("web.autocert_domains exposes the command endpoint publicly: set WEB_TOKEN")
	}
	return nil
}
