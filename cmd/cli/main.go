// keepsake 终端客户端：登录、配对、聊天与按天幻灯片。
//
//	keepsake login <username> <password>
//	keepsake pair [code]
//	keepsake chat
//	keepsake days
//	keepsake unlock <vault password>
//	keepsake vault-password <new> [old]
//	keepsake slideshow <YYYY-MM-DD> [--interval 3s]
//	keepsake theme <light|dark|system>
package main

import (
	"Keepsake/internal/client/gateway"
	"Keepsake/internal/client/settings"
	"context"
	"errors"
	"fmt"
	log "log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/pflag"
)

type app struct {
	store  *settings.Store
	client *gateway.Client
	flags  *pflag.FlagSet
}

type command func(ctx context.Context, a *app, args []string) error

var commands = map[string]command{
	"login":          cmdLogin,
	"register":       cmdRegister,
	"logout":         cmdLogout,
	"pair":           cmdPair,
	"chat":           cmdChat,
	"days":           cmdDays,
	"slideshow":      cmdSlideshow,
	"unlock":         cmdUnlock,
	"vault-password": cmdVaultPassword,
	"theme":          cmdTheme,
}

func main() {
	if err := run(); err != nil {
		if errors.Is(err, gateway.ErrAuth) {
			fmt.Fprintln(os.Stderr, "not logged in or session expired, run: keepsake login <username> <password>")
			os.Exit(2)
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func defaultSettingsPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = "."
	}
	return filepath.Join(dir, "keepsake", "settings.yaml")
}

func run() error {
	var settingsPath, gatewayURL string
	var verbose bool

	flagSet := pflag.NewFlagSet("keepsake", pflag.ContinueOnError)
	flagSet.StringVar(&settingsPath, "settings", defaultSettingsPath(), "path to the settings file")
	flagSet.StringVar(&gatewayURL, "gateway", "", "gateway url, saved to settings")
	flagSet.BoolVarP(&verbose, "verbose", "v", false, "debug logging")
	flagSet.Duration("interval", 0, "slideshow: advance interval, saved to settings")
	flagSet.SetInterspersed(true)
	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	level := log.LevelWarn
	if verbose {
		level = log.LevelDebug
	}
	log.SetDefault(log.New(log.NewTextHandler(os.Stderr, &log.HandlerOptions{Level: level})))

	store, err := settings.Load(settingsPath)
	if err != nil {
		return err
	}
	if gatewayURL != "" {
		if err = store.SetGatewayURL(gatewayURL); err != nil {
			return err
		}
	}

	args := flagSet.Args()
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "usage: keepsake [flags] <login|register|logout|pair|chat|days|slideshow|unlock|vault-password|theme> [args]")
		flagSet.PrintDefaults()
		return nil
	}
	cmd, ok := commands[args[0]]
	if !ok {
		return fmt.Errorf("unknown command %q", args[0])
	}

	client := gateway.New(store.GatewayURL(),
		gateway.WithToken(store.Token()),
		gateway.WithTokenSink(func(token string) {
			if err := store.SetToken(token); err != nil {
				log.Warn("save token failed", "err", err)
			}
		}),
	)
	defer client.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return cmd(ctx, &app{store: store, client: client, flags: flagSet}, args[1:])
}
