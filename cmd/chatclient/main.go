package main

import (
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/npezzotti/go-chatclient/internal/config"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %s\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	v := viper.New()
	var configFile string

	rootCmd := &cobra.Command{
		Use:   "chatclient",
		Short: "Terminal client for go-chat rooms",
		Long: `chatclient connects to a go-chat server over a websocket and lets you
join rooms, chat, follow other users' status and change your display name.

Type /help inside the client for the list of commands.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			bootLog := log.New(os.Stderr, "[go-chat] ", log.LstdFlags)
			cfg, err := config.Load(v, configFile, bootLog)
			if err != nil {
				return fmt.Errorf("config: %w", err)
			}
			return run(cmd.Context(), cfg)
		},
	}

	flags := rootCmd.Flags()
	flags.StringVarP(&configFile, "config", "c", "", "config file (default gochat.yaml in . or $HOME/.config/gochat)")
	flags.String("server-url", config.DefaultServerURL, "websocket URL of the chat server")
	flags.String("token", "", "session token issued by the server at login")
	flags.String("token-file", "", "file holding the session token")
	flags.String("username", "", "your username, as known to the server")
	flags.String("display-name", "", "your display name (defaults to the username)")
	flags.String("avatar-url", "", "avatar shown to other users")
	flags.Bool("insecure-skip-verify", false, "accept self-signed server certificates")
	flags.Duration("heartbeat-interval", config.DefaultHeartbeatInterval, "how often liveness is checked")
	flags.Duration("heartbeat-grace", config.DefaultHeartbeatGrace, "silence after which the connection is considered stale")
	flags.String("debug-addr", "", "address for the local debug server, empty disables it")
	flags.StringSlice("allowed-origins", nil, "comma-separated list of allowed origins for the debug server")
	flags.String("log-file", "", "write logs to this file")
	flags.Bool("headless", false, "line mode instead of the full screen interface")
	flags.BoolP("verbose", "v", false, "log every received frame")

	for _, name := range []string{
		"server-url", "token", "token-file", "username", "display-name", "avatar-url",
		"insecure-skip-verify", "heartbeat-interval", "heartbeat-grace", "debug-addr",
		"allowed-origins", "log-file", "headless", "verbose",
	} {
		if err := v.BindPFlag(strings.ReplaceAll(name, "-", "_"), flags.Lookup(name)); err != nil {
			panic(err)
		}
	}

	rootCmd.AddCommand(versionCmd())
	return rootCmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "chatclient %s (%s)\n", version, commit)
		},
	}
}
