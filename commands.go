package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os/signal"
	"strings"
	"syscall"

	"akshay-tray/followings"
	"akshay-tray/ipc"
	"akshay-tray/logger"
	"akshay-tray/session"
	"akshay-tray/transport"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// parseProfile turns key=value arguments into a profile update.
func parseProfile(args []string) (session.Profile, error) {
	p := session.Profile{}
	for _, arg := range args {
		k, v, ok := strings.Cut(arg, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("expected key=value, got %q", arg)
		}
		p[k] = v
	}
	return p, nil
}

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Read or change the auth token",
}

var tokenGetCmd = &cobra.Command{
	Use:  "get",
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, _, cleanup := windowSession(cmd.Context(), cfg)
		defer cleanup()
		token, ok := store.Token()
		if !ok {
			return printJSON(cmd.OutOrStdout(), nil)
		}
		return printJSON(cmd.OutOrStdout(), token)
	},
}

var tokenSetCmd = &cobra.Command{
	Use:  "set <token>",
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, _, cleanup := windowSession(cmd.Context(), cfg)
		defer cleanup()
		return store.SetToken(args[0])
	},
}

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Read or merge into the user profile",
}

var userGetCmd = &cobra.Command{
	Use:  "get",
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, _, cleanup := windowSession(cmd.Context(), cfg)
		defer cleanup()
		user, _ := store.User()
		return printJSON(cmd.OutOrStdout(), user)
	},
}

var userSetCmd = &cobra.Command{
	Use:   "set key=value...",
	Short: "Merge fields into the stored profile",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		update, err := parseProfile(args)
		if err != nil {
			return err
		}
		store, _, cleanup := windowSession(cmd.Context(), cfg)
		defer cleanup()
		return store.SetUser(update)
	},
}

var userLoginCmd = &cobra.Command{
	Use:   "login <token> key=value...",
	Short: "Store a fresh profile and token together",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		user, err := parseProfile(args[1:])
		if err != nil {
			return err
		}
		store, _, cleanup := windowSession(cmd.Context(), cfg)
		defer cleanup()
		return store.SetUserAndToken(user, args[0])
	},
}

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect the GraphQL query cache",
}

var cacheGetCmd = &cobra.Command{
	Use:  "get [key]",
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, _, cleanup := windowSession(cmd.Context(), cfg)
		defer cleanup()
		if len(args) == 0 {
			return printJSON(cmd.OutOrStdout(), store.Cache().All())
		}
		return printJSON(cmd.OutOrStdout(), store.Cache().Get(args[0]))
	},
}

var cacheSetCmd = &cobra.Command{
	Use:  "set <key> <json>",
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if !json.Valid([]byte(args[1])) {
			return fmt.Errorf("value is not valid JSON")
		}
		store, _, cleanup := windowSession(cmd.Context(), cfg)
		defer cleanup()
		return store.Cache().Set(args[0], json.RawMessage(args[1]))
	},
}

var cacheReplaceCmd = &cobra.Command{
	Use:   "replace <json-object>",
	Short: "Replace the whole cache",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var entries map[string]json.RawMessage
		if err := json.Unmarshal([]byte(args[0]), &entries); err != nil {
			return fmt.Errorf("value must be a JSON object: %w", err)
		}
		store, _, cleanup := windowSession(cmd.Context(), cfg)
		defer cleanup()
		return store.Cache().Replace(entries)
	},
}

var cacheDeleteCmd = &cobra.Command{
	Use:  "delete <key>",
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, _, cleanup := windowSession(cmd.Context(), cfg)
		defer cleanup()
		return store.Cache().Delete(args[0])
	},
}

var formatCmd = &cobra.Command{
	Use:   "format",
	Short: "Read or toggle the display format",
}

var formatGetCmd = &cobra.Command{
	Use:  "get",
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, _, cleanup := windowSession(cmd.Context(), cfg)
		defer cleanup()
		return printJSON(cmd.OutOrStdout(), store.DisplayFormat())
	},
}

var formatToggleCmd = &cobra.Command{
	Use:   "toggle",
	Short: "Ask every window to flip the display format",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		_, sender, cleanup := windowSession(cmd.Context(), cfg)
		defer cleanup()
		if sender == nil {
			return fmt.Errorf("no coordinator configured")
		}
		msg, err := ipc.NewMessage(ipc.ChannelToggleFormat, nil)
		if err != nil {
			return err
		}
		return sender.SendMessage(msg)
	},
}

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Reset token, profile and cache (logout)",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, _, cleanup := windowSession(cmd.Context(), cfg)
		defer cleanup()
		return store.Clear()
	},
}

// logListener logs every message it sees.
type logListener struct {
	window string
}

func (l *logListener) Handle(msg *ipc.Message) {
	logger.Component("watch").WithField("window", l.window).WithField("channel", msg.Channel).
		WithField("payload", string(msg.Payload)).Info("notification")
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Run as a window: receive coordinator broadcasts",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.WindowID == "" {
			cfg.WindowID = uuid.NewString()
		}
		store, sender, cleanup := windowSession(cmd.Context(), cfg)
		defer cleanup()

		listeners := ipc.NewListeners()
		var notifier session.Notifier
		if sender != nil {
			notifier = sender
		}
		controller := followings.NewController(store, listeners, notifier, nil)
		controller.Mount()
		defer controller.Unmount()

		logged := &logListener{window: cfg.WindowID}
		for _, ch := range []string{ipc.ChannelTokenChanged, ipc.ChannelStoreChanged, ipc.ChannelOpenChat, ipc.ChannelToggleFormat} {
			listeners.On(ch, logged)
		}

		receiver, err := transport.NewReceiver(cfg.CoordinatorURL, cfg.WindowID, listeners)
		if err != nil {
			return err
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return receiver.Run(ctx)
	},
}

func init() {
	tokenCmd.AddCommand(tokenGetCmd, tokenSetCmd)
	userCmd.AddCommand(userGetCmd, userSetCmd, userLoginCmd)
	cacheCmd.AddCommand(cacheGetCmd, cacheSetCmd, cacheReplaceCmd, cacheDeleteCmd)
	formatCmd.AddCommand(formatGetCmd, formatToggleCmd)
}
