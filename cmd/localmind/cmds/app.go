package cmds

import (
	"io"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/go-go-golems/localmind/pkg/backend"
	"github.com/go-go-golems/localmind/pkg/chatclient"
	"github.com/go-go-golems/localmind/pkg/config"
	"github.com/go-go-golems/localmind/pkg/logging"
)

// App carries the settings shared by all subcommands. It is initialized once the root
// command has parsed its flags.
type App struct {
	v          *viper.Viper
	configPath string
	settings   *config.Settings
	logCloser  io.Closer
}

func NewApp() *App {
	return &App{v: config.New()}
}

// AddPersistentFlags registers the global flags and binds them to their config keys.
func (a *App) AddPersistentFlags(cmd *cobra.Command) error {
	f := cmd.PersistentFlags()
	f.StringVar(&a.configPath, "config", "", "Config file (default ./localmind.yaml or ~/.localmind/config.yaml)")
	f.String("backend-url", backend.DefaultBaseURL, "Backend base URL")
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.String("log-format", logging.FormatText, "Log format (text, json)")
	f.String("log-file", "", "Write logs to this file instead of stderr")
	f.Bool("with-caller", false, "Annotate log lines with the caller")

	bindings := map[string]string{
		"backend.url":     "backend-url",
		"log.level":       "log-level",
		"log.format":      "log-format",
		"log.file":        "log-file",
		"log.with-caller": "with-caller",
	}
	for key, flag := range bindings {
		if err := a.v.BindPFlag(key, f.Lookup(flag)); err != nil {
			return errors.Wrapf(err, "bind flag %s", flag)
		}
	}
	return nil
}

// Init loads the configuration and reinitializes the logger now that flags are parsed.
func (a *App) Init(cmd *cobra.Command) error {
	if err := config.ReadFile(a.v, a.configPath); err != nil {
		return err
	}
	s, err := config.Load(a.v)
	if err != nil {
		return err
	}
	closer, err := logging.InitLogger(s.Log)
	if err != nil {
		return err
	}
	a.Shutdown()
	a.settings = s
	a.logCloser = closer
	log.Debug().
		Str("command", cmd.CommandPath()).
		Str("config", a.v.ConfigFileUsed()).
		Str("backend", s.Backend.URL).
		Msg("initialized")
	return nil
}

// Shutdown releases the log output. It is safe to call more than once.
func (a *App) Shutdown() {
	if a.logCloser != nil {
		log.Debug().Msg("closing log output")
		_ = a.logCloser.Close()
		a.logCloser = nil
	}
}

// Settings returns the settings loaded by Init, loading them on first use when Init was skipped.
func (a *App) Settings() (*config.Settings, error) {
	if a.settings == nil {
		s, err := config.Load(a.v)
		if err != nil {
			return nil, err
		}
		a.settings = s
	}
	return a.settings, nil
}

func (a *App) Client() (*backend.Client, error) {
	s, err := a.Settings()
	if err != nil {
		return nil, err
	}
	return backend.NewClient(s.BackendConfig())
}

// NewController wires a backend client and a binding into a controller.
func (a *App) NewController() (*chatclient.Controller, *backend.Client, error) {
	s, err := a.Settings()
	if err != nil {
		return nil, nil, err
	}
	client, err := backend.NewClient(s.BackendConfig())
	if err != nil {
		return nil, nil, err
	}
	dialer := &websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: s.Backend.HandshakeTimeout,
	}
	binding, err := chatclient.NewBinding(chatclient.BindingConfig{
		History:  client,
		Endpoint: client,
		Dialer:   dialer,
		Logger:   log.Logger,
	})
	if err != nil {
		return nil, nil, err
	}
	return chatclient.NewController(binding), client, nil
}

func (a *App) sessionOrDefault(session string) (string, error) {
	if session != "" {
		return session, nil
	}
	s, err := a.Settings()
	if err != nil {
		return "", err
	}
	return s.Chat.Session, nil
}
