package actions

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/go-smartschool/go-smartschool/client"
	"github.com/go-smartschool/go-smartschool/credentials"
	"github.com/go-smartschool/go-smartschool/internal/storage"
)

// SessionFlags are shared by every command that talks to the portal.
func SessionFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "credentials",
			Aliases: []string{"c"},
			Usage:   "Path to a credentials.yml file",
		},
		&cli.StringFlag{
			Name:  "cache-dir",
			Usage: "Where cookies and traces are kept (default ~/.cache/smartschool)",
		},
		&cli.BoolFlag{
			Name:    "debug",
			Aliases: []string{"d"},
			Usage:   "Enable debug output",
		},
		&cli.BoolFlag{
			Name:  "trace",
			Usage: "Write every request and response to <cache-dir>/dev_tracing",
		},
	}
}

func Logger(cmd *cli.Command) *slog.Logger {
	level := slog.LevelWarn
	if cmd.Bool("debug") {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func OpenStorage(cmd *cli.Command) (*storage.Storage, error) {
	store, err := storage.NewStorage(cmd.String("cache-dir"))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	return store, nil
}

// LoadCredentials picks, in order: an explicit --credentials file, the
// credentials saved by 'login', then credentials.yml or the environment.
func LoadCredentials(cmd *cli.Command, store *storage.Storage) (*credentials.Credentials, error) {
	if path := cmd.String("credentials"); path != "" {
		return credentials.Load(path)
	}

	saved, err := store.LoadCredentials()
	if err != nil {
		return nil, err
	}
	if saved != nil {
		creds := FromStored(saved)
		if err := creds.Validate(); err == nil {
			return creds, nil
		}
	}

	return credentials.Load("")
}

func FromStored(saved *storage.StoredCredentials) *credentials.Credentials {
	return &credentials.Credentials{
		Username:  saved.Username,
		Password:  saved.Password,
		MainURL:   saved.MainURL,
		MFASecret: saved.MFASecret,
		Birthday:  saved.Birthday,
	}
}

func ToStored(creds *credentials.Credentials) *storage.StoredCredentials {
	return &storage.StoredCredentials{
		Username:  creds.Username,
		Password:  creds.Password,
		MainURL:   creds.MainURL,
		MFASecret: creds.MFASecret,
		Birthday:  creds.Birthday,
	}
}

func NewSession(cmd *cli.Command, store *storage.Storage, creds *credentials.Credentials) (*client.Session, error) {
	return client.NewSession(creds, client.Options{
		CacheDir: store.GetBasePath(),
		Logger:   Logger(cmd),
		Trace:    cmd.Bool("trace"),
	})
}

// OpenSession resolves credentials and returns a logged in session.
func OpenSession(ctx context.Context, cmd *cli.Command) (*client.Session, error) {
	store, err := OpenStorage(cmd)
	if err != nil {
		return nil, err
	}

	creds, err := LoadCredentials(cmd, store)
	if err != nil {
		return nil, fmt.Errorf("no usable credentials, run 'smartschool login' first: %w", err)
	}

	s, err := NewSession(cmd, store, creds)
	if err != nil {
		return nil, err
	}
	if err := s.Start(ctx); err != nil {
		return nil, err
	}
	return s, nil
}
