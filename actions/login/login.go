package login

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"syscall"

	"github.com/urfave/cli/v3"
	"golang.org/x/term"

	"github.com/go-smartschool/go-smartschool/actions"
	"github.com/go-smartschool/go-smartschool/client"
	"github.com/go-smartschool/go-smartschool/credentials"
	"github.com/go-smartschool/go-smartschool/internal/storage"
)

// LoginCommand is the CLI command for Smartschool login
var LoginCommand = &cli.Command{
	Name:  "login",
	Usage: "Login to your Smartschool account",
	Flags: append([]cli.Flag{
		&cli.StringFlag{
			Name:    "username",
			Aliases: []string{"u"},
			Usage:   "Smartschool username",
		},
		&cli.StringFlag{
			Name:    "password",
			Aliases: []string{"p"},
			Usage:   "Smartschool password (not recommended, use interactive prompt)",
		},
		&cli.StringFlag{
			Name:  "main-url",
			Usage: "Portal host, e.g. school.smartschool.be",
		},
		&cli.StringFlag{
			Name:  "mfa",
			Usage: "Google Authenticator secret for 2FA",
		},
		&cli.StringFlag{
			Name:  "birthday",
			Usage: "Birthday (YYYY-MM-DD) for account verification",
		},
		&cli.BoolFlag{
			Name:  "no-save",
			Usage: "Do not save the credentials for later commands",
		},
	}, actions.SessionFlags()...),
	Action: loginAction,
}

var LogoutCommand = &cli.Command{
	Name:  "logout",
	Usage: "Logout from your Smartschool account",
	Flags: append([]cli.Flag{
		&cli.BoolFlag{
			Name:  "clear-credentials",
			Usage: "Also delete saved credentials",
		},
	}, actions.SessionFlags()...),
	Action: logoutAction,
}

var StatusCommand = &cli.Command{
	Name:   "status",
	Usage:  "Check current login status",
	Flags:  actions.SessionFlags(),
	Action: statusAction,
}

func loginAction(ctx context.Context, cmd *cli.Command) error {
	store, err := actions.OpenStorage(cmd)
	if err != nil {
		return err
	}

	creds, err := resolveCredentials(cmd, store)
	if err != nil {
		return err
	}

	s, err := actions.NewSession(cmd, store, creds)
	if err != nil {
		return err
	}

	fmt.Println("Logging in...")
	if err := s.Start(ctx); err != nil {
		switch {
		case errors.Is(err, client.ErrAuthentication):
			return fmt.Errorf("login failed, check username, password and mfa secret: %w", err)
		case errors.Is(err, client.ErrConfiguration):
			return fmt.Errorf("login needs more information: %w", err)
		}
		return fmt.Errorf("login failed: %w", err)
	}

	fmt.Printf("\n✓ Successfully logged in as %s on %s\n", creds.Username, creds.MainURL)
	if user := s.Identity(); user != nil {
		if name, ok := user["name"]; ok {
			fmt.Printf("  Name: %v\n", name)
		}
		if id, ok := user["id"]; ok {
			fmt.Printf("  User ID: %v\n", id)
		}
	}
	fmt.Printf("  Session saved to: %s\n", store.GetBasePath())

	if !cmd.Bool("no-save") {
		if err := store.SaveCredentials(actions.ToStored(creds)); err != nil {
			fmt.Printf("⚠ Warning: Failed to save credentials: %v\n", err)
		} else {
			fmt.Println("  Credentials cached for quick re-login")
		}
	}

	return nil
}

// resolveCredentials starts from whatever is configured and asks for the
// rest.
func resolveCredentials(cmd *cli.Command, store *storage.Storage) (*credentials.Credentials, error) {
	creds := &credentials.Credentials{}

	if configured, err := actions.LoadCredentials(cmd, store); err == nil {
		fmt.Printf("Credentials found for %s on %s\n", configured.Username, configured.MainURL)
		useSaved, _ := promptInput("Use these credentials? [Y/n]: ")
		if useSaved == "" || strings.EqualFold(useSaved, "y") || strings.EqualFold(useSaved, "yes") {
			creds = configured
		}
	}

	override := func(field *string, flag string) {
		if v := cmd.String(flag); v != "" {
			*field = v
		}
	}
	override(&creds.Username, "username")
	override(&creds.Password, "password")
	override(&creds.MainURL, "main-url")
	override(&creds.MFASecret, "mfa")
	override(&creds.Birthday, "birthday")

	var err error
	if creds.MainURL == "" {
		if creds.MainURL, err = promptInput("Portal (e.g. school.smartschool.be): "); err != nil {
			return nil, fmt.Errorf("failed to read portal: %w", err)
		}
	}
	if creds.Username == "" {
		if creds.Username, err = promptInput("Username: "); err != nil {
			return nil, fmt.Errorf("failed to read username: %w", err)
		}
	}
	if creds.Password == "" {
		if creds.Password, err = promptPassword("Password: "); err != nil {
			return nil, fmt.Errorf("failed to read password: %w", err)
		}
	}

	if err := creds.Validate(); err != nil {
		return nil, err
	}
	return creds, nil
}

func logoutAction(ctx context.Context, cmd *cli.Command) error {
	store, err := actions.OpenStorage(cmd)
	if err != nil {
		return err
	}

	creds, err := actions.LoadCredentials(cmd, store)
	if err != nil {
		fmt.Println("Not currently logged in")
		return nil
	}

	s, err := actions.NewSession(cmd, store, creds)
	if err != nil {
		return err
	}
	if err := s.Logout(); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}

	fmt.Printf("✓ Successfully logged out %s from %s\n", creds.Username, creds.MainURL)

	if cmd.Bool("clear-credentials") {
		if err := store.DeleteCredentials(); err != nil {
			fmt.Printf("⚠ Warning: Failed to delete credentials: %v\n", err)
		} else {
			fmt.Println("  Saved credentials deleted")
		}
	} else if store.HasCredentials() {
		fmt.Println("  Credentials still saved for quick re-login")
		fmt.Println("     Use 'logout --clear-credentials' to remove them")
	}

	return nil
}

func statusAction(ctx context.Context, cmd *cli.Command) error {
	store, err := actions.OpenStorage(cmd)
	if err != nil {
		return err
	}

	creds, err := actions.LoadCredentials(cmd, store)
	if err != nil {
		fmt.Println("Status: Not configured")
		fmt.Println("\nUse 'smartschool login' to authenticate")
		return nil
	}

	identity := creds.Identity()
	if !store.HasSession(identity) {
		fmt.Println("Status: Not logged in")
		fmt.Printf("  Username: %s\n", creds.Username)
		fmt.Printf("  Portal: %s\n", creds.MainURL)
		fmt.Println("\nUse 'smartschool login' to authenticate")
		return nil
	}

	fmt.Println("Status: Logged in")
	fmt.Printf("  Username: %s\n", creds.Username)
	fmt.Printf("  Portal: %s\n", creds.MainURL)

	user, err := store.LoadIdentity(identity)
	if err == nil && user != nil {
		fmt.Printf("  User ID: %v\n", user["id"])
	}
	fmt.Printf("  Storage: %s\n", store.GetBasePath())

	return nil
}

// promptInput prompts for user input
func promptInput(prompt string) (string, error) {
	fmt.Print(prompt)
	reader := bufio.NewReader(os.Stdin)
	input, err := reader.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(input), nil
}

// promptPassword prompts for password input (hidden)
func promptPassword(prompt string) (string, error) {
	fmt.Print(prompt)

	if term.IsTerminal(int(syscall.Stdin)) {
		password, err := term.ReadPassword(int(syscall.Stdin))
		fmt.Println()
		if err != nil {
			return "", err
		}
		return string(password), nil
	}

	return promptInput("")
}
