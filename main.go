package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v3"

	"github.com/go-smartschool/go-smartschool/actions/agenda"
	"github.com/go-smartschool/go-smartschool/actions/login"
	"github.com/go-smartschool/go-smartschool/actions/messages"
	"github.com/go-smartschool/go-smartschool/actions/results"
)

func main() {
	// SMARTSCHOOL_* variables may come from a .env next to the binary.
	_ = godotenv.Load()

	cmd := &cli.Command{
		Name:    "smartschool",
		Usage:   "Smartschool portal CLI",
		Version: "0.1.0",
		Action: func(context.Context, *cli.Command) error {
			fmt.Println("Smartschool CLI - Use 'smartschool help' for available commands")
			return nil
		},
		Commands: []*cli.Command{
			login.LoginCommand,
			login.LogoutCommand,
			login.StatusCommand,
			messages.MessagesCommand,
			results.ResultsCommand,
			results.CoursesCommand,
			results.ReportsCommand,
			agenda.AgendaCommand,
			agenda.TasksCommand,
			agenda.PlannerCommand,
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}
