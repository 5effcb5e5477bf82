package main

import (
	"context"
	"log"
	"os"

	"github.com/ticketland/mono-repo/backend/services/gate-validator/internal/commands"
)

func main() {
	app := commands.App()
	if err := app.Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}
