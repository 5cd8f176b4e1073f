// Command fishmeout sets up and runs the FishMeOut Telegram moderation bot.
package main

import (
	"os"

	"fishmeout-bot/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
