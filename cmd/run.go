package cmd

import (
	"log"

	"github.com/Sherav/gitbot/gitbot"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run [flags]",
	Short: "Starts the bot and the status API",
	Run: func(cmd *cobra.Command, _ []string) {
		ctx := cmd.Context()
		bot, err := gitbot.New(cfg)
		if err != nil {
			log.Fatalf("error creating gitbot: %s", err.Error())
		}

		if err = bot.Run(ctx); err != nil {
			log.Fatalf("error running gitbot: %s", err.Error())
		}
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
}
