package cmd

import (
	"context"
	"os"

	"github.com/spf13/cobra"
)

var readCmd = &cobra.Command{
	Use:     "read <path>",
	Short:   "Read a file from the filesystem",
	Example: `% thicket read /notes/todo.txt --destination todo.txt`,
	Args:    cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()

		s, closer, err := openSession(ctx, thicketFlags)
		if err != nil {
			wrapFatalln("open filesystem", err)
			return
		}
		defer closeStore(closer)

		content, err := s.ReadFile(ctx, args[0])
		if err != nil {
			wrapFatalln("read file", err)
			return
		}
		if thicketFlags.read.Destination == "" || thicketFlags.read.Destination == "-" {
			if _, err := os.Stdout.Write(content); err != nil {
				wrapFatalln("write to stdout", err)
				return
			}
			return
		}
		if err := os.WriteFile(thicketFlags.read.Destination, content, 0600); err != nil {
			wrapFatalln("write destination", err)
			return
		}
	},
}

func init() {
	rootCmd.AddCommand(readCmd)
	readCmd.Flags().StringVar(&thicketFlags.read.Destination, "destination", "",
		"File to write content to, defaults to stdout")
}
