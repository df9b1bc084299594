package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var mkdirCmd = &cobra.Command{
	Use:     "mkdir <path>",
	Short:   "Create a directory",
	Long:    "Create a directory and any missing parents. Creating an existing directory is a no-op.",
	Example: `% thicket mkdir /notes/archive`,
	Args:    cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()

		s, closer, err := openSession(ctx, thicketFlags)
		if err != nil {
			wrapFatalln("open filesystem", err)
			return
		}
		defer closeStore(closer)

		head, err := s.Mkdir(ctx, args[0])
		if err != nil {
			wrapFatalln("mkdir", err)
			return
		}
		if err := writeHead(thicketFlags, head); err != nil {
			wrapFatalln("write head file", err)
			return
		}
		fmt.Println("head:", head)
	},
}

func init() {
	rootCmd.AddCommand(mkdirCmd)
}
