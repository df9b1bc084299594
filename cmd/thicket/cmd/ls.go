package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var lsCmd = &cobra.Command{
	Use:     "ls <path>",
	Short:   "List a directory",
	Example: `% thicket ls /notes`,
	Args:    cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()

		s, closer, err := openSession(ctx, thicketFlags)
		if err != nil {
			wrapFatalln("open filesystem", err)
			return
		}
		defer closeStore(closer)

		entries, err := s.Ls(ctx, args[0])
		if err != nil {
			wrapFatalln("ls", err)
			return
		}
		for _, e := range entries {
			kind := "dir"
			if e.IsFile {
				kind = "file"
			}
			modified := time.Unix(e.Metadata.Modified, 0).UTC().Format(time.RFC3339)
			fmt.Printf("%-4s  %s  %s\n", kind, modified, e.Name)
		}
	},
}

func init() {
	rootCmd.AddCommand(lsCmd)
}
