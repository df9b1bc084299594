package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var writeCmd = &cobra.Command{
	Use:   "write <path>",
	Short: "Write a file into the filesystem",
	Long: `Write content at a path inside the private filesystem, creating any
missing parent directories. The new forest head replaces the tracked
one; previously published heads stay readable.
`,
	Example: `% thicket write /notes/todo.txt --source todo.txt
% cat todo.txt | thicket write /notes/todo.txt`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()

		var content []byte
		var err error
		if thicketFlags.write.Source == "" || thicketFlags.write.Source == "-" {
			content, err = io.ReadAll(os.Stdin)
		} else {
			content, err = os.ReadFile(thicketFlags.write.Source)
		}
		if err != nil {
			wrapFatalln("read source", err)
			return
		}

		s, closer, err := openSession(ctx, thicketFlags)
		if err != nil {
			wrapFatalln("open filesystem", err)
			return
		}
		defer closeStore(closer)

		head, err := s.WriteFile(ctx, args[0], content, time.Time{})
		if err != nil {
			wrapFatalln("write file", err)
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
	rootCmd.AddCommand(writeCmd)
	writeCmd.Flags().StringVar(&thicketFlags.write.Source, "source", "",
		"File to read content from, defaults to stdin")
}
