package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var mvCmd = &cobra.Command{
	Use:     "mv <src> <dst>",
	Short:   "Move a file or directory",
	Long:    "Move a node to a new path. The destination must not already exist.",
	Example: `% thicket mv /notes/todo.txt /notes/archive/todo.txt`,
	Args:    cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()

		s, closer, err := openSession(ctx, thicketFlags)
		if err != nil {
			wrapFatalln("open filesystem", err)
			return
		}
		defer closeStore(closer)

		head, err := s.Mv(ctx, args[0], args[1])
		if err != nil {
			wrapFatalln("mv", err)
			return
		}
		if err := writeHead(thicketFlags, head); err != nil {
			wrapFatalln("write head file", err)
			return
		}
		fmt.Println("head:", head)
	},
}

var cpCmd = &cobra.Command{
	Use:     "cp <src> <dst>",
	Short:   "Copy a file or directory",
	Long:    "Copy a node to a new path. The copy evolves independently of the original.",
	Example: `% thicket cp /notes/todo.txt /notes/todo.bak`,
	Args:    cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()

		s, closer, err := openSession(ctx, thicketFlags)
		if err != nil {
			wrapFatalln("open filesystem", err)
			return
		}
		defer closeStore(closer)

		head, err := s.Cp(ctx, args[0], args[1])
		if err != nil {
			wrapFatalln("cp", err)
			return
		}
		if err := writeHead(thicketFlags, head); err != nil {
			wrapFatalln("write head file", err)
			return
		}
		fmt.Println("head:", head)
	},
}

var rmCmd = &cobra.Command{
	Use:     "rm <path>",
	Short:   "Remove a file or directory",
	Long: `Unlink a node from its parent directory. Earlier heads still
reference the removed content: removal is not erasure.`,
	Example: `% thicket rm /notes/todo.txt`,
	Args:    cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()

		s, closer, err := openSession(ctx, thicketFlags)
		if err != nil {
			wrapFatalln("open filesystem", err)
			return
		}
		defer closeStore(closer)

		head, err := s.Rm(ctx, args[0])
		if err != nil {
			wrapFatalln("rm", err)
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
	rootCmd.AddCommand(mvCmd)
	rootCmd.AddCommand(cpCmd)
	rootCmd.AddCommand(rmCmd)
}
