package cmd

import (
	"context"
	"crypto/rand"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/thicketfs/thicket/internal/randx"
	"github.com/thicketfs/thicket/pkg/session"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a new private filesystem",
	Long: `Create a new private filesystem in the configured block store.

A fresh 32 byte seed is generated and written to the seed file; the
forest root id is written to the head file. The seed is the only secret:
together with the head it reopens the filesystem from any replica of
the block store.
`,
	Example: `% thicket init --backend localfs --store /var/lib/thicket`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()

		if _, err := os.Stat(thicketFlags.core.SeedFile); err == nil {
			wrapFatalln(fmt.Sprintf("seed file %s already exists, refusing to overwrite", thicketFlags.core.SeedFile), nil)
			return
		}
		seed := make([]byte, randx.SeedSize)
		if _, err := rand.Read(seed); err != nil {
			wrapFatalln("generate seed", err)
			return
		}

		backend, closer, err := paramsToStore(thicketFlags)
		if err != nil {
			wrapFatalln("create block store", err)
			return
		}
		defer closeStore(closer)

		s, _, rootCid, err := session.Init(ctx, backend, seed, session.Logger(getLogger()))
		if err != nil {
			wrapFatalln("initialize filesystem", err)
			return
		}

		if err := writeSeedFile(thicketFlags, seed); err != nil {
			wrapFatalln("write seed file", err)
			return
		}
		if err := writeHead(thicketFlags, rootCid); err != nil {
			wrapFatalln("write head file", err)
			return
		}
		fmt.Println("owner:", s.OwnerID())
		fmt.Println("exchange root:", s.ExchangeRoot())
		fmt.Println("head:", rootCid)
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}
