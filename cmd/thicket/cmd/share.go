package cmd

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/thicketfs/thicket/internal/randx"
	"github.com/thicketfs/thicket/pkg/blockstore"
	"github.com/thicketfs/thicket/pkg/session"
	"github.com/thicketfs/thicket/pkg/share"
)

var shareCmd = &cobra.Command{
	Use:   "share",
	Short: "Grant another keypair access to the filesystem",
	Long: `Seal the root access key to a recipient exchange key and append the
share to the forest. The recipient opens the filesystem with their own
seed, the new head and this owner's identity.

The recipient key is taken either from a file holding the hex encoded
modulus ("thicket pubkey" prints it), or resolved from the content id
of the recipient's published exchange directory.
`,
	Example: `% thicket share --key-file alice.key
% thicket share --exchange-root 0171a0b1...`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()

		s, closer, err := openSession(ctx, thicketFlags)
		if err != nil {
			wrapFatalln("open filesystem", err)
			return
		}
		defer closeStore(closer)

		modulus, err := recipientModulus(ctx, s)
		if err != nil {
			wrapFatalln("resolve recipient key", err)
			return
		}

		head, err := s.ShareWith(ctx, modulus)
		if err != nil {
			wrapFatalln("share access key", err)
			return
		}
		if err := writeHead(thicketFlags, head); err != nil {
			wrapFatalln("write head file", err)
			return
		}
		fmt.Println("owner:", s.OwnerID())
		fmt.Println("head:", head)
	},
}

func recipientModulus(ctx context.Context, s *session.Session) ([]byte, error) {
	if thicketFlags.share.KeyFile != "" {
		raw, err := os.ReadFile(thicketFlags.share.KeyFile)
		if err != nil {
			return nil, err
		}
		return hex.DecodeString(strings.TrimSpace(string(raw)))
	}
	cid, err := blockstore.CidFromString(thicketFlags.share.ExchangeRoot)
	if err != nil {
		return nil, err
	}
	return session.FetchExchangeKey(ctx, s.Store(), cid)
}

var pubkeyGenerate bool

var pubkeyCmd = &cobra.Command{
	Use:   "pubkey",
	Short: "Print the exchange public key derived from the seed",
	Long: `Print the hex encoded modulus of the exchange key derived from the
local seed. Hand it to a filesystem owner so they can share access.
`,
	Run: func(cmd *cobra.Command, args []string) {
		seed, err := readSeed(thicketFlags)
		if err != nil && os.IsNotExist(err) && pubkeyGenerate {
			seed = make([]byte, randx.SeedSize)
			if _, err = rand.Read(seed); err == nil {
				err = writeSeedFile(thicketFlags, seed)
			}
		}
		if err != nil {
			wrapFatalln("read seed", err)
			return
		}
		keypair, err := share.DeriveKeypair(seed)
		if err != nil {
			wrapFatalln("derive exchange key", err)
			return
		}
		fmt.Println(hex.EncodeToString(keypair.EncodePublicKey()))
	},
}

func init() {
	rootCmd.AddCommand(shareCmd)
	rootCmd.AddCommand(pubkeyCmd)
	shareCmd.Flags().StringVar(&thicketFlags.share.KeyFile, "key-file", "",
		"File holding the recipient's hex encoded exchange key modulus")
	shareCmd.Flags().StringVar(&thicketFlags.share.ExchangeRoot, "exchange-root", "",
		"Content id of the recipient's published exchange directory")
	pubkeyCmd.Flags().BoolVar(&pubkeyGenerate, "generate", false,
		"Generate a seed file if none exists yet")
}
