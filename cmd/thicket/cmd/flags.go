package cmd

import (
	"context"
	"encoding/hex"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/thicketfs/thicket/pkg/blockstore"
	"github.com/thicketfs/thicket/pkg/dlogger"
	"github.com/thicketfs/thicket/pkg/errors"
	"github.com/thicketfs/thicket/pkg/session"
	"github.com/thicketfs/thicket/pkg/storage"
	"github.com/thicketfs/thicket/pkg/storage/badgerdb"
	"github.com/thicketfs/thicket/pkg/storage/localfs"
	"github.com/thicketfs/thicket/pkg/storage/mem"
	"github.com/thicketfs/thicket/pkg/storage/sthree"
)

const (
	backendMem     = "mem"
	backendLocalFS = "localfs"
	backendBadger  = "badger"
	backendS3      = "s3"
)

type flagsT struct {
	store struct {
		Backend string
		Path    string
		Bucket  string
		Prefix  string
	}
	core struct {
		SeedFile string
		HeadFile string
		LogLevel string
	}
	write struct {
		Source string
	}
	read struct {
		Destination string
	}
	share struct {
		KeyFile      string
		ExchangeRoot string
	}
	open struct {
		Owner string
	}
}

var thicketFlags flagsT

var (
	errUnknownBackend = errors.New("unknown store backend")
	errBucketRequired = errors.New("the s3 backend requires a bucket")
)

func addStoreFlags(cmd *cobra.Command) {
	fl := cmd.PersistentFlags()
	fl.StringVar(&thicketFlags.store.Backend, "backend", "",
		"Block store backend: mem, localfs, badger or s3")
	fl.StringVar(&thicketFlags.store.Path, "store", ".thicket/blocks",
		"Directory backing the localfs and badger backends")
	fl.StringVar(&thicketFlags.store.Bucket, "bucket", "",
		"Bucket backing the s3 backend")
	fl.StringVar(&thicketFlags.store.Prefix, "prefix", "",
		"Key prefix within the s3 bucket")
	fl.StringVar(&thicketFlags.core.SeedFile, "seed-file", ".thicket/seed",
		"File holding the hex encoded 32 byte seed")
	fl.StringVar(&thicketFlags.core.HeadFile, "head-file", ".thicket/head",
		"File tracking the current forest root id")
	fl.StringVar(&thicketFlags.core.LogLevel, "loglevel", "",
		"Log level: none, info or debug")
	fl.StringVar(&thicketFlags.open.Owner, "owner", "",
		"Owner identity of a forest shared by someone else")
}

// populateFlagDefaults backfills flags left empty on the command line
// from the config file and environment.
func populateFlagDefaults(flags *flagsT) {
	if flags.store.Backend == "" {
		flags.store.Backend = viper.GetString("backend")
	}
	if flags.store.Bucket == "" {
		flags.store.Bucket = viper.GetString("bucket")
	}
	if flags.core.LogLevel == "" {
		flags.core.LogLevel = viper.GetString("loglevel")
	}
}

func getLogger() *zap.Logger {
	return dlogger.MustGetLogger(thicketFlags.core.LogLevel)
}

// paramsToStore builds the block store backend selected by flags. The
// returned closer releases backend resources and may be nil.
func paramsToStore(flags flagsT) (storage.Store, func() error, error) {
	switch flags.store.Backend {
	case backendMem:
		return mem.New(), nil, nil
	case backendLocalFS:
		if err := os.MkdirAll(flags.store.Path, 0700); err != nil {
			return nil, nil, err
		}
		return localfs.New(afero.NewBasePathFs(afero.NewOsFs(), flags.store.Path)), nil, nil
	case backendBadger:
		store, db, err := badgerdb.Open(flags.store.Path)
		if err != nil {
			return nil, nil, err
		}
		return store, db.Close, nil
	case backendS3:
		if flags.store.Bucket == "" {
			return nil, nil, errBucketRequired
		}
		return sthree.New(sthree.Bucket(flags.store.Bucket), sthree.Prefix(flags.store.Prefix)), nil, nil
	default:
		return nil, nil, errUnknownBackend
	}
}

func readSeed(flags flagsT) ([]byte, error) {
	raw, err := os.ReadFile(flags.core.SeedFile)
	if err != nil {
		return nil, err
	}
	seed, err := hex.DecodeString(strings.TrimSpace(string(raw)))
	if err != nil {
		return nil, err
	}
	return seed, nil
}

func writeSeedFile(flags flagsT, seed []byte) error {
	if err := os.MkdirAll(filepath.Dir(flags.core.SeedFile), 0700); err != nil {
		return err
	}
	return os.WriteFile(flags.core.SeedFile, []byte(hex.EncodeToString(seed)+"\n"), 0600)
}

func readHead(flags flagsT) (blockstore.Cid, error) {
	raw, err := os.ReadFile(flags.core.HeadFile)
	if err != nil {
		return blockstore.Cid{}, err
	}
	return blockstore.CidFromString(strings.TrimSpace(string(raw)))
}

func writeHead(flags flagsT, cid blockstore.Cid) error {
	if err := os.MkdirAll(filepath.Dir(flags.core.HeadFile), 0700); err != nil {
		return err
	}
	return os.WriteFile(flags.core.HeadFile, []byte(cid.String()+"\n"), 0600)
}

// openSession loads the filesystem named by the tracked head with the
// locally stored seed.
func openSession(ctx context.Context, flags flagsT) (*session.Session, func() error, error) {
	seed, err := readSeed(flags)
	if err != nil {
		return nil, nil, err
	}
	head, err := readHead(flags)
	if err != nil {
		return nil, nil, err
	}
	backend, closer, err := paramsToStore(flags)
	if err != nil {
		return nil, nil, err
	}
	var s *session.Session
	if flags.open.Owner != "" {
		s, err = session.LoadShared(ctx, backend, head, seed, flags.open.Owner, session.Logger(getLogger()))
	} else {
		s, err = session.Load(ctx, backend, head, seed, session.Logger(getLogger()))
	}
	if err != nil {
		if closer != nil {
			_ = closer()
		}
		return nil, nil, err
	}
	return s, closer, nil
}

func closeStore(closer func() error) {
	if closer != nil {
		_ = closer()
	}
}
