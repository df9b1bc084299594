// Package session wires the forest, the private directory tree and the
// block store adapter into the transactional filesystem façade.
//
// A Session owns exactly one private root. Every mutating operation
// follows the same two-phase pattern: mutate the in-memory tree and
// persist the touched nodes into the forest, then serialize the forest
// itself and return its new root content id. The caller durably records
// that id as the new head; until it is returned, the previous head
// remains the authoritative state.
package session

import (
	"context"
	"encoding/hex"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/thicketfs/thicket/internal/randx"
	"github.com/thicketfs/thicket/pkg/blockstore"
	"github.com/thicketfs/thicket/pkg/errors"
	"github.com/thicketfs/thicket/pkg/forest"
	"github.com/thicketfs/thicket/pkg/private"
	"github.com/thicketfs/thicket/pkg/public"
	"github.com/thicketfs/thicket/pkg/share"
	"github.com/thicketfs/thicket/pkg/storage"
	"go.uber.org/zap"
)

// ExchangeKeyPath is the conventional public-tree location of a
// published exchange key.
var ExchangeKeyPath = []string{"main", "v1.exchange_key"}

// Session is the façade over one private filesystem root.
//
// It is not safe for concurrent mutation: operations serialize on an
// internal lock, one in-flight mutation at a time. Concurrent
// independent readers of a published head can Load their own session
// from the same root id (the forest is append-only, so old roots stay
// readable after newer writes).
type Session struct {
	mu sync.Mutex

	store  *blockstore.Adapter
	forest *forest.Forest
	root   *private.Directory

	rootRef  private.PrivateRef
	rootCid  blockstore.Cid
	exchange blockstore.Cid

	seed    []byte
	ownerID string

	rng io.Reader
	l   *zap.Logger
}

func validateSeed(seed []byte) error {
	if len(seed) == 0 {
		return errors.ErrInvalidInput.Wrapf("seed is empty")
	}
	if len(seed) != randx.SeedSize {
		return errors.ErrInvalidInput.Wrapf("seed must be %d bytes, got %d", randx.SeedSize, len(seed))
	}
	return nil
}

// ParsePath splits a slash-delimited path into segments. The root is
// addressed by the empty path ("" or "/").
func ParsePath(path string) ([]string, error) {
	trimmed := strings.Trim(strings.TrimSpace(path), "/")
	if trimmed == "" {
		return []string{}, nil
	}
	segments := strings.Split(trimmed, "/")
	for _, seg := range segments {
		if seg == "" {
			return nil, errors.ErrInvalidInput.Wrapf("path %q has an empty segment", path)
		}
	}
	return segments, nil
}

// Init creates a new private filesystem over the backend: trusted
// accumulator setup, fresh forest, empty root directory, and the
// seeded-keypair access setup that lets the same seed re-open the
// filesystem later. It returns the session, the root access key and
// the forest root content id to persist as head.
func Init(ctx context.Context, backend storage.Store, seed []byte, opts ...Option) (*Session, private.PrivateRef, blockstore.Cid, error) {
	if err := validateSeed(seed); err != nil {
		return nil, private.PrivateRef{}, blockstore.Cid{}, err
	}
	s, err := newSession(backend, seed, opts...)
	if err != nil {
		return nil, private.PrivateRef{}, blockstore.Cid{}, err
	}

	f, err := forest.NewTrusted(s.rng)
	if err != nil {
		return nil, private.PrivateRef{}, blockstore.Cid{}, err
	}
	s.forest = f

	now := time.Now()
	root, err := private.NewDirectory(now, s.rng)
	if err != nil {
		return nil, private.PrivateRef{}, blockstore.Cid{}, err
	}
	s.root = root

	rootRef, err := root.Store(ctx, f, s.store, s.rng)
	if err != nil {
		return nil, private.PrivateRef{}, blockstore.Cid{}, err
	}

	if err := s.setupSeededAccess(ctx, rootRef, now); err != nil {
		return nil, private.PrivateRef{}, blockstore.Cid{}, err
	}

	rootCid, err := f.Store(ctx, s.store)
	if err != nil {
		return nil, private.PrivateRef{}, blockstore.Cid{}, err
	}
	s.rootRef = rootRef
	s.rootCid = rootCid
	s.l.Info("filesystem initialized", zap.String("root", rootCid.String()))
	return s, rootRef, rootCid, nil
}

// setupSeededAccess publishes the owner's exchange public key in a
// public directory and shares the root access key with the owner's own
// keypair, so that (seed, forest root id) suffice to reopen the tree.
func (s *Session) setupSeededAccess(ctx context.Context, accessKey private.PrivateRef, now time.Time) error {
	keypair, err := share.DeriveKeypair(s.seed)
	if err != nil {
		return err
	}
	pubKeyCid, err := keypair.StorePublicKey(ctx, s.store)
	if err != nil {
		return err
	}
	exchangeRoot := public.NewDirectory(now)
	if err := exchangeRoot.Write(ctx, ExchangeKeyPath, pubKeyCid, now, s.store); err != nil {
		return err
	}
	exchangeCid, err := exchangeRoot.Store(ctx, s.store)
	if err != nil {
		return err
	}
	s.exchange = exchangeCid

	counter, err := share.NextShareCounter(ctx, keypair.EncodePublicKey(), s.ownerID, s.forest)
	if err != nil {
		return err
	}
	return share.Share(ctx, accessKey, counter, s.ownerID, keypair.Public(), s.forest, s.store, s.rng)
}

// Load reopens a filesystem from its forest root content id and seed.
//
// The seed is proven against the forest by receiving the owner's own
// share: a seed that does not match fails with a decryption error, it
// never silently yields wrong data.
func Load(ctx context.Context, backend storage.Store, rootCid blockstore.Cid, seed []byte, opts ...Option) (*Session, error) {
	if err := validateSeed(seed); err != nil {
		return nil, err
	}
	s, err := newSession(backend, seed, opts...)
	if err != nil {
		return nil, err
	}
	if err := s.open(ctx, rootCid); err != nil {
		return nil, err
	}
	return s, nil
}

// LoadShared reopens a filesystem another owner shared with the holder
// of seed. The share entries are probed under the sharer's owner
// identity rather than the caller's own.
func LoadShared(ctx context.Context, backend storage.Store, rootCid blockstore.Cid, seed []byte, ownerID string, opts ...Option) (*Session, error) {
	if err := validateSeed(seed); err != nil {
		return nil, err
	}
	if ownerID == "" {
		return nil, errors.ErrInvalidInput.Wrapf("owner identity must not be empty")
	}
	s, err := newSession(backend, seed, opts...)
	if err != nil {
		return nil, err
	}
	if err := s.openAs(ctx, rootCid, ownerID); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Session) open(ctx context.Context, rootCid blockstore.Cid) error {
	return s.openAs(ctx, rootCid, s.ownerID)
}

func (s *Session) openAs(ctx context.Context, rootCid blockstore.Cid, ownerID string) error {
	keypair, err := share.DeriveKeypair(s.seed)
	if err != nil {
		return err
	}
	f, err := forest.Load(ctx, s.store, rootCid)
	if err != nil {
		return err
	}

	counter, err := share.FindLatestShareCounter(ctx, 0, share.MaxShareProbe, keypair.EncodePublicKey(), ownerID, f)
	if err != nil {
		if errors.Is(err, errors.ErrNotFound) {
			return errors.ErrDecryption.Wrapf("seed does not open forest %s", rootCid)
		}
		return err
	}
	name := share.CreateShareName(counter, ownerID, keypair.EncodePublicKey(), f)
	ref, err := share.ReceiveShare(ctx, name, keypair, f, s.store)
	if err != nil {
		return err
	}
	node, err := private.SearchLatest(ctx, ref, f, s.store)
	if err != nil {
		return err
	}
	root, ok := node.(*private.Directory)
	if !ok {
		return errors.ErrBadBlock.Wrapf("shared root of forest %s is not a directory", rootCid)
	}

	s.forest = f
	s.root = root
	s.rootRef = ref
	s.rootCid = rootCid
	s.l.Info("filesystem loaded", zap.String("root", rootCid.String()))
	return nil
}

// Reload re-opens the session from a (possibly newer) forest root id
// using the seed the session already holds.
func (s *Session) Reload(ctx context.Context, rootCid blockstore.Cid) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.forest == nil {
		return errors.ErrNotInitialized.Wrapf("reload requires an initialized session")
	}
	return s.open(ctx, rootCid)
}

// RootCid returns the last committed forest root content id
func (s *Session) RootCid() blockstore.Cid {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rootCid
}

// AccessKey returns the access key of the current root version
func (s *Session) AccessKey() private.PrivateRef {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rootRef
}

// ExchangeRoot returns the content id of the public directory holding
// the published exchange key.
func (s *Session) ExchangeRoot() blockstore.Cid {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.exchange
}

// Forest exposes the session's forest to the sharing surface
func (s *Session) Forest() *forest.Forest {
	return s.forest
}

// Store exposes the session's block store adapter
func (s *Session) Store() *blockstore.Adapter {
	return s.store
}

// OwnerID returns the owner identity used by the sharing protocol
func (s *Session) OwnerID() string {
	return s.ownerID
}

// commit persists the mutated tree bottom-up, then serializes the
// forest. Only when both steps succeed does the session adopt the new
// head; any failure leaves the previous root id authoritative.
func (s *Session) commit(ctx context.Context) (blockstore.Cid, error) {
	rootRef, err := s.root.Store(ctx, s.forest, s.store, s.rng)
	if err != nil {
		return blockstore.Cid{}, err
	}
	rootCid, err := s.forest.Store(ctx, s.store)
	if err != nil {
		return blockstore.Cid{}, err
	}
	s.rootRef = rootRef
	s.rootCid = rootCid
	return rootCid, nil
}

// ReadFile returns the content of the file at path
func (s *Session) ReadFile(ctx context.Context, path string) ([]byte, error) {
	segments, err := ParsePath(path)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.root.Read(ctx, segments, s.store)
}

// WriteFile writes content at path, creating missing parent
// directories, and returns the new head. A zero mtime stamps the file
// with the current time.
func (s *Session) WriteFile(ctx context.Context, path string, content []byte, mtime time.Time) (blockstore.Cid, error) {
	segments, err := ParsePath(path)
	if err != nil {
		return blockstore.Cid{}, err
	}
	if mtime.IsZero() {
		mtime = time.Now()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.root.Write(ctx, segments, content, mtime, true, s.store, s.rng); err != nil {
		return blockstore.Cid{}, err
	}
	s.l.Debug("write", zap.String("path", path), zap.Int("size", len(content)))
	return s.commit(ctx)
}

// Mkdir creates the directory at path (with intermediate directories)
// and returns the new head.
func (s *Session) Mkdir(ctx context.Context, path string) (blockstore.Cid, error) {
	segments, err := ParsePath(path)
	if err != nil {
		return blockstore.Cid{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.root.Mkdir(ctx, segments, time.Now(), true, s.store, s.rng); err != nil {
		return blockstore.Cid{}, err
	}
	s.l.Debug("mkdir", zap.String("path", path))
	return s.commit(ctx)
}

// Rm removes the node at path and returns the new head
func (s *Session) Rm(ctx context.Context, path string) (blockstore.Cid, error) {
	segments, err := ParsePath(path)
	if err != nil {
		return blockstore.Cid{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.root.Rm(ctx, segments, s.store); err != nil {
		return blockstore.Cid{}, err
	}
	s.l.Debug("rm", zap.String("path", path))
	return s.commit(ctx)
}

// Mv moves the subtree at src to dst and returns the new head
func (s *Session) Mv(ctx context.Context, src, dst string) (blockstore.Cid, error) {
	srcSegments, err := ParsePath(src)
	if err != nil {
		return blockstore.Cid{}, err
	}
	dstSegments, err := ParsePath(dst)
	if err != nil {
		return blockstore.Cid{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.root.Mv(ctx, srcSegments, dstSegments, time.Now(), true, s.store, s.rng); err != nil {
		return blockstore.Cid{}, err
	}
	s.l.Debug("mv", zap.String("src", src), zap.String("dst", dst))
	return s.commit(ctx)
}

// Cp copies the subtree at src to dst and returns the new head
func (s *Session) Cp(ctx context.Context, src, dst string) (blockstore.Cid, error) {
	srcSegments, err := ParsePath(src)
	if err != nil {
		return blockstore.Cid{}, err
	}
	dstSegments, err := ParsePath(dst)
	if err != nil {
		return blockstore.Cid{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.root.Cp(ctx, srcSegments, dstSegments, time.Now(), true, s.store, s.rng); err != nil {
		return blockstore.Cid{}, err
	}
	s.l.Debug("cp", zap.String("src", src), zap.String("dst", dst))
	return s.commit(ctx)
}

// Ls lists the children of the directory at path
func (s *Session) Ls(ctx context.Context, path string) ([]private.DirEntry, error) {
	segments, err := ParsePath(path)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.root.Ls(ctx, segments, s.store)
}

// ShareWith grants the holder of the recipient exchange key read
// access to the current root. The recipient is identified by the raw
// big-endian modulus of their published exchange key. The forest head
// advances to include the share entry and the new head is returned.
func (s *Session) ShareWith(ctx context.Context, recipientModulus []byte) (blockstore.Cid, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.forest == nil {
		return blockstore.Cid{}, errors.ErrNotInitialized.Wrapf("share requires an initialized session")
	}
	pub, err := share.PublicKeyFromModulus(recipientModulus)
	if err != nil {
		return blockstore.Cid{}, err
	}
	counter, err := share.NextShareCounter(ctx, pub.EncodeModulus(), s.ownerID, s.forest)
	if err != nil {
		return blockstore.Cid{}, err
	}
	if err := share.Share(ctx, s.rootRef, counter, s.ownerID, pub, s.forest, s.store, s.rng); err != nil {
		return blockstore.Cid{}, err
	}
	rootCid, err := s.forest.Store(ctx, s.store)
	if err != nil {
		return blockstore.Cid{}, err
	}
	s.rootCid = rootCid
	s.l.Info("access key shared",
		zap.Uint64("counter", counter),
		zap.String("root", rootCid.String()))
	return rootCid, nil
}

// FetchExchangeKey resolves a published exchange key modulus from the
// public directory rooted at exchangeRoot.
func FetchExchangeKey(ctx context.Context, store *blockstore.Adapter, exchangeRoot blockstore.Cid) ([]byte, error) {
	dir, err := public.Load(ctx, store, exchangeRoot)
	if err != nil {
		return nil, err
	}
	keyCid, err := dir.Get(ctx, ExchangeKeyPath, store)
	if err != nil {
		return nil, err
	}
	return store.GetBlock(ctx, keyCid)
}

func newSession(backend storage.Store, seed []byte, opts ...Option) (*Session, error) {
	settings := defaultSettings()
	for _, apply := range opts {
		apply(settings)
	}
	adapter, err := blockstore.New(backend,
		blockstore.Logger(settings.l),
		blockstore.CacheSize(settings.cacheSize),
	)
	if err != nil {
		return nil, err
	}
	owned := make([]byte, len(seed))
	copy(owned, seed)
	return &Session{
		store:   adapter,
		seed:    owned,
		ownerID: hex.EncodeToString(owned),
		rng:     settings.rng,
		l:       settings.l,
	}, nil
}
