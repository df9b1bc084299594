package session

import (
	"io"

	"github.com/thicketfs/thicket/internal/randx"
	"github.com/thicketfs/thicket/pkg/blockstore"
	"github.com/thicketfs/thicket/pkg/dlogger"
	"go.uber.org/zap"
)

type settings struct {
	l         *zap.Logger
	rng       io.Reader
	cacheSize int64
}

func defaultSettings() *settings {
	return &settings{
		l:         dlogger.MustGetLogger(dlogger.LogLevelInfo),
		rng:       randx.System(),
		cacheSize: blockstore.DefaultCacheSize,
	}
}

// Option to configure a session
type Option func(*settings)

// Logger overrides the default logger
func Logger(l *zap.Logger) Option {
	return func(s *settings) {
		s.l = l
	}
}

// Randomness overrides the randomness source used for node seeds,
// inumbers and encryption nonces. Tests use a deterministic source.
func Randomness(r io.Reader) Option {
	return func(s *settings) {
		s.rng = r
	}
}

// BlockCacheSize sets the byte size of the adapter's read cache
func BlockCacheSize(sz int64) Option {
	return func(s *settings) {
		s.cacheSize = sz
	}
}
