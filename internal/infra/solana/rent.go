// internal/infra/solana/rent.go
package solana

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/dgraph-io/ristretto/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	issuance "narratives-mint/internal/domain/issuance"
	"narratives-mint/internal/infra/metrics"
)

// RentFetcher is the single RPC the oracle needs. *client.Client satisfies it.
type RentFetcher interface {
	GetMinimumBalanceForRentExemption(ctx context.Context, dataLen uint64) (uint64, error)
}

// RentOracle answers minimum_exempt_balance(size). The ledger keys the value by
// size only, so results are cached per size for the life of the process.
type RentOracle struct {
	fetcher RentFetcher
	cache   *ristretto.Cache[uint64, uint64]
	sfg     singleflight.Group
	timeout time.Duration
	metrics *metrics.Issuance
	logger  *zap.Logger
}

var _ issuance.BalanceOracle = (*RentOracle)(nil)

const (
	defaultRentCacheCounters = 1e4
	defaultRentCacheMaxCost  = 1 << 10
	defaultRentBufferItems   = 64
	defaultRentFetchTimeout  = 30 * time.Second
)

// NewRentOracle builds the oracle. maxEntries <= 0 and timeout <= 0 use the defaults.
// timeout bounds one shared fetch; it does not follow any single caller's context.
func NewRentOracle(fetcher RentFetcher, maxEntries int64, timeout time.Duration, m *metrics.Issuance, logger *zap.Logger) (*RentOracle, error) {
	if fetcher == nil {
		return nil, fmt.Errorf("rent oracle: fetcher is nil")
	}
	if maxEntries <= 0 {
		maxEntries = defaultRentCacheMaxCost
	}
	if timeout <= 0 {
		timeout = defaultRentFetchTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	c, err := ristretto.NewCache(&ristretto.Config[uint64, uint64]{
		NumCounters: defaultRentCacheCounters,
		MaxCost:     maxEntries,
		BufferItems: defaultRentBufferItems,
	})
	if err != nil {
		return nil, fmt.Errorf("rent oracle: new cache: %w", err)
	}
	return &RentOracle{
		fetcher: fetcher,
		cache:   c,
		timeout: timeout,
		metrics: m,
		logger:  logger.Named("rent"),
	}, nil
}

// MinimumExemptBalance never guesses: any fetch failure is OracleUnavailable.
func (o *RentOracle) MinimumExemptBalance(ctx context.Context, size uint64) (uint64, error) {
	if v, ok := o.cache.Get(size); ok {
		o.metrics.RentCacheHit()
		return v, nil
	}
	o.metrics.RentCacheMiss()

	// concurrent callers share one fetch, detached from whichever of them started it
	ch := o.sfg.DoChan(strconv.FormatUint(size, 10), func() (any, error) {
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), o.timeout)
		defer cancel()
		v, err := o.fetcher.GetMinimumBalanceForRentExemption(fctx, size)
		if err != nil {
			return uint64(0), err
		}
		if v == 0 {
			return uint64(0), fmt.Errorf("oracle returned zero balance for size %d", size)
		}
		o.cache.Set(size, v, 1)
		o.cache.Wait()
		return v, nil
	})

	var (
		res any
		err error
	)
	select {
	case r := <-ch:
		res, err = r.Val, r.Err
	case <-ctx.Done():
		err = ctx.Err()
	}
	if err != nil {
		o.logger.Warn("[rent] minimum balance lookup failed", zap.Uint64("size", size), zap.Error(err))
		return 0, issuance.NewSubmitError(issuance.KindOracleUnavailable,
			fmt.Sprintf("minimum exempt balance for %d bytes", size), err)
	}
	return res.(uint64), nil
}

// Close releases the cache goroutines.
func (o *RentOracle) Close() {
	if o != nil && o.cache != nil {
		o.cache.Close()
	}
}
