package mapper

import (
	"context"
	"fmt"

	"github.com/ammar0144/guideresto/pkg/redis"

	"github.com/cespare/xxhash/v2"
	log "github.com/sirupsen/logrus"
	"github.com/uber-go/tally/v4"
	"github.com/vmihailenco/msgpack/v5"
)

const fingerprintLength = 12

// finderCache puts restaurant finder results in Redis as id lists. It is
// best effort: Redis failures are logged and the finder falls back to the
// database. Results are neither read nor stored while a transaction is
// open, since they could expose uncommitted rows to other sessions.
type finderCache struct {
	cache *redis.FinderCache
	log   *log.Entry

	hits   tally.Counter
	misses tally.Counter
}

func (f *finderCache) enabled() bool {
	return f.cache != nil && f.cache.Enabled()
}

// fingerprint hashes the finder arguments into a short key segment
func fingerprint(args ...interface{}) string {
	data, err := msgpack.Marshal(args)
	if err != nil {
		data = []byte(fmt.Sprintf("%v", args))
	}
	return fmt.Sprintf("%016x", xxhash.Sum64(data))[:fingerprintLength]
}

func (f *finderCache) lookup(ctx context.Context, inTx bool, table, finder string, args ...interface{}) ([]int64, bool) {
	if !f.enabled() || inTx {
		return nil, false
	}

	ids, ok, err := f.cache.Lookup(ctx, table, finder, fingerprint(args...))
	if err != nil {
		f.report(err, "finder", finder, "finder cache lookup failed")
		return nil, false
	}
	if ok {
		f.hits.Inc(1)
	} else {
		f.misses.Inc(1)
	}
	return ids, ok
}

func (f *finderCache) store(ctx context.Context, inTx bool, table, finder string, ids []int64, args ...interface{}) {
	if !f.enabled() || inTx {
		return
	}
	if err := f.cache.Store(ctx, table, finder, fingerprint(args...), ids); err != nil {
		f.report(err, "finder", finder, "finder cache store failed")
	}
}

func (f *finderCache) invalidate(ctx context.Context, table string) {
	if !f.enabled() {
		return
	}
	if err := f.cache.InvalidateTable(ctx, table); err != nil {
		f.report(err, "table", table, "finder cache invalidation failed")
	}
}

// report logs a failed cache call. An unreachable server is an error, a
// failing command only a warning.
func (f *finderCache) report(err error, key, value, msg string) {
	entry := f.log.WithError(err).WithField(key, value)
	if redis.IsConnectionFailed(err) {
		entry.Error(msg)
		return
	}
	entry.Warn(msg)
}
