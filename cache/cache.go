package cache

import (
	"fmt"
	"sync"
	"time"

	"github.com/karlseguin/ccache/v3"
)

var DefaultStatusLineTTL = 1 * time.Hour

type Cache struct {
	StatusLines StatusLinesCache
}

func New() *Cache {
	statusLinesCache := ccache.New(
		ccache.Configure[string]().
			MaxSize(1000).
			GetsPerPromote(3).
			ItemsToPrune(1),
	)

	return &Cache{
		StatusLines: StatusLinesCache{
			c:   statusLinesCache,
			mux: sync.Mutex{},
		},
	}
}

// StatusLinesCache holds rendered status lines keyed by track URI.
type StatusLinesCache struct {
	c   *ccache.Cache[string]
	mux sync.Mutex
}

func (c *StatusLinesCache) Fetch(
	k string,
	ttl time.Duration,
	fetch func() (string, error),
) (*ccache.Item[string], error) {
	c.mux.Lock()
	defer c.mux.Unlock()

	v, err := c.c.Fetch(k, ttl, fetch)
	if nil != err {
		return nil, fmt.Errorf("fetch status line: %w", err)
	}

	return v, nil
}

func (c *StatusLinesCache) Close() {
	c.c.Stop()
}
