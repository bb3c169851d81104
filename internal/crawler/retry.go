package crawler

import (
	"net/url"
	"sort"
	"time"
)

// RetryPool is a time-bucketed holding area for URLs that failed with a
// transient (timeout) error. Each URL carries an attempt counter; once the
// counter reaches the configured cap the pool refuses the URL and the caller
// must drop it permanently.
//
// The pool is owned by the workload loop and is not safe for concurrent use.
type RetryPool struct {
	threshold time.Duration
	cap       int
	clock     Clock

	buckets map[int64][]*url.URL // keyed by enqueue time (unix nanos)
	keys    []int64              // bucket keys, ascending
	counts  map[string]int
}

// NewRetryPool builds a pool that releases URLs once their bucket is older
// than threshold. A nil clock falls back to the system clock.
func NewRetryPool(threshold time.Duration, retryCap int, clock Clock) *RetryPool {
	if clock == nil {
		clock = systemClock{}
	}
	return &RetryPool{
		threshold: threshold,
		cap:       retryCap,
		clock:     clock,
		buckets:   make(map[int64][]*url.URL),
		counts:    make(map[string]int),
	}
}

// KeepRetry increments the attempt counter for u. If the counter reached the
// cap it returns false and does not enqueue; the URL is out of retry budget.
// Otherwise the URL joins the bucket for the current timestamp.
func (p *RetryPool) KeepRetry(u *url.URL) bool {
	key := u.String()
	p.counts[key]++
	if p.counts[key] >= p.cap {
		return false
	}

	now := p.clock.Now().UnixNano()
	if _, ok := p.buckets[now]; !ok {
		i := sort.Search(len(p.keys), func(i int) bool { return p.keys[i] >= now })
		p.keys = append(p.keys, 0)
		copy(p.keys[i+1:], p.keys[i:])
		p.keys[i] = now
	}
	p.buckets[now] = append(p.buckets[now], u)
	return true
}

// GetURL pops a URL from the earliest bucket if that bucket has cooled down
// past the threshold, or regardless of age when force is set. Within a bucket
// the order is LIFO. Drained buckets are removed.
func (p *RetryPool) GetURL(force bool) (*url.URL, bool) {
	if len(p.keys) == 0 {
		return nil, false
	}
	key := p.keys[0]
	if !force && p.clock.Now().Sub(time.Unix(0, key)) <= p.threshold {
		return nil, false
	}

	bucket := p.buckets[key]
	u := bucket[len(bucket)-1]
	bucket = bucket[:len(bucket)-1]
	if len(bucket) == 0 {
		delete(p.buckets, key)
		p.keys = p.keys[1:]
	} else {
		p.buckets[key] = bucket
	}
	return u, true
}

// Empty reports whether no URL is awaiting a retry.
func (p *RetryPool) Empty() bool {
	return len(p.keys) == 0
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }
