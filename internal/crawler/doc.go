// Package crawler implements the crawl orchestration engine: the bounded
// engine ring, the frontier with deduplication, the time-bucketed retry pool,
// the robots.txt permission cache, and the workload control loop that ties
// them together.
//
// The workload is the sole owner of all crawl state. Concurrent fetches
// communicate exclusively through a completion channel, so the frontier, the
// seen set, the retry pool, and the ring bookkeeping never need locks.
package crawler
