// Component for caching arbitrary data (as JSON strings) with a fixed TTL and
// purging.
//
// Includes an interface and implementations using redis and in-process memory.
//
// The gate uses this for the aggregate stats view, which aggregates several
// table scans and does not need to be fresher than the TTL.
package cachestore
