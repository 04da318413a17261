package collector

import "time"

// Status describes the collector's cache and collection state. It is the
// payload of the status endpoint.
type Status struct {
	Cached                    bool                   `json:"cached"`
	CacheAgeSeconds           float64                `json:"cache_age_seconds,omitempty"`
	CacheValid                bool                   `json:"cache_valid"`
	CachedMetricsCount        int                    `json:"cached_metrics_count"`
	CacheTTLSeconds           float64                `json:"cache_ttl_seconds"`
	CollectionDurationSeconds float64                `json:"collection_duration_seconds,omitempty"`
	Collections               int                    `json:"collections_total"`
	ConfiguredVolumes         int                    `json:"configured_volumes"`
	LastCollection            *time.Time             `json:"last_collection,omitempty"`
	CircuitBreakers           map[string]BreakerInfo `json:"circuit_breakers"`
}

// BreakerInfo is the JSON shape of one circuit breaker's state.
type BreakerInfo struct {
	State         string     `json:"state"`
	Failures      int        `json:"failures"`
	HalfOpenCalls int        `json:"half_open_calls,omitempty"`
	LastFailure   *time.Time `json:"last_failure,omitempty"`
}

// Status reports the current cache and breaker state without triggering a
// collection.
func (c *Collector) Status() Status {
	now := c.now()

	c.mu.Lock()
	collections := c.collections
	last := c.lastCollection
	ttl := c.coll.CacheTTL()
	volumes := len(c.volumes)
	c.mu.Unlock()

	s := Status{
		CachedMetricsCount: c.cache.size(),
		CacheTTLSeconds:    ttl.Seconds(),
		Collections:        collections,
		ConfiguredVolumes:  volumes,
		CircuitBreakers:    map[string]BreakerInfo{},
	}
	if age, ok := c.cache.age(now); ok {
		s.Cached = true
		s.CacheAgeSeconds = age.Seconds()
		s.CacheValid = ttl > 0 && age < ttl
	}
	if d, ok := c.cache.collectionDuration(); ok {
		s.CollectionDurationSeconds = d.Seconds()
	}
	if !last.IsZero() {
		s.LastCollection = &last
	}
	for name, st := range c.exec.BreakerStatus() {
		info := BreakerInfo{
			State:         st.State.String(),
			Failures:      st.Failures,
			HalfOpenCalls: st.HalfOpenCalls,
		}
		if !st.LastFailure.IsZero() {
			lf := st.LastFailure
			info.LastFailure = &lf
		}
		s.CircuitBreakers[name] = info
	}
	return s
}
