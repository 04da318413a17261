package collector

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/quotascope/quotascope/internal/afs"
	"github.com/quotascope/quotascope/internal/config"
	"github.com/quotascope/quotascope/internal/metrics"
	"github.com/quotascope/quotascope/internal/retry"
)

// maxConcurrentFetches caps how many volumes are queried at once regardless
// of how many are configured.
const maxConcurrentFetches = 5

// maxErrorMessageLen bounds the error_message label so a long upstream body
// cannot bloat the exposition.
const maxErrorMessageLen = 100

// Fetcher fetches the directory quota list for one volume. *afs.Client is
// the production implementation.
type Fetcher interface {
	DirQuotas(ctx context.Context, volumeID, zone string) ([]afs.DirQuota, error)
}

// Collector runs collection cycles across all configured volumes and caches
// the resulting metric records between scrapes.
type Collector struct {
	client Fetcher
	exec   *retry.Executor
	cache  cache
	group  singleflight.Group

	mu             sync.Mutex
	volumes        []config.Volume
	coll           config.CollectionConfig
	collections    int
	lastCollection time.Time

	now func() time.Time
}

// volumeResult is the outcome of collecting one volume within a cycle.
type volumeResult struct {
	volumeID    string
	zone        string
	records     []metrics.Record
	err         error
	circuitOpen bool
	duration    time.Duration
}

// New builds a Collector for the volumes in cfg.
func New(cfg *config.Config, client Fetcher, exec *retry.Executor) *Collector {
	return &Collector{
		client:  client,
		exec:    exec,
		volumes: cfg.AFS.Volumes,
		coll:    cfg.Collection,
		now:     time.Now,
	}
}

// Collect returns the full metric set for one scrape. Within the cache TTL it
// serves the previous snapshot; otherwise concurrent callers coalesce onto a
// single collection cycle and share its result. It returns an error only when
// every configured volume fails.
func (c *Collector) Collect(ctx context.Context) ([]metrics.Record, error) {
	if recs, ok := c.cache.fresh(c.now(), c.ttl()); ok {
		slog.Debug("collector: serving cached metrics", "records", len(recs))
		return recs, nil
	}

	// The first caller's context drives the shared cycle; coalesced callers
	// share its fate.
	v, err, shared := c.group.Do("collect", func() (any, error) {
		if recs, ok := c.cache.fresh(c.now(), c.ttl()); ok {
			return recs, nil
		}
		return c.collect(ctx)
	})
	if err != nil {
		return nil, err
	}
	if shared {
		slog.Debug("collector: scrape coalesced with in-flight collection")
	}
	return v.([]metrics.Record), nil
}

// Invalidate drops the cached snapshot so the next scrape collects fresh
// data.
func (c *Collector) Invalidate() {
	c.cache.clear()
	slog.Info("collector: cache invalidated")
}

// UpdateConfig swaps in a reloaded volume list and collection settings and
// invalidates the cache. Credentials, base URL and retry policy changes still
// require a restart.
func (c *Collector) UpdateConfig(cfg *config.Config) {
	c.mu.Lock()
	c.volumes = cfg.AFS.Volumes
	c.coll = cfg.Collection
	c.mu.Unlock()
	c.Invalidate()
	slog.Info("collector: configuration updated", "volumes", len(cfg.AFS.Volumes))
}

// collect runs one full collection cycle and stores the result.
func (c *Collector) collect(ctx context.Context) ([]metrics.Record, error) {
	c.mu.Lock()
	volumes := c.volumes
	coll := c.coll
	cycle := c.collections + 1
	last := c.lastCollection
	c.mu.Unlock()

	start := c.now()
	slog.Info("collector: starting collection", "cycle", cycle, "volumes", len(volumes))

	results := c.fetchAll(ctx, volumes, coll.Timeout())

	var all []metrics.Record
	var failed []string
	for _, r := range results {
		if r.err == nil {
			all = append(all, r.records...)
		} else {
			failed = append(failed, r.volumeID+"@"+r.zone)
		}
	}

	all = append(all, c.statusRecords(results)...)

	if len(results) > 0 && len(failed) == len(results) {
		slog.Error("collector: all volumes failed", "volumes", len(results))
		return nil, &afs.PartialCollectionError{Failed: failed, Total: len(results)}
	}
	if len(failed) > 0 {
		slog.Warn("collector: partial collection failure",
			"failed", len(failed), "total", len(results), "volumes", strings.Join(failed, ", "))
	}

	duration := c.now().Sub(start)
	all = append(all, c.metadataRecords(duration, cycle, last, coll, len(volumes))...)

	c.cache.store(all, c.now(), duration)

	c.mu.Lock()
	c.collections = cycle
	c.lastCollection = c.now()
	c.mu.Unlock()

	slog.Info("collector: collection complete",
		"cycle", cycle, "records", len(all), "duration", duration.Round(time.Millisecond))
	return all, nil
}

// fetchAll collects every volume with bounded parallelism and returns one
// result per volume, in configuration order.
func (c *Collector) fetchAll(ctx context.Context, volumes []config.Volume, timeout time.Duration) []volumeResult {
	results := make([]volumeResult, len(volumes))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(min(len(volumes), maxConcurrentFetches))
	for i, vol := range volumes {
		i, vol := i, vol
		g.Go(func() error {
			results[i] = c.fetchVolume(ctx, vol, timeout)
			return nil
		})
	}
	// Workers never return errors; per-volume failures live in results.
	_ = g.Wait()
	return results
}

// fetchVolume collects one volume through the retry executor, using a per
// volume circuit so one failing volume cannot block the others.
func (c *Collector) fetchVolume(ctx context.Context, vol config.Volume, timeout time.Duration) volumeResult {
	out := c.exec.Do(ctx, circuitKey(vol.VolumeID), func(ctx context.Context) (any, error) {
		fetchCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		quotas, err := c.client.DirQuotas(fetchCtx, vol.VolumeID, vol.Zone)
		if err != nil {
			return nil, err
		}
		return metrics.Transform(quotas), nil
	})

	res := volumeResult{
		volumeID:    vol.VolumeID,
		zone:        vol.Zone,
		circuitOpen: out.CircuitOpen,
		duration:    out.Duration,
	}
	if out.OK {
		res.records = out.Value.([]metrics.Record)
		slog.Debug("collector: volume collected",
			"volume_id", vol.VolumeID, "zone", vol.Zone,
			"records", len(res.records), "attempts", len(out.Attempts))
		return res
	}
	res.err = out.Err
	slog.Error("collector: volume collection failed",
		"volume_id", vol.VolumeID, "zone", vol.Zone,
		"attempts", len(out.Attempts), "error", out.Err)
	return res
}

// statusRecords builds the per-volume success indicators and the cycle
// aggregates.
func (c *Collector) statusRecords(results []volumeResult) []metrics.Record {
	var recs []metrics.Record
	var successful int
	var totalDuration time.Duration

	for _, r := range results {
		labels := map[string]string{"volume_id": r.volumeID, "zone": r.zone}
		success := 0.0
		if r.err == nil {
			success = 1.0
			successful++
		}
		totalDuration += r.duration

		recs = append(recs,
			metrics.Gauge("afs_collection_success", success, labels,
				"Success indicator for volume collection (1=success, 0=failure)"),
			metrics.Gauge("afs_collection_duration_seconds", r.duration.Seconds(), labels,
				"Duration of volume collection in seconds"),
		)
		if r.err == nil {
			recs = append(recs, metrics.Gauge("afs_volume_metrics_count", float64(len(r.records)), labels,
				"Number of metrics collected from this volume"))
			continue
		}

		category := afs.Category(r.err)
		if r.circuitOpen {
			category = afs.CategoryCircuitOpen
		}
		recs = append(recs, metrics.Gauge("afs_collection_error", 1.0, map[string]string{
			"volume_id":      r.volumeID,
			"zone":           r.zone,
			"error_category": category,
			"error_message":  truncateMessage(r.err.Error()),
		}, "Indicates an error occurred during volume collection"))
	}

	if total := len(results); total > 0 {
		recs = append(recs,
			metrics.Gauge("afs_collection_success_rate", float64(successful)/float64(total), nil,
				"Success rate of volume collections (0.0 to 1.0)"),
			metrics.Gauge("afs_collection_volumes_successful", float64(successful), nil,
				"Number of volumes successfully collected"),
			metrics.Gauge("afs_collection_volumes_failed", float64(total-successful), nil,
				"Number of volumes that failed collection"),
			metrics.Gauge("afs_collection_volumes_total", float64(total), nil,
				"Total number of volumes attempted"),
			metrics.Gauge("afs_collection_average_duration_seconds", totalDuration.Seconds()/float64(total), nil,
				"Average collection duration per volume in seconds"),
		)
	}
	return recs
}

// metadataRecords builds the scrape bookkeeping metrics appended to every
// successful cycle.
func (c *Collector) metadataRecords(duration time.Duration, cycle int, last time.Time, coll config.CollectionConfig, volumeCount int) []metrics.Record {
	now := c.now()
	recs := []metrics.Record{
		metrics.Gauge("afs_scrape_duration_seconds", duration.Seconds(), nil,
			"Total duration of the metrics scrape in seconds"),
		metrics.Gauge("afs_scrape_timestamp", float64(now.Unix()), nil,
			"Unix timestamp of the last scrape"),
		{
			Name:  "afs_collection_total",
			Value: float64(cycle),
			Help:  "Total number of collection cycles performed",
			Type:  "counter",
		},
		metrics.Gauge("afs_configured_volumes", float64(volumeCount), nil,
			"Number of configured AFS volumes"),
	}

	if age, ok := c.cache.age(now); ok {
		recs = append(recs,
			metrics.Gauge("afs_cache_hit", 1.0, nil,
				"Whether cached data existed when this cycle ran (1=yes, 0=no)"),
			metrics.Gauge("afs_cache_age_seconds", age.Seconds(), nil,
				"Age of the cached data in seconds"),
		)
	} else {
		recs = append(recs, metrics.Gauge("afs_cache_hit", 0.0, nil,
			"Whether cached data existed when this cycle ran (1=yes, 0=no)"))
	}
	if !last.IsZero() {
		recs = append(recs, metrics.Gauge("afs_time_since_last_collection_seconds", now.Sub(last).Seconds(), nil,
			"Time since the previous collection cycle in seconds"))
	}

	recs = append(recs,
		metrics.Gauge("afs_config_max_retries", float64(coll.MaxRetries), nil,
			"Configured maximum retry attempts"),
		metrics.Gauge("afs_config_timeout_seconds", float64(coll.TimeoutSeconds), nil,
			"Configured collection timeout in seconds"),
		metrics.Gauge("afs_config_cache_duration_seconds", float64(coll.CacheDuration), nil,
			"Configured cache duration in seconds"),
	)

	recs = append(recs, c.breakerRecords()...)
	return recs
}

// breakerRecords reports the state of every circuit the executor has opened a
// breaker for, in stable name order.
func (c *Collector) breakerRecords() []metrics.Record {
	status := c.exec.BreakerStatus()
	names := make([]string, 0, len(status))
	for name := range status {
		names = append(names, name)
	}
	sort.Strings(names)

	var recs []metrics.Record
	for _, name := range names {
		st := status[name]
		healthy := 0.0
		if st.State == retry.Closed {
			healthy = 1.0
		}
		recs = append(recs,
			metrics.Gauge("afs_circuit_breaker_state", healthy, map[string]string{
				"circuit_breaker": name,
				"state":           st.State.String(),
			}, "Circuit breaker state (1=closed/healthy, 0=open/failing)"),
			metrics.Gauge("afs_circuit_breaker_failures", float64(st.Failures), map[string]string{
				"circuit_breaker": name,
			}, "Number of failures recorded by the circuit breaker"),
		)
	}
	return recs
}

// ttl returns the current cache TTL under the config lock.
func (c *Collector) ttl() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.coll.CacheTTL()
}

// truncateMessage caps a message at maxErrorMessageLen bytes for use as a
// label value. The byte cut can split a multi-byte rune, and a partial rune
// in a label makes the whole exposition unparseable.
func truncateMessage(msg string) string {
	if len(msg) > maxErrorMessageLen {
		msg = msg[:maxErrorMessageLen]
	}
	return strings.ToValidUTF8(msg, "")
}

// circuitKey derives a stable breaker name from a volume ID. IDs may carry
// query-style characters that would make awkward label values.
func circuitKey(volumeID string) string {
	r := strings.NewReplacer("&", "_", "=", "_")
	return "afs_api_" + r.Replace(volumeID)
}
