package metrics

import (
	"regexp"
	"strings"

	"github.com/quotascope/quotascope/internal/afs"
)

// Directory-level metric names.
const (
	metricCapacityUsed    = "afs_capacity_used_bytes"
	metricCapacityQuota   = "afs_capacity_quota_bytes"
	metricFileUsed        = "afs_file_quantity_used"
	metricFileQuota       = "afs_file_quantity_quota"
	metricDirectoryState  = "afs_directory_state"
	metricCapacityPercent = "afs_capacity_utilization_percent"
	metricFilePercent     = "afs_file_quantity_utilization_percent"
)

// labelCleaner matches everything not allowed to stay in a label value.
// Alphanumerics, hyphens, underscores, slashes and dots survive.
var labelCleaner = regexp.MustCompile(`[^a-zA-Z0-9_/.-]`)

// Transform converts the dir-quota entries of one volume into metric
// records. Utilization percentages are only emitted for directories with an
// actual limit; a quota of zero means unlimited and has no meaningful ratio.
func Transform(quotas []afs.DirQuota) []Record {
	records := make([]Record, 0, len(quotas)*7)
	for _, q := range quotas {
		labels := sanitizeLabels(map[string]string{
			"volume_id": q.VolumeID,
			"zone":      q.Zone,
			"dir_path":  q.DirPath,
		})

		records = append(records,
			Gauge(metricCapacityUsed, float64(q.CapacityUsedQuota), labels,
				"Used storage capacity in bytes"),
			Gauge(metricCapacityQuota, float64(q.CapacityQuota), labels,
				"Total capacity quota in bytes (0 means unlimited)"),
			Gauge(metricFileUsed, float64(q.FileQuantityUsedQuota), labels,
				"Number of files used"),
			Gauge(metricFileQuota, float64(q.FileQuantityQuota), labels,
				"File quantity quota (0 means unlimited)"),
			Gauge(metricDirectoryState, float64(q.State), labels,
				"Directory state (1=active, 0=inactive)"),
		)

		if q.CapacityQuota > 0 {
			pct := float64(q.CapacityUsedQuota) / float64(q.CapacityQuota) * 100
			records = append(records, Gauge(metricCapacityPercent, pct, labels,
				"Storage capacity utilization percentage"))
		}
		if q.FileQuantityQuota > 0 {
			pct := float64(q.FileQuantityUsedQuota) / float64(q.FileQuantityQuota) * 100
			records = append(records, Gauge(metricFilePercent, pct, labels,
				"File quantity utilization percentage"))
		}
	}
	return records
}

// sanitizeLabels cleans label values so arbitrary API strings cannot break
// the exposition. Characters outside the allowed set become underscores,
// edge underscores are trimmed, and values reduced to nothing fall back to
// "unknown".
func sanitizeLabels(labels map[string]string) map[string]string {
	out := make(map[string]string, len(labels))
	for k, v := range labels {
		v = labelCleaner.ReplaceAllString(v, "_")
		v = strings.Trim(v, "_")
		if v == "" {
			v = "unknown"
		}
		out[k] = v
	}
	return out
}
