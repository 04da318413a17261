// Package metrics turns AFS quota data into Prometheus samples and renders
// them in the text exposition format. It deliberately has no registry: every
// scrape rebuilds the full record set, so stale series disappear on their
// own when directories or volumes go away.
package metrics
