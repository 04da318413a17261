// Package collector orchestrates quota collection across all configured AFS
// volumes. One cycle fans out over the volumes with bounded parallelism, runs
// each fetch through the retry executor, and folds the per-volume outcomes
// into a single record set: quota data, per-volume status, cycle aggregates
// and scrape metadata. The result is cached between scrapes, and concurrent
// scrapes coalesce onto one in-flight cycle.
package collector
