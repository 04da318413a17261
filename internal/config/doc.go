// Package config loads and watches the exporter configuration file
// (config.yaml).
//
// Top-level types:
//   - Config{AFS, Server, Collection} — full config tree parsed from YAML
//   - AFSConfig — access_key_env, secret_key_env, base_url, volumes [];
//     AccessKey() and SecretKey() resolve credentials from environment
//     variables so secrets never sit in the file
//   - Volume — volume_id, zone
//   - ServerConfig — host, port, request_timeout, log_level
//   - CollectionConfig — max_retries, retry_delay, timeout_seconds,
//     cache_duration; all durations are plain seconds in the file
//
// Load(path) reads the YAML file, applies defaults (port 8080, 3 retries,
// 25s fetch timeout, 30s cache), then validates required fields, ranges and
// the constraint that a volume fetch must time out before the inbound
// request does.
//
// ValidateCredentials() checks the resolved keys at startup: length floors
// and obvious placeholder values fail fast instead of producing an exporter
// that can only emit authentication errors.
//
// Watch(ctx, path, onChange) uses fsnotify to detect file changes and calls
// onChange with the newly parsed Config. It handles the rename→create
// pattern used by atomic-save editors by re-adding the watch after each
// reload.
package config
