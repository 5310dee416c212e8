// Package config loads and watches the agent configuration file.
//
// Top-level types:
//   - Config{Agent}: full config tree parsed from YAML
//   - AgentConfig: source_id, server_endpoint, poll_interval, buffer_size,
//     source, rollup, server_auth
//   - Source: type (todoist|file), endpoint, path, token_env, paging and
//     timeout settings; Token() resolves the API token from the environment
//   - RollupConfig: due_soon_days, stale_days, week_start
//   - AuthConfig: mode (mtls|apikey|none), cert/key/ca files, header,
//     key_env; Key() resolves from the environment
//
// Load(path) reads the YAML file, applies defaults (5m poll, 16 buffer,
// 7-day due-soon window, 14-day staleness, Monday weeks), then validates.
//
// Watch(ctx, path, onChange) uses fsnotify to detect file changes and calls
// onChange with the newly parsed Config. It handles the rename-then-create pattern
// used by atomic-save editors by re-adding the watch after each reload.
package config
