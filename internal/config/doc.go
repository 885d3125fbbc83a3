// Package config loads the raidlog TOML configuration.
//
// Load reads ~/.config/raidlog/config.toml unless another path is given. A
// missing file is not an error: Default is returned so raidlog works without
// any configuration. Empty or absent keys keep their defaults.
//
// # TOML Format
//
//	selected_path      = "~/Games/RaidGame/Logs"
//	search_everywhere  = false
//	inactivity_timeout = "30s"
//	poll_interval      = "250ms"
//	history_size       = 20
//	merge_pets         = true
//	extend_on          = ["damage", "heal"]
//	self_name          = "Alice"
//
//	[[filters]]
//	pattern = "Training Dummy*"
//	action  = "exclude"
//
//	[http]
//	addr = "127.0.0.1:7480"
//
//	[nats]
//	url            = "nats://127.0.0.1:4222"
//	subject_prefix = "raidlog"
//
// Durations are Go duration strings. Paths may start with ~.
//
// Command-line flags override file values; see cmd/raidlog.
package config
