// Package config loads platesolve settings.
//
// # Resolution Order
//
//  1. Defaults
//  2. The TOML file (explicit path, else ~/.config/platesolve/config.toml)
//  3. .env files, loaded into the process environment without replacing
//     variables that are already set
//  4. Environment variables: ASTROMETRY_API_KEY, ASTROMETRY_BASE_URL,
//     PLATESOLVE_CACHE_DIR, PLATESOLVE_POLL_SECONDS
//
// A missing config file or .env file is not an error, so platesolve works
// with nothing but ASTROMETRY_API_KEY exported.
//
// # Defaults
//
//   - base_url: https://nova.astrometry.net/
//   - cache_dir: empty, meaning the user cache dir (see internal/cache)
//   - log_file: ~/.local/share/platesolve/platesolve.log
//   - log_level: info
//   - poll_seconds: 3, clamped to 2..5
//   - theme: Dracula
//   - watch.schedule: @every 5m
//   - notify.email.port: 465
//
// # TOML Format
//
//	api_key = "..."
//	poll_seconds = 3
//	theme = "Slate"
//
//	[watch]
//	dir = "~/captures"
//	schedule = "*/10 * * * *"
//
//	[notify]
//	slack_webhook = "https://hooks.slack.com/services/..."
//	discord_webhook = ""
//
//	[notify.email]
//	smtp_host = "smtp.example.com"
//	from = "scope@example.com"
//	to = ["me@example.com"]
//	password = "..."
//
// Strings are trimmed. Paths accept a leading tilde and are made absolute.
//
// # Errors
//
// Load fails on unreadable files, TOML syntax errors and a non-numeric
// PLATESOLVE_POLL_SECONDS. Validate reports ErrMissingAPIKey; commands that
// never reach the service (cache key, logs) skip it.
package config
