// Package config loads Lantern's settings.
//
// # Resolution Order
//
//  1. Defaults (see Default)
//  2. The TOML file at the given path, or ~/.config/lantern/config.toml
//  3. A .env file in the working directory, if present
//  4. LANTERN_* environment variables
//
// A missing config file is not an error. Empty or non-positive values in
// the file leave the default in place.
//
// # TOML Format
//
//	poll_interval = "1s"
//	cache_capacity = 2000
//	chunk_size = 1048576
//	preview_lines = 50
//	sample_lines = 1000
//	formats_file = "~/.config/lantern/formats.toml"
//	builtin_formats = true
//	watch_files = true
//	log_file = "~/.local/state/lantern/lantern.log"
//
//	[s3]
//	endpoint = "localhost:9000"
//	region = "us-east-1"
//	access_key = "minio"
//	secret_key = "minio123"
//	use_ssl = false
//
// S3 credentials fall back to MINIO_ROOT_USER and MINIO_ROOT_PASSWORD when
// neither the file nor LANTERN_S3_ACCESS_KEY / LANTERN_S3_SECRET_KEY set them.
//
// Tilde expansion is applied to the config path, formats_file and log_file.
package config
