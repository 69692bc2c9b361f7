// Package config loads runtime configuration for the offsync client.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional JSON file selected via -c or -config.
//  3. Command-line flags, which override earlier values.
//
// # JSON schema
//
//	{
//	  "upload_url": "http://127.0.0.1:8080/api/upload",
//	  "probe_url": "http://127.0.0.1:8080/favicon.ico",
//	  "health_addr": "",
//	  "online_check_interval": "3s",
//	  "probe_timeout": "3s",
//	  "database_path": "files.db",
//	  "inbox_dir": "",
//	  "auth_secret": "",
//	  "device_id": "",
//	  "log_level": "info"
//	}
package config
