// Package config loads the service configuration.
//
// Configuration comes from a YAML file, then defaults, then environment
// variables. The service's own variables use the ROASTLINE_ prefix
// (ROASTLINE_LISTEN_ADDRESS, ROASTLINE_DB_PATH, ROASTLINE_ROASTS_DB_PATH,
// ROASTLINE_LOG_LEVEL and a few more). ANTHROPIC_API_KEY, ADMIN_PASSWORD,
// SECRET_KEY and TRUSTED_PROXY_COUNT are read unprefixed. A .env file in the
// working directory is loaded first and never overrides the environment.
//
// Example configuration:
//
//	server:
//	  listen_address: ":8080"
//	  write_timeout: 150s
//	storage:
//	  db_path: data/roastline.db
//	  roasts_db_path: data/roasts.db
//	reviewer:
//	  timeout: 60s
//	  max_attempts: 2
//	security:
//	  trusted_proxy_count: 1
//	  secure_cookies: true
//	retention:
//	  keep_days: 7
//	  schedule: "0 3 * * *"
//	telemetry:
//	  logging:
//	    level: info
//	    format: json
//	    file: /var/log/roastline/roastline.log
//
// Budget, quotas, input limits, the kill switch and the model are not part
// of this file. They are runtime settings stored in the database and edited
// from the admin page or the settings command.
//
// Initialize stores the loaded configuration as a process singleton.
// Watcher reloads it when the file changes; the listen address, database
// paths and session key keep their startup values until a restart.
package config
