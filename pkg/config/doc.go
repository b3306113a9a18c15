// Package config loads, validates and hot-reloads keeper configuration.
//
// # Loading
//
// Configuration is read from a YAML file and decoded on top of Default(),
// then ApplyDefaults fills any zero fields, environment overrides are
// applied and the result is validated:
//
//	cfg, err := config.LoadConfigWithEnvOverrides("keeper.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// Environment variables follow the KEEPER_SECTION_FIELD convention, for
// example KEEPER_STORAGE_PATH, KEEPER_QUOTA_MAX_COUNT or
// KEEPER_TELEMETRY_LOGGING_LEVEL. They always win over the file.
//
// # Example
//
//	storage:
//	  path: data/keeper.db
//	  driver: sqlite3
//	  raw_dir: data/raw
//	  categories_dir: data/categories
//	retention:
//	  max_age_days: 30
//	  max_access_age_days: 7
//	  priority_image_retention: 90
//	  failure_retention_days: 1
//	  category_policies:
//	    receipts:
//	      max_age_days: 365
//	quota:
//	  max_count: 10000
//	  max_size: 1073741824
//	  strategy: hybrid
//	maintenance:
//	  schedule: "*/15 * * * *"
//	telemetry:
//	  logging:
//	    level: info
//	    format: json
//
// # Validation
//
// Validate collects every problem into a ValidationError made of FieldErrors
// keyed by dotted YAML path.
//
// # Hot reload
//
// Watcher observes the file with fsnotify, debounces bursts of events,
// reloads through ReloadConfig and records each changed key in the
// configuration history with changed_by "file_watcher". An invalid file is
// rejected and the running configuration stays in place.
package config
