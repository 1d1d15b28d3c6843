// Package config loads idctl configuration.
//
// Values are resolved in three layers: built-in defaults, an optional YAML
// file, then IDCTL_* environment variables.
//
//	api:
//	  base_url: https://identity.example.com
//	  timeout: 15s
//	session:
//	  store: redis
//	  redis_url: redis://localhost:6379/0
//	reconciler:
//	  concurrency: 4
//
// The file is read from $IDCTL_CONFIG, or from idctl/config.yaml under the
// user config directory when that variable is unset. A missing default file
// is not an error.
//
// Environment variables:
//
//	IDCTL_API_URL            identity service base URL
//	IDCTL_TIMEOUT            request timeout
//	IDCTL_SESSION_STORE      memory, file, or redis
//	IDCTL_SESSION_DIR        directory for the file store
//	IDCTL_REDIS_URL          redis URL for the redis store
//	IDCTL_REDIS_PREFIX       key prefix for the redis store
//	IDCTL_REDIS_TTL          expiry for the stored token (0 keeps it)
//	IDCTL_IDENTITY_SERVICE   roles claim key checked for admin
//	IDCTL_ADMIN_ROLE         role name that grants admin screens
//	IDCTL_CLEAR_UNDECODABLE  drop stored tokens that cannot be decoded
//	IDCTL_HYDRATION_TIMEOUT  profile hydration timeout
//	IDCTL_CONCURRENCY        max in-flight assignment calls per save
//	IDCTL_LOG_LEVEL          debug, info, warn, error
//	IDCTL_LOG_FORMAT         text or json
//	IDCTL_OTLP_ENDPOINT      OTLP/gRPC collector host:port (empty disables tracing)
//	IDCTL_OTLP_INSECURE      plaintext connection to the collector
package config
