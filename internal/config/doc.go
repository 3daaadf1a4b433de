// Package config loads and validates the bridge-gateway YAML configuration.
//
// The config file location is resolved by the caller (see cmd/bridge-gateway);
// this package only parses. Environment variables referenced as ${VAR} in the
// file are expanded before YAML parsing, so secrets can stay out of the file:
//
//	auth:
//	  jwt_secret: ${BRIDGE_JWT_SECRET}
//	  api_keys: ${BRIDGE_API_KEYS}
//
// Duration fields accept Go duration strings ("30s", "2m"). Unset fields fall
// back to the Default* constants.
package config
