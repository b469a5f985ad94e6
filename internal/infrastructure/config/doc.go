// Package config handles loading and validating Flashlight Core configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Overriding with environment variables
//   - Validation of required fields
//   - Default value handling
//
// The upstream section (host, port, max_reconnect_attempts) must be valid
// before the command pipeline can start.
//
// Usage:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    return err
//	}
//	fmt.Println(cfg.Upstream.Address())
package config
