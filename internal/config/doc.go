// Package config loads dagflow settings from the environment.
//
// Every field has a default, and the defaults keep storage and events in
// process, so a bare `dagflow` needs neither Redis nor PostgreSQL.
// STORAGE_BACKEND and EVENTS_BACKEND switch to the external backends;
// Validate rejects combinations that lack the matching connection
// settings.
//
//	cfg, err := config.Load()
//	if err != nil {
//	    return err
//	}
//	logger.Info("listening", zap.String("addr", cfg.GetHTTPAddr()))
package config
