// Package config loads service configuration with Viper.
//
// A YAML file supplies the base values, a .env file and the process
// environment override them. Only variables carrying the VOICEID_ prefix
// are considered, and underscores map onto nested keys:
//
//	VOICEID_DISPATCHER_STALENESS_WINDOW=30s  ->  dispatcher.staleness_window
package config
