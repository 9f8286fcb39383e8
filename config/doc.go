// Package config loads runkit configuration with Viper.
//
// LoadConfig reads an optional YAML file (explicit, or discovered as
// ./runkit.yml, ./config/config.yml, ./config.yml or the user config dir),
// an optional .env file loaded with godotenv, and RUNKIT_* environment
// variables, then unmarshals the result into the caller's struct. Structs
// follow the ApplyDefaults/Validate convention:
//
//	var cfg AppConfig
//	if err := config.LoadConfig("runkit", &cfg, config.WithConfigFile(path)); err != nil {
//		return err
//	}
//	cfg.ApplyDefaults()
//	if err := cfg.Validate(); err != nil {
//		return err
//	}
package config
