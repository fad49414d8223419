package config

import (
	"log"

	"github.com/spf13/viper"
)

type Config struct {
	Server struct {
		URL    string `mapstructure:"url"`
		APIURL string `mapstructure:"api_url"`
	} `mapstructure:"server"`
}

var Cfg *Config

// LoadConfig reads configs/config.yaml, allowing environment overrides.
func LoadConfig() {
	viper.AddConfigPath("./configs")
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	viper.SetDefault("server.url", "ws://localhost:8080/ws")
	viper.SetDefault("server.api_url", "http://localhost:8080/api")

	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Fatalf("Error reading config file: %s", err)
		}
	}

	if err := viper.Unmarshal(&Cfg); err != nil {
		log.Fatalf("Unable to decode config into struct: %v", err)
	}
}
