package config

type Config interface {
	EnvConfig
	ProviderConfig
	RefreshConfig
}

type mainConfig struct {
	EnvVars
	Provider
	Refresh
}

func New() Config {
	return mainConfig{}
}
