package config

type ProviderConfig interface {
	GetIssuerURL() string
	GetClientID() string
	GetClientSecret() string
	GetScopes() []string
}

type Provider struct{}

var _ ProviderConfig = Provider{}

func (Provider) GetIssuerURL() string {
	return GetEnv("OIDC_ISSUER_URL", "http://localhost:8180/realms/campus")
}

func (Provider) GetClientID() string {
	return GetEnv("OIDC_CLIENT_ID", "campusboard-dashboard")
}

func (Provider) GetClientSecret() string {
	return GetEnv("OIDC_CLIENT_SECRET", "")
}

func (Provider) GetScopes() []string {
	return []string{"openid", "profile", "email", "roles"}
}
