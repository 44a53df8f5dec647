package config

const (
	// EnvPrefix is empty because every envconfig tag already carries the
	// PAYRELAY_ prefix explicitly.
	EnvPrefix = ""

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvDBDSN  = "PAYRELAY_DB_DSN"
	EnvDBHost = "PAYRELAY_DB_HOST"
	EnvDBUser = "PAYRELAY_DB_USER"
	EnvDBName = "PAYRELAY_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
