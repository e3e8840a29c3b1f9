package config

// EnvPrefix is intentionally empty: every field names its env var explicitly.
const EnvPrefix = ""

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvDBDSN  = "FANLINK_DB_DSN"
	EnvDBHost = "FANLINK_DB_HOST"
	EnvDBUser = "FANLINK_DB_USER"
	EnvDBName = "FANLINK_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
