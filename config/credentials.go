package config

// CredentialsKind tells which authentication scheme a Credentials value holds
type CredentialsKind int

const (
	NoAuth CredentialsKind = iota
	APIKeyAuth
	BasicAuth
)

func (k CredentialsKind) String() string {
	switch k {
	case APIKeyAuth:
		return "api key"
	case BasicAuth:
		return "user/password"
	default:
		return "none"
	}
}

// Credentials holds exactly one of: an encoded API key, a user/password pair, or nothing.
// The zero value is NoAuth.
type Credentials struct {
	kind     CredentialsKind
	apiKey   string
	user     string
	password string
}

// APIKey creates API key credentials, sent as "Authorization: ApiKey <key>"
func APIKey(key string) Credentials {
	return Credentials{kind: APIKeyAuth, apiKey: key}
}

// UserPassword creates basic auth credentials
func UserPassword(user, password string) Credentials {
	return Credentials{kind: BasicAuth, user: user, password: password}
}

func (c Credentials) Kind() CredentialsKind {
	return c.kind
}

// APIKey returns the API key, or "" for other kinds
func (c Credentials) APIKey() string {
	return c.apiKey
}

// UserPassword returns user and password, or empty strings for other kinds
func (c Credentials) UserPassword() (string, string) {
	return c.user, c.password
}

// String never reveals secrets
func (c Credentials) String() string {
	if c.kind == BasicAuth {
		return "user/password (" + c.user + ")"
	}
	return c.kind.String()
}
