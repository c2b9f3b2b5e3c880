package storage

type Storage struct {
	basePath string
	key      []byte
}

type StoredCredentials struct {
	Username  string `json:"username"`
	Password  string `json:"password"`
	MainURL   string `json:"main_url"`
	MFASecret string `json:"mfa,omitempty"`
	Birthday  string `json:"birthday,omitempty"`
}

// Identity is the last known authenticated user as reported by the portal.
type Identity map[string]any
