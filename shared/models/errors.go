package models

import "errors"

// ErrAPIKeyNotFound is returned by API key resolvers for unknown or revoked keys.
var ErrAPIKeyNotFound = errors.New("api key not found")
