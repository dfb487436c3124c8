package vault

import "errors"

// Codec errors. ErrAuthentication covers both a wrong password and a
// tampered or corrupted payload: AES-GCM cannot tell them apart and callers
// must not try to.
var (
	ErrIntegrity         = errors.New("vault: artifact too short to be a vault")
	ErrAuthentication    = errors.New("incorrect password or invalid file")
	ErrCryptoUnavailable = errors.New("vault: cryptographic primitives unavailable")
)

// Session and storage errors.
var (
	ErrVaultAlreadyExists = errors.New("vault: vault already exists at this path")
	ErrVaultNotFound      = errors.New("vault: vault not found at this path")
	ErrVaultLocked        = errors.New("vault: vault is locked")
	ErrEntryNotFound      = errors.New("vault: entry not found")
	ErrEmptyPassword      = errors.New("vault: master password cannot be empty")
	ErrInsufficientDisk   = errors.New("vault: insufficient disk space")
)

// Entry validation errors.
var (
	ErrNameRequired     = errors.New("vault: name is required")
	ErrNameTooLong      = errors.New("vault: name too long")
	ErrSecretRequired   = errors.New("vault: secret is required")
	ErrCategoryRequired = errors.New("vault: category is required")
	ErrNotesTooLarge    = errors.New("vault: notes too large")
	ErrURLTooLong       = errors.New("vault: url too long")
	ErrURLInvalid       = errors.New("vault: invalid url format")
	ErrTooManyTags      = errors.New("vault: too many tags")
	ErrTagInvalid       = errors.New("vault: invalid tag format")
)
