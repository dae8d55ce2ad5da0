package clientmanager

import "errors"

// ErrNotFound distinguishes "directory has never been written" from an
// empty but known off-set.
var ErrNotFound = errors.New("client manager address not found")

// AddressVersion is the versioned administrative record for one client
// address. Version 0 means "unassigned"; repositories stamp a monotonic
// version on write and reject regressions.
type AddressVersion struct {
	Address string `json:"address"`
	Open    bool   `json:"open"`
	Version int64  `json:"version"`
}

// NewAddressVersion builds an unversioned record; the repository assigns
// the version when the write is accepted.
func NewAddressVersion(address string, open bool) AddressVersion {
	return AddressVersion{Address: address, Open: open}
}

// ClientManagerAddress is a snapshot of the off-directory: the set of
// closed addresses plus the directory version. Version 0 means the
// directory has never been written.
type ClientManagerAddress struct {
	Version          int64                     `json:"version"`
	ClientOffAddress map[string]AddressVersion `json:"clientOffAddress,omitempty"`
}
