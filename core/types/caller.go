package types

import "helixchain/crypto"

// Caller identifies the authority invoking a runtime operation. Privileged
// operations (pool creation, reward schedule updates) require the root
// caller; everything else requires a signed account.
type Caller struct {
	root    bool
	account crypto.Address
}

// Root returns the privileged caller.
func Root() Caller {
	return Caller{root: true}
}

// Signed returns a caller acting on behalf of an account.
func Signed(account crypto.Address) Caller {
	return Caller{account: account}
}

// IsRoot reports whether the caller carries root authority.
func (c Caller) IsRoot() bool {
	return c.root
}

// Account returns the signing account and whether one is present.
func (c Caller) Account() (crypto.Address, bool) {
	if c.root || c.account.IsZero() {
		return crypto.Address{}, false
	}
	return c.account, true
}
