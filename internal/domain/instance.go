package domain

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Instance records a single asset contract deployed by the factory. The
// address is fully determined by (factory, template fingerprint, salt); the
// fingerprint is snapshotted at creation time so later registry updates
// never affect an existing instance.
type Instance struct {
	Address     common.Address
	Kind        Kind
	Creator     common.Address
	Salt        uint64
	Name        string
	Symbol      string
	Fingerprint common.Hash
	CreatedAt   time.Time
}
