package asset

import (
	"encoding/binary"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"github.com/BunsDev/shareconomy-nft-factory/internal/domain"
)

// Template identifies a registered implementation for one asset kind. The
// factory snapshots the template at creation time, so instances deployed
// from it never observe later registry updates.
type Template struct {
	Address common.Address
	Kind    domain.Kind
}

// Fingerprint returns the template's code fingerprint, the stand-in for the
// init-code hash in the deterministic address derivation.
func (t Template) Fingerprint() common.Hash {
	var kind [4]byte
	binary.BigEndian.PutUint32(kind[:], uint32(t.Kind))
	return common.BytesToHash(ethcrypto.Keccak256(kind[:], t.Address.Bytes()))
}
