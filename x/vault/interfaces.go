package vault

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Authority is the factory-side capability registry every vault consults at
// call time. Values are never cached by the vault: rotating one identity at
// the factory must affect every vault instance simultaneously.
type Authority interface {
	// Publisher returns the current claim signer, the previous signer and the
	// end of the rotation grace window. The previous signer is only trusted
	// while the window is open.
	Publisher() (current, old common.Address, graceEnd time.Time)
	Guardian() common.Address
	Timelock() common.Address
	Treasury() common.Address
}

// AssetLedger is the token surface the vault custodies funds through.
type AssetLedger interface {
	BalanceOf(token, account common.Address) *big.Int
	Transfer(token, from, to common.Address, amount *big.Int) error
	TransferFrom(token, spender, owner, to common.Address, amount *big.Int) error
	Permit(token, owner, spender common.Address, value *big.Int, deadline uint64, sig []byte) error
}
