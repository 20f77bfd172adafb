// Package bank is the in-process asset ledger the protocol custodies funds in.
// It carries ERC-20 semantics (balances, allowances, permit approvals) keyed by
// asset address so vault accounting and transfer ordering behave exactly as
// they would against on-chain tokens.
package bank

import (
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"
)

var (
	ErrAssetExists       = errors.New("asset already registered")
	ErrAssetUnknown      = errors.New("asset not registered")
	ErrZeroAddress       = errors.New("zero address")
	ErrInvalidAmount     = errors.New("amount must be positive")
	ErrInsufficientFunds = errors.New("insufficient balance")
	ErrInsufficientAllow = errors.New("insufficient allowance")
)

// Asset describes a registered token.
type Asset struct {
	Address  common.Address `json:"address"`
	Name     string         `json:"name"`
	Symbol   string         `json:"symbol"`
	Decimals uint8          `json:"decimals"`
}

// Bank holds every registered asset's balances and allowances. All amounts are
// non-negative big integers; mutating calls are serialized.
type Bank struct {
	log     zerolog.Logger
	chainID uint64

	mu         sync.RWMutex
	assets     map[common.Address]Asset
	balances   map[common.Address]map[common.Address]*big.Int
	allowances map[common.Address]map[common.Address]map[common.Address]*big.Int
	nonces     map[common.Address]map[common.Address]uint64
}

// New creates an empty bank for the given chain. The chain id binds permit
// signatures (EIP-2612 domain).
func New(chainID uint64, log zerolog.Logger) *Bank {
	return &Bank{
		log:        log.With().Str("component", "bank").Logger(),
		chainID:    chainID,
		assets:     make(map[common.Address]Asset),
		balances:   make(map[common.Address]map[common.Address]*big.Int),
		allowances: make(map[common.Address]map[common.Address]map[common.Address]*big.Int),
		nonces:     make(map[common.Address]map[common.Address]uint64),
	}
}

// Register adds a new asset.
func (b *Bank) Register(asset Asset) error {
	if asset.Address == (common.Address{}) {
		return ErrZeroAddress
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.assets[asset.Address]; ok {
		return fmt.Errorf("%w: %s", ErrAssetExists, asset.Address.Hex())
	}

	b.assets[asset.Address] = asset
	b.balances[asset.Address] = make(map[common.Address]*big.Int)
	b.allowances[asset.Address] = make(map[common.Address]map[common.Address]*big.Int)
	b.nonces[asset.Address] = make(map[common.Address]uint64)

	b.log.Info().
		Str("token", asset.Address.Hex()).
		Str("symbol", asset.Symbol).
		Msg("Asset registered")

	return nil
}

// Asset returns a registered asset's description.
func (b *Bank) Asset(token common.Address) (Asset, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	asset, ok := b.assets[token]
	if !ok {
		return Asset{}, fmt.Errorf("%w: %s", ErrAssetUnknown, token.Hex())
	}
	return asset, nil
}

// Mint credits freshly issued units to an account. Dev/funding surface only.
func (b *Bank) Mint(token, to common.Address, amount *big.Int) error {
	if err := validAmount(amount); err != nil {
		return err
	}
	if to == (common.Address{}) {
		return ErrZeroAddress
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	balances, ok := b.balances[token]
	if !ok {
		return fmt.Errorf("%w: %s", ErrAssetUnknown, token.Hex())
	}

	balances[to] = new(big.Int).Add(balanceOf(balances, to), amount)
	return nil
}

// BalanceOf returns the account's balance. Unknown assets report zero.
func (b *Bank) BalanceOf(token, account common.Address) *big.Int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	balances, ok := b.balances[token]
	if !ok {
		return new(big.Int)
	}
	return new(big.Int).Set(balanceOf(balances, account))
}

// Transfer moves amount from the caller's balance to another account.
func (b *Bank) Transfer(token, from, to common.Address, amount *big.Int) error {
	if err := validAmount(amount); err != nil {
		return err
	}
	if to == (common.Address{}) {
		return ErrZeroAddress
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	return b.move(token, from, to, amount)
}

// Approve sets spender's allowance over owner's funds.
func (b *Bank) Approve(token, owner, spender common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return ErrInvalidAmount
	}
	if spender == (common.Address{}) {
		return ErrZeroAddress
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	allowances, ok := b.allowances[token]
	if !ok {
		return fmt.Errorf("%w: %s", ErrAssetUnknown, token.Hex())
	}

	b.setAllowance(allowances, owner, spender, amount)
	return nil
}

// Allowance returns spender's remaining allowance over owner's funds.
func (b *Bank) Allowance(token, owner, spender common.Address) *big.Int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	allowances, ok := b.allowances[token]
	if !ok {
		return new(big.Int)
	}
	if byOwner, ok := allowances[owner]; ok {
		if a, ok := byOwner[spender]; ok {
			return new(big.Int).Set(a)
		}
	}
	return new(big.Int)
}

// TransferFrom moves amount from owner to recipient, consuming spender's
// allowance.
func (b *Bank) TransferFrom(token, spender, owner, to common.Address, amount *big.Int) error {
	if err := validAmount(amount); err != nil {
		return err
	}
	if to == (common.Address{}) {
		return ErrZeroAddress
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	allowances, ok := b.allowances[token]
	if !ok {
		return fmt.Errorf("%w: %s", ErrAssetUnknown, token.Hex())
	}

	remaining := new(big.Int)
	if byOwner, ok := allowances[owner]; ok {
		if a, ok := byOwner[spender]; ok {
			remaining.Set(a)
		}
	}
	if remaining.Cmp(amount) < 0 {
		return fmt.Errorf("%w: have %s, need %s", ErrInsufficientAllow, remaining, amount)
	}

	if err := b.move(token, owner, to, amount); err != nil {
		return err
	}

	b.setAllowance(allowances, owner, spender, new(big.Int).Sub(remaining, amount))
	return nil
}

// move transfers within one asset's balance map. Caller holds the lock.
func (b *Bank) move(token, from, to common.Address, amount *big.Int) error {
	balances, ok := b.balances[token]
	if !ok {
		return fmt.Errorf("%w: %s", ErrAssetUnknown, token.Hex())
	}

	fromBal := balanceOf(balances, from)
	if fromBal.Cmp(amount) < 0 {
		return fmt.Errorf("%w: have %s, need %s", ErrInsufficientFunds, fromBal, amount)
	}

	balances[from] = new(big.Int).Sub(fromBal, amount)
	balances[to] = new(big.Int).Add(balanceOf(balances, to), amount)
	return nil
}

func (b *Bank) setAllowance(
	allowances map[common.Address]map[common.Address]*big.Int,
	owner, spender common.Address,
	amount *big.Int,
) {
	byOwner, ok := allowances[owner]
	if !ok {
		byOwner = make(map[common.Address]*big.Int)
		allowances[owner] = byOwner
	}
	byOwner[spender] = new(big.Int).Set(amount)
}

func balanceOf(balances map[common.Address]*big.Int, account common.Address) *big.Int {
	if bal, ok := balances[account]; ok {
		return bal
	}
	return new(big.Int)
}

func validAmount(amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	return nil
}
