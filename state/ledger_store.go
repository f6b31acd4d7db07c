package state

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/rlp"

	"lendledger/crypto"
	"lendledger/native/lending"
	"lendledger/storage"
)

var (
	ledgerKey      = []byte("lending/ledger")
	positionPrefix = []byte("lending/position/")
)

// LedgerStore persists the ledger aggregates in a key-value database using
// RLP encoding. It satisfies the lending engine's state interface; reads and
// writes are immediately consistent within a transition.
type LedgerStore struct {
	db storage.Database
}

// NewLedgerStore wraps the database in a ledger store.
func NewLedgerStore(db storage.Database) *LedgerStore {
	return &LedgerStore{db: db}
}

// storedAddress flattens crypto.Address for RLP, which cannot reach its
// unexported fields. Empty bytes round-trip to the zero address.
type storedAddress struct {
	Prefix string
	Bytes  []byte
}

type storedLedger struct {
	Admin             storedAddress
	InterestRateModel storedAddress
	UnderlyingAsset   storedAddress
	Paused            bool
	TotalSupply       *big.Int
	TotalBorrow       *big.Int
}

type storedPosition struct {
	Address    storedAddress
	Balance    *big.Int
	Debt       *big.Int
	Collateral *big.Int
}

func flattenAddress(addr crypto.Address) storedAddress {
	return storedAddress{Prefix: string(addr.Prefix()), Bytes: addr.Bytes()}
}

func restoreAddress(stored storedAddress) crypto.Address {
	if len(stored.Bytes) == 0 {
		return crypto.Address{}
	}
	return crypto.NewAddress(crypto.AddressPrefix(stored.Prefix), stored.Bytes)
}

// LedgerGet loads the singleton ledger aggregate, returning nil when the
// ledger has not been initialised.
func (s *LedgerStore) LedgerGet() (*lending.Ledger, error) {
	data, err := s.db.Get(ledgerKey)
	if errors.Is(err, storage.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("ledger store: load ledger: %w", err)
	}
	stored := new(storedLedger)
	if err := rlp.DecodeBytes(data, stored); err != nil {
		return nil, fmt.Errorf("ledger store: decode ledger: %w", err)
	}
	return &lending.Ledger{
		Admin:             restoreAddress(stored.Admin),
		InterestRateModel: restoreAddress(stored.InterestRateModel),
		UnderlyingAsset:   restoreAddress(stored.UnderlyingAsset),
		Paused:            stored.Paused,
		TotalSupply:       stored.TotalSupply,
		TotalBorrow:       stored.TotalBorrow,
	}, nil
}

// LedgerPut persists the singleton ledger aggregate.
func (s *LedgerStore) LedgerPut(ledger *lending.Ledger) error {
	if ledger == nil {
		return fmt.Errorf("ledger store: nil ledger")
	}
	stored := &storedLedger{
		Admin:             flattenAddress(ledger.Admin),
		InterestRateModel: flattenAddress(ledger.InterestRateModel),
		UnderlyingAsset:   flattenAddress(ledger.UnderlyingAsset),
		Paused:            ledger.Paused,
		TotalSupply:       ledger.TotalSupply,
		TotalBorrow:       ledger.TotalBorrow,
	}
	encoded, err := rlp.EncodeToBytes(stored)
	if err != nil {
		return fmt.Errorf("ledger store: encode ledger: %w", err)
	}
	return s.db.Put(ledgerKey, encoded)
}

// PositionGet loads the position for the address, returning nil when the
// account has never been written.
func (s *LedgerStore) PositionGet(addr crypto.Address) (*lending.Position, error) {
	data, err := s.db.Get(positionKey(addr))
	if errors.Is(err, storage.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("ledger store: load position: %w", err)
	}
	stored := new(storedPosition)
	if err := rlp.DecodeBytes(data, stored); err != nil {
		return nil, fmt.Errorf("ledger store: decode position: %w", err)
	}
	return &lending.Position{
		Address:    restoreAddress(stored.Address),
		Balance:    stored.Balance,
		Debt:       stored.Debt,
		Collateral: stored.Collateral,
	}, nil
}

// PositionPut persists the position under its account key.
func (s *LedgerStore) PositionPut(position *lending.Position) error {
	if position == nil {
		return fmt.Errorf("ledger store: nil position")
	}
	stored := &storedPosition{
		Address:    flattenAddress(position.Address),
		Balance:    position.Balance,
		Debt:       position.Debt,
		Collateral: position.Collateral,
	}
	encoded, err := rlp.EncodeToBytes(stored)
	if err != nil {
		return fmt.Errorf("ledger store: encode position: %w", err)
	}
	return s.db.Put(positionKey(position.Address), encoded)
}

func positionKey(addr crypto.Address) []byte {
	key := append([]byte(nil), positionPrefix...)
	key = append(key, addr.Prefix()...)
	key = append(key, '/')
	return append(key, addr.Bytes()...)
}
