package state

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"

	coretypes "helios/core/types"
	"helios/crypto"
	"helios/native/affiliate"
	"helios/native/sale"
	"helios/native/staking"
	"helios/storage"
)

// Key layout. Every record is JSON under a prefixed key; addresses are
// embedded as their raw 20-byte payload.
const (
	prefixAccount     = "acct/"
	keySaleLedger     = "sale/ledger"
	prefixAffiliate   = "affiliate/acct/"
	keyAffiliateAllow = "affiliate/allowance"
	keyStakingPool    = "staking/pool"
	prefixStake       = "staking/stake/"
	prefixStakeIndex  = "staking/index/"
)

// Manager persists ledger state as JSON records over a key-value store and
// buffers the events the engines emit during a state transition. It
// implements the state interface of every engine.
type Manager struct {
	db     storage.Database
	events []*coretypes.Event
}

// NewManager wraps the supplied database.
func NewManager(db storage.Database) *Manager {
	return &Manager{db: db}
}

func accountKey(addr crypto.Address) []byte {
	return append([]byte(prefixAccount), addr.Bytes()...)
}

func affiliateKey(addr crypto.Address) []byte {
	return append([]byte(prefixAffiliate), addr.Bytes()...)
}

func stakeKey(owner crypto.Address, id uint64) []byte {
	key := append([]byte(prefixStake), owner.Bytes()...)
	var seq [8]byte
	binary.BigEndian.PutUint64(seq[:], id)
	return append(key, seq[:]...)
}

func stakeIndexKey(owner crypto.Address) []byte {
	return append([]byte(prefixStakeIndex), owner.Bytes()...)
}

func (m *Manager) getJSON(key []byte, out interface{}) (bool, error) {
	raw, err := m.db.Get(key)
	if errors.Is(err, storage.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("state: get %q: %w", key, err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return false, fmt.Errorf("state: decode %q: %w", key, err)
	}
	return true, nil
}

func (m *Manager) putJSON(key []byte, in interface{}) error {
	raw, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("state: encode %q: %w", key, err)
	}
	if err := m.db.Put(key, raw); err != nil {
		return fmt.Errorf("state: put %q: %w", key, err)
	}
	return nil
}

// --- Accounts ---

// GetAccount loads an account, returning a zeroed account for addresses
// that have never been written.
func (m *Manager) GetAccount(addr crypto.Address) (*coretypes.Account, error) {
	account := &coretypes.Account{}
	if _, err := m.getJSON(accountKey(addr), account); err != nil {
		return nil, err
	}
	return account.Normalize(), nil
}

// PutAccount persists an account.
func (m *Manager) PutAccount(addr crypto.Address, account *coretypes.Account) error {
	return m.putJSON(accountKey(addr), account.Normalize())
}

// --- Sale ---

// SaleLedger loads the sale aggregate, or nil when genesis has not run.
func (m *Manager) SaleLedger() (*sale.Ledger, error) {
	ledger := &sale.Ledger{}
	ok, err := m.getJSON([]byte(keySaleLedger), ledger)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	return ledger.Normalize(), nil
}

// PutSaleLedger persists the sale aggregate.
func (m *Manager) PutSaleLedger(ledger *sale.Ledger) error {
	return m.putJSON([]byte(keySaleLedger), ledger.Normalize())
}

// --- Affiliate ---

// GetAffiliate loads a referrer record, or nil when none exists.
func (m *Manager) GetAffiliate(addr crypto.Address) (*affiliate.Account, error) {
	account := &affiliate.Account{}
	ok, err := m.getJSON(affiliateKey(addr), account)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	account.Address = addr
	return account.Normalize(), nil
}

// PutAffiliate persists a referrer record under its address.
func (m *Manager) PutAffiliate(account *affiliate.Account) error {
	return m.putJSON(affiliateKey(account.Address), account.Normalize())
}

// AffiliateAllowance loads the HLS commission allowance.
func (m *Manager) AffiliateAllowance() (*big.Int, error) {
	var encoded string
	ok, err := m.getJSON([]byte(keyAffiliateAllow), &encoded)
	if err != nil {
		return nil, err
	}
	if !ok {
		return big.NewInt(0), nil
	}
	allowance, valid := new(big.Int).SetString(encoded, 10)
	if !valid {
		return nil, fmt.Errorf("state: corrupt allowance record %q", encoded)
	}
	return allowance, nil
}

// SetAffiliateAllowance persists the HLS commission allowance.
func (m *Manager) SetAffiliateAllowance(amount *big.Int) error {
	if amount == nil {
		amount = big.NewInt(0)
	}
	return m.putJSON([]byte(keyAffiliateAllow), amount.String())
}

// --- Staking ---

// StakingPool loads the staking aggregate, or nil when genesis has not run.
func (m *Manager) StakingPool() (*staking.PoolState, error) {
	pool := &staking.PoolState{}
	ok, err := m.getJSON([]byte(keyStakingPool), pool)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	return pool.Normalize(), nil
}

// PutStakingPool persists the staking aggregate.
func (m *Manager) PutStakingPool(pool *staking.PoolState) error {
	return m.putJSON([]byte(keyStakingPool), pool.Normalize())
}

// GetStake loads one stake, or nil when none exists.
func (m *Manager) GetStake(owner crypto.Address, id uint64) (*staking.Stake, error) {
	stake := &staking.Stake{}
	ok, err := m.getJSON(stakeKey(owner, id), stake)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	stake.Owner = owner
	return stake.Normalize(), nil
}

// PutStake persists a stake and registers new ids in the owner's index.
func (m *Manager) PutStake(stake *staking.Stake) error {
	ids, err := m.stakeIndex(stake.Owner)
	if err != nil {
		return err
	}
	known := false
	for _, id := range ids {
		if id == stake.ID {
			known = true
			break
		}
	}
	if !known {
		ids = append(ids, stake.ID)
		if err := m.putJSON(stakeIndexKey(stake.Owner), ids); err != nil {
			return err
		}
	}
	return m.putJSON(stakeKey(stake.Owner, stake.ID), stake.Normalize())
}

// ListStakes returns every stake of the owner in id order.
func (m *Manager) ListStakes(owner crypto.Address) ([]*staking.Stake, error) {
	ids, err := m.stakeIndex(owner)
	if err != nil {
		return nil, err
	}
	stakes := make([]*staking.Stake, 0, len(ids))
	for _, id := range ids {
		stake, err := m.GetStake(owner, id)
		if err != nil {
			return nil, err
		}
		if stake == nil {
			return nil, fmt.Errorf("state: stake index references missing stake %d", id)
		}
		stakes = append(stakes, stake)
	}
	return stakes, nil
}

func (m *Manager) stakeIndex(owner crypto.Address) ([]uint64, error) {
	var ids []uint64
	if _, err := m.getJSON(stakeIndexKey(owner), &ids); err != nil {
		return nil, err
	}
	return ids, nil
}

// --- Events ---

// AppendEvent buffers an event emitted during the current state transition.
func (m *Manager) AppendEvent(evt *coretypes.Event) {
	if evt == nil {
		return
	}
	m.events = append(m.events, evt)
}

// DrainEvents returns and clears the buffered events.
func (m *Manager) DrainEvents() []*coretypes.Event {
	out := m.events
	m.events = nil
	return out
}
