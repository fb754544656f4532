package registry

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math/big"
	"sort"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ruteri/people-registry/interfaces"
)

const snapshotVersion = 1

// Snapshot is the persisted form of the registry state.
type Snapshot struct {
	Version int              `json:"version"`
	Owner   common.Address   `json:"owner"`
	Balance *hexutil.Big     `json:"balance"`
	People  []SnapshotRecord `json:"people"`
}

// SnapshotRecord is one present record.
type SnapshotRecord struct {
	Identity common.Address `json:"identity"`
	interfaces.Person
}

// NewSnapshot builds a snapshot with records sorted by identity.
func NewSnapshot(owner interfaces.Identity, balance *big.Int, people map[interfaces.Identity]interfaces.Person) *Snapshot {
	records := make([]SnapshotRecord, 0, len(people))
	for id, p := range people {
		records = append(records, SnapshotRecord{Identity: id, Person: p})
	}
	sort.Slice(records, func(i, j int) bool {
		return bytes.Compare(records[i].Identity[:], records[j].Identity[:]) < 0
	})

	return &Snapshot{
		Version: snapshotVersion,
		Owner:   owner,
		Balance: (*hexutil.Big)(new(big.Int).Set(balance)),
		People:  records,
	}
}

// Encode serializes the snapshot as JSON.
func (s *Snapshot) Encode() ([]byte, error) {
	return json.Marshal(s)
}

// BalanceInt returns the balance as a fresh big.Int.
func (s *Snapshot) BalanceInt() *big.Int {
	if s.Balance == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(s.Balance.ToInt())
}

// DecodeSnapshot parses and sanity-checks a persisted snapshot.
func DecodeSnapshot(data []byte) (*Snapshot, error) {
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("could not decode registry snapshot: %w", err)
	}
	if snap.Version != snapshotVersion {
		return nil, fmt.Errorf("unsupported registry snapshot version %d", snap.Version)
	}
	if snap.BalanceInt().Sign() < 0 {
		return nil, fmt.Errorf("negative balance in registry snapshot")
	}

	seen := make(map[common.Address]struct{}, len(snap.People))
	for _, rec := range snap.People {
		if _, dup := seen[rec.Identity]; dup {
			return nil, fmt.Errorf("duplicate record for %s in registry snapshot", rec.Identity.Hex())
		}
		seen[rec.Identity] = struct{}{}
	}
	return &snap, nil
}
