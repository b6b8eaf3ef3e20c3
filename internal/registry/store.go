package registry

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"time"

	bolt "go.etcd.io/bbolt"

	"example.com/obdgate/internal/j1939"
)

const (
	vehicleBucket = "vehicle"
	modulesBucket = "modules"
	vehicleKey    = "info"
)

// Store persists registry snapshots in a bbolt file so a run can be
// inspected or resumed later.
type Store struct {
	db *bolt.DB
}

type storedPacket struct {
	PGN     uint32 `json:"pgn"`
	Ordinal int    `json:"ordinal"`
	Data    string `json:"data"`
}

type storedModule struct {
	SourceAddress int            `json:"sourceAddress"`
	Function      int            `json:"function"`
	Deprecated    bool           `json:"deprecated,omitempty"`
	Packets       []storedPacket `json:"packets,omitempty"`
}

// Open opens (or creates) the snapshot database at path.
func Open(path string) (*Store, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open store %s: %w", path, err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range []string{vehicleBucket, modulesBucket} {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("init store %s: %w", path, err)
	}
	return &Store{db: db}, nil
}

// Close releases the database file.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Save replaces the stored snapshot with the contents of repo.
func (s *Store) Save(repo *DataRepository) error {
	vehicle, err := json.Marshal(repo.VehicleInformation())
	if err != nil {
		return err
	}
	modules := repo.ObdModules()
	return s.db.Update(func(tx *bolt.Tx) error {
		if err := tx.Bucket([]byte(vehicleBucket)).Put([]byte(vehicleKey), vehicle); err != nil {
			return err
		}
		if err := tx.DeleteBucket([]byte(modulesBucket)); err != nil {
			return err
		}
		b, err := tx.CreateBucket([]byte(modulesBucket))
		if err != nil {
			return err
		}
		for _, m := range modules {
			sm := storedModule{SourceAddress: m.SourceAddress, Function: m.Function, Deprecated: m.Deprecated}
			for k, p := range m.packets {
				sm.Packets = append(sm.Packets, storedPacket{
					PGN:     p.PGN(),
					Ordinal: k.ordinal,
					Data:    hex.EncodeToString(p.Bytes()),
				})
			}
			sort.Slice(sm.Packets, func(i, j int) bool {
				if sm.Packets[i].PGN != sm.Packets[j].PGN {
					return sm.Packets[i].PGN < sm.Packets[j].PGN
				}
				return sm.Packets[i].Ordinal < sm.Packets[j].Ordinal
			})
			raw, err := json.Marshal(sm)
			if err != nil {
				return err
			}
			if err := b.Put([]byte(strconv.Itoa(m.SourceAddress)), raw); err != nil {
				return err
			}
		}
		return nil
	})
}

// Load rebuilds a repository from the stored snapshot.
func (s *Store) Load() (*DataRepository, error) {
	var repo *DataRepository
	err := s.db.View(func(tx *bolt.Tx) error {
		var vehicle VehicleInformation
		if raw := tx.Bucket([]byte(vehicleBucket)).Get([]byte(vehicleKey)); raw != nil {
			if err := json.Unmarshal(raw, &vehicle); err != nil {
				return fmt.Errorf("decode vehicle: %w", err)
			}
		}
		repo = New(vehicle)
		return tx.Bucket([]byte(modulesBucket)).ForEach(func(k, v []byte) error {
			var sm storedModule
			if err := json.Unmarshal(v, &sm); err != nil {
				return fmt.Errorf("decode module %s: %w", k, err)
			}
			m := NewOBDModule(sm.SourceAddress, sm.Function)
			m.Deprecated = sm.Deprecated
			for _, sp := range sm.Packets {
				data, err := hex.DecodeString(sp.Data)
				if err != nil {
					return fmt.Errorf("module %d pgn %d: %w", sm.SourceAddress, sp.PGN, err)
				}
				p, err := j1939.Decode(sp.PGN, sm.SourceAddress, data)
				if err != nil {
					return err
				}
				m.packets[slotKey{kind: p.Kind(), ordinal: sp.Ordinal}] = p
			}
			repo.modules[m.SourceAddress] = m
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return repo, nil
}
