package fnft

import (
	"encoding/binary"
	"errors"

	"helixchain/crypto"
	"helixchain/native/assets"
)

var (
	errCollectionExists   = errors.New("fnft registry: collection already exists")
	errCollectionNotFound = errors.New("fnft registry: collection not found")
	errInstanceNotFound   = errors.New("fnft registry: instance not found")
)

// ErrInstanceNotFound is exposed for callers classifying lookup failures.
var ErrInstanceNotFound = errInstanceNotFound

// InstanceID identifies a single NFT within a collection.
type InstanceID uint64

type collection struct {
	owner        crypto.Address
	nextInstance InstanceID
	instances    map[InstanceID]crypto.Address
}

// Registry tracks financial NFT collections and instance ownership. One NFT
// is minted per staking position; its deterministic asset account holds the
// position's escrowed stake and shares.
type Registry struct {
	collections map[assets.AssetID]*collection
}

func NewRegistry() *Registry {
	return &Registry{collections: make(map[assets.AssetID]*collection)}
}

// CreateCollection registers a new NFT collection owned by `owner`.
func (r *Registry) CreateCollection(id assets.AssetID, owner crypto.Address) error {
	if _, ok := r.collections[id]; ok {
		return errCollectionExists
	}
	r.collections[id] = &collection{
		owner:        owner,
		nextInstance: 1,
		instances:    make(map[InstanceID]crypto.Address),
	}
	return nil
}

// NextInstanceID returns the id the next mint in the collection will use.
func (r *Registry) NextInstanceID(id assets.AssetID) (InstanceID, error) {
	coll, ok := r.collections[id]
	if !ok {
		return 0, errCollectionNotFound
	}
	return coll.nextInstance, nil
}

// MintInto mints the given instance to `owner`. The instance id must be the
// one previously returned by NextInstanceID.
func (r *Registry) MintInto(id assets.AssetID, instance InstanceID, owner crypto.Address) error {
	coll, ok := r.collections[id]
	if !ok {
		return errCollectionNotFound
	}
	coll.instances[instance] = owner
	if instance >= coll.nextInstance {
		coll.nextInstance = instance + 1
	}
	return nil
}

// Burn removes the instance from the collection.
func (r *Registry) Burn(id assets.AssetID, instance InstanceID) error {
	coll, ok := r.collections[id]
	if !ok {
		return errCollectionNotFound
	}
	if _, ok := coll.instances[instance]; !ok {
		return errInstanceNotFound
	}
	delete(coll.instances, instance)
	return nil
}

// Owner returns the current owner of an instance.
func (r *Registry) Owner(id assets.AssetID, instance InstanceID) (crypto.Address, bool) {
	coll, ok := r.collections[id]
	if !ok {
		return crypto.Address{}, false
	}
	owner, ok := coll.instances[instance]
	return owner, ok
}

// AssetAccount derives the deterministic escrow account for an instance. The
// derivation depends only on collection and instance ids, so the account is
// stable across mints/burns.
func (r *Registry) AssetAccount(id assets.AssetID, instance InstanceID) crypto.Address {
	seed := make([]byte, 16)
	binary.BigEndian.PutUint64(seed[:8], uint64(id))
	binary.BigEndian.PutUint64(seed[8:], uint64(instance))
	return crypto.DeriveSubAccount(crypto.DeriveModuleAddress("fnft"), seed)
}

// Clone produces a deep copy used by the state snapshot machinery.
func (r *Registry) Clone() *Registry {
	clone := NewRegistry()
	for id, coll := range r.collections {
		cloneColl := &collection{
			owner:        coll.owner,
			nextInstance: coll.nextInstance,
			instances:    make(map[InstanceID]crypto.Address, len(coll.instances)),
		}
		for instance, owner := range coll.instances {
			cloneColl.instances[instance] = owner
		}
		clone.collections[id] = cloneColl
	}
	return clone
}
