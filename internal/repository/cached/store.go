// Package cached decorates a repository.Store with an in-process cache for
// the catalog records the booking path reads on every request: rooms and
// services.
package cached

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"

	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/repository"
)

const (
	roomPrefix    = "room:"
	servicePrefix = "service:"
)

type Store struct {
	repository.Store
	cache *gocache.Cache
}

func NewStore(inner repository.Store, ttl, cleanupInterval time.Duration) *Store {
	return &Store{
		Store: inner,
		cache: gocache.New(ttl, cleanupInterval),
	}
}

func (s *Store) Rooms() repository.RoomRepository {
	return &roomRepo{RoomRepository: s.Store.Rooms(), c: direct{s.cache}}
}

func (s *Store) Services() repository.ServiceRepository {
	return &serviceRepo{ServiceRepository: s.Store.Services(), c: direct{s.cache}}
}

func (s *Store) Devices() repository.DeviceRepository {
	return &deviceRepo{DeviceRepository: s.Store.Devices(), c: direct{s.cache}}
}

// WithTx hands fn repositories that bypass the cache for reads, since an
// uncommitted row must never be cached. Keys written inside the
// transaction are evicted once it finishes, whatever the outcome.
func (s *Store) WithTx(ctx context.Context, fn func(tx repository.Tx) error) error {
	d := &deferred{cache: s.cache}
	defer d.flush()

	return s.Store.WithTx(ctx, func(tx repository.Tx) error {
		return fn(txView{Tx: tx, c: d})
	})
}

// cacheOps is what the repository decorators need from the cache.
type cacheOps interface {
	get(key string) (interface{}, bool)
	set(key string, v interface{})
	evict(key string)
	evictAll()
}

type direct struct {
	cache *gocache.Cache
}

func (d direct) get(key string) (interface{}, bool) { return d.cache.Get(key) }
func (d direct) set(key string, v interface{})      { d.cache.SetDefault(key, v) }
func (d direct) evict(key string)                   { d.cache.Delete(key) }
func (d direct) evictAll()                          { d.cache.Flush() }

// deferred records evictions until the transaction ends and never serves
// or stores values.
type deferred struct {
	cache *gocache.Cache
	mu    sync.Mutex
	keys  []string
	all   bool
}

func (d *deferred) get(string) (interface{}, bool) { return nil, false }
func (d *deferred) set(string, interface{})        {}

func (d *deferred) evict(key string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.cache.Delete(key)
	d.keys = append(d.keys, key)
}

func (d *deferred) evictAll() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.cache.Flush()
	d.all = true
}

func (d *deferred) flush() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.all {
		d.cache.Flush()
		return
	}
	for _, k := range d.keys {
		d.cache.Delete(k)
	}
}

type txView struct {
	repository.Tx
	c cacheOps
}

func (t txView) Rooms() repository.RoomRepository {
	return &roomRepo{RoomRepository: t.Tx.Rooms(), c: t.c}
}

func (t txView) Services() repository.ServiceRepository {
	return &serviceRepo{ServiceRepository: t.Tx.Services(), c: t.c}
}

func (t txView) Devices() repository.DeviceRepository {
	return &deviceRepo{DeviceRepository: t.Tx.Devices(), c: t.c}
}

type roomRepo struct {
	repository.RoomRepository
	c cacheOps
}

func (r *roomRepo) Get(ctx context.Context, id uuid.UUID) (*model.Room, error) {
	key := roomPrefix + id.String()
	if v, ok := r.c.get(key); ok {
		room := v.(model.Room)
		return &room, nil
	}

	room, err := r.RoomRepository.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	r.c.set(key, *room)
	return room, nil
}

func (r *roomRepo) Update(ctx context.Context, room *model.Room) error {
	r.c.evict(roomPrefix + room.ID.String())
	return r.RoomRepository.Update(ctx, room)
}

// Delete also drops the room's devices, which services may reference.
func (r *roomRepo) Delete(ctx context.Context, id uuid.UUID) error {
	r.c.evictAll()
	return r.RoomRepository.Delete(ctx, id)
}

type serviceRepo struct {
	repository.ServiceRepository
	c cacheOps
}

func (r *serviceRepo) Get(ctx context.Context, id uuid.UUID) (*model.Service, error) {
	key := servicePrefix + id.String()
	if v, ok := r.c.get(key); ok {
		service := v.(model.Service)
		service.RequiredDeviceIDs = append([]uuid.UUID(nil), service.RequiredDeviceIDs...)
		return &service, nil
	}

	service, err := r.ServiceRepository.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	stored := *service
	stored.RequiredDeviceIDs = append([]uuid.UUID(nil), service.RequiredDeviceIDs...)
	r.c.set(key, stored)
	return service, nil
}

func (r *serviceRepo) Update(ctx context.Context, service *model.Service) error {
	r.c.evict(servicePrefix + service.ID.String())
	return r.ServiceRepository.Update(ctx, service)
}

func (r *serviceRepo) Delete(ctx context.Context, id uuid.UUID) error {
	r.c.evict(servicePrefix + id.String())
	return r.ServiceRepository.Delete(ctx, id)
}

func (r *serviceRepo) SetRequiredDevices(ctx context.Context, serviceID uuid.UUID, deviceIDs []uuid.UUID) error {
	r.c.evict(servicePrefix + serviceID.String())
	return r.ServiceRepository.SetRequiredDevices(ctx, serviceID, deviceIDs)
}

// deviceRepo evicts cached services when a device disappears, since the
// join rows go with it.
type deviceRepo struct {
	repository.DeviceRepository
	c cacheOps
}

func (r *deviceRepo) Delete(ctx context.Context, id uuid.UUID) error {
	r.c.evictAll()
	return r.DeviceRepository.Delete(ctx, id)
}
