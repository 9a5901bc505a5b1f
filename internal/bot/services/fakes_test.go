package services

import (
	"context"
	"database/sql"
	"errors"
	"sync"

	"github.com/dmitrijs2005/packsmith/internal/bot/gateway"
	"github.com/dmitrijs2005/packsmith/internal/bot/models"
	"github.com/dmitrijs2005/packsmith/internal/bot/repositories/items"
	"github.com/dmitrijs2005/packsmith/internal/bot/repositories/packs"
	"github.com/dmitrijs2005/packsmith/internal/bot/repositories/settings"
	"github.com/dmitrijs2005/packsmith/internal/bot/repositories/users"
	"github.com/dmitrijs2005/packsmith/internal/common"
	"github.com/dmitrijs2005/packsmith/internal/dbx"
	"github.com/dmitrijs2005/packsmith/internal/logging"
)

// memStore backs the in-memory repository fakes shared by the service tests.
type memStore struct {
	mu sync.Mutex

	users      map[int64]*models.User
	packs      map[int64]*models.Pack
	nextPackID int64
	items      []*models.Item
	nextItemID int64
	settings   map[string]string

	failPackCreate bool
	failItemCreate bool
}

func newMemStore() *memStore {
	return &memStore{
		users:    make(map[int64]*models.User),
		packs:    make(map[int64]*models.Pack),
		settings: make(map[string]string),
	}
}

type fakeRepoManager struct{ store *memStore }

func (m *fakeRepoManager) Users(dbx.DBTX) users.Repository       { return &memUsers{m.store} }
func (m *fakeRepoManager) Packs(dbx.DBTX) packs.Repository       { return &memPacks{m.store} }
func (m *fakeRepoManager) Items(dbx.DBTX) items.Repository       { return &memItems{m.store} }
func (m *fakeRepoManager) Settings(dbx.DBTX) settings.Repository { return &memSettings{m.store} }
func (m *fakeRepoManager) RunMigrations(context.Context, *sql.DB) error {
	return nil
}

type memUsers struct{ s *memStore }

func (r *memUsers) Get(_ context.Context, id int64) (*models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	copied := *u
	return &copied, nil
}

func (r *memUsers) Create(_ context.Context, id int64) (*models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if u, ok := r.s.users[id]; ok {
		copied := *u
		return &copied, nil
	}
	u := &models.User{ID: id}
	r.s.users[id] = u
	copied := *u
	return &copied, nil
}

func (r *memUsers) set(id int64, fn func(*models.User)) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[id]
	if !ok {
		return common.ErrorNotFound
	}
	fn(u)
	return nil
}

func (r *memUsers) SetPaid(_ context.Context, id int64, paid bool) error {
	return r.set(id, func(u *models.User) { u.IsPaid = paid })
}

func (r *memUsers) SetAdmin(_ context.Context, id int64, admin bool) error {
	return r.set(id, func(u *models.User) { u.IsAdmin = admin })
}

func (r *memUsers) SetFreePackUses(_ context.Context, id int64, uses int) error {
	return r.set(id, func(u *models.User) { u.FreePackUses = uses })
}

func (r *memUsers) SetAdaptivePackName(_ context.Context, id int64, name string) error {
	return r.set(id, func(u *models.User) { u.AdaptivePackName = name })
}

func (r *memUsers) ListIDs(context.Context) ([]int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var ids []int64
	for id := range r.s.users {
		ids = append(ids, id)
	}
	return ids, nil
}

type memPacks struct{ s *memStore }

func (r *memPacks) Create(_ context.Context, pack *models.Pack) (*models.Pack, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.failPackCreate {
		return nil, errors.New("db error: induced")
	}
	for _, p := range r.s.packs {
		if p.Name == pack.Name {
			return nil, errors.New("db error: duplicate slug")
		}
	}
	r.s.nextPackID++
	pack.ID = r.s.nextPackID
	copied := *pack
	r.s.packs[pack.ID] = &copied
	return pack, nil
}

func (r *memPacks) CreateIgnoreConflict(_ context.Context, pack *models.Pack) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, p := range r.s.packs {
		if p.Name == pack.Name {
			return nil
		}
	}
	r.s.nextPackID++
	pack.ID = r.s.nextPackID
	copied := *pack
	r.s.packs[pack.ID] = &copied
	return nil
}

func (r *memPacks) GetByID(_ context.Context, id int64) (*models.Pack, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.packs[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	copied := *p
	return &copied, nil
}

func (r *memPacks) GetByName(_ context.Context, name string) (*models.Pack, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, p := range r.s.packs {
		if p.Name == name {
			copied := *p
			return &copied, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (r *memPacks) ListByUser(_ context.Context, userID int64) ([]*models.Pack, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var result []*models.Pack
	for _, p := range r.s.packs {
		if p.UserID == userID {
			copied := *p
			result = append(result, &copied)
		}
	}
	return result, nil
}

func (r *memPacks) ListByUserAndKind(_ context.Context, userID int64, kind models.PackKind) ([]*models.Pack, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var result []*models.Pack
	for _, p := range r.s.packs {
		if p.UserID == userID && p.Kind == kind {
			copied := *p
			result = append(result, &copied)
		}
	}
	return result, nil
}

type memItems struct{ s *memStore }

func (r *memItems) Create(_ context.Context, item *models.Item) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.failItemCreate {
		return errors.New("db error: induced")
	}
	r.s.nextItemID++
	item.ID = r.s.nextItemID
	copied := *item
	r.s.items = append(r.s.items, &copied)
	return nil
}

func (r *memItems) GetByID(_ context.Context, id int64) (*models.Item, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, item := range r.s.items {
		if item.ID == id {
			copied := *item
			return &copied, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (r *memItems) GetByPackAndFile(_ context.Context, packID int64, fileID string) (*models.Item, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, item := range r.s.items {
		if item.PackID == packID && item.FileID == fileID {
			copied := *item
			return &copied, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (r *memItems) CountByPack(_ context.Context, packID int64) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	count := 0
	for _, item := range r.s.items {
		if item.PackID == packID {
			count++
		}
	}
	return count, nil
}

func (r *memItems) ExistsByPackAndFile(_ context.Context, packID int64, fileID string) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, item := range r.s.items {
		if item.PackID == packID && item.FileID == fileID {
			return true, nil
		}
	}
	return false, nil
}

func (r *memItems) DeleteByPackAndFile(_ context.Context, packID int64, fileID string) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	kept := r.s.items[:0]
	deleted := false
	for _, item := range r.s.items {
		if item.PackID == packID && item.FileID == fileID {
			deleted = true
			continue
		}
		kept = append(kept, item)
	}
	r.s.items = kept
	return deleted, nil
}

func (r *memItems) ListByUser(_ context.Context, userID int64) ([]*models.Item, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	owned := make(map[int64]bool)
	for _, p := range r.s.packs {
		if p.UserID == userID {
			owned[p.ID] = true
		}
	}
	var result []*models.Item
	for _, item := range r.s.items {
		if owned[item.PackID] {
			copied := *item
			result = append(result, &copied)
		}
	}
	return result, nil
}

type memSettings struct{ s *memStore }

func (r *memSettings) Get(_ context.Context, key string) (string, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	value, ok := r.s.settings[key]
	if !ok {
		return "", common.ErrorNotFound
	}
	return value, nil
}

func (r *memSettings) Set(_ context.Context, key, value string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.settings[key] = value
	return nil
}

// fakeGateway records remote calls and fails on demand.
type fakeGateway struct {
	mu sync.Mutex

	username string
	packs    map[string]*gateway.RemotePack

	createErr      error
	appendErr      error
	failAppendFrom int // 1-based append ordinal to start failing at; 0 = never
	appendCalls    int
	removed        []string
	removeErr      error
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		username: "packsmith_bot",
		packs:    make(map[string]*gateway.RemotePack),
	}
}

func (g *fakeGateway) CreatePack(_ context.Context, _ int64, slug, title string, first gateway.Item, kind models.PackKind) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.createErr != nil {
		return g.createErr
	}
	if _, ok := g.packs[slug]; ok {
		return common.ErrorRemote
	}
	g.packs[slug] = &gateway.RemotePack{Name: slug, Title: title, Kind: kind, Items: []gateway.Item{first}}
	return nil
}

func (g *fakeGateway) AppendItem(_ context.Context, _ int64, slug string, item gateway.Item) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.appendCalls++
	if g.appendErr != nil {
		return g.appendErr
	}
	if g.failAppendFrom > 0 && g.appendCalls >= g.failAppendFrom {
		return common.ErrorRemote
	}
	pack, ok := g.packs[slug]
	if !ok {
		return common.ErrorRemote
	}
	pack.Items = append(pack.Items, item)
	return nil
}

func (g *fakeGateway) RemoveItem(_ context.Context, fileID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.removed = append(g.removed, fileID)
	return g.removeErr
}

func (g *fakeGateway) FetchPack(_ context.Context, slug string) (*gateway.RemotePack, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	pack, ok := g.packs[slug]
	if !ok {
		return nil, common.ErrorRemote
	}
	copied := *pack
	return &copied, nil
}

func (g *fakeGateway) BotUsername(context.Context) (string, error) {
	return g.username, nil
}

type nopLogger struct{}

func (nopLogger) Debug(context.Context, string, ...any) {}
func (nopLogger) Info(context.Context, string, ...any)  {}
func (nopLogger) Warn(context.Context, string, ...any)  {}
func (nopLogger) Error(context.Context, string, ...any) {}
func (l nopLogger) With(...any) logging.Logger          { return l }
