// Package conversation keeps per-user multi-step flow state. Exactly one
// state may exist per (user, flow kind); starting a flow again silently
// replaces the previous state of the same kind.
package conversation

import (
	"sync"

	"github.com/dmitrijs2005/packsmith/internal/bot/models"
)

type FlowKind int

const (
	FlowCreate FlowKind = iota
	FlowRemove
	FlowDelete
	FlowAdaptive
	FlowImport
)

type CreateStep int

const (
	CreateAwaitingName CreateStep = iota
	CreateAwaitingFirstItem
)

// CreateState tracks the pack-creation dialog. Kind and PaidPack are fixed
// at flow start; Name/Title fill in as steps complete.
type CreateState struct {
	Step     CreateStep
	Kind     models.PackKind
	PaidPack bool
	Name     string
	Title    string
}

type RemoveStep int

const (
	RemoveAwaitingPack RemoveStep = iota
	RemoveAwaitingItem
)

// RemoveState tracks item removal up to the pack/item selection. The final
// confirmation is stateless: pack id and file id ride in the callback token
// so it survives restarts.
type RemoveState struct {
	Step   RemoveStep
	PackID int64
	Slug   string
}

// DeleteState tracks pack deletion; the pack choice itself arrives in a
// callback token, so the state only pins the kind being listed.
type DeleteState struct {
	Kind models.PackKind
}

type AdaptiveStep int

const (
	AdaptiveAwaitingInput AdaptiveStep = iota
	AdaptiveAwaitingFont
	AdaptiveAwaitingBackground
)

// AdaptiveState tracks the adaptive-pack dialog. Text input walks through
// font and background selection; file input skips straight to background.
type AdaptiveState struct {
	Step      AdaptiveStep
	Content   models.ContentKind
	Text      string
	FileID    string
	Format    string
	Emoji     string
	FontIndex int
}

// ImportState marks that the user's next document upload is a backup to
// ingest. It carries no fields.
type ImportState struct{}

type key struct {
	userID int64
	kind   FlowKind
}

type Engine struct {
	mu     sync.Mutex
	states map[key]any
}

func NewEngine() *Engine {
	return &Engine{states: make(map[key]any)}
}

func begin[T any](e *Engine, userID int64, kind FlowKind, st T) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.states[key{userID, kind}] = st
}

func get[T any](e *Engine, userID int64, kind FlowKind) (T, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	var zero T
	v, ok := e.states[key{userID, kind}]
	if !ok {
		return zero, false
	}
	st, ok := v.(T)
	if !ok {
		return zero, false
	}
	return st, true
}

func update[T any](e *Engine, userID int64, kind FlowKind, fn func(*T)) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	v, ok := e.states[key{userID, kind}]
	if !ok {
		return false
	}
	st, ok := v.(T)
	if !ok {
		return false
	}
	fn(&st)
	e.states[key{userID, kind}] = st
	return true
}

func (e *Engine) BeginCreate(userID int64, st CreateState) { begin(e, userID, FlowCreate, st) }
func (e *Engine) GetCreate(userID int64) (CreateState, bool) {
	return get[CreateState](e, userID, FlowCreate)
}
func (e *Engine) UpdateCreate(userID int64, fn func(*CreateState)) bool {
	return update(e, userID, FlowCreate, fn)
}

func (e *Engine) BeginRemove(userID int64, st RemoveState) { begin(e, userID, FlowRemove, st) }
func (e *Engine) GetRemove(userID int64) (RemoveState, bool) {
	return get[RemoveState](e, userID, FlowRemove)
}
func (e *Engine) UpdateRemove(userID int64, fn func(*RemoveState)) bool {
	return update(e, userID, FlowRemove, fn)
}

func (e *Engine) BeginDelete(userID int64, st DeleteState) { begin(e, userID, FlowDelete, st) }
func (e *Engine) GetDelete(userID int64) (DeleteState, bool) {
	return get[DeleteState](e, userID, FlowDelete)
}

func (e *Engine) BeginImport(userID int64) { begin(e, userID, FlowImport, ImportState{}) }
func (e *Engine) GetImport(userID int64) bool {
	_, ok := get[ImportState](e, userID, FlowImport)
	return ok
}

func (e *Engine) BeginAdaptive(userID int64, st AdaptiveState) { begin(e, userID, FlowAdaptive, st) }
func (e *Engine) GetAdaptive(userID int64) (AdaptiveState, bool) {
	return get[AdaptiveState](e, userID, FlowAdaptive)
}
func (e *Engine) UpdateAdaptive(userID int64, fn func(*AdaptiveState)) bool {
	return update(e, userID, FlowAdaptive, fn)
}

// Clear drops the state for one flow kind; clearing an absent state is a
// no-op.
func (e *Engine) Clear(userID int64, kind FlowKind) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.states, key{userID, kind})
}

// CancelAll drops every flow state the user has and reports how many were
// active.
func (e *Engine) CancelAll(userID int64) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	n := 0
	for _, kind := range []FlowKind{FlowCreate, FlowRemove, FlowDelete, FlowAdaptive, FlowImport} {
		k := key{userID, kind}
		if _, ok := e.states[k]; ok {
			delete(e.states, k)
			n++
		}
	}
	return n
}
