package ops

import (
	"context"
	"crypto/rand"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/hpungsan/objective/internal/activity"
	"github.com/hpungsan/objective/internal/casebook"
	"github.com/hpungsan/objective/internal/debate"
	"github.com/hpungsan/objective/internal/errors"
	"github.com/hpungsan/objective/internal/logstore"
	"github.com/hpungsan/objective/internal/notify"
	"github.com/hpungsan/objective/internal/prompt"
	"github.com/hpungsan/objective/internal/settings"
	"github.com/hpungsan/objective/internal/taskwindow"
)

// DefaultLogLimit is used when a list call gives no limit. The upper bound
// is the store's capacity.
const DefaultLogLimit = 100

// IndefinitePause is used when Pause is called without a positive duration.
const IndefinitePause = 365 * 24 * time.Hour

// Pagination contains pagination metadata for list operations.
type Pagination struct {
	Limit   int  `json:"limit"`
	HasMore bool `json:"has_more"`
	Total   int  `json:"total"`
}

// Caller sends a prompt to the model. *gateway.Gateway implements it.
type Caller interface {
	Call(ctx context.Context, prompt, callType string) (string, error)
}

// Deps are the collaborators of an Engine.
type Deps struct {
	Settings *settings.Store
	Calls    *logstore.APICalls
	Tasks    *logstore.Tasks
	Gateway  Caller
	Notifier notify.Notifier

	// ExportDir is the only directory log exports are written to and
	// imported from.
	ExportDir string
}

// Engine is the orchestration root. It owns the open debate sessions; every
// other piece of state lives in the settings store and the log tables.
type Engine struct {
	settings  *settings.Store
	calls     *logstore.APICalls
	tasks     *logstore.Tasks
	resolver  *taskwindow.Resolver
	miner     *casebook.Miner
	gateway   Caller
	notifier  notify.Notifier
	exportDir string

	now func() time.Time

	mu      sync.Mutex
	debates map[string]*debateEntry
	page    activity.PageContent
	hasPage bool
}

// debateEntry tracks a live session and the last transcript it published.
type debateEntry struct {
	session   *debate.Session
	url       string
	unobserve func()

	mu         sync.Mutex
	transcript []activity.ChatMessage
}

func (d *debateEntry) snapshot() []activity.ChatMessage {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]activity.ChatMessage(nil), d.transcript...)
}

// New wires an Engine from its dependencies.
func New(d Deps) *Engine {
	notifier := d.Notifier
	if notifier == nil {
		notifier = notify.Nop{}
	}
	resolver := taskwindow.New(d.Tasks, d.Calls)
	return &Engine{
		settings:  d.Settings,
		calls:     d.Calls,
		tasks:     d.Tasks,
		resolver:  resolver,
		miner:     casebook.New(resolver),
		gateway:   d.Gateway,
		notifier:  notifier,
		exportDir: d.ExportDir,
		now:       time.Now,
		debates:   make(map[string]*debateEntry),
	}
}

// Settings returns the settings store the engine reads from.
func (e *Engine) Settings() *settings.Store {
	return e.settings
}

// OpenDebates returns the number of live sessions.
func (e *Engine) OpenDebates() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.debates)
}

// promptContext reads the principles and task at call time.
func (e *Engine) promptContext() prompt.Context {
	s := e.settings.Get()
	return prompt.Context{Principles: s.Principles, Task: s.CurrentTask}
}

// openDebate registers a session seeded with explanation and forwards its
// transcript to the notifier under a fresh ULID. It replaces any session
// already open for the same page URL, so re-judging a page never stacks
// sessions.
func (e *Engine) openDebate(explanation string, page activity.PageContent) (string, []activity.ChatMessage) {
	id := newID()
	session := debate.New(explanation, e.settings.Get().DebateBehaviour, debate.Deps{
		Caller:  e.gateway,
		Context: e.promptContext,
		Page:    prompt.FormatPage(page),
	})

	entry := &debateEntry{session: session, url: page.URL}
	entry.unobserve = session.Observe(func(msgs []activity.ChatMessage) {
		entry.mu.Lock()
		entry.transcript = msgs
		entry.mu.Unlock()
		e.notifier.Transcript(id, msgs)
	})

	e.mu.Lock()
	stale := e.removeLocked(func(d *debateEntry) bool { return d.url == page.URL })
	e.debates[id] = entry
	e.mu.Unlock()
	release(stale)

	return id, entry.snapshot()
}

// removeLocked deletes the sessions matching fn and returns them. The caller
// holds e.mu and releases the result after unlocking.
func (e *Engine) removeLocked(fn func(*debateEntry) bool) []*debateEntry {
	var removed []*debateEntry
	for id, d := range e.debates {
		if fn(d) {
			delete(e.debates, id)
			removed = append(removed, d)
		}
	}
	return removed
}

func release(entries []*debateEntry) {
	for _, d := range entries {
		if d.unobserve != nil {
			d.unobserve()
		}
	}
}

// lookup returns the live session for id.
func (e *Engine) lookup(id string) (*debateEntry, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, errors.NewValidation("debate_id is required")
	}
	e.mu.Lock()
	entry, ok := e.debates[id]
	e.mu.Unlock()
	if !ok {
		return nil, errors.NewNotFound("debate", id)
	}
	return entry, nil
}

// drop forgets a session. Safe to call for an id that is already gone.
func (e *Engine) drop(id string) {
	e.mu.Lock()
	entry, ok := e.debates[id]
	delete(e.debates, id)
	e.mu.Unlock()
	if ok && entry.unobserve != nil {
		entry.unobserve()
	}
}

// validatePage checks the fields a judgement cannot do without.
func validatePage(p activity.PageContent) (activity.PageContent, error) {
	p.URL = strings.TrimSpace(p.URL)
	p.Title = strings.TrimSpace(p.Title)
	if p.URL == "" {
		return p, errors.NewValidation("page url is required")
	}
	if p.Title == "" {
		return p, errors.NewValidation("page title is required")
	}
	return p, nil
}

// clampLimit applies the list limit defaults and bounds.
func clampLimit(limit, capacity int) int {
	if limit <= 0 {
		limit = DefaultLogLimit
	}
	if capacity > 0 && limit > capacity {
		limit = capacity
	}
	return limit
}

func newID() string {
	entropy := ulid.Monotonic(rand.Reader, 0)
	return ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String()
}
