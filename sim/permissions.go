package sim

import (
	"context"
	"sync"

	"github.com/xraph/runner/permission"
)

// Call names one permission backend method.
type Call string

// Backend methods.
const (
	QueryFine         Call = "query-fine"
	QueryBackground   Call = "query-background"
	RequestFine       Call = "request-fine"
	RequestBackground Call = "request-background"
)

// Permissions is a scripted permission backend. Each method replays its
// script one answer per call and then keeps repeating the last answer.
// Unscripted methods answer Denied.
type Permissions struct {
	mu      sync.Mutex
	scripts map[Call][]permission.Status
	calls   map[Call]int
	errs    map[Call]error
}

var _ permission.Backend = (*Permissions)(nil)

// NewPermissions creates a backend that denies everything.
func NewPermissions() *Permissions {
	return &Permissions{
		scripts: make(map[Call][]permission.Status),
		calls:   make(map[Call]int),
		errs:    make(map[Call]error),
	}
}

// GrantAll returns a backend that grants every tier.
func GrantAll() *Permissions {
	p := NewPermissions()
	for _, c := range []Call{QueryFine, QueryBackground, RequestFine, RequestBackground} {
		p.Script(c, permission.Granted)
	}
	return p
}

// Script sets the answers for c.
func (p *Permissions) Script(c Call, answers ...permission.Status) *Permissions {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.scripts[c] = answers
	return p
}

// Fail makes c return err.
func (p *Permissions) Fail(c Call, err error) *Permissions {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.errs[c] = err
	return p
}

// Calls returns how many times c was invoked.
func (p *Permissions) Calls(c Call) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls[c]
}

func (p *Permissions) QueryFine(context.Context) (permission.Status, error) {
	return p.answer(QueryFine)
}

func (p *Permissions) QueryBackground(context.Context) (permission.Status, error) {
	return p.answer(QueryBackground)
}

func (p *Permissions) RequestFine(context.Context) (permission.Status, error) {
	return p.answer(RequestFine)
}

func (p *Permissions) RequestBackground(context.Context) (permission.Status, error) {
	return p.answer(RequestBackground)
}

func (p *Permissions) answer(c Call) (permission.Status, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	n := p.calls[c]
	p.calls[c] = n + 1

	if err := p.errs[c]; err != nil {
		return permission.Undetermined, err
	}
	script := p.scripts[c]
	switch {
	case len(script) == 0:
		return permission.Denied, nil
	case n < len(script):
		return script[n], nil
	default:
		return script[len(script)-1], nil
	}
}

// Prompter records settings prompts instead of showing them.
type Prompter struct {
	mu       sync.Mutex
	messages []string
}

var _ permission.Prompter = (*Prompter)(nil)

// ShowSettingsPrompt records message.
func (p *Prompter) ShowSettingsPrompt(_ context.Context, message string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.messages = append(p.messages, message)
	return nil
}

// Messages returns the recorded prompts.
func (p *Prompter) Messages() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.messages))
	copy(out, p.messages)
	return out
}
