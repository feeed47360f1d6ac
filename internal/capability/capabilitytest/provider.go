// Package capabilitytest — программируемый capability.Provider для тестов.
package capabilitytest

import (
	"context"
	"iter"
	"strings"
	"sync"

	"github.com/shaiso/Synapse/internal/capability"
)

// Call — записанный вызов генерации.
type Call struct {
	Options   capability.Options
	Input     capability.Input
	Streaming bool
}

// Provider — fake backend. Отвечает заранее заданными чанками.
type Provider struct {
	mu sync.Mutex

	availability capability.Availability
	availErr     error
	createErr    error
	progress     []float64
	chunks       []string
	genErr       error
	block        bool

	availabilityCalls []capability.Options
	calls             []Call
	opened            int
	closed            int
}

var _ capability.Provider = (*Provider)(nil)

// New создаёт provider, который доступен и отвечает пустой строкой.
func New() *Provider {
	return &Provider{availability: capability.Available}
}

// Reply задаёт чанки ответа. Generate возвращает их склейку.
func (p *Provider) Reply(chunks ...string) *Provider {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.chunks = chunks
	return p
}

// Fail задаёт ошибку генерации. Она приходит после чанков из Reply.
func (p *Provider) Fail(err error) *Provider {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.genErr = err
	return p
}

// FailCreate задаёт ошибку создания сессии.
func (p *Provider) FailCreate(err error) *Provider {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.createErr = err
	return p
}

// WithAvailability задаёт ответ на проверку доступности.
func (p *Provider) WithAvailability(a capability.Availability, err error) *Provider {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.availability = a
	p.availErr = err
	return p
}

// WithDownload задаёт прогресс загрузки, который получит Monitor.
func (p *Provider) WithDownload(progress ...float64) *Provider {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.progress = progress
	return p
}

// BlockUntilCancel — после чанков поток ждёт отмены контекста.
func (p *Provider) BlockUntilCancel() *Provider {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.block = true
	return p
}

// Availability реализует capability.Provider.
func (p *Provider) Availability(_ context.Context, opts capability.Options) (capability.Availability, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.availabilityCalls = append(p.availabilityCalls, opts)
	return p.availability, p.availErr
}

// CreateSession реализует capability.Provider.
func (p *Provider) CreateSession(ctx context.Context, opts capability.Options) (capability.Session, error) {
	p.mu.Lock()
	progress := p.progress
	err := p.createErr
	p.mu.Unlock()

	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	for _, v := range progress {
		if opts.Monitor != nil {
			opts.Monitor(v)
		}
	}

	p.mu.Lock()
	p.opened++
	p.mu.Unlock()

	return &session{provider: p, opts: opts}, nil
}

// Calls возвращает копию записанных вызовов генерации.
func (p *Provider) Calls() []Call {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Call, len(p.calls))
	copy(out, p.calls)
	return out
}

// AvailabilityCalls возвращает опции проверок доступности.
func (p *Provider) AvailabilityCalls() []capability.Options {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]capability.Options, len(p.availabilityCalls))
	copy(out, p.availabilityCalls)
	return out
}

// OpenSessions возвращает количество незакрытых сессий.
func (p *Provider) OpenSessions() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.opened - p.closed
}

type session struct {
	provider *Provider
	opts     capability.Options
	once     sync.Once
}

func (s *session) record(in capability.Input, streaming bool) ([]string, bool, error) {
	p := s.provider
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, Call{Options: s.opts, Input: in, Streaming: streaming})
	return p.chunks, p.block, p.genErr
}

func (s *session) Generate(ctx context.Context, in capability.Input) (string, error) {
	chunks, block, err := s.record(in, false)
	if block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	if err != nil {
		return "", err
	}
	return strings.Join(chunks, ""), nil
}

func (s *session) GenerateStreaming(ctx context.Context, in capability.Input) iter.Seq2[string, error] {
	chunks, block, err := s.record(in, true)

	return func(yield func(string, error) bool) {
		for _, c := range chunks {
			if ctx.Err() != nil {
				yield("", ctx.Err())
				return
			}
			if !yield(c, nil) {
				return
			}
		}
		if block {
			<-ctx.Done()
			yield("", ctx.Err())
			return
		}
		if err != nil {
			yield("", err)
		}
	}
}

func (s *session) Close() error {
	s.once.Do(func() {
		s.provider.mu.Lock()
		s.provider.closed++
		s.provider.mu.Unlock()
	})
	return nil
}
