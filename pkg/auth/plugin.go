package auth

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/platinummonkey/spoke-auth-bitbucket/pkg/async"
)

// DefaultRequestTimeout bounds one callback-style request
const DefaultRequestTimeout = 2 * time.Minute

// Plugin exposes an Authenticator through completion callbacks. Each call
// runs in its own goroutine and invokes done exactly once.
type Plugin struct {
	auth    *Authenticator
	ctx     context.Context
	timeout time.Duration
}

// NewPlugin wraps authenticator
func NewPlugin(authenticator *Authenticator) *Plugin {
	return &Plugin{
		auth:    authenticator,
		ctx:     context.Background(),
		timeout: DefaultRequestTimeout,
	}
}

// WithContext returns a copy of the plugin whose requests derive from ctx
func (p *Plugin) WithContext(ctx context.Context) *Plugin {
	cp := *p
	cp.ctx = ctx
	return &cp
}

// WithTimeout returns a copy of the plugin with a different request timeout
func (p *Plugin) WithTimeout(timeout time.Duration) *Plugin {
	cp := *p
	if timeout > 0 {
		cp.timeout = timeout
	}
	return &cp
}

// Authenticate resolves the user's teams and reports them through done.
// The returned channel is closed once done has been invoked.
func (p *Plugin) Authenticate(username, password string, done func(error, []string)) <-chan struct{} {
	return p.run("bitbucket authenticate", func(ctx context.Context, reply func(error, []string)) {
		teams, err := p.auth.Authenticate(ctx, username, password)
		reply(err, teams)
	}, done)
}

// AddUser applies the add-user policy and reports success through done
func (p *Plugin) AddUser(username, password string, done func(error, bool)) <-chan struct{} {
	return p.run("bitbucket add user", func(ctx context.Context, reply func(error, []string)) {
		reply(p.auth.AddUser(ctx, username, password), nil)
	}, func(err error, _ []string) {
		done(err, err == nil)
	})
}

// Close releases the wrapped Authenticator
func (p *Plugin) Close() error {
	return p.auth.Close()
}

func (p *Plugin) run(task string, fn func(context.Context, func(error, []string)), done func(error, []string)) <-chan struct{} {
	return async.SafeGoNoError(p.ctx, p.auth.log, p.timeout, task, func(ctx context.Context) {
		var once sync.Once
		reply := func(err error, teams []string) {
			once.Do(func() { done(err, teams) })
		}

		defer func() {
			if r := recover(); r != nil {
				reply(fmt.Errorf("%s: unexpected failure: %v", task, r), nil)
				panic(r)
			}
		}()

		fn(ctx, reply)
	})
}
