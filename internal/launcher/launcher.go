// Package launcher runs the sequencer's long-lived scopes (HTTP ingress,
// Sequencer loop, State Store loop, settlement worker) as named goroutines,
// mirroring the teacher's common/app.go Launcher.
package launcher

import (
	"sync"

	"github.com/based-rollup/sequencer/internal/mlog"
)

// App represents a long-lived scope started at process boot.
type App interface {
	Run(l *Launcher) error
}

// Option configures a Launcher.
type Option func(l *Launcher)

// WithLogger attaches a logger to the launcher.
func WithLogger(logger mlog.Logger) Option {
	return func(l *Launcher) { l.Logger = logger }
}

// RunApp registers a named App to be started by Run.
func RunApp(name string, app App) Option {
	return func(l *Launcher) { l.add(name, app) }
}

// Launcher owns and starts every registered App, then blocks until all
// have returned.
type Launcher struct {
	Logger mlog.Logger
	apps   map[string]App
	wg     *sync.WaitGroup
}

func (l *Launcher) add(name string, a App) {
	l.apps[name] = a
}

// Run starts every registered App in its own goroutine and waits for all
// of them to return.
func (l *Launcher) Run() {
	count := len(l.apps)
	l.wg.Add(count)

	l.Logger.Infof("launcher: starting %d app(s)", count)

	for name, app := range l.apps {
		go func(name string, app App) {
			defer l.wg.Done()

			l.Logger.Infof("launcher: app %q starting", name)

			if err := app.Run(l); err != nil {
				l.Logger.Errorf("launcher: app %q exited with error: %v", name, err)
			}

			l.Logger.Infof("launcher: app %q finished", name)
		}(name, app)
	}

	l.wg.Wait()

	l.Logger.Info("launcher: all apps terminated")
}

// New builds a Launcher from the given options.
func New(opts ...Option) *Launcher {
	l := &Launcher{
		apps: make(map[string]App),
		wg:   new(sync.WaitGroup),
	}

	for _, opt := range opts {
		opt(l)
	}

	if l.Logger == nil {
		l.Logger = &mlog.NoneLogger{}
	}

	return l
}
