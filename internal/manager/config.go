package manager

import (
	"context"
	"time"

	"clinicd/internal/device"
	"clinicd/pkg/types"
)

// Defaults applied when corresponding Config fields are unset.
const (
	defaultMaxQueueDepth = 32
	defaultMaxInflight   = 1
	defaultMaxWait       = 30 * time.Second
	defaultLoadTimeout   = 10 * time.Minute
)

// Config encapsulates all tunables for Manager construction.
type Config struct {
	// Loaders supplies one loader per category. Categories without a loader
	// report a load error when acquired.
	Loaders  map[types.Category]Loader
	Selector *device.Selector
	// Required lists the categories that must be loaded for Ready. Empty
	// means every category.
	Required      []types.Category
	MaxQueueDepth int
	MaxInflight   int
	MaxWait       time.Duration
	LoadTimeout   time.Duration
	// BaseContext parents every load. Loads are not cancelled by the request
	// that triggered them, only by this context.
	BaseContext context.Context
	Publisher   EventPublisher
}

// New constructs a Manager from Config. All slots start unloaded.
func New(cfg Config) *Manager {
	if cfg.MaxQueueDepth <= 0 {
		cfg.MaxQueueDepth = defaultMaxQueueDepth
	}
	if cfg.MaxInflight <= 0 {
		cfg.MaxInflight = defaultMaxInflight
	}
	if cfg.MaxWait <= 0 {
		cfg.MaxWait = defaultMaxWait
	}
	if cfg.LoadTimeout <= 0 {
		cfg.LoadTimeout = defaultLoadTimeout
	}
	if cfg.Selector == nil {
		cfg.Selector = device.NewSelector(nil, nil)
	}
	if cfg.BaseContext == nil {
		cfg.BaseContext = context.Background()
	}
	if cfg.Publisher == nil {
		cfg.Publisher = noopPublisher{}
	}
	required := cfg.Required
	if len(required) == 0 {
		required = types.Categories
	}
	m := &Manager{
		selector:    cfg.Selector,
		slots:       make(map[types.Category]*slot, len(types.Categories)),
		required:    append([]types.Category(nil), required...),
		maxWait:     cfg.MaxWait,
		loadTimeout: cfg.LoadTimeout,
		baseCtx:     cfg.BaseContext,
		publisher:   cfg.Publisher,
		startTime:   time.Now(),
	}
	for _, c := range types.Categories {
		m.slots[c] = &slot{
			category:  c,
			loader:    cfg.Loaders[c],
			placement: cfg.Selector.Resolve(c),
			state:     StateUnloaded,
			done:      make(chan struct{}),
			genCh:     make(chan struct{}, cfg.MaxInflight),
			queueCh:   make(chan struct{}, cfg.MaxQueueDepth),
		}
	}
	return m
}
