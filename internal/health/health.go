// Package health assembles the detailed health report: model slot states,
// execution device, host memory and disk, and the rate limit store.
package health

import (
	"context"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/disk"
	"github.com/shirou/gopsutil/v4/mem"
	"golang.org/x/sync/errgroup"

	"clinicd/pkg/types"
)

// Check and overall statuses.
const (
	StatusHealthy   = "healthy"
	StatusWarning   = "warning"
	StatusUnhealthy = "unhealthy"
	StatusDegraded  = "degraded"
)

// usageWarnPercent marks memory or disk usage as a warning.
const usageWarnPercent = 90.0

// Models is the view of the model manager used by health checks.
type Models interface {
	Status() types.StatusResponse
	Ready() bool
}

// Pinger checks an external dependency.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Host reads host resource usage. The gopsutil implementation is used
// unless a test replaces it.
type Host interface {
	Memory(ctx context.Context) (*mem.VirtualMemoryStat, error)
	Disk(ctx context.Context, path string) (*disk.UsageStat, error)
	CPUCount(ctx context.Context) (int, error)
}

type gopsutilHost struct{}

func (gopsutilHost) Memory(ctx context.Context) (*mem.VirtualMemoryStat, error) {
	return mem.VirtualMemoryWithContext(ctx)
}

func (gopsutilHost) Disk(ctx context.Context, path string) (*disk.UsageStat, error) {
	return disk.UsageWithContext(ctx, path)
}

func (gopsutilHost) CPUCount(ctx context.Context) (int, error) {
	return cpu.CountsWithContext(ctx, true)
}

// Checker runs the health checks.
type Checker struct {
	models   Models
	limiter  Pinger
	host     Host
	diskPath string
	timeout  time.Duration
	now      func() time.Time
}

// Option configures a Checker.
type Option func(*Checker)

// WithLimiter adds a rate limit store check.
func WithLimiter(p Pinger) Option { return func(c *Checker) { c.limiter = p } }

// WithHost replaces the host resource reader.
func WithHost(h Host) Option { return func(c *Checker) { c.host = h } }

// WithDiskPath sets the filesystem checked for free space.
func WithDiskPath(p string) Option { return func(c *Checker) { c.diskPath = p } }

func New(models Models, opts ...Option) *Checker {
	c := &Checker{models: models, host: gopsutilHost{}, diskPath: "/", timeout: 5 * time.Second, now: time.Now}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Ready reports whether every required model is loaded.
func (c *Checker) Ready() bool { return c.models.Ready() }

// Detailed runs every check concurrently. The overall status is unhealthy
// if any check is unhealthy, degraded if any warns, healthy otherwise.
func (c *Checker) Detailed(ctx context.Context) types.DetailedHealthResponse {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	checks := map[string]func(context.Context) types.CheckResult{
		"models": c.checkModels,
		"device": c.checkDevice,
		"memory": c.checkMemory,
		"disk":   c.checkDisk,
		"cpu":    c.checkCPU,
	}
	if c.limiter != nil {
		checks["rate_limiter"] = c.checkLimiter
	}

	var mu sync.Mutex
	results := make(map[string]types.CheckResult, len(checks))
	g, gctx := errgroup.WithContext(ctx)
	for name, fn := range checks {
		g.Go(func() error {
			r := fn(gctx)
			mu.Lock()
			results[name] = r
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	return types.DetailedHealthResponse{
		Status:    Overall(results),
		Timestamp: c.now().UTC().Format(time.RFC3339),
		Checks:    results,
	}
}

// Overall folds check statuses into one status.
func Overall(results map[string]types.CheckResult) string {
	overall := StatusHealthy
	for _, r := range results {
		switch r.Status {
		case StatusUnhealthy:
			return StatusUnhealthy
		case StatusWarning:
			overall = StatusDegraded
		}
	}
	return overall
}

func (c *Checker) checkModels(context.Context) types.CheckResult {
	st := c.models.Status()
	details := make(map[string]any, len(st.Slots)+1)
	status := StatusHealthy
	for _, s := range st.Slots {
		details[s.Category] = s.State
		switch s.State {
		case "failed":
			status = StatusUnhealthy
		case "loaded":
		default:
			if status == StatusHealthy {
				status = StatusWarning
			}
		}
	}
	details["ready"] = st.Ready
	if !st.Ready {
		status = StatusUnhealthy
	}
	return types.CheckResult{Status: status, Details: details}
}

func (c *Checker) checkDevice(context.Context) types.CheckResult {
	dev := c.models.Status().Device
	r := types.CheckResult{Status: StatusHealthy, Details: map[string]any{"device": dev}}
	if dev == "cpu" {
		r.Status = StatusWarning
		r.Details["message"] = "running on CPU; inference will be slow"
	}
	return r
}

func (c *Checker) checkMemory(ctx context.Context) types.CheckResult {
	vm, err := c.host.Memory(ctx)
	if err != nil {
		return types.CheckResult{Status: StatusUnhealthy, Error: err.Error()}
	}
	return types.CheckResult{
		Status: usageStatus(vm.UsedPercent),
		Details: map[string]any{
			"total_gb":     gb(vm.Total),
			"available_gb": gb(vm.Available),
			"used_percent": vm.UsedPercent,
		},
	}
}

func (c *Checker) checkDisk(ctx context.Context) types.CheckResult {
	du, err := c.host.Disk(ctx, c.diskPath)
	if err != nil {
		return types.CheckResult{Status: StatusUnhealthy, Error: err.Error()}
	}
	return types.CheckResult{
		Status: usageStatus(du.UsedPercent),
		Details: map[string]any{
			"path":         c.diskPath,
			"total_gb":     gb(du.Total),
			"free_gb":      gb(du.Free),
			"used_percent": du.UsedPercent,
		},
	}
}

func (c *Checker) checkCPU(ctx context.Context) types.CheckResult {
	n, err := c.host.CPUCount(ctx)
	if err != nil {
		return types.CheckResult{Status: StatusWarning, Error: err.Error()}
	}
	return types.CheckResult{Status: StatusHealthy, Details: map[string]any{"logical_cores": n}}
}

// checkLimiter warns rather than fails: the limiter keeps admitting
// requests from its local fallback while the shared store is down.
func (c *Checker) checkLimiter(ctx context.Context) types.CheckResult {
	if err := c.limiter.Ping(ctx); err != nil {
		return types.CheckResult{Status: StatusWarning, Error: err.Error(), Details: map[string]any{"fallback": "memory"}}
	}
	return types.CheckResult{Status: StatusHealthy}
}

func usageStatus(pct float64) string {
	if pct >= usageWarnPercent {
		return StatusWarning
	}
	return StatusHealthy
}

func gb(b uint64) float64 {
	return float64(int64(float64(b)/1e7)) / 100
}
