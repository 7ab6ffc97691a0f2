package health

import (
	"context"
	"errors"
	"testing"

	"github.com/shirou/gopsutil/v4/disk"
	"github.com/shirou/gopsutil/v4/mem"

	"clinicd/pkg/types"
)

type fakeModels struct {
	status types.StatusResponse
}

func (f fakeModels) Status() types.StatusResponse { return f.status }
func (f fakeModels) Ready() bool                  { return f.status.Ready }

type fakeHost struct {
	memPct, diskPct float64
	memErr          error
}

func (h fakeHost) Memory(context.Context) (*mem.VirtualMemoryStat, error) {
	if h.memErr != nil {
		return nil, h.memErr
	}
	return &mem.VirtualMemoryStat{Total: 16e9, Available: 8e9, UsedPercent: h.memPct}, nil
}

func (h fakeHost) Disk(_ context.Context, path string) (*disk.UsageStat, error) {
	return &disk.UsageStat{Path: path, Total: 100e9, Free: 50e9, UsedPercent: h.diskPct}, nil
}

func (fakeHost) CPUCount(context.Context) (int, error) { return 8, nil }

type pinger struct{ err error }

func (p pinger) Ping(context.Context) error { return p.err }

func loadedModels(dev string) fakeModels {
	return fakeModels{status: types.StatusResponse{
		Device: dev,
		Ready:  true,
		Slots: []types.SlotStatus{
			{Category: "classify", State: "loaded"},
			{Category: "summarize", State: "loaded"},
			{Category: "generate", State: "loaded"},
		},
	}}
}

func TestDetailed(t *testing.T) {
	cases := []struct {
		name   string
		models fakeModels
		host   fakeHost
		ping   error
		want   string
	}{
		{"all healthy", loadedModels("cuda"), fakeHost{memPct: 40, diskPct: 40}, nil, StatusHealthy},
		{"cpu degrades", loadedModels("cpu"), fakeHost{memPct: 40, diskPct: 40}, nil, StatusDegraded},
		{"memory pressure", loadedModels("cuda"), fakeHost{memPct: 95, diskPct: 40}, nil, StatusDegraded},
		{"disk pressure", loadedModels("cuda"), fakeHost{memPct: 10, diskPct: 91}, nil, StatusDegraded},
		{"redis down", loadedModels("cuda"), fakeHost{memPct: 10, diskPct: 10}, errors.New("refused"), StatusDegraded},
		{"memory error", loadedModels("cuda"), fakeHost{memErr: errors.New("boom")}, nil, StatusUnhealthy},
		{"failed slot", fakeModels{status: types.StatusResponse{Device: "cuda", Slots: []types.SlotStatus{
			{Category: "generate", State: "failed"},
		}}}, fakeHost{}, nil, StatusUnhealthy},
	}
	for _, tc := range cases {
		c := New(tc.models, WithHost(tc.host), WithLimiter(pinger{tc.ping}))
		got := c.Detailed(context.Background())
		if got.Status != tc.want {
			t.Fatalf("%s: status=%s want %s (%+v)", tc.name, got.Status, tc.want, got.Checks)
		}
		if len(got.Checks) != 6 {
			t.Fatalf("%s: checks=%d", tc.name, len(got.Checks))
		}
		if got.Timestamp == "" {
			t.Fatalf("%s: no timestamp", tc.name)
		}
	}
}

func TestModelsCheckLoadingWarns(t *testing.T) {
	c := New(fakeModels{status: types.StatusResponse{Ready: true, Slots: []types.SlotStatus{
		{Category: "classify", State: "loading"},
	}}}, WithHost(fakeHost{}))
	r := c.checkModels(context.Background())
	if r.Status != StatusWarning || r.Details["classify"] != "loading" {
		t.Fatalf("got %+v", r)
	}
}

func TestOverall(t *testing.T) {
	if got := Overall(nil); got != StatusHealthy {
		t.Fatalf("empty=%s", got)
	}
	got := Overall(map[string]types.CheckResult{"a": {Status: StatusWarning}, "b": {Status: StatusUnhealthy}})
	if got != StatusUnhealthy {
		t.Fatalf("got %s", got)
	}
}

func TestGB(t *testing.T) {
	if got := gb(16_123_456_789); got != 16.12 {
		t.Fatalf("gb=%v", got)
	}
}
