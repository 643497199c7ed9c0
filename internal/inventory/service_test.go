package inventory

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/atvirokodosprendimai/hostledger/internal/db"
	"github.com/atvirokodosprendimai/hostledger/internal/spec"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type recordingNotifier struct {
	mu      sync.Mutex
	changes []Change
}

func (n *recordingNotifier) Notify(_ context.Context, c Change) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.changes = append(n.changes, c)
}

func (n *recordingNotifier) all() []Change {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]Change(nil), n.changes...)
}

func newTestService(t *testing.T) (*Service, *gorm.DB, *recordingNotifier) {
	t.Helper()
	gormDB, err := db.NewDatabase(filepath.Join(t.TempDir(), "inventory.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := gormDB.DB(); err == nil {
			sqlDB.Close()
		}
	})
	n := &recordingNotifier{}
	return NewService(db.NewStore(gormDB), n, nil), gormDB, n
}

func strPtr(s string) *string { return &s }

func acme() spec.ClientSpec {
	return spec.ClientSpec{
		Client: "acme",
		Computers: map[string]spec.ComputerSpec{
			"10.0.0.1": {Latency: "2ms", Hostname: "web1", Ports: map[string]string{"80": "http", "443": "https"}},
		},
	}
}

// toSpecs folds list output back into the create shape so trees can be compared
// without depending on computer order.
func toSpecs(views []spec.ClientView) []spec.ClientSpec {
	out := make([]spec.ClientSpec, 0, len(views))
	for _, v := range views {
		cs := spec.ClientSpec{Client: v.Client, Computers: map[string]spec.ComputerSpec{}}
		for _, c := range v.Computers {
			cs.Computers[c.IPAddress] = spec.ComputerSpec{Latency: c.Latency, Hostname: c.Hostname, Ports: c.Ports}
		}
		out = append(out, cs)
	}
	return out
}

func mustList(t *testing.T, svc *Service) []spec.ClientView {
	t.Helper()
	views, err := svc.ListClients(context.Background())
	require.NoError(t, err)
	return views
}

func TestCreateThenListRoundTrip(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	input := []spec.ClientSpec{
		acme(),
		{
			Client: "globex",
			Computers: map[string]spec.ComputerSpec{
				"10.0.1.1": {Latency: "7ms", Hostname: "db1", Ports: map[string]string{"5432": "postgres"}},
				"10.0.1.2": {Latency: "9ms", Hostname: "cache1", Ports: map[string]string{"6379": "redis", "80": "http"}},
			},
		},
	}
	require.NoError(t, svc.CreateClients(ctx, input))

	assert.ElementsMatch(t, input, toSpecs(mustList(t, svc)))
}

func TestListEmptyInventory(t *testing.T) {
	svc, _, _ := newTestService(t)

	views := mustList(t, svc)
	require.NotNil(t, views)
	assert.Empty(t, views)
}

func TestListKeepsComputerWithoutPorts(t *testing.T) {
	svc, _, _ := newTestService(t)
	require.NoError(t, svc.CreateClients(context.Background(), []spec.ClientSpec{{
		Client:    "bare",
		Computers: map[string]spec.ComputerSpec{"192.168.1.5": {Hostname: "nas"}},
	}}))

	views := mustList(t, svc)
	require.Len(t, views, 1)
	require.Len(t, views[0].Computers, 1)
	assert.NotNil(t, views[0].Computers[0].Ports)
	assert.Empty(t, views[0].Computers[0].Ports)
}

func TestCreateRejectsIncompleteEntries(t *testing.T) {
	svc, _, n := newTestService(t)
	ctx := context.Background()

	cases := map[string][]spec.ClientSpec{
		"empty name":    {{Client: "", Computers: acme().Computers}},
		"no computers":  {{Client: "acme"}},
		"empty ip":      {{Client: "acme", Computers: map[string]spec.ComputerSpec{"": {Hostname: "x"}}}},
		"empty port":    {{Client: "acme", Computers: map[string]spec.ComputerSpec{"10.0.0.9": {Ports: map[string]string{"": "x"}}}}},
		"later invalid": {acme(), {Client: "globex"}},
	}
	for name, entries := range cases {
		t.Run(name, func(t *testing.T) {
			err := svc.CreateClients(ctx, entries)
			require.ErrorIs(t, err, ErrInvalidInput)
			assert.Equal(t, KindInvalidInput, KindOf(err))
			assert.Empty(t, mustList(t, svc))
		})
	}
	assert.Empty(t, n.all())
}

func TestCreateEmptyBatchIsNoop(t *testing.T) {
	svc, _, n := newTestService(t)

	require.NoError(t, svc.CreateClients(context.Background(), nil))
	require.NoError(t, svc.CreateClients(context.Background(), []spec.ClientSpec{}))
	assert.Empty(t, mustList(t, svc))
	assert.Empty(t, n.all())
}

func TestCreateDuplicateNameInOneCallPersistsNothing(t *testing.T) {
	svc, _, _ := newTestService(t)

	second := acme()
	second.Computers = map[string]spec.ComputerSpec{"10.0.0.2": {Hostname: "web2"}}

	err := svc.CreateClients(context.Background(), []spec.ClientSpec{acme(), second})
	require.ErrorIs(t, err, ErrConflict)
	assert.Contains(t, err.Error(), "acme")
	assert.Empty(t, mustList(t, svc))
}

func TestCreateExistingClientConflicts(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	require.NoError(t, svc.CreateClients(ctx, []spec.ClientSpec{acme()}))

	again := acme()
	again.Computers = map[string]spec.ComputerSpec{"10.0.0.50": {Hostname: "other"}}
	err := svc.CreateClients(ctx, []spec.ClientSpec{again})
	require.ErrorIs(t, err, ErrConflict)
	assert.Contains(t, err.Error(), "'acme' already exists")

	views := mustList(t, svc)
	assert.ElementsMatch(t, []spec.ClientSpec{acme()}, toSpecs(views))
}

func TestCreateIPOwnedByOtherClientConflicts(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	require.NoError(t, svc.CreateClients(ctx, []spec.ClientSpec{acme()}))

	batch := []spec.ClientSpec{
		{Client: "globex", Computers: map[string]spec.ComputerSpec{"10.0.5.5": {Hostname: "fresh"}}},
		{Client: "initech", Computers: map[string]spec.ComputerSpec{"10.0.0.1": {Hostname: "stolen"}}},
	}
	err := svc.CreateClients(ctx, batch)
	require.ErrorIs(t, err, ErrConflict)
	assert.Contains(t, err.Error(), "10.0.0.1")
	assert.Contains(t, err.Error(), "acme")

	// globex came first in the batch but must not survive the failed call.
	views := mustList(t, svc)
	require.Len(t, views, 1)
	assert.Equal(t, "acme", views[0].Client)
}

func TestUpdateUnknownClientNotFound(t *testing.T) {
	svc, _, n := newTestService(t)

	err := svc.UpdateClient(context.Background(), "ghost", spec.ClientPatch{})
	require.ErrorIs(t, err, ErrNotFound)
	assert.Contains(t, err.Error(), "ghost")
	assert.Empty(t, n.all())
}

func TestUpdateLatencyOnlyLeavesOtherFields(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	require.NoError(t, svc.CreateClients(ctx, []spec.ClientSpec{acme()}))

	err := svc.UpdateClient(ctx, "acme", spec.ClientPatch{Computers: map[string]spec.ComputerPatch{
		"10.0.0.1": {Latency: strPtr("5ms")},
	}})
	require.NoError(t, err)

	want := acme()
	c := want.Computers["10.0.0.1"]
	c.Latency = "5ms"
	want.Computers["10.0.0.1"] = c
	assert.ElementsMatch(t, []spec.ClientSpec{want}, toSpecs(mustList(t, svc)))
}

func TestUpdateAddsPortAndKeepsExisting(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	require.NoError(t, svc.CreateClients(ctx, []spec.ClientSpec{acme()}))

	err := svc.UpdateClient(ctx, "acme", spec.ClientPatch{Computers: map[string]spec.ComputerPatch{
		"10.0.0.1": {Ports: map[string]string{"22": "ssh"}},
	}})
	require.NoError(t, err)

	views := mustList(t, svc)
	require.Len(t, views, 1)
	require.Len(t, views[0].Computers, 1)
	got := views[0].Computers[0]
	assert.Equal(t, "2ms", got.Latency)
	assert.Equal(t, "web1", got.Hostname)
	assert.Equal(t, map[string]string{"80": "http", "443": "https", "22": "ssh"}, got.Ports)
}

func TestUpdatePortUpsertIsIdempotent(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	require.NoError(t, svc.CreateClients(ctx, []spec.ClientSpec{acme()}))

	patch := spec.ClientPatch{Computers: map[string]spec.ComputerPatch{
		"10.0.0.1": {Hostname: strPtr("web1-renamed"), Ports: map[string]string{"80": "nginx"}},
	}}
	require.NoError(t, svc.UpdateClient(ctx, "acme", patch))
	first := mustList(t, svc)

	require.NoError(t, svc.UpdateClient(ctx, "acme", patch))
	second := mustList(t, svc)

	assert.Equal(t, first, second)
	require.Len(t, second[0].Computers, 1)
	assert.Equal(t, map[string]string{"80": "nginx", "443": "https"}, second[0].Computers[0].Ports)
	assert.Equal(t, "web1-renamed", second[0].Computers[0].Hostname)
	assert.Equal(t, "2ms", second[0].Computers[0].Latency)
}

func TestUpdateCreatesNewComputerWithPorts(t *testing.T) {
	svc, _, n := newTestService(t)
	ctx := context.Background()
	require.NoError(t, svc.CreateClients(ctx, []spec.ClientSpec{acme()}))

	err := svc.UpdateClient(ctx, "acme", spec.ClientPatch{Computers: map[string]spec.ComputerPatch{
		"10.0.0.2": {Latency: strPtr("4ms"), Ports: map[string]string{"3306": "mysql"}},
	}})
	require.NoError(t, err)

	want := acme()
	want.Computers["10.0.0.2"] = spec.ComputerSpec{Latency: "4ms", Ports: map[string]string{"3306": "mysql"}}
	assert.ElementsMatch(t, []spec.ClientSpec{want}, toSpecs(mustList(t, svc)))

	changes := n.all()
	require.Len(t, changes, 2)
	assert.Equal(t, Change{Op: OpUpdated, Client: "acme", Computers: []string{"10.0.0.2"}}, changes[1])
}

func TestUpdateCrossClientIPConflictRollsBack(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	require.NoError(t, svc.CreateClients(ctx, []spec.ClientSpec{
		acme(),
		{Client: "globex", Computers: map[string]spec.ComputerSpec{"10.0.9.9": {Hostname: "g1", Latency: "1ms"}}},
	}))
	before := mustList(t, svc)

	// 10.0.0.0 sorts before 10.0.0.1, so the local change is applied first and must be undone.
	err := svc.UpdateClient(ctx, "globex", spec.ClientPatch{Computers: map[string]spec.ComputerPatch{
		"10.0.0.0": {Hostname: strPtr("new")},
		"10.0.0.1": {Hostname: strPtr("hijack")},
	}})
	require.ErrorIs(t, err, ErrConflict)
	assert.Contains(t, err.Error(), "10.0.0.1")
	assert.Contains(t, err.Error(), "'acme'")

	assert.Equal(t, before, mustList(t, svc))
}

func TestUpdateWithoutComputersIsNoop(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	require.NoError(t, svc.CreateClients(ctx, []spec.ClientSpec{acme()}))

	require.NoError(t, svc.UpdateClient(ctx, "acme", spec.ClientPatch{}))
	assert.ElementsMatch(t, []spec.ClientSpec{acme()}, toSpecs(mustList(t, svc)))
}

func TestDeleteCascadesToComputersAndPorts(t *testing.T) {
	svc, gormDB, n := newTestService(t)
	ctx := context.Background()
	require.NoError(t, svc.CreateClients(ctx, []spec.ClientSpec{
		acme(),
		{Client: "globex", Computers: map[string]spec.ComputerSpec{"10.0.9.9": {Ports: map[string]string{"80": "http"}}}},
	}))

	require.NoError(t, svc.DeleteClient(ctx, "acme"))

	views := mustList(t, svc)
	require.Len(t, views, 1)
	assert.Equal(t, "globex", views[0].Client)

	var computers, ports int64
	require.NoError(t, gormDB.Model(&db.Computer{}).Count(&computers).Error)
	require.NoError(t, gormDB.Model(&db.Port{}).Count(&ports).Error)
	assert.EqualValues(t, 1, computers)
	assert.EqualValues(t, 1, ports)

	changes := n.all()
	require.Len(t, changes, 3)
	assert.Equal(t, Change{Op: OpDeleted, Client: "acme", Computers: []string{"10.0.0.1"}, Ports: 2}, changes[2])

	// The name and the address are free again.
	require.NoError(t, svc.CreateClients(ctx, []spec.ClientSpec{acme()}))
}

func TestDeleteUnknownClientNotFound(t *testing.T) {
	svc, _, _ := newTestService(t)

	err := svc.DeleteClient(context.Background(), "ghost")
	require.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, KindNotFound, KindOf(err))
}

func TestGetClient(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	require.NoError(t, svc.CreateClients(ctx, []spec.ClientSpec{acme()}))

	view, err := svc.GetClient(ctx, "acme")
	require.NoError(t, err)
	assert.Equal(t, spec.ClientView{
		Client: "acme",
		Computers: []spec.ComputerView{{
			IPAddress: "10.0.0.1",
			Latency:   "2ms",
			Hostname:  "web1",
			Ports:     map[string]string{"80": "http", "443": "https"},
		}},
	}, view)

	_, err = svc.GetClient(ctx, "ghost")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestStorageFailureIsClassified(t *testing.T) {
	svc, gormDB, _ := newTestService(t)
	sqlDB, err := gormDB.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())

	_, err = svc.ListClients(context.Background())
	require.ErrorIs(t, err, ErrStorage)
	assert.Equal(t, KindStorageFailure, KindOf(err))
}
