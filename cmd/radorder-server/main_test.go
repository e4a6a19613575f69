package main

import (
	"bytes"
	"context"
	"errors"
	"io/fs"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/radorder/radorder/internal/domain/identity"
	"github.com/radorder/radorder/internal/domain/order"
	"github.com/radorder/radorder/internal/platform/db"
	"github.com/radorder/radorder/internal/platform/lock"
)

type fakePatients struct {
	created *identity.Patient
	stored  map[int64]*identity.Patient
}

func (f *fakePatients) GetByID(_ context.Context, id int64) (*identity.Patient, error) {
	if p, ok := f.stored[id]; ok {
		return p, nil
	}
	return nil, identity.ErrPatientNotFound
}

func (f *fakePatients) Create(_ context.Context, p *identity.Patient) error {
	p.ID = 55
	f.created = p
	return nil
}

func (f *fakePatients) Update(context.Context, int64, []identity.Assignment) error { return nil }

type passTx struct{}

func (passTx) InTx(ctx context.Context, fn func(ctx context.Context) error) error { return fn(ctx) }

func TestOrderPatients_MapsFields(t *testing.T) {
	repo := &fakePatients{}
	svc := identity.NewService(repo, nil, passTx{}, "US")
	var creator order.PatientCreator = orderPatients{svc: svc}

	id, err := creator.CreateTemporaryPatient(context.Background(), 3, order.TemporaryPatient{
		FirstName:   "Ada",
		LastName:    "Park",
		DateOfBirth: "1970-02-03",
		Gender:      "female",
		PhoneNumber: "(201) 555-0123",
	})
	if err != nil {
		t.Fatalf("CreateTemporaryPatient() error: %v", err)
	}
	if id != 55 {
		t.Errorf("expected id 55, got %d", id)
	}
	p := repo.created
	if p == nil || p.OrganizationID != 3 || p.FirstName != "Ada" || p.LastName != "Park" || !p.IsTemporary {
		t.Fatalf("unexpected patient: %+v", p)
	}
	if p.DateOfBirth == nil || p.DateOfBirth.Format("2006-01-02") != "1970-02-03" {
		t.Errorf("unexpected date of birth: %v", p.DateOfBirth)
	}
}

func TestOrderPatients_InvalidInputIsPayloadError(t *testing.T) {
	svc := identity.NewService(&fakePatients{}, nil, passTx{}, "US")
	creator := orderPatients{svc: svc}

	tests := []struct {
		name string
		in   order.TemporaryPatient
	}{
		{"short phone", order.TemporaryPatient{FirstName: "Ada", LastName: "Park", DateOfBirth: "1970-02-03", PhoneNumber: "12"}},
		{"missing name", order.TemporaryPatient{LastName: "Park", DateOfBirth: "1970-02-03"}},
		{"bad date", order.TemporaryPatient{FirstName: "Ada", LastName: "Park", DateOfBirth: "03/02/1970"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := creator.CreateTemporaryPatient(context.Background(), 3, tt.in)
			if !errors.Is(err, order.ErrInvalidPayload) {
				t.Fatalf("expected ErrInvalidPayload, got %v", err)
			}
			if got := order.HTTPError(err).Code; got != http.StatusBadRequest {
				t.Errorf("expected 400, got %d", got)
			}
		})
	}
}

func TestOrderPatients_PatientOrganization(t *testing.T) {
	repo := &fakePatients{stored: map[int64]*identity.Patient{9: {ID: 9, OrganizationID: 4}}}
	lookup := orderPatients{svc: identity.NewService(repo, nil, passTx{}, "US")}

	org, err := lookup.PatientOrganization(context.Background(), 9)
	if err != nil || org != 4 {
		t.Fatalf("expected organization 4, got %d (%v)", org, err)
	}
	if _, err := lookup.PatientOrganization(context.Background(), 10); !errors.Is(err, order.ErrPatientNotFound) {
		t.Errorf("expected ErrPatientNotFound, got %v", err)
	}
}

func TestNewLocker(t *testing.T) {
	l, err := newLocker("postgres", nil, 0)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := l.(*lock.Advisory); !ok {
		t.Errorf("expected advisory locker, got %T", l)
	}

	if _, err := newLocker("redis", nil, 0); err == nil {
		t.Error("expected error for redis backend without a client")
	}

	rdb := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
	defer rdb.Close()
	l, err = newLocker("redis", rdb, 5*time.Second)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := l.(*lock.Redis); !ok {
		t.Errorf("expected redis locker, got %T", l)
	}

	if _, err := newLocker("zookeeper", nil, 0); err == nil {
		t.Error("expected error for unknown backend")
	}
}

func TestMigrationFS_EmbeddedSet(t *testing.T) {
	names, err := fs.Glob(migrationFS(""), "*.sql")
	if err != nil {
		t.Fatal(err)
	}
	if len(names) == 0 || names[0] != "001_core.sql" {
		t.Errorf("expected embedded migrations starting with 001_core.sql, got %v", names)
	}

	m := db.NewMigrator(nil, migrationFS(""))
	migs, err := m.LoadMigrations()
	if err != nil {
		t.Fatalf("embedded migrations do not load: %v", err)
	}
	if migs[0].Version != 1 || !strings.Contains(migs[0].SQL, "orders") {
		t.Errorf("unexpected first migration: %d %s", migs[0].Version, migs[0].Name)
	}
}

func TestMigrationFS_Directory(t *testing.T) {
	dir := t.TempDir()
	if _, err := fs.Stat(migrationFS(dir), "."); err != nil {
		t.Errorf("directory override not readable: %v", err)
	}
}

func TestPrintStatus(t *testing.T) {
	applied := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)
	var buf bytes.Buffer
	printStatus(&buf, []db.MigrationStatus{
		{Version: 1, Name: "001_core.sql", Applied: true, AppliedAt: &applied},
		{Version: 2, Name: "002_indexes.sql"},
	})
	out := buf.String()
	if !strings.Contains(out, "2026-03-01 09:30:00") || !strings.Contains(out, "pending") {
		t.Errorf("unexpected status output:\n%s", out)
	}
}

func TestRootCmd_Commands(t *testing.T) {
	root := rootCmd()
	want := map[string]bool{"serve": false, "migrate": false}
	for _, c := range root.Commands() {
		if _, ok := want[c.Name()]; ok {
			want[c.Name()] = true
		}
	}
	for name, found := range want {
		if !found {
			t.Errorf("missing %s command", name)
		}
	}
	mig, _, err := root.Find([]string{"migrate", "status"})
	if err != nil || mig.Name() != "status" {
		t.Errorf("migrate status not registered: %v", err)
	}
	if mig.Flags().Lookup("dir") == nil {
		t.Error("migrate status should accept --dir")
	}
}
