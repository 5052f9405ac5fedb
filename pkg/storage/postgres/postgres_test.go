package postgres

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	pgmodule "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/ablauf-dev/ablauf/pkg/api"
	"github.com/ablauf-dev/ablauf/pkg/storage"
	"github.com/ablauf-dev/ablauf/pkg/transport"
)

func init() {
	// Point testcontainers at the podman socket when no Docker host is
	// configured.
	if os.Getenv("DOCKER_HOST") == "" {
		if out, err := exec.Command("podman", "machine", "inspect", "--format", "{{.ConnectionInfo.PodmanSocket.Path}}").Output(); err == nil {
			if sock := strings.TrimSpace(string(out)); sock != "" {
				os.Setenv("DOCKER_HOST", "unix://"+sock)
			}
		}
	}
	// Ryuk requires privileged mode under podman.
	if os.Getenv("TESTCONTAINERS_RYUK_CONTAINER_PRIVILEGED") == "" {
		os.Setenv("TESTCONTAINERS_RYUK_CONTAINER_PRIVILEGED", "true")
	}
}

// newTestStore runs a throwaway PostgreSQL container with migrations
// applied, skipping when no container runtime is available.
func newTestStore(t *testing.T) *Store {
	t.Helper()

	if os.Getenv("SKIP_INTEGRATION") == "true" {
		t.Skip("SKIP_INTEGRATION=true, skipping PostgreSQL integration tests")
	}
	if _, err := exec.LookPath("podman"); err != nil {
		t.Skip("podman not found, skipping integration tests")
	}

	ctx := context.Background()
	container, err := pgmodule.Run(ctx,
		"postgres:16-alpine",
		pgmodule.WithDatabase("ablauf_test"),
		pgmodule.WithUsername("test"),
		pgmodule.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		t.Skipf("skipping: could not start PostgreSQL container (is podman running?): %v", err)
	}
	t.Cleanup(func() { container.Terminate(context.Background()) })

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("getting connection string: %v", err)
	}

	store, err := New(ctx, Config{
		DSN:            dsn,
		MaxConns:       5,
		MinConns:       1,
		MigrateOnStart: true,
	})
	if err != nil {
		t.Fatalf("creating store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

// sampleResponse builds a completed response with a unique suffix.
func sampleResponse(prefix string) *api.Response {
	return &api.Response{
		ID:        fmt.Sprintf("%s_%d", prefix, time.Now().UnixNano()),
		Object:    "response",
		Status:    api.ResponseStatusCompleted,
		Model:     "echo",
		Output:    []api.Item{api.NewTextItem("msg_out1", "hi there")},
		Usage:     &api.Usage{InputTokens: 5, OutputTokens: 3, TotalTokens: 8},
		Metadata:  map[string]string{"source": "test"},
		CreatedAt: time.Now().Unix(),
	}
}

func TestPostgresRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	resp := sampleResponse("resp_pg_rt")
	if err := store.SaveResponse(ctx, resp); err != nil {
		t.Fatalf("SaveResponse failed: %v", err)
	}

	got, err := store.GetResponse(ctx, resp.ID)
	if err != nil {
		t.Fatalf("GetResponse failed: %v", err)
	}

	if got.ID != resp.ID || got.Model != "echo" || got.Status != api.ResponseStatusCompleted {
		t.Errorf("loaded response = %s/%s/%s, want %s/echo/completed", got.ID, got.Model, got.Status, resp.ID)
	}
	if len(got.Output) != 1 {
		t.Errorf("len(Output) = %d, want 1", len(got.Output))
	}
	if got.Usage == nil || got.Usage.InputTokens != 5 {
		t.Errorf("Usage = %+v, want 5 input tokens", got.Usage)
	}
	if got.Metadata["source"] != "test" {
		t.Errorf("Metadata[source] = %q, want test", got.Metadata["source"])
	}
}

func TestPostgresGetMissing(t *testing.T) {
	store := newTestStore(t)

	if _, err := store.GetResponse(context.Background(), "resp_nonexistent"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
}

func TestPostgresSoftDelete(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	resp := sampleResponse("resp_pg_del")
	store.SaveResponse(ctx, resp)

	if err := store.DeleteResponse(ctx, resp.ID); err != nil {
		t.Fatalf("DeleteResponse failed: %v", err)
	}
	if _, err := store.GetResponse(ctx, resp.ID); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("get after delete: error = %v, want ErrNotFound", err)
	}
	if err := store.DeleteResponse(ctx, resp.ID); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("second delete: error = %v, want ErrNotFound", err)
	}
}

func TestPostgresDuplicateSave(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	resp := sampleResponse("resp_pg_dup")
	store.SaveResponse(ctx, resp)

	if err := store.SaveResponse(ctx, resp); !errors.Is(err, storage.ErrConflict) {
		t.Errorf("error = %v, want ErrConflict", err)
	}
}

func TestPostgresHealthCheck(t *testing.T) {
	store := newTestStore(t)

	if err := store.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck failed: %v", err)
	}
}

func TestPostgresListPagination(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	base := time.Now().Unix()
	suffix := fmt.Sprintf("%d", time.Now().UnixNano())
	id := func(i int) string { return fmt.Sprintf("resp_list_%d_%s", i, suffix) }
	for i := 1; i <= 5; i++ {
		resp := sampleResponse("unused")
		resp.ID = id(i)
		resp.CreatedAt = base + int64(i)
		if err := store.SaveResponse(ctx, resp); err != nil {
			t.Fatalf("SaveResponse failed: %v", err)
		}
	}

	// Newest first by default.
	page1, err := store.ListResponses(ctx, transport.ListOptions{Limit: 2})
	if err != nil {
		t.Fatalf("ListResponses failed: %v", err)
	}
	if len(page1.Data) != 2 || !page1.HasMore {
		t.Fatalf("page1 = %d entries, hasMore=%v, want 2 entries with more", len(page1.Data), page1.HasMore)
	}
	if page1.Data[0].ID != id(5) {
		t.Errorf("page1 first = %q, want newest entry %q", page1.Data[0].ID, id(5))
	}

	// The keyset cursor resumes where the page ended.
	page2, err := store.ListResponses(ctx, transport.ListOptions{Limit: 2, After: page1.LastID})
	if err != nil {
		t.Fatalf("ListResponses failed: %v", err)
	}
	if len(page2.Data) != 2 || page2.Data[0].ID != id(3) {
		t.Errorf("page2 = %v, want to start at %q", page2.Data, id(3))
	}
}

func TestPostgresListModelFilter(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	echo := sampleResponse("resp_filter_a")
	pipeline := sampleResponse("resp_filter_b")
	pipeline.Model = "pipeline"
	store.SaveResponse(ctx, echo)
	store.SaveResponse(ctx, pipeline)

	list, err := store.ListResponses(ctx, transport.ListOptions{Model: "pipeline"})
	if err != nil {
		t.Fatalf("ListResponses failed: %v", err)
	}
	for _, r := range list.Data {
		if r.Model != "pipeline" {
			t.Errorf("unexpected model %q in filtered list", r.Model)
		}
	}
}

func TestPostgresListExcludesDeleted(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	resp := sampleResponse("resp_listdel")
	store.SaveResponse(ctx, resp)
	store.DeleteResponse(ctx, resp.ID)

	list, err := store.ListResponses(ctx, transport.ListOptions{Limit: 100})
	if err != nil {
		t.Fatalf("ListResponses failed: %v", err)
	}
	for _, r := range list.Data {
		if r.ID == resp.ID {
			t.Error("deleted response still listed")
		}
	}
}
