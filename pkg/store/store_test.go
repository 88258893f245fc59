package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/kacperjurak/hyqcore/pkg/models"
)

func openTest(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "data", "runs.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func result(id, batch string, created time.Time) *models.ScenarioResult {
	return &models.ScenarioResult{
		ID:        id,
		BatchID:   batch,
		Name:      "run " + id,
		Status:    models.StatusOK,
		Rows:      10,
		Cols:      12,
		Transform: [6]float64{0, 10, 0, 100, 0, -10},
		H0:        50,
		Confined:  true,
		Wells:     2,
		Snapshots: []models.SnapshotResult{{Time: 3600, Label: "H at t = 3600", MinHead: 44.5, MaxDrawdown: 5.5}},
		CreatedAt: created,
	}
}

func TestSaveGet(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()
	in := result("a", "", time.Date(2026, 1, 2, 3, 4, 5, 6000, time.UTC))

	if err := s.Save(ctx, in); err != nil {
		t.Fatalf("Save: %v", err)
	}
	out, err := s.Get(ctx, "a")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if out.Name != in.Name || out.Rows != 10 || out.Cols != 12 || out.Transform != in.Transform {
		t.Errorf("Get = %+v", out)
	}
	if len(out.Snapshots) != 1 || out.Snapshots[0].MaxDrawdown != 5.5 {
		t.Errorf("snapshots = %+v", out.Snapshots)
	}
	if !out.CreatedAt.Equal(in.CreatedAt) {
		t.Errorf("CreatedAt = %v, want %v", out.CreatedAt, in.CreatedAt)
	}
}

func TestGetMissing(t *testing.T) {
	s := openTest(t)
	if _, err := s.Get(context.Background(), "nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
}

func TestSaveRejectsMissingID(t *testing.T) {
	s := openTest(t)
	if err := s.Save(context.Background(), &models.ScenarioResult{}); err == nil {
		t.Error("Save without id succeeded")
	}
}

func TestSaveReplaces(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()
	r := result("a", "", time.Now())
	if err := s.Save(ctx, r); err != nil {
		t.Fatalf("Save: %v", err)
	}
	r.Status = models.StatusError
	r.Error = "boom"
	if err := s.Save(ctx, r); err != nil {
		t.Fatalf("Save again: %v", err)
	}

	list, err := s.List(ctx, ListOptions{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 1 || list[0].Status != models.StatusError {
		t.Errorf("List = %+v, want one errored run", list)
	}
}

func TestList(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()
	base := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	runs := []*models.ScenarioResult{
		result("r1", "b1", base),
		result("r2", "b1", base.Add(100*time.Millisecond)),
		result("r3", "b2", base.Add(time.Second)),
		result("r4", "", base.Add(2*time.Second)),
	}
	for _, r := range runs {
		if err := s.Save(ctx, r); err != nil {
			t.Fatalf("Save %s: %v", r.ID, err)
		}
	}

	tests := []struct {
		name string
		opts ListOptions
		want []string
	}{
		{"all newest first", ListOptions{}, []string{"r4", "r3", "r2", "r1"}},
		{"batch filter", ListOptions{BatchID: "b1"}, []string{"r2", "r1"}},
		{"limit", ListOptions{Limit: 2}, []string{"r4", "r3"}},
		{"offset", ListOptions{Limit: 2, Offset: 2}, []string{"r2", "r1"}},
		{"unknown batch", ListOptions{BatchID: "zz"}, []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.List(ctx, tt.opts)
			if err != nil {
				t.Fatalf("List: %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("len = %d, want %d", len(got), len(tt.want))
			}
			for i, id := range tt.want {
				if got[i].ID != id {
					t.Errorf("[%d] = %s, want %s", i, got[i].ID, id)
				}
			}
		})
	}

	got, _ := s.List(ctx, ListOptions{BatchID: "b2"})
	if got[0].Timesteps != 1 || got[0].Wells != 2 || got[0].Rows != 10 {
		t.Errorf("summary = %+v", got[0])
	}
}

func TestMemory(t *testing.T) {
	s, err := Open(Memory)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()
	if err := s.Save(context.Background(), result("m", "", time.Now())); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if _, err := s.Get(context.Background(), "m"); err != nil {
		t.Errorf("Get: %v", err)
	}
}
