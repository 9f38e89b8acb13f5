//go:build integration
// +build integration

package http_test

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/urbanbuzz/explorer/internal/adapters/postgres"
	"github.com/urbanbuzz/explorer/internal/core/domain"
	"github.com/urbanbuzz/explorer/internal/core/usecases"
	"github.com/urbanbuzz/explorer/internal/pkg/config"
	"github.com/urbanbuzz/explorer/internal/pkg/logging"

	handler "github.com/urbanbuzz/explorer/internal/adapters/http"
)

// setupTestDB connects to the database named by the test config. The
// explorations migration must already be applied.
func setupTestDB(t *testing.T) *postgres.DB {
	cfg, err := config.Load("urbanbuzz-test")
	if err != nil {
		t.Fatalf("load config: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	db, err := postgres.New(ctx, cfg.Database.DSN())
	if err != nil {
		t.Fatalf("connect db: %v", err)
	}
	t.Cleanup(db.Close)
	return db
}

// withHistory wires explorations to a real history repository.
func withHistory(repo *postgres.ExplorationRepo) func(*handler.Dependencies) {
	return func(d *handler.Dependencies) {
		geo := atlantaGeocoder()
		log := logging.Discard()
		d.Explorations = usecases.NewExplorationService(geo, northbound(10), usecases.NewEnricher(geo, 4, log),
			usecases.NewImageFetcher(fakeURLs{}, nil, 0, usecases.ImageParams{}, log), nil, repo, usecases.ExplorationConfig{}, log)
		d.DB = repoPinger{repo}
	}
}

type repoPinger struct{ repo *postgres.ExplorationRepo }

func (p repoPinger) Ping(ctx context.Context) error {
	_, err := p.repo.Recent(ctx, 1)
	return err
}

func TestExplorationHistory_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	repo := postgres.NewExplorationRepo(setupTestDB(t))
	app := setupApp(makeDeps(withHistory(repo)))

	resp, err := app.Test(postJSON("/v1/explorations", map[string]string{"origin": "Five Points", "destination": "Midtown"}), -1)
	if err != nil {
		t.Fatalf("test request: %v", err)
	}
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var result domain.Exploration
	json.NewDecoder(resp.Body).Decode(&result)

	resp, err = app.Test(httptest.NewRequest("GET", "/v1/explorations/recent?limit=50", nil), -1)
	if err != nil {
		t.Fatalf("test request: %v", err)
	}
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var body struct {
		Data []domain.ExplorationRecord `json:"data"`
	}
	json.NewDecoder(resp.Body).Decode(&body)

	var found *domain.ExplorationRecord
	for i := range body.Data {
		if body.Data[i].ID == result.ID {
			found = &body.Data[i]
		}
	}
	if found == nil {
		t.Fatalf("exploration %s not in history", result.ID)
	}
	if found.State != domain.StateDone || found.StopCount != len(result.Stops) || found.ImageCount != len(result.Images) {
		t.Errorf("unexpected record %+v", found)
	}
}

func TestExplorationHistory_FailureRecorded_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	repo := postgres.NewExplorationRepo(setupTestDB(t))
	app := setupApp(makeDeps(withHistory(repo)))

	resp, _ := app.Test(postJSON("/v1/explorations", map[string]string{"origin": "Atlantis", "destination": "Midtown"}), -1)
	if resp.StatusCode != 404 {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}

	recs, err := repo.Recent(context.Background(), 1)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(recs) != 1 || recs[0].State != domain.StateFailed || recs[0].ErrorCode != "location_not_found" {
		t.Errorf("expected failed record, got %+v", recs)
	}
}

func TestReady_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	repo := postgres.NewExplorationRepo(setupTestDB(t))
	app := setupApp(makeDeps(withHistory(repo)))

	resp, _ := app.Test(httptest.NewRequest("GET", "/v1/ready", nil), -1)
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
}
