package ledgerrepo

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/Flora-Ebah/kairos-backend/internal/adapters/contracttest"
	mongoadapter "github.com/Flora-Ebah/kairos-backend/internal/adapters/mongo"
	ledgerrepoport "github.com/Flora-Ebah/kairos-backend/internal/ports/out/ledgerrepo"
)

func TestContract_MongoLedgerRepo(t *testing.T) {
	uri := os.Getenv("MONGO_TEST_URI")
	if uri == "" {
		t.Skip("MONGO_TEST_URI not set; skipping mongo integration test")
	}
	ctx := context.Background()
	client, err := mongoadapter.Connect(ctx, uri)
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	db := client.Database("kairos_test_" + uuid.NewString()[:8])
	t.Cleanup(func() {
		_ = db.Drop(context.Background())
		_ = client.Disconnect(context.Background())
	})

	contracttest.RunLedgerRepo(t, func(t *testing.T) (ledgerrepoport.Repository, func()) {
		t.Helper()
		repo := NewRepo(db, time.UTC)
		if err := repo.Migrate(ctx); err != nil {
			t.Fatalf("Migrate: %v", err)
		}
		return repo, nil
	})
}
