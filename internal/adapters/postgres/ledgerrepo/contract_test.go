package ledgerrepo

import (
	"testing"
	"time"

	"github.com/Flora-Ebah/kairos-backend/internal/adapters/contracttest"
	"github.com/Flora-Ebah/kairos-backend/internal/adapters/postgres/testutil"
	ledgerrepoport "github.com/Flora-Ebah/kairos-backend/internal/ports/out/ledgerrepo"
)

func TestContract_PostgresLedgerRepo(t *testing.T) {
	pool := testutil.OpenMigratedPool(t, "ledger_entries", "daily_ledgers")

	contracttest.RunLedgerRepo(t, func(t *testing.T) (ledgerrepoport.Repository, func()) {
		t.Helper()
		return NewRepo(pool, time.UTC), nil
	})
}
