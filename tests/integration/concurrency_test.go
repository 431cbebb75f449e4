package integration

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestConcurrentWithdrawals fires parallel withdrawal requests against the
// same wallet. The per-account critical section must let exactly one through;
// the rest fail the single in-flight check (or, once the hold lands, the
// balance check).
func TestConcurrentWithdrawals(t *testing.T) {
	app := newTestApp(t)
	accountID := uuid.New()

	app.settle(t, accountID, "ord_fund", "SALE", 500000)
	destID := app.createDestination(t, accountID)

	concurrency := 8
	var wg sync.WaitGroup
	var successCount, conflictCount atomic.Int64

	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			resp := app.sellerRequest(t, http.MethodPost, "/api/v1/wallet/withdrawals", accountID, map[string]interface{}{
				"amount":         300000,
				"destination_id": destID,
			})
			defer resp.Body.Close()
			switch resp.StatusCode {
			case http.StatusCreated:
				successCount.Add(1)
			case http.StatusConflict, http.StatusPaymentRequired:
				conflictCount.Add(1)
			default:
				t.Errorf("unexpected status %d", resp.StatusCode)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(1), successCount.Load(), "exactly one withdrawal must win")
	assert.Equal(t, int64(concurrency-1), conflictCount.Load())

	// The hold never exceeds the single winning request.
	resp := app.sellerRequest(t, http.MethodGet, "/api/v1/wallet", accountID, nil)
	data := dataOf(t, resp)
	assert.Equal(t, float64(300000), data["pending_withdrawals"])
	assert.Equal(t, float64(200000), data["available_balance"])
}

// TestConcurrentSettlementReplay posts the same settlement from many
// goroutines at once. The idempotency key must collapse them into a single
// ledger record.
func TestConcurrentSettlementReplay(t *testing.T) {
	app := newTestApp(t)
	accountID := uuid.New()

	concurrency := 16
	var wg sync.WaitGroup
	ids := make(chan string, concurrency)

	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			resp := app.gatewayPost(t, "/api/v1/settlements", map[string]interface{}{
				"account_id": accountID.String(),
				"order_ref":  "ord_race",
				"kind":       "SALE",
				"amount":     150000,
			})
			defer resp.Body.Close()
			if resp.StatusCode != http.StatusCreated {
				t.Errorf("unexpected status %d", resp.StatusCode)
				return
			}
			var body struct {
				Data struct {
					ID string `json:"id"`
				} `json:"data"`
			}
			if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
				t.Errorf("decode response: %v", err)
				return
			}
			ids <- body.Data.ID
		}()
	}
	wg.Wait()
	close(ids)

	first := <-ids
	require.NotEmpty(t, first)
	for id := range ids {
		assert.Equal(t, first, id, "replays must return the same record")
	}

	resp := app.sellerRequest(t, http.MethodGet, "/api/v1/wallet", accountID, nil)
	data := dataOf(t, resp)
	assert.Equal(t, float64(150000), data["available_balance"])
}

// TestConcurrentDistinctSettlements posts distinct settlements in parallel.
// Every one must land and the projection must converge to the exact sum.
func TestConcurrentDistinctSettlements(t *testing.T) {
	app := newTestApp(t)
	accountID := uuid.New()

	concurrency := 20
	amount := int64(10000)
	var wg sync.WaitGroup

	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			resp := app.gatewayPost(t, "/api/v1/settlements", map[string]interface{}{
				"account_id": accountID.String(),
				"order_ref":  fmt.Sprintf("ord_%03d", idx),
				"kind":       "SALE",
				"amount":     amount,
			})
			defer resp.Body.Close()
			if resp.StatusCode != http.StatusCreated {
				t.Errorf("unexpected status %d", resp.StatusCode)
			}
		}(i)
	}
	wg.Wait()

	resp := app.sellerRequest(t, http.MethodGet, "/api/v1/wallet", accountID, nil)
	data := dataOf(t, resp)
	assert.Equal(t, float64(int64(concurrency)*amount), data["available_balance"])
	assert.Equal(t, float64(int64(concurrency)*amount), data["lifetime_earnings"])

	listResp := app.sellerRequest(t, http.MethodGet, "/api/v1/wallet/transactions?page_size=50", accountID, nil)
	listData := dataOf(t, listResp)
	assert.Equal(t, float64(concurrency), listData["total"])
}
