package ingest

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/helixlabs/limsd/pkg/classify"
	"github.com/helixlabs/limsd/pkg/common/logger"
	"github.com/helixlabs/limsd/pkg/common/models"
	"github.com/helixlabs/limsd/pkg/orders"
	"github.com/helixlabs/limsd/pkg/refrange"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	logger.Init()
	os.Exit(m.Run())
}

// fakeLedger mimics the unique-index claim semantics in memory: first
// claimant per message id wins, everyone else loses.
type fakeLedger struct {
	mu       sync.Mutex
	claims   map[string]int64
	outcomes map[string]int
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{claims: make(map[string]int64), outcomes: make(map[string]int)}
}

func (f *fakeLedger) ClaimMessage(ctx context.Context, messageID, sourceSystem string, testOrderID int64, payload map[string]interface{}) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, exists := f.claims[messageID]; exists {
		return false, nil
	}
	f.claims[messageID] = testOrderID
	return true, nil
}

func (f *fakeLedger) RecordOutcome(ctx context.Context, messageID string, createdCount int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, exists := f.claims[messageID]; !exists {
		return nil
	}
	f.outcomes[messageID] = createdCount
	return nil
}

func (f *fakeLedger) ListRecent(ctx context.Context, limit int) ([]Record, error) {
	return nil, nil
}

func (f *fakeLedger) CleanupExpired(ctx context.Context, retention time.Duration) error {
	return nil
}

type fakeResultStore struct {
	mu      sync.Mutex
	orders  map[int64]*orders.TestOrder
	batches [][]orders.TestResult
}

func newFakeResultStore(orderIDs ...int64) *fakeResultStore {
	store := &fakeResultStore{orders: make(map[int64]*orders.TestOrder)}
	for _, id := range orderIDs {
		store.orders[id] = &orders.TestOrder{ID: id, Status: orders.StatusCreated}
	}
	return store
}

func (f *fakeResultStore) GetOrder(ctx context.Context, id int64) (*orders.TestOrder, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	order, ok := f.orders[id]
	if !ok {
		return nil, orders.ErrOrderNotFound
	}
	copied := *order
	return &copied, nil
}

func (f *fakeResultStore) CreateResults(ctx context.Context, results []orders.TestResult) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.batches = append(f.batches, results)
	return nil
}

type fakeResolver struct {
	configs map[string]refrange.Config
}

func (f *fakeResolver) ResolveRange(ctx context.Context, testCode, gender string) (*refrange.Config, error) {
	if cfg, ok := f.configs[testCode+"|"]; ok {
		return &cfg, nil
	}
	if cfg, ok := f.configs[testCode+"|"+gender]; ok {
		return &cfg, nil
	}
	return nil, refrange.ErrRangeNotFound
}

func floatPtr(v float64) *float64 { return &v }

func testService(ledger *fakeLedger, store *fakeResultStore) *Service {
	resolver := &fakeResolver{configs: map[string]refrange.Config{
		"WBC|": {TestCode: "WBC", Min: 4.0, Max: 10.0, Unit: "10^9/L"},
	}}
	return NewService(NewValidator(nil), ledger, store, resolver, 0)
}

func testMessage(messageID string, orderID int64) models.ResultMessage {
	return models.ResultMessage{
		MessageID:    messageID,
		SourceSystem: "simulator",
		TestOrderID:  orderID,
		TestType:     "CBC",
		Results: []models.ResultItem{
			{TestCode: "wbc", Parameter: "White Blood Cell Count", Value: floatPtr(3.9), Unit: "10^9/L"},
			{TestCode: "WBC", Parameter: "White Blood Cell Count", Value: floatPtr(7.0), Unit: "10^9/L"},
			{TestCode: "TSH", Parameter: "Thyroid Stimulating Hormone", Value: floatPtr(2.0)},
		},
	}
}

func TestClaimAndIngestCreatesClassifiedResults(t *testing.T) {
	ledger := newFakeLedger()
	store := newFakeResultStore(1)
	svc := testService(ledger, store)

	outcome, err := svc.ClaimAndIngest(context.Background(), testMessage("msg-1", 1))
	require.NoError(t, err)
	assert.True(t, outcome.Success)
	assert.False(t, outcome.AlreadyProcessed)
	assert.Equal(t, 3, outcome.CreatedCount)

	require.Len(t, store.batches, 1)
	created := store.batches[0]
	require.Len(t, created, 3)

	assert.Equal(t, "WBC", created[0].TestCode) // normalized from "wbc"
	assert.Equal(t, classify.FlagLow.String(), created[0].Flag)
	assert.Equal(t, "4 - 10 10^9/L", created[0].ReferenceRange)
	assert.Equal(t, classify.FlagNormal.String(), created[1].Flag)
	// No range configured: never "Normal".
	assert.Equal(t, classify.FlagUnclassified.String(), created[2].Flag)
	assert.Empty(t, created[2].ReferenceRange)

	// Ingestion classifies but never marks results AI-reviewed.
	for _, r := range created {
		assert.False(t, r.ReviewedByAI)
	}

	assert.Equal(t, 3, ledger.outcomes["msg-1"])
}

func TestClaimAndIngestDuplicateDelivery(t *testing.T) {
	ledger := newFakeLedger()
	store := newFakeResultStore(1)
	svc := testService(ledger, store)

	first, err := svc.ClaimAndIngest(context.Background(), testMessage("msg-1", 1))
	require.NoError(t, err)
	require.True(t, first.Success)

	second, err := svc.ClaimAndIngest(context.Background(), testMessage("msg-1", 1))
	require.NoError(t, err)
	assert.False(t, second.Success)
	assert.True(t, second.AlreadyProcessed)
	assert.Zero(t, second.CreatedCount)

	assert.Len(t, store.batches, 1)
}

func TestClaimAndIngestConcurrentDuplicates(t *testing.T) {
	ledger := newFakeLedger()
	store := newFakeResultStore(1)
	svc := testService(ledger, store)

	const workers = 25
	var wg sync.WaitGroup
	outcomes := make([]*models.IngestOutcome, workers)
	errs := make([]error, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			outcomes[i], errs[i] = svc.ClaimAndIngest(context.Background(), testMessage("msg-dup", 1))
		}(i)
	}
	wg.Wait()

	wins := 0
	for i := 0; i < workers; i++ {
		require.NoError(t, errs[i])
		if outcomes[i].Success {
			wins++
		} else {
			assert.True(t, outcomes[i].AlreadyProcessed)
		}
	}
	assert.Equal(t, 1, wins)
	assert.Len(t, store.batches, 1)
}

func TestClaimAndIngestValidation(t *testing.T) {
	svc := testService(newFakeLedger(), newFakeResultStore(1))
	ctx := context.Background()

	msg := testMessage("", 1)
	_, err := svc.ClaimAndIngest(ctx, msg)
	assert.True(t, IsValidationError(err))

	msg = testMessage("msg-1", 1)
	msg.Results = nil
	_, err = svc.ClaimAndIngest(ctx, msg)
	assert.True(t, IsValidationError(err))

	msg = testMessage("msg-1", 0)
	_, err = svc.ClaimAndIngest(ctx, msg)
	assert.True(t, IsValidationError(err))
}

func TestClaimAndIngestRejectsUnknownSource(t *testing.T) {
	resolver := &fakeResolver{configs: map[string]refrange.Config{}}
	svc := NewService(NewValidator([]string{"analyzer"}), newFakeLedger(), newFakeResultStore(1), resolver, 0)

	_, err := svc.ClaimAndIngest(context.Background(), testMessage("msg-1", 1))
	assert.True(t, IsValidationError(err))
}

func TestClaimAndIngestUnknownOrderDoesNotBurnClaim(t *testing.T) {
	ledger := newFakeLedger()
	store := newFakeResultStore() // no orders
	svc := testService(ledger, store)

	_, err := svc.ClaimAndIngest(context.Background(), testMessage("msg-1", 99))
	assert.ErrorIs(t, err, orders.ErrOrderNotFound)

	// The message was never claimed, so a retry after the order exists works.
	assert.Empty(t, ledger.claims)
}
