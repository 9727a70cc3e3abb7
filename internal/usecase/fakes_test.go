package usecase

import (
	"context"
	"math/big"
	"strings"
	"sync"
	"testing"
	"time"

	"custody-service/internal/cache"
	"custody-service/internal/chains/registry"
	"custody-service/internal/domain"
	"custody-service/internal/repository"
	"custody-service/internal/security"
	"custody-service/internal/token"
	"custody-service/pkg/apperr"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const (
	pepe      = "0x6982508145454ce325ddbe47a25d4ec3d2311933"
	recipient = "0x000000000000000000000000000000000000dead"
)

type fakeWalletRepo struct {
	mu      sync.Mutex
	nextID  int64
	wallets []*domain.WalletRecord
}

func (r *fakeWalletRepo) Create(ctx context.Context, wallet *domain.WalletRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, w := range r.wallets {
		if w.AccountID == wallet.AccountID {
			return apperr.New(apperr.CodeAlreadyExists, "fake.Create", "account already has a wallet")
		}
	}
	r.nextID++
	wallet.ID = r.nextID
	wallet.CreatedAt = time.Now()
	copied := *wallet
	r.wallets = append(r.wallets, &copied)
	return nil
}

func (r *fakeWalletRepo) GetLatest(ctx context.Context, accountID int64) (*domain.WalletRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.wallets) - 1; i >= 0; i-- {
		if r.wallets[i].AccountID == accountID {
			copied := *r.wallets[i]
			return &copied, nil
		}
	}
	return nil, nil
}

func (r *fakeWalletRepo) GetByAddress(ctx context.Context, accountID int64, address string) (*domain.WalletRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, w := range r.wallets {
		if w.AccountID == accountID && w.Address == address {
			copied := *w
			return &copied, nil
		}
	}
	return nil, nil
}

func (r *fakeWalletRepo) Delete(ctx context.Context, accountID int64, address string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, w := range r.wallets {
		if w.AccountID == accountID && w.Address == address {
			r.wallets = append(r.wallets[:i], r.wallets[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

func (r *fakeWalletRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.wallets)
}

type fakeAdapter struct {
	mu sync.Mutex

	native        *big.Int
	tokenBalances map[string]*big.Int
	holdings      []domain.TokenHolding
	meta          *domain.TokenMetadata
	routeOut      *big.Int
	routeErr      error
	sampleOut     *big.Int
	sampleErr     error
	gasPrice      *big.Int
	fee           *big.Int
	chainErrs     map[string]error

	submitErr error
	// when set, submit signals started and waits for release
	started chan struct{}
	release chan struct{}

	swaps     []*domain.SwapRequest
	transfers []*domain.TransferRequest
}

func newFakeAdapter() *fakeAdapter {
	return &fakeAdapter{
		native:        big.NewInt(1e18),
		tokenBalances: map[string]*big.Int{},
		meta:          &domain.TokenMetadata{Contract: pepe, Name: "Pepe", Symbol: "PEPE", Decimals: 18},
		routeOut:      new(big.Int).Mul(big.NewInt(5000), big.NewInt(1e18)),
		gasPrice:      big.NewInt(1e9),
		fee:           big.NewInt(21000e9),
		chainErrs:     map[string]error{},
	}
}

func (f *fakeAdapter) chainErr(chain string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.chainErrs[chain]
}

func (f *fakeAdapter) NativeBalance(ctx context.Context, chain, address string) (*big.Int, error) {
	if err := f.chainErr(chain); err != nil {
		return nil, err
	}
	return f.native, nil
}

func (f *fakeAdapter) TokenBalance(ctx context.Context, chain, address, tok string) (*big.Int, error) {
	if err := f.chainErr(chain); err != nil {
		return nil, err
	}
	if b, ok := f.tokenBalances[strings.ToLower(tok)]; ok {
		return b, nil
	}
	return big.NewInt(0), nil
}

func (f *fakeAdapter) TokensOwned(ctx context.Context, chain, address string) ([]domain.TokenHolding, error) {
	if err := f.chainErr(chain); err != nil {
		return nil, err
	}
	return f.holdings, nil
}

func (f *fakeAdapter) TokenMetadata(ctx context.Context, chain, contract string) (*domain.TokenMetadata, error) {
	return f.meta, nil
}

func (f *fakeAdapter) SwapQuote(ctx context.Context, chain, fromToken, toToken string, amountIn *big.Int) (*domain.SwapQuote, error) {
	if fromToken == "" {
		if f.routeErr != nil {
			return nil, f.routeErr
		}
		return &domain.SwapQuote{AmountIn: amountIn, AmountOut: f.routeOut}, nil
	}
	if f.sampleErr != nil {
		return nil, f.sampleErr
	}
	return &domain.SwapQuote{AmountIn: amountIn, AmountOut: f.sampleOut}, nil
}

func (f *fakeAdapter) GasPrice(ctx context.Context, chain string) (*big.Int, error) {
	return f.gasPrice, nil
}

func (f *fakeAdapter) EstimateTransferFee(ctx context.Context, chain string, asset *domain.Asset) (*domain.Fee, error) {
	return &domain.Fee{Amount: f.fee, Currency: "ETH"}, nil
}

func (f *fakeAdapter) wait() {
	if f.started != nil {
		f.started <- struct{}{}
		<-f.release
	}
}

func (f *fakeAdapter) BuildAndSubmitSwap(ctx context.Context, req *domain.SwapRequest) (*domain.SubmitResult, error) {
	f.mu.Lock()
	f.swaps = append(f.swaps, req)
	f.mu.Unlock()
	f.wait()
	if f.submitErr != nil {
		return nil, f.submitErr
	}
	return &domain.SubmitResult{TxHash: "0xswap", AmountOut: f.routeOut, FeePaid: big.NewInt(1), Timestamp: time.Now()}, nil
}

func (f *fakeAdapter) BuildAndSubmitTransfer(ctx context.Context, req *domain.TransferRequest) (*domain.SubmitResult, error) {
	f.mu.Lock()
	f.transfers = append(f.transfers, req)
	f.mu.Unlock()
	f.wait()
	if f.submitErr != nil {
		return nil, f.submitErr
	}
	return &domain.SubmitResult{TxHash: "0xtransfer", FeePaid: big.NewInt(1), Timestamp: time.Now()}, nil
}

func (f *fakeAdapter) TransactionStatus(ctx context.Context, chain, txHash string) (*domain.TransactionStatus, error) {
	return &domain.TransactionStatus{Chain: chain, TxHash: txHash, Status: domain.TxStatusConfirmed}, nil
}

func (f *fakeAdapter) submits() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.swaps) + len(f.transfers)
}

type fakeLocker struct {
	err      error
	released int
}

func (l *fakeLocker) LockIntent(ctx context.Context, intentID string, ttl time.Duration) (cache.Releaser, error) {
	if l.err != nil {
		return nil, l.err
	}
	return l, nil
}

func (l *fakeLocker) Release(ctx context.Context) error {
	l.released++
	return nil
}

type fakeLimiter struct{ err error }

func (l fakeLimiter) Allow(ctx context.Context, accountID int64) error { return l.err }

type fakePublisher struct {
	mu     sync.Mutex
	events []domain.IntentEvent
}

func (p *fakePublisher) Publish(ctx context.Context, events ...domain.IntentEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, events...)
}

func (p *fakePublisher) statuses() []domain.IntentStatus {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]domain.IntentStatus, len(p.events))
	for i, e := range p.events {
		out[i] = e.Status
	}
	return out
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fixture struct {
	walletRepo *fakeWalletRepo
	intentRepo *repository.MemoryIntentRepository
	adapter    *fakeAdapter
	publisher  *fakePublisher
	clock      *testClock
	wallets    *WalletUsecase
	balances   *BalanceUsecase
	intents    *IntentUsecase
}

func newTestCipher(t *testing.T) *security.Encryption {
	t.Helper()
	key, err := security.GenerateMasterKey()
	require.NoError(t, err)
	enc, err := security.NewEncryption(key)
	require.NoError(t, err)
	return enc
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	logger := zap.NewNop()
	reg := registry.NewDefaultRegistry()
	signer, err := token.NewSigner([]byte("0123456789abcdef0123456789abcdef"))
	require.NoError(t, err)

	f := &fixture{
		walletRepo: &fakeWalletRepo{},
		intentRepo: repository.NewMemoryIntentRepository(),
		adapter:    newFakeAdapter(),
		publisher:  &fakePublisher{},
		clock:      &testClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)},
	}
	f.wallets = NewWalletUsecase(f.walletRepo, newTestCipher(t), logger)
	f.balances = NewBalanceUsecase(f.wallets, f.adapter, reg, logger)
	f.intents = NewIntentUsecase(f.wallets, f.adapter, f.intentRepo, signer, reg, IntentConfig{}, logger).
		WithPublisher(f.publisher).
		WithClock(f.clock.Now)
	return f
}

// withWallet creates a wallet for the account and returns it.
func (f *fixture) withWallet(t *testing.T, accountID int64) *domain.CreatedWallet {
	t.Helper()
	created, err := f.wallets.Create(context.Background(), accountID, "")
	require.NoError(t, err)
	return created
}
