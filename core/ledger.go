package core

import (
	"log/slog"
	"math/big"
	"sync"
	"time"

	"helios/core/events"
	coretypes "helios/core/types"
	"helios/crypto"
	"helios/native/affiliate"
	"helios/native/pricefeed"
	"helios/native/sale"
	"helios/native/staking"
	"helios/observability/metrics"
	"helios/state"
	"helios/storage"
)

// recentEventCap bounds the in-memory event ring served over RPC.
const recentEventCap = 256

// Module names accepted by the pause switchboard.
var PausableModules = []string{"sale", "affiliate", "staking"}

// Params carries the genesis configuration of a fresh ledger. Existing
// state in the database wins over genesis values.
type Params struct {
	Stages             []sale.StageConfig
	SaleCapUnits       *big.Int
	MinPurchaseUSD     *big.Int
	SaleInventoryUnits *big.Int
	FunderGrantUnits   *big.Int
	Plans              []staking.Plan
	Funder             crypto.Address
	Feed               pricefeed.Feed
	OracleMaxAge       time.Duration
}

// Ledger is the node orchestrator: it owns the engines, the single boundary
// mutex that serializes every mutating entry point, the pause switchboard
// and the event log. Engines below this layer are single-threaded.
type Ledger struct {
	mu      sync.Mutex
	manager *state.Manager
	sale    *sale.Engine
	affil   *affiliate.Engine
	staking *staking.Engine
	pauses  *PauseSwitchboard
	feed    pricefeed.Feed
	funder  crypto.Address
	logger  *slog.Logger
	metrics *metrics.Metrics
	emitter events.Emitter
	recent  []*coretypes.Event
}

// NewLedger wires the engines over the supplied database and runs genesis
// initialization if the database is empty.
func NewLedger(db storage.Database, params Params, logger *slog.Logger, m *metrics.Metrics) (*Ledger, error) {
	if logger == nil {
		logger = slog.Default()
	}
	manager := state.NewManager(db)
	pauses := NewPauseSwitchboard()

	saleModule := crypto.ModuleAddress("sale")
	stakingModule := crypto.ModuleAddress("staking")

	affil := affiliate.NewEngine(saleModule, params.Funder)
	affil.SetState(manager)
	affil.SetPauses(pauses)

	saleEngine := sale.NewEngine(saleModule)
	saleEngine.SetState(manager)
	saleEngine.SetPauses(pauses)
	saleEngine.SetFeed(params.Feed)
	saleEngine.SetAffiliateEngine(affil)
	if params.OracleMaxAge > 0 {
		saleEngine.SetMaxQuoteAge(params.OracleMaxAge)
	}

	stakingEngine := staking.NewEngine(stakingModule)
	stakingEngine.SetState(manager)
	stakingEngine.SetPauses(pauses)

	ledger := &Ledger{
		manager: manager,
		sale:    saleEngine,
		affil:   affil,
		staking: stakingEngine,
		pauses:  pauses,
		feed:    params.Feed,
		funder:  params.Funder,
		logger:  logger,
		metrics: m,
		emitter: events.NoopEmitter{},
	}
	if err := ledger.initGenesis(params); err != nil {
		return nil, err
	}
	return ledger, nil
}

func (l *Ledger) initGenesis(params Params) error {
	existing, err := l.manager.SaleLedger()
	if err != nil {
		return err
	}
	if existing == nil {
		stages := params.Stages
		if len(stages) == 0 {
			stages = sale.DefaultStages()
		}
		if err := l.manager.PutSaleLedger(sale.NewLedger(stages, params.SaleCapUnits, params.MinPurchaseUSD)); err != nil {
			return err
		}
		if params.SaleInventoryUnits != nil && params.SaleInventoryUnits.Sign() > 0 {
			if err := l.credit(l.sale.ModuleAddress(), params.SaleInventoryUnits); err != nil {
				return err
			}
		}
		if params.FunderGrantUnits != nil && params.FunderGrantUnits.Sign() > 0 && !params.Funder.IsZero() {
			if err := l.credit(params.Funder, params.FunderGrantUnits); err != nil {
				return err
			}
		}
		l.logger.Info("sale genesis initialized", "stages", len(stages))
	}

	pool, err := l.manager.StakingPool()
	if err != nil {
		return err
	}
	if pool == nil {
		plans := params.Plans
		if len(plans) == 0 {
			plans = staking.DefaultPlans()
		}
		if err := l.manager.PutStakingPool(staking.NewPoolState(plans)); err != nil {
			return err
		}
		l.logger.Info("staking genesis initialized", "plans", len(plans))
	}
	return nil
}

func (l *Ledger) credit(addr crypto.Address, amount *big.Int) error {
	account, err := l.manager.GetAccount(addr)
	if err != nil {
		return err
	}
	account.Add(coretypes.CurrencyHLS, amount)
	return l.manager.PutAccount(addr, account)
}

// SetEmitter wires a downstream event subscriber. Every drained event is
// broadcast to it from under the boundary mutex, so implementations must
// not call back into the ledger.
func (l *Ledger) SetEmitter(emitter events.Emitter) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if emitter == nil {
		emitter = events.NoopEmitter{}
	}
	l.emitter = emitter
}

// observe drains engine events into the log, the metrics, the subscriber
// and the ring.
func (l *Ledger) observe() {
	drained := l.manager.DrainEvents()
	for _, evt := range drained {
		args := make([]any, 0, 2*len(evt.Attributes)+2)
		args = append(args, "event", evt.Type)
		for key, value := range evt.Attributes {
			args = append(args, key, value)
		}
		l.logger.Info("ledger event", args...)
		l.emitter.Emit(evt)

		if l.metrics == nil {
			continue
		}
		switch evt.Type {
		case events.TypeSalePurchaseCompleted:
			l.metrics.PurchasesCompleted.WithLabelValues(evt.Attributes["currency"]).Inc()
		case events.TypeSalePurchaseSkipped:
			l.metrics.PurchasesSkipped.WithLabelValues(evt.Attributes["reason"]).Inc()
		case events.TypeCommissionPaid:
			l.metrics.CommissionsPaid.WithLabelValues(evt.Attributes["currency"]).Inc()
		case events.TypeCommissionSkipped:
			l.metrics.CommissionsSkipped.WithLabelValues(evt.Attributes["reason"]).Inc()
		case events.TypeStakeOpened:
			l.metrics.StakesOpened.Inc()
		case events.TypeStakeClosed:
			l.metrics.StakesClosed.Inc()
		case events.TypePoolDrawn:
			l.metrics.RewardsPaid.Inc()
		}
	}
	l.recent = append(l.recent, drained...)
	if overflow := len(l.recent) - recentEventCap; overflow > 0 {
		l.recent = append([]*coretypes.Event(nil), l.recent[overflow:]...)
	}
	l.updateGauges()
}

func (l *Ledger) updateGauges() {
	if l.metrics == nil {
		return
	}
	if ledger, err := l.manager.SaleLedger(); err == nil && ledger != nil {
		l.metrics.SaleStage.Set(float64(ledger.ActiveStage))
		l.metrics.UnitsSold.Set(wholeUnits(ledger.UnitsSold))
	}
	if pool, err := l.manager.StakingPool(); err == nil && pool != nil {
		l.metrics.PoolBalance.Set(wholeUnits(pool.RewardPool))
		l.metrics.TotalStaked.Set(wholeUnits(pool.TotalStaked))
	}
}

func wholeUnits(amount *big.Int) float64 {
	if amount == nil {
		return 0
	}
	whole := new(big.Int).Quo(amount, sale.UnitScale)
	value, _ := new(big.Float).SetInt(whole).Float64()
	return value
}

// --- Sale operations ---

// Quote converts a payment to USD and previews the units it buys.
func (l *Ledger) Quote(currency coretypes.Currency, amount *big.Int, now time.Time) (units, usdValue *big.Int, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.sale.Quote(currency, amount, now)
}

// BuyWithNative executes a native-coin purchase.
func (l *Ledger) BuyWithNative(buyer, referrer crypto.Address, amountWei *big.Int, now time.Time) (*sale.Receipt, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	receipt, err := l.sale.BuyWithNative(buyer, referrer, amountWei, now)
	l.observe()
	return receipt, err
}

// BuyWithStable executes a stable-token purchase.
func (l *Ledger) BuyWithStable(buyer, referrer crypto.Address, token coretypes.Currency, amount *big.Int, now time.Time) (*sale.Receipt, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	receipt, err := l.sale.BuyWithStable(buyer, referrer, token, amount, now)
	l.observe()
	return receipt, err
}

// HandleDirectTransfer runs the passive receipt path.
func (l *Ledger) HandleDirectTransfer(buyer crypto.Address, currency coretypes.Currency, amount *big.Int, now time.Time) (*sale.Receipt, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	receipt, err := l.sale.HandleDirectTransfer(buyer, currency, amount, now)
	l.observe()
	return receipt, err
}

// SaleInfo returns a deep copy of the sale aggregate.
func (l *Ledger) SaleInfo() (*sale.Ledger, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.sale.LedgerSnapshot()
}

// --- Affiliate operations ---

// AffiliateGet returns a referrer record.
func (l *Ledger) AffiliateGet(addr crypto.Address) (*affiliate.Account, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.affil.Get(addr)
}

// --- Staking operations ---

// StakeCreate opens a stake.
func (l *Ledger) StakeCreate(owner crypto.Address, planID uint8, amount *big.Int, now time.Time) (*staking.Stake, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	stake, err := l.staking.Deposit(owner, planID, amount, now)
	l.observe()
	return stake, err
}

// StakeClaim claims accrued rewards.
func (l *Ledger) StakeClaim(owner crypto.Address, id uint64, now time.Time) (*staking.ClaimResult, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	result, err := l.staking.Claim(owner, id, now)
	l.observe()
	return result, err
}

// StakeWithdraw settles and closes a stake.
func (l *Ledger) StakeWithdraw(owner crypto.Address, id uint64, now time.Time) (*staking.WithdrawResult, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	result, err := l.staking.Withdraw(owner, id, now)
	l.observe()
	return result, err
}

// StakeList lists the owner's stakes.
func (l *Ledger) StakeList(owner crypto.Address) ([]*staking.Stake, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.staking.List(owner)
}

// StakePlans returns the live plan table.
func (l *Ledger) StakePlans() ([]staking.Plan, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.staking.Plans()
}

// StakingPool returns a copy of the staking aggregate.
func (l *Ledger) StakingPool() (*staking.PoolState, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.staking.Pool()
}

// --- Administrative operations ---

// SetStagePrice revises a ladder tier price.
func (l *Ledger) SetStagePrice(stage uint8, price *big.Int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	err := l.sale.SetStagePrice(stage, price)
	l.observe()
	return err
}

// SetSaleOpen flips the sale-open flag.
func (l *Ledger) SetSaleOpen(open bool) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	err := l.sale.SetOpen(open)
	l.observe()
	return err
}

// SetMinPurchaseUSD revises the minimum purchase threshold.
func (l *Ledger) SetMinPurchaseUSD(minimum *big.Int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.sale.SetMinPurchaseUSD(minimum)
}

// SetPlan inserts or revises a staking plan.
func (l *Ledger) SetPlan(plan staking.Plan) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	err := l.staking.SetPlan(plan)
	l.observe()
	return err
}

// FundPool tops up the staking reward pool from the funder account.
func (l *Ledger) FundPool(amount *big.Int) (*big.Int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	balance, err := l.staking.FundPool(l.funder, amount)
	l.observe()
	return balance, err
}

// SweepPool drains pool funds back to the funder, all-or-nothing.
func (l *Ledger) SweepPool(amount *big.Int) (*big.Int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	balance, err := l.staking.SweepPool(l.funder, amount)
	l.observe()
	return balance, err
}

// FundAllowance raises the affiliate HLS commission allowance.
func (l *Ledger) FundAllowance(amount *big.Int) (*big.Int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.affil.FundAllowance(amount)
}

// SetPrivileged toggles ambassador payouts for a referrer.
func (l *Ledger) SetPrivileged(referrer crypto.Address, privileged bool) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.affil.SetPrivileged(referrer, privileged)
}

// SetTierOverride grants a commission rate floor to a referrer.
func (l *Ledger) SetTierOverride(referrer crypto.Address, bps uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.affil.SetTierOverride(referrer, bps)
}

// SetPaused toggles a module's pause switch.
func (l *Ledger) SetPaused(module string, paused bool) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.pauses.Set(module, paused); err != nil {
		return err
	}
	l.logger.Info("pause toggled", "module", module, "paused", paused)
	return nil
}

// Pauses reports the current pause switches.
func (l *Ledger) Pauses() map[string]bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.pauses.Snapshot()
}

// SetOracleRound updates the manual feed, when one is configured. It backs
// the incident-override admin surface.
func (l *Ledger) SetOracleRound(round pricefeed.RoundData) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	manual, ok := l.feed.(*pricefeed.ManualFeed)
	if !ok {
		return errFeedNotManual
	}
	manual.Set(round)
	l.logger.Info("oracle round updated", "roundId", round.RoundID)
	return nil
}

// RecentEvents returns up to limit of the most recent ledger events.
func (l *Ledger) RecentEvents(limit int) []*coretypes.Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	if limit <= 0 || limit > len(l.recent) {
		limit = len(l.recent)
	}
	out := make([]*coretypes.Event, limit)
	copy(out, l.recent[len(l.recent)-limit:])
	return out
}
