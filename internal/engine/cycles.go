package engine

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"options-mm-go/chain"
	"options-mm-go/hedging"
	"options-mm-go/infrastructure/feed"
	"options-mm-go/inventory"
	"options-mm-go/marketdata"
	"options-mm-go/pnl"
	"options-mm-go/pricing"
	"options-mm-go/quoting"
	"options-mm-go/risk"
	"options-mm-go/venue"
)

// quoteCycle runs one full pass over the quoted contracts. Every quote
// in the pass is built against the same pinned snapshot.
func (e *Engine) quoteCycle() {
	wallStart := time.Now()
	if e.syncHaltState() {
		return
	}

	now := e.clock.Now()
	snap := e.comps.Board.Current()

	for _, und := range e.comps.Chain.Underlyings() {
		vol, ok := snap.Vol(und)
		if !ok {
			// No vol means no pricing tick yet for this underlying.
			continue
		}
		contracts, err := e.comps.Chain.ContractsUnder(chain.UnderlyingLevel(und))
		if err != nil {
			e.comps.Logger.LogError(err, "chain_walk", map[string]interface{}{"underlying": und})
			e.recordError()
			continue
		}
		for _, c := range contracts {
			e.refreshContract(snap, c, vol, now)
		}
	}

	if e.comps.Monitor != nil {
		e.comps.Monitor.ObserveQuoteCycle(time.Since(wallStart).Seconds())
	}
	e.statsMu.Lock()
	e.stats.QuoteCycles++
	e.stats.LastQuoteAt = now
	e.statsMu.Unlock()
}

// refreshContract reprices one contract and reconciles its resting
// quote. A contract with no theo or no remaining lifetime gets its
// quote pulled instead of refreshed.
func (e *Engine) refreshContract(snap *pricing.Snapshot, c *chain.Contract, vol float64, now time.Time) {
	book := c.Book()
	if book == nil {
		return
	}
	sym := c.Symbol
	_, wasActive := e.comps.Generator.Active().Get(sym)

	tv, priced := snap.Theo(sym)
	tte := c.TimeToExpiry(now)
	if !priced || tte <= 0 {
		reason := "expired"
		if !priced {
			reason = "no_theo"
		}
		e.pullContract(book, c, wasActive, reason)
		return
	}

	var held float64
	if pos, ok := e.comps.Ledger.Position(sym); ok {
		held = pos.View().Quantity
	}

	res, err := e.comps.Generator.Refresh(book, sym, quoting.Inputs{
		Mid:          tv.Price,
		Inventory:    held,
		Vol:          vol,
		TimeToExpiry: tte,
	})
	if err != nil {
		if res.Action == quoting.ActionBlocked {
			if e.comps.Monitor != nil {
				e.comps.Monitor.RecordQuoteBlocked()
			}
			e.comps.Logger.Debug("quote blocked", zap.String("symbol", sym), zap.Error(err))
			return
		}
		e.comps.Logger.LogError(err, "quote_refresh", map[string]interface{}{"symbol": sym})
		e.recordError()
		return
	}

	switch res.Action {
	case quoting.ActionSubmitted:
		e.comps.Logger.LogQuote("quote_submitted", sym, map[string]interface{}{
			"bid":      res.Quote.BidPrice,
			"ask":      res.Quote.AskPrice,
			"bid_size": res.Quote.BidSize,
			"ask_size": res.Quote.AskSize,
		})
		if e.comps.Monitor != nil {
			e.comps.Monitor.RecordQuoteSubmitted(c.Underlying)
		}
		if e.comps.Feed != nil {
			e.comps.Feed.Publish(feed.TopicQuotes, res.Quote)
		}
		e.statsMu.Lock()
		e.stats.QuotesSubmitted++
		e.statsMu.Unlock()

	case quoting.ActionPulled:
		// Both sizes scaled to zero; the generator already cancelled.
		if wasActive {
			e.notePulled(c, "empty_quote")
		}

	case quoting.ActionThrottled:
		if e.comps.Monitor != nil {
			e.comps.Monitor.RecordQuoteThrottled()
		}

	case quoting.ActionUnchanged:
	}
}

// pullContract cancels a resting quote that can no longer be priced.
func (e *Engine) pullContract(book venue.Book, c *chain.Contract, wasActive bool, reason string) {
	if !wasActive {
		return
	}
	if err := e.comps.Generator.Pull(book, c.Symbol); err != nil {
		e.comps.Logger.LogError(err, "quote_pull", map[string]interface{}{"symbol": c.Symbol})
		e.recordError()
		return
	}
	e.notePulled(c, reason)
}

func (e *Engine) notePulled(c *chain.Contract, reason string) {
	e.comps.Logger.LogQuote("quote_pulled", c.Symbol, map[string]interface{}{"reason": reason})
	if e.comps.Monitor != nil {
		e.comps.Monitor.RecordQuotePulled(c.Underlying)
	}
	e.statsMu.Lock()
	e.stats.QuotesPulled++
	e.statsMu.Unlock()
}

// riskCycle marks the book, evaluates limits per underlying, hedges
// delta where the band says to, and advances attribution. Marking runs
// first so the loss limits are checked against fresh P&L.
func (e *Engine) riskCycle() {
	now := e.clock.Now()
	snap := e.comps.Board.Current()

	rep := e.comps.PnL.MarkToMarket()
	e.maybeRollover(now, rep.Net)

	// The ledger's net is lifetime; the daily figure is the move off the
	// rollover baseline.
	e.mu.RLock()
	base := e.pnlBaseline
	e.mu.RUnlock()
	e.comps.Controller.RecordPnL(rep.Net - base)

	if e.comps.Monitor != nil {
		e.comps.Monitor.UpdatePnL(rep.Realized, rep.Unrealized, rep.Fees)
	}
	if e.comps.Feed != nil {
		e.comps.Feed.Publish(feed.TopicPnL, rep)
	}

	for _, und := range e.comps.Chain.Underlyings() {
		agg, err := e.netExposure(und, snap)
		if err != nil {
			e.comps.Logger.LogError(err, "aggregate", map[string]interface{}{"underlying": und})
			e.recordError()
			continue
		}

		breaches := e.comps.Controller.Evaluate(agg)
		if len(breaches) > 0 {
			e.handleBreaches(breaches)
		}
		e.checkPositionLimits(und)

		if e.comps.Monitor != nil {
			g := agg.Greeks
			e.comps.Monitor.UpdateGreeks(und, g.Delta, g.Gamma, g.Vega, g.Theta)
		}

		if !e.comps.Controller.Halted() {
			e.hedge(und, agg, snap)
		}
	}

	e.syncHaltState()

	for _, tr := range e.comps.Trackers {
		if _, err := tr.Update(); err != nil && !errors.Is(err, pnl.ErrNoMark) {
			e.comps.Logger.LogError(err, "attribution", map[string]interface{}{"underlying": tr.Underlying()})
			e.recordError()
		}
	}

	if e.comps.Ticks != nil && e.comps.Monitor != nil {
		drops := e.comps.Ticks.Dropped()
		if drops > e.tickDrops {
			e.comps.Monitor.RecordTicksDropped(float64(drops - e.tickDrops))
		}
		e.tickDrops = drops
	}
}

// netExposure aggregates the option subtree and folds in the spot hedge
// position, which sits outside the chain walk. The hedge leg carries
// unit delta, so its contribution is just quantity times multiplier.
func (e *Engine) netExposure(und string, snap *pricing.Snapshot) (inventory.AggregatedSnapshot, error) {
	agg, err := e.comps.Aggregator.AggregateGreeks(chain.UnderlyingLevel(und))
	if err != nil {
		return inventory.AggregatedSnapshot{}, err
	}
	pos, ok := e.comps.Ledger.Position(chain.SpotSymbol(und))
	if !ok {
		return agg, nil
	}
	view := pos.View()
	if view.Quantity == 0 {
		return agg, nil
	}
	exposure := view.Quantity * view.Multiplier
	agg.Greeks.Delta += exposure
	if spot, ok := snap.Spot(und); ok {
		agg.NetNotional += exposure * spot
		agg.DollarDelta += exposure * spot
	}
	return agg, nil
}

// handleBreaches records and routes every breach, then decides the halt.
// A loss breach always halts; everything else goes through the
// configured policy.
func (e *Engine) handleBreaches(breaches []risk.RiskBreach) {
	for _, b := range breaches {
		if e.comps.Monitor != nil {
			e.comps.Monitor.RecordBreach(string(b.Kind))
		}
		e.comps.Logger.LogRisk("risk_breach", map[string]interface{}{
			"kind":      string(b.Kind),
			"current":   b.Current,
			"threshold": b.Threshold,
		})
		if e.comps.Feed != nil {
			e.comps.Feed.Publish(feed.TopicRisk, b)
		}
	}
	e.comps.Notifier.NotifyBreaches(breaches)

	for _, b := range breaches {
		if b.Kind != risk.KindLoss {
			continue
		}
		if !e.comps.Controller.Halted() {
			e.comps.Controller.Halt(b.String())
			e.comps.Notifier.NotifyHalt(b.String())
		}
		return
	}
	if e.comps.Controller.ApplyPolicy(breaches) {
		reason, _, _ := e.comps.Controller.HaltInfo()
		e.comps.Notifier.NotifyHalt(reason)
	}
}

// checkPositionLimits sweeps the per-level caps under one underlying,
// root first. These are advisory: they surface in logs and metrics but
// never touch the halt flag, which belongs to the hard limits above.
func (e *Engine) checkPositionLimits(und string) {
	e.mu.RLock()
	limits := e.limits
	e.mu.RUnlock()
	if limits == (inventory.PositionLimits{}) {
		return
	}
	for _, key := range e.limitKeys(und) {
		advisories, err := e.comps.Aggregator.CheckLimits(key, limits)
		if err != nil {
			e.comps.Logger.LogError(err, "position_limits", map[string]interface{}{"level": key.String()})
			e.recordError()
			continue
		}
		for _, adv := range advisories {
			if e.comps.Monitor != nil {
				e.comps.Monitor.RecordLimitAdvisory(string(adv.Kind))
			}
			e.comps.Logger.LogRisk("position_limit", map[string]interface{}{
				"kind":    string(adv.Kind),
				"level":   adv.Level,
				"current": adv.Current,
				"limit":   adv.Limit,
			})
		}
	}
}

// limitKeys enumerates every hierarchy level under one underlying.
func (e *Engine) limitKeys(und string) []chain.LevelKey {
	keys := []chain.LevelKey{chain.UnderlyingLevel(und)}
	u, ok := e.comps.Chain.Underlying(und)
	if !ok {
		return keys
	}
	for _, expiry := range u.Expirations() {
		keys = append(keys, chain.ExpirationLevel(und, expiry))
		exp, ok := u.Expiration(expiry)
		if !ok {
			continue
		}
		for _, strike := range exp.Strikes() {
			keys = append(keys, chain.StrikeLevel(und, expiry, strike))
			st, ok := exp.Strike(strike)
			if !ok {
				continue
			}
			for _, c := range st.Contracts() {
				keys = append(keys, chain.ContractLevel(c.Symbol))
			}
		}
	}
	return keys
}

// hedge runs one hedger evaluation and submits whatever comes back.
func (e *Engine) hedge(und string, agg inventory.AggregatedSnapshot, snap *pricing.Snapshot) {
	hedger, ok := e.comps.Hedgers[und]
	if !ok {
		return
	}
	spot, ok := snap.Spot(und)
	if !ok {
		return
	}
	order, err := hedger.Evaluate(agg, spot)
	if err != nil {
		e.noteHedgeError(und, err)
		return
	}
	if order != nil {
		e.submitHedge(order, spot)
	}
}

// rebalanceCycle flattens delta toward target on the schedule,
// regardless of the hysteresis band.
func (e *Engine) rebalanceCycle() {
	if e.comps.Controller.Halted() {
		return
	}
	snap := e.comps.Board.Current()
	for _, und := range e.comps.Chain.Underlyings() {
		hedger, ok := e.comps.Hedgers[und]
		if !ok {
			continue
		}
		spot, ok := snap.Spot(und)
		if !ok {
			continue
		}
		agg, err := e.netExposure(und, snap)
		if err != nil {
			e.comps.Logger.LogError(err, "aggregate", map[string]interface{}{"underlying": und})
			e.recordError()
			continue
		}
		order, err := hedger.Rebalance(agg, spot, hedging.ReasonScheduledRebalance)
		if err != nil {
			e.noteHedgeError(und, err)
			continue
		}
		if order != nil {
			e.submitHedge(order, spot)
		}
	}
}

func (e *Engine) noteHedgeError(und string, err error) {
	if errors.Is(err, hedging.ErrHedgeSkipped) {
		if e.comps.Monitor != nil {
			e.comps.Monitor.RecordHedgeSkip()
		}
		e.comps.Notifier.NotifyHedgeSkipped(und, err.Error())
		e.comps.Logger.LogHedge("hedge_skipped", und, map[string]interface{}{"reason": err.Error()})
		return
	}
	e.comps.Logger.LogError(err, "hedge_evaluate", map[string]interface{}{"underlying": und})
	e.recordError()
}

// submitHedge places the hedge on the underlying's book. Market orders
// go in as marketable limits at spot; the venue's crossing logic does
// the rest.
func (e *Engine) submitHedge(order *hedging.HedgeOrder, spot float64) {
	book := e.comps.HedgeBooks[order.Underlying]
	if book == nil {
		e.comps.Logger.Warn("no hedge book, dropping order",
			zap.String("underlying", order.Underlying),
			zap.Float64("quantity", order.Quantity))
		return
	}
	price := spot
	if order.Limit {
		price = order.Price
	}
	id := uuid.NewString()
	if err := book.AddLimitOrder(id, order.Side(), price, order.AbsQuantity()); err != nil {
		e.comps.Logger.LogError(err, "hedge_submit", map[string]interface{}{"underlying": order.Underlying})
		e.recordError()
		return
	}
	e.comps.Logger.LogHedge("hedge_order", order.Underlying, map[string]interface{}{
		"quantity": order.Quantity,
		"urgency":  order.Urgency,
	})
	if e.comps.Monitor != nil {
		e.comps.Monitor.RecordHedgeOrder(order.Underlying, order.Quantity)
	}
	if e.comps.Feed != nil {
		e.comps.Feed.Publish(feed.TopicHedges, order)
	}
	e.statsMu.Lock()
	e.stats.HedgeOrders++
	e.statsMu.Unlock()
}

// syncHaltState mirrors the controller flag into metrics and logs on
// transitions, and pulls every resting quote the moment a halt lands.
// Returns the current flag.
func (e *Engine) syncHaltState() bool {
	halted := e.comps.Controller.Halted()
	e.mu.Lock()
	changed := halted != e.halted
	e.halted = halted
	e.mu.Unlock()
	if !changed {
		return halted
	}

	if e.comps.Monitor != nil {
		e.comps.Monitor.SetHalted(halted)
	}
	if halted {
		reason, _, _ := e.comps.Controller.HaltInfo()
		e.comps.Logger.LogRisk("halt", map[string]interface{}{"reason": reason})
		if e.comps.Feed != nil {
			e.comps.Feed.Publish(feed.TopicRisk, map[string]string{"event": "halt", "reason": reason})
		}
		if err := e.comps.Generator.PullAll(e.bookFor); err != nil {
			e.comps.Logger.LogError(err, "halt_pull", nil)
			e.recordError()
		}
	} else {
		e.comps.Logger.Info("trading resumed")
		e.comps.Notifier.NotifyResume()
	}
	return halted
}

// maybeRollover closes the trading day on the first cycle after a UTC
// date change: the loss baseline moves to the current net, the daily
// tracking resets, and each attribution period is closed out.
func (e *Engine) maybeRollover(now time.Time, net float64) {
	day := now.Format("2006-01-02")
	e.mu.Lock()
	if day == e.tradeDay {
		e.mu.Unlock()
		return
	}
	prev := e.tradeDay
	e.tradeDay = day
	e.pnlBaseline = net
	e.mu.Unlock()

	e.comps.Controller.ResetDaily()
	for _, tr := range e.comps.Trackers {
		closed := tr.Attributor().Rollover(now)
		e.comps.Logger.Info("attribution period closed",
			zap.String("underlying", tr.Underlying()),
			zap.Float64("delta_pnl", closed.DeltaPnL),
			zap.Float64("gamma_pnl", closed.GammaPnL),
			zap.Float64("vega_pnl", closed.VegaPnL),
			zap.Float64("theta_pnl", closed.ThetaPnL),
			zap.Float64("other_pnl", closed.OtherPnL))
	}
	e.comps.Logger.Info("daily rollover", zap.String("from", prev), zap.String("to", day))
}

// observeTick mirrors one accepted tick into metrics and the feed.
func (e *Engine) observeTick(t marketdata.Tick) {
	if e.comps.Monitor != nil {
		e.comps.Monitor.RecordTick(t.Underlying)
		e.comps.Monitor.UpdateSpot(t.Underlying, t.Mid())
	}
	if e.comps.Feed != nil {
		e.comps.Feed.Publish(feed.TopicTicks, t)
	}
	e.statsMu.Lock()
	e.stats.Ticks++
	e.statsMu.Unlock()
}

// OnFill routes one execution into the ledger and bookkeeping. Venue
// adapters call this from their fill streams; it is safe from any
// goroutine.
func (e *Engine) OnFill(f venue.Fill) {
	if _, err := e.comps.Ledger.ApplyFill(f.Symbol, f.SignedQuantity(), f.Price, f.Fee); err != nil {
		e.comps.Logger.LogError(err, "apply_fill", map[string]interface{}{"symbol": f.Symbol})
		e.recordError()
		return
	}
	e.comps.Generator.OnFill(f.Symbol, f.OrderID)

	e.comps.Logger.LogFill(f.Symbol, map[string]interface{}{
		"side":     string(f.Side),
		"quantity": f.Quantity,
		"price":    f.Price,
	})
	if e.comps.Monitor != nil {
		e.comps.Monitor.RecordFill(string(f.Side), f.Quantity)
	}
	if e.comps.Feed != nil {
		e.comps.Feed.Publish(feed.TopicFills, f)
	}
	e.statsMu.Lock()
	e.stats.Fills++
	e.stats.LastFillAt = e.clock.Now()
	e.statsMu.Unlock()
}
