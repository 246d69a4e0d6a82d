// Package rates maintains the instant quote. The sell rate (what the
// service pays a seller of notes) is derived from resting buy-order depth,
// the buy rate (what it charges a buyer) from resting sell-order depth; a
// quote is only made against liquidity the book can actually honor.
package rates

import (
	"context"
	"sync"

	"notex/pkg/book"
	"notex/pkg/config"
	"notex/pkg/model"
	"notex/pkg/notify"
	"notex/pkg/xetcd"
	"notex/pkg/xlog"

	"github.com/shopspring/decimal"
)

var logger = xlog.GetLogger()

const (
	RedisKeyBuyRate  = "notex:rate:buy"
	RedisKeySellRate = "notex:rate:sell"
)

// Oracle rate oracle worker class
type Oracle struct {
	Book     *book.Worker
	Notifier *notify.Notifier

	mu       sync.RWMutex
	buyRate  decimal.Decimal
	sellRate decimal.Decimal

	buyShort  bool
	sellShort bool
}

func New(b *book.Worker, n *notify.Notifier) *Oracle {
	o := &Oracle{
		Book:     b,
		Notifier: n,
	}

	cfg := config.Shared.Exchange
	o.buyRate = decimal.NewFromFloat(cfg.SafeBuyRate)
	o.sellRate = decimal.NewFromFloat(cfg.SafeSellRate)

	b.OnChange(o.Recompute)

	return o
}

// Rate returns the instant rate quoted to an incoming deposit on side.
func (o *Oracle) Rate(side int8) decimal.Decimal {
	o.mu.RLock()
	defer o.mu.RUnlock()
	if side == model.SideBuy {
		return o.buyRate
	}
	return o.sellRate
}

// boundary walks price levels in priority order, accumulating amounts
// until the depth threshold is reached, and returns the price at the
// accumulation boundary. ok is false when the book is too shallow.
func boundary(items []book.Item, depth int64) (price decimal.Decimal, ok bool) {
	var acc int64
	for _, it := range items {
		acc += it.Amount
		if acc >= depth {
			return it.Price, true
		}
	}
	return
}

// Recompute rescans the book and republishes both rates. Called on every
// book-changing event.
func (o *Oracle) Recompute() {
	cfg := config.Shared.Exchange
	margin := decimal.NewFromInt(1).Add(decimal.NewFromFloat(cfg.InstantMargin))

	// sell rate: how much BTC the resting buyers offer, best price first
	var bids []book.Item
	o.Book.DescendBids(func(it book.Item) bool {
		bids = append(bids, it)
		return true
	})
	depthSat := decimal.NewFromFloat(cfg.DepthBTC).Mul(decimal.NewFromInt(1e8)).IntPart()
	sellRate := decimal.NewFromFloat(cfg.SafeSellRate)
	sellShort := true
	if p, ok := boundary(bids, depthSat); ok {
		sellRate = p.DivRound(margin, 8)
		sellShort = false
	}

	// buy rate: how many notes the resting sellers offer
	var asks []book.Item
	o.Book.AscendAsks(func(it book.Item) bool {
		asks = append(asks, it)
		return true
	})
	depthUnits := decimal.NewFromFloat(cfg.DepthNotes).Mul(decimal.NewFromInt(1e9)).IntPart()
	buyRate := decimal.NewFromFloat(cfg.SafeBuyRate)
	buyShort := true
	if p, ok := boundary(asks, depthUnits); ok {
		buyRate = p.Mul(margin).Round(8)
		buyShort = false
	}

	o.mu.Lock()
	changed := !o.buyRate.Equal(buyRate) || !o.sellRate.Equal(sellRate)
	wasBuyShort, wasSellShort := o.buyShort, o.sellShort
	o.buyRate = buyRate
	o.sellRate = sellRate
	o.buyShort = buyShort
	o.sellShort = sellShort
	o.mu.Unlock()

	if o.Notifier != nil {
		if sellShort && !wasSellShort {
			o.Notifier.Admin("rate oracle: buy-side depth short, quoting safe sell rate " + sellRate.String())
		}
		if buyShort && !wasBuyShort {
			o.Notifier.Admin("rate oracle: sell-side depth short, quoting safe buy rate " + buyRate.String())
		}
	}

	if changed {
		logger.Infof("rates recomputed buy:%s, sell:%s", buyRate, sellRate)
		o.publish(buyRate, sellRate)
	}
}

// publish pushes the current quote to redis and etcd for the outer
// surfaces to read.
func (o *Oracle) publish(buyRate, sellRate decimal.Decimal) {
	rds := model.GetRedis()
	if rds != nil {
		ctx := context.Background()
		if err := rds.Set(ctx, RedisKeyBuyRate, buyRate.String(), 0).Err(); err != nil {
			logger.Errorf("rates publish redis buy failed with err:%s", err)
		}
		if err := rds.Set(ctx, RedisKeySellRate, sellRate.String(), 0).Err(); err != nil {
			logger.Errorf("rates publish redis sell failed with err:%s", err)
		}
	}

	if xetcd.Shared != nil {
		if err := xetcd.Put(xetcd.KeyRate("buy"), buyRate.String()); err != nil {
			logger.Errorf("rates publish etcd buy failed with err:%s", err)
		}
		if err := xetcd.Put(xetcd.KeyRate("sell"), sellRate.String()); err != nil {
			logger.Errorf("rates publish etcd sell failed with err:%s", err)
		}
	}
}
