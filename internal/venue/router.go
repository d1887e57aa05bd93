package venue

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"hash/fnv"
	"math/rand"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/Devaamsh99/Market-Order-Execution-Engine/internal/domain/models"
	"github.com/Devaamsh99/Market-Order-Execution-Engine/internal/metrics"
)

var ErrUnknownVenue = errors.New("unknown venue")

// executionDriftBand ограничивает симулируемый уход исполненной цены
// от котировки: ±0.5%.
const executionDriftBand = 0.005

var venueOrder = []models.Venue{models.VenueRaydium, models.VenueMeteora}

type profile struct {
	feeRate  decimal.Decimal
	variance float64
}

// Config настраивает симуляцию. Нулевой Seed означает случайное зерно,
// нулевой Sleep — реальное ожидание.
type Config struct {
	QuoteLatency   time.Duration
	ExecLatencyMin time.Duration
	ExecLatencyMax time.Duration
	Seed           int64
	Sleep          func(ctx context.Context, delay time.Duration) error
}

// Router симулирует два конкурирующих venue. Базовая цена пары
// детерминирована, объём давит цену вниз (пол 90% базы), венка
// добавляет свою случайную полосу разброса и фиксированную комиссию.
type Router struct {
	profiles       map[models.Venue]profile
	sleep          func(ctx context.Context, delay time.Duration) error
	quoteLatency   time.Duration
	execLatencyMin time.Duration
	execLatencyMax time.Duration

	mu  sync.Mutex
	rng *rand.Rand
}

func NewRouter(cfg Config) *Router {
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	sleep := cfg.Sleep
	if sleep == nil {
		sleep = sleepContext
	}

	return &Router{
		profiles: map[models.Venue]profile{
			models.VenueRaydium: {
				feeRate:  decimal.RequireFromString("0.0025"),
				variance: 0.02,
			},
			models.VenueMeteora: {
				feeRate:  decimal.RequireFromString("0.002"),
				variance: 0.03,
			},
		},
		sleep:          sleep,
		quoteLatency:   cfg.QuoteLatency,
		execLatencyMin: cfg.ExecLatencyMin,
		execLatencyMax: cfg.ExecLatencyMax,
		rng:            rand.New(rand.NewSource(seed)),
	}
}

func (r *Router) Quote(ctx context.Context, venue models.Venue, tokenIn, tokenOut string, amount decimal.Decimal) (models.DexQuote, error) {
	const op = "venue.Router.Quote"

	prof, found := r.profiles[venue]
	if !found {
		return models.DexQuote{}, fmt.Errorf("%s: %s: %w", op, venue, ErrUnknownVenue)
	}

	if err := r.sleep(ctx, r.quoteLatency); err != nil {
		return models.DexQuote{}, fmt.Errorf("%s: %w", op, err)
	}

	r.mu.Lock()
	varianceFactor := 1 + (r.rng.Float64()*2-1)*prof.variance
	r.mu.Unlock()

	price := decimal.NewFromFloat(basePrice(tokenIn, tokenOut) * amountDampening(amount) * varianceFactor).Round(9)
	effective := price.Mul(decimal.NewFromInt(1).Sub(prof.feeRate))

	metrics.VenueQuotesTotal.WithLabelValues(string(venue)).Inc()

	return models.DexQuote{
		Venue:          venue,
		Price:          price,
		FeeRate:        prof.feeRate,
		EffectivePrice: effective,
	}, nil
}

// Route опрашивает оба venue параллельно и выбирает котировку с большей
// эффективной ценой; при равенстве побеждает первая в списке сравнения.
func (r *Router) Route(ctx context.Context, order models.Order) (models.RoutingDecision, error) {
	const op = "venue.Router.Route"

	quotes := make([]models.DexQuote, len(venueOrder))

	group, groupCtx := errgroup.WithContext(ctx)
	for i, v := range venueOrder {
		group.Go(func() error {
			quote, err := r.Quote(groupCtx, v, order.TokenIn, order.TokenOut, order.Amount)
			if err != nil {
				return err
			}
			quotes[i] = quote
			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return models.RoutingDecision{}, fmt.Errorf("%s: %w", op, err)
	}

	best := quotes[0]
	for _, quote := range quotes[1:] {
		if quote.EffectivePrice.GreaterThan(best.EffectivePrice) {
			best = quote
		}
	}

	return models.RoutingDecision{
		Quotes: quotes,
		Best:   best,
	}, nil
}

// ExecuteSwap симулирует исполнение по выбранному venue: переменная
// задержка и небольшой симметричный дрейф вокруг котировки.
func (r *Router) ExecuteSwap(ctx context.Context, venue models.Venue, order models.Order, quotedPrice decimal.Decimal) (models.SwapResult, error) {
	const op = "venue.Router.ExecuteSwap"

	if _, found := r.profiles[venue]; !found {
		return models.SwapResult{}, fmt.Errorf("%s: %s: %w", op, venue, ErrUnknownVenue)
	}

	r.mu.Lock()
	latency := r.execLatencyMin
	if spread := r.execLatencyMax - r.execLatencyMin; spread > 0 {
		latency += time.Duration(r.rng.Int63n(int64(spread)))
	}
	driftFactor := 1 + (r.rng.Float64()*2-1)*executionDriftBand
	txRef := r.transactionRefLocked()
	r.mu.Unlock()

	if err := r.sleep(ctx, latency); err != nil {
		return models.SwapResult{}, fmt.Errorf("%s: %w", op, err)
	}

	executed := quotedPrice.Mul(decimal.NewFromFloat(driftFactor)).Round(9)

	return models.SwapResult{
		Venue:         venue,
		ExecutedPrice: executed,
		TxRef:         txRef,
	}, nil
}

func (r *Router) transactionRefLocked() string {
	buf := make([]byte, 32)
	r.rng.Read(buf)
	return hex.EncodeToString(buf)
}

// basePrice выводит стабильный центр цены из пары токенов, чтобы
// повторные котировки одной пары группировались вокруг него.
func basePrice(tokenIn, tokenOut string) float64 {
	hash := fnv.New64a()
	hash.Write([]byte(tokenIn))
	hash.Write([]byte{'/'})
	hash.Write([]byte(tokenOut))
	return 1 + float64(hash.Sum64()%100_000)/1000
}

func amountDampening(amount decimal.Decimal) float64 {
	factor := 1 - amount.InexactFloat64()/100_000
	if factor < 0.9 {
		return 0.9
	}
	if factor > 1 {
		return 1
	}
	return factor
}

func sleepContext(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
