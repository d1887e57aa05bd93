package retry

import (
	"context"
	"time"
)

// Policy повторяет операцию с экспоненциальной задержкой между попытками.
// Sleep и Notify подменяются в тестах; нулевой Sleep ждёт реальное время.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Sleep       func(ctx context.Context, delay time.Duration) error
	Notify      func(attempt int, err error, delay time.Duration)
}

// Delay возвращает паузу перед данной попыткой: BaseDelay удваивается
// с каждой попыткой — вторая ждёт BaseDelay, третья 2*BaseDelay и так
// далее. Результат ограничен MaxDelay, если тот положителен; при
// переполнении удвоение останавливается на последнем корректном
// значении.
func (p Policy) Delay(attempt int) time.Duration {
	if attempt <= 1 || p.BaseDelay <= 0 {
		return 0
	}

	shift := uint(attempt - 2)
	if shift > 30 {
		shift = 30
	}

	delay := p.BaseDelay
	for i := uint(0); i < shift; i++ {
		doubled := delay << 1
		if doubled <= 0 {
			break
		}
		delay = doubled
	}

	if p.MaxDelay > 0 && delay > p.MaxDelay {
		delay = p.MaxDelay
	}

	return delay
}

// Do выполняет fn до MaxAttempts раз с паузой между попытками.
// Возвращается ошибка последней попытки; отменённый sleep немедленно
// возвращает ошибку контекста.
func (p Policy) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	sleep := p.Sleep
	if sleep == nil {
		sleep = sleepContext
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			delay := p.Delay(attempt)
			if p.Notify != nil {
				p.Notify(attempt, lastErr, delay)
			}
			if err := sleep(ctx, delay); err != nil {
				return err
			}
		}

		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
	}

	return lastErr
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
