// Package jitter добавляет случайность в интервалы повторов, чтобы клиенты
// после общего сбоя не возвращались к сервису одновременно.
package jitter

import (
	"math/rand/v2"
	"time"
)

// DefaultJitter — стандартный коэффициент джиттера (50%)
const DefaultJitter = 0.5

// Duration возвращает d, увеличенную на случайную долю из [0, jitterFactor).
func Duration(d time.Duration, jitterFactor float64) time.Duration {
	return withRand(d, jitterFactor, rand.Float64)
}

// DurationWithSeed то же, что Duration, но с заданным генератором.
func DurationWithSeed(d time.Duration, jitterFactor float64, rng *rand.Rand) time.Duration {
	return withRand(d, jitterFactor, rng.Float64)
}

func withRand(d time.Duration, jitterFactor float64, next func() float64) time.Duration {
	if jitterFactor <= 0 || d <= 0 {
		return d
	}
	return d + time.Duration(next()*jitterFactor*float64(d))
}

// ExponentialBackoff удваивает base на каждую попытку (нумерация с нуля),
// ограничивает результат значением max и применяет джиттер.
func ExponentialBackoff(base, max time.Duration, attempt int, jitterFactor float64) time.Duration {
	backoff := base
	for i := 0; i < attempt; i++ {
		backoff *= 2
		if backoff >= max {
			backoff = max
			break
		}
	}
	return Duration(backoff, jitterFactor)
}
