package query

import (
	"time"

	"github.com/cyberquest/cyberquest-api/pkg/circuitbreaker"
	"github.com/cyberquest/cyberquest-api/pkg/logger"
)

func nowOr(clock func() time.Time) func() time.Time {
	if clock == nil {
		return func() time.Time { return time.Now().UTC() }
	}
	return clock
}

func logStateChange(log *logger.Logger) func(name string, from, to circuitbreaker.State) {
	return func(name string, from, to circuitbreaker.State) {
		log.Warn("circuit state changed",
			logger.String("breaker", name),
			logger.String("from", from.String()),
			logger.String("to", to.String()),
		)
	}
}
