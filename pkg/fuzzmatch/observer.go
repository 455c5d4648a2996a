package fuzzmatch

import (
	"time"

	"github.com/Adithya-Monish-Kumar-K/Concurrent-Fuzzy-Match-Engine/internal/engine"
	"github.com/Adithya-Monish-Kumar-K/Concurrent-Fuzzy-Match-Engine/internal/pattern"
	"github.com/Adithya-Monish-Kumar-K/Concurrent-Fuzzy-Match-Engine/pkg/metrics"
)

// observer feeds engine events into Prometheus collectors.
type observer struct {
	m      *metrics.Metrics
	source string
}

func (o *observer) ItemInjected(transformFailed bool) {
	o.m.ItemsInjectedTotal.WithLabelValues(o.source).Inc()
	if transformFailed {
		o.m.TransformFailuresTotal.WithLabelValues(o.source).Inc()
	}
}

func (o *observer) PassCompleted(kind engine.PassKind, items, matched int, _ time.Duration) {
	o.m.ScoringPassesTotal.WithLabelValues(o.source, kind.String()).Inc()
	o.m.StoreItems.WithLabelValues(o.source).Set(float64(items))
	o.m.MatchedItems.WithLabelValues(o.source).Set(float64(matched))
}

func (o *observer) Reparsed(status pattern.Status) {
	o.m.ReparseTotal.WithLabelValues(status.String()).Inc()
}
