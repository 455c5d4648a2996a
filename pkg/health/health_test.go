package health

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func up(context.Context) ComponentHealth { return ComponentHealth{Status: StatusUp} }

func down(context.Context) ComponentHealth {
	return ComponentHealth{Status: StatusDown, Message: "unreachable"}
}

func TestRunAggregates(t *testing.T) {
	tests := []struct {
		name     string
		required Check
		optional Check
		want     Status
	}{
		{"all up", up, up, StatusUp},
		{"optional down", up, down, StatusDegraded},
		{"required down", down, up, StatusDown},
		{"both down", down, down, StatusDown},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			c := NewChecker(time.Second)
			c.Register("sources", tc.required)
			c.RegisterOptional("redis", tc.optional)
			report := c.Run(context.Background())
			assert.Equal(t, tc.want, report.Status)
			assert.Len(t, report.Components, 2)
		})
	}
}

func TestRunBoundsSlowChecks(t *testing.T) {
	c := NewChecker(20 * time.Millisecond)
	c.Register("slow", func(ctx context.Context) ComponentHealth {
		<-ctx.Done()
		return ComponentHealth{Status: StatusDown, Message: ctx.Err().Error()}
	})
	start := time.Now()
	report := c.Run(context.Background())
	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, StatusDown, report.Status)
}

func TestFromPing(t *testing.T) {
	assert.Equal(t, StatusUp, FromPing(func(context.Context) error { return nil })(context.Background()).Status)
	res := FromPing(func(context.Context) error { return errors.New("refused") })(context.Background())
	assert.Equal(t, StatusDown, res.Status)
	assert.Equal(t, "refused", res.Message)
}

func TestReadyHandler(t *testing.T) {
	c := NewChecker(time.Second)
	c.RegisterOptional("kafka", down)

	rec := httptest.NewRecorder()
	c.ReadyHandler()(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, http.StatusOK, rec.Code, "degraded stays ready")

	c.Register("engine", down)
	rec = httptest.NewRecorder()
	c.ReadyHandler()(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"down"`)
	assert.Equal(t, []string{"engine", "kafka"}, c.Names())
}
