package metrics

import (
	"strings"
	"testing"
)

func TestCounterAccumulates(t *testing.T) {
	c := NewCollector()
	ctr := c.Counter("relay_messages_total", "Messages relayed.")
	ctr.Inc()
	ctr.Add(4)

	if ctr.Value() != 5 {
		t.Errorf("value = %d, want 5", ctr.Value())
	}
	if again := c.Counter("relay_messages_total", ""); again != ctr {
		t.Error("re-registration must return the same counter")
	}
}

func TestGaugeUpDown(t *testing.T) {
	c := NewCollector()
	g := c.Gauge("relay_subscribers", "Live subscribers.")
	g.Inc()
	g.Inc()
	g.Dec()

	if g.Value() != 1 {
		t.Errorf("value = %d, want 1", g.Value())
	}
}

func TestRenderExposition(t *testing.T) {
	c := NewCollector()
	c.Counter("a_total", "A.").Inc()
	c.Gauge("b_current", "B.").Set(7)

	out := c.Render()
	for _, want := range []string{
		"# TYPE a_total counter", "a_total 1",
		"# TYPE b_current gauge", "b_current 7",
		"tgfeed_uptime_seconds",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("exposition missing %q:\n%s", want, out)
		}
	}
}
