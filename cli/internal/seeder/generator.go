package seeder

import (
	"fmt"
	"time"

	"github.com/brianvoe/gofakeit/v6"

	"github.com/telhawk-systems/linehawk/cli/internal/client"
)

// Kind labels what a generated event is meant to exercise.
type Kind string

const (
	KindNew       Kind = "new"
	KindDuplicate Kind = "duplicate"
	KindUpdate    Kind = "update"
	KindInvalid   Kind = "invalid"
)

// maxDurationMs stays under the server's six hour limit.
const maxDurationMs = 6 * 60 * 60 * 1000

// Generated is one event plus the reason it was produced.
type Generated struct {
	Event client.Event
	Kind  Kind
}

// Generator produces realistic machine reports. Duplicates and updates
// resend earlier event IDs so dedup and last-writer-wins paths get traffic.
type Generator struct {
	cfg    DefaultsConfig
	faker  *gofakeit.Faker
	now    func() time.Time
	issued []client.Event
}

func NewGenerator(cfg DefaultsConfig) *Generator {
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Generator{
		cfg:   cfg,
		faker: gofakeit.New(seed),
		now:   time.Now,
	}
}

// Generate returns count events in send order.
func (g *Generator) Generate(count int) []Generated {
	out := make([]Generated, 0, count)
	for i := 0; i < count; i++ {
		out = append(out, g.next())
	}
	return out
}

func (g *Generator) next() Generated {
	roll := g.faker.Float64Range(0, 1)
	if len(g.issued) > 0 {
		switch {
		case roll < g.cfg.DuplicateRatio:
			return Generated{Event: g.pick(), Kind: KindDuplicate}
		case roll < g.cfg.DuplicateRatio+g.cfg.UpdateRatio:
			e := g.pick()
			e.DefectCount = g.otherDefectCount(e.DefectCount)
			return Generated{Event: e, Kind: KindUpdate}
		}
	}
	if roll >= 1-g.cfg.InvalidRatio {
		return Generated{Event: g.invalid(), Kind: KindInvalid}
	}

	e := g.fresh()
	g.issued = append(g.issued, e)
	return Generated{Event: e, Kind: KindNew}
}

func (g *Generator) pick() client.Event {
	return g.issued[g.faker.Number(0, len(g.issued)-1)]
}

func (g *Generator) fresh() client.Event {
	factory := g.cfg.Factories[g.faker.Number(0, len(g.cfg.Factories)-1)]
	line := g.faker.Number(1, g.cfg.LinesPerFactory)
	machine := g.faker.Number(1, g.cfg.MachinesPerLine)

	eventTime := g.now().UTC()
	if g.cfg.TimeSpread > 0 {
		eventTime = eventTime.Add(-time.Duration(g.faker.Float64Range(0, 1) * float64(g.cfg.TimeSpread)))
	}

	defects := g.faker.Number(0, g.cfg.MaxDefects)
	if g.cfg.UnknownDefectRatio > 0 && g.faker.Float64Range(0, 1) < g.cfg.UnknownDefectRatio {
		defects = -1
	}

	return client.Event{
		EventID:     "E-" + g.faker.UUID(),
		EventTime:   eventTime.Truncate(time.Millisecond),
		MachineID:   fmt.Sprintf("M-%s-L%02d-%02d", factory, line, machine),
		FactoryID:   factory,
		LineID:      fmt.Sprintf("%s-L%02d", factory, line),
		DurationMs:  int64(g.faker.Number(1000, maxDurationMs)),
		DefectCount: defects,
	}
}

func (g *Generator) otherDefectCount(current int) int {
	next := g.faker.Number(0, g.cfg.MaxDefects+1)
	if next == current {
		next++
	}
	return next
}

// invalid breaks exactly one admission rule.
func (g *Generator) invalid() client.Event {
	e := g.fresh()
	switch g.faker.Number(0, 2) {
	case 0:
		e.DurationMs = -int64(g.faker.Number(1, 1000))
	case 1:
		e.DurationMs = maxDurationMs + int64(g.faker.Number(1, 60000))
	default:
		e.EventTime = g.now().UTC().Add(time.Hour + time.Duration(g.faker.Number(0, 3600))*time.Second)
	}
	return e
}
