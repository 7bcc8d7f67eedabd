// Agent spawning: picks archetypes from a configured pool using a seeded
// random source the caller owns.
package agents

import (
	"fmt"
	"math/rand"
)

// Spawner creates agents for a simulation run.
type Spawner struct {
	rng  *rand.Rand
	pool []Template
}

// NewSpawner creates a spawner drawing from the named archetypes. An empty
// list means every archetype.
func NewSpawner(rng *rand.Rand, archetypes []string) (*Spawner, error) {
	if len(archetypes) == 0 {
		archetypes = Names()
	}
	pool := make([]Template, 0, len(archetypes))
	for _, name := range archetypes {
		t, err := Lookup(name)
		if err != nil {
			return nil, fmt.Errorf("spawner: %w", err)
		}
		pool = append(pool, t)
	}
	return &Spawner{rng: rng, pool: pool}, nil
}

// Spawn creates an agent of the named archetype.
func (s *Spawner) Spawn(archetype string) (*Agent, error) {
	t, err := Lookup(archetype)
	if err != nil {
		return nil, err
	}
	return t.NewAgent(), nil
}

// SpawnRandom creates an agent with an archetype drawn uniformly from the pool.
func (s *Spawner) SpawnRandom() *Agent {
	return s.pool[s.rng.Intn(len(s.pool))].NewAgent()
}

// Draw creates an agent with an archetype drawn from the pool using rng
// instead of the spawner's own source. Population runs pass a per-agent rng
// so the draw does not depend on scheduling order.
func (s *Spawner) Draw(rng *rand.Rand) *Agent {
	return s.pool[rng.Intn(len(s.pool))].NewAgent()
}
