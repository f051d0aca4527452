package auth

import (
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/mrlokans/dancecoach/internal/entities"
)

var rolePrefixes = map[entities.Role]byte{
	entities.RoleElderly:   'E',
	entities.RoleChild:     'C',
	entities.RoleVolunteer: 'V',
	entities.RoleTeacher:   'T',
	entities.RoleDoctor:    'D',
	entities.RoleAdmin:     'A',
}

// RolePrefix returns the leading letter of unique ids for role, 'E' when
// the role is unknown.
func RolePrefix(role entities.Role) byte {
	if p, ok := rolePrefixes[role]; ok {
		return p
	}
	return 'E'
}

// UniqueIDGenerator produces the 10 character external account id:
// role prefix, last six digits of the Unix time, then 100-999.
// Collisions are possible within one second; storage enforces uniqueness.
type UniqueIDGenerator struct {
	now  func() time.Time
	intn func(n int) int
}

type UniqueIDOption func(*UniqueIDGenerator)

func WithIDClock(now func() time.Time) UniqueIDOption {
	return func(g *UniqueIDGenerator) {
		g.now = now
	}
}

// WithRandom replaces the source of the three digit suffix. intn must
// return a value in [0, n).
func WithRandom(intn func(n int) int) UniqueIDOption {
	return func(g *UniqueIDGenerator) {
		g.intn = intn
	}
}

func NewUniqueIDGenerator(opts ...UniqueIDOption) *UniqueIDGenerator {
	g := &UniqueIDGenerator{
		now:  time.Now,
		intn: rand.IntN,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *UniqueIDGenerator) Generate(role entities.Role) string {
	tail := g.now().Unix() % 1_000_000
	suffix := 100 + g.intn(900)
	return fmt.Sprintf("%c%06d%03d", RolePrefix(role), tail, suffix)
}
