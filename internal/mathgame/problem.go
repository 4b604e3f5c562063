package mathgame

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"sync"
)

type Difficulty string

const (
	Easy   Difficulty = "easy"
	Medium Difficulty = "medium"
	Hard   Difficulty = "hard"
)

var ErrInvalidDifficulty = errors.New("invalid difficulty")

var levels = []Difficulty{Easy, Medium, Hard}

// ParseDifficulty accepts easy, medium or hard in any case.
func ParseDifficulty(s string) (Difficulty, error) {
	d := Difficulty(strings.ToLower(strings.TrimSpace(s)))
	if !d.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidDifficulty, s)
	}
	return d, nil
}

func (d Difficulty) Valid() bool {
	return d == Easy || d == Medium || d == Hard
}

func (d Difficulty) level() int {
	for i, l := range levels {
		if l == d {
			return i
		}
	}
	return 0
}

// Harder returns the next level up, staying at Hard.
func (d Difficulty) Harder() Difficulty {
	return levels[min(d.level()+1, len(levels)-1)]
}

// Easier returns the next level down, staying at Easy.
func (d Difficulty) Easier() Difficulty {
	return levels[max(d.level()-1, 0)]
}

type Operation string

const (
	Add      Operation = "+"
	Subtract Operation = "-"
)

type Problem struct {
	Num1      int       `json:"num1"`
	Num2      int       `json:"num2"`
	Operation Operation `json:"operation"`
	Answer    int       `json:"answer"`
}

func (p Problem) String() string {
	return fmt.Sprintf("%d %s %d", p.Num1, p.Operation, p.Num2)
}

// DifficultyForAttempt ramps difficulty within one challenge session:
// attempts 1-3 easy, 4-7 medium, then hard.
func DifficultyForAttempt(attempt int) Difficulty {
	switch {
	case attempt <= 3:
		return Easy
	case attempt <= 7:
		return Medium
	default:
		return Hard
	}
}

// Generator draws problems from a seeded source and is safe for concurrent use.
type Generator struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewGenerator uses src, or a randomly seeded PCG when src is nil.
func NewGenerator(src rand.Source) *Generator {
	if src == nil {
		src = rand.NewPCG(rand.Uint64(), rand.Uint64())
	}
	return &Generator{rng: rand.New(src)}
}

// between returns a uniform integer in [lo, hi]. Callers hold mu.
func (g *Generator) between(lo, hi int) int {
	return lo + g.rng.IntN(hi-lo+1)
}

func (g *Generator) operation() Operation {
	if g.rng.IntN(2) == 0 {
		return Add
	}
	return Subtract
}

// Generate returns a problem for d or ErrInvalidDifficulty.
func (g *Generator) Generate(d Difficulty) (Problem, error) {
	if !d.Valid() {
		return Problem{}, fmt.Errorf("%w: %q", ErrInvalidDifficulty, string(d))
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	var p Problem
	switch d {
	case Easy:
		p = Problem{Num1: g.between(1, 5), Num2: g.between(1, 5), Operation: Add}
	case Medium:
		p.Operation = g.operation()
		if p.Operation == Add {
			// sum <= 15
			p.Num1 = g.between(1, 10)
			p.Num2 = g.between(1, min(15-p.Num1, 10))
		} else {
			// result >= 1
			p.Num1 = g.between(6, 15)
			p.Num2 = g.between(1, p.Num1-1)
		}
	case Hard:
		p.Operation = g.operation()
		if p.Operation == Add {
			// sum <= 20
			p.Num1 = g.between(5, 15)
			p.Num2 = g.between(5, min(20-p.Num1, 15))
		} else {
			p.Num1 = g.between(11, 20)
			p.Num2 = g.between(1, 10)
		}
	}

	if p.Operation == Add {
		p.Answer = p.Num1 + p.Num2
	} else {
		p.Answer = p.Num1 - p.Num2
	}
	return p, nil
}

// Progressive returns a problem for the given challenge attempt number.
func (g *Generator) Progressive(attempt int) Problem {
	p, _ := g.Generate(DifficultyForAttempt(attempt))
	return p
}
