package service

import (
	"math/rand"
	"sync"
	"time"
)

// Clock abstracts time.Now so deadline and expiry logic is testable
// with a fixed time.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

func SystemClock() Clock { return systemClock{} }

// Shuffler abstracts the question/option permutation so tests can
// assert exact orders.
type Shuffler interface {
	Shuffle(n int, swap func(i, j int))
}

type randShuffler struct {
	mu sync.Mutex
	r  *rand.Rand
}

func NewRandShuffler() Shuffler {
	return &randShuffler{r: rand.New(rand.NewSource(time.Now().UnixNano()))}
}

func (s *randShuffler) Shuffle(n int, swap func(i, j int)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.r.Shuffle(n, swap)
}
