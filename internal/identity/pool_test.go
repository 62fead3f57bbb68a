package identity

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoundRobin(t *testing.T) {
	pool, err := NewPool([]Spec{{UserAgent: "a"}, {UserAgent: "b"}, {UserAgent: "c"}}, RoundRobin)
	require.NoError(t, err)

	var got []string
	for i := 0; i < 7; i++ {
		got = append(got, pool.Next().UserAgent)
	}
	assert.Equal(t, []string{"a", "b", "c", "a", "b", "c", "a"}, got)
	assert.Equal(t, uint64(7), pool.Rotations())
}

func TestEmptyPoolFallsBack(t *testing.T) {
	pool, err := NewPool(nil, "")
	require.NoError(t, err)

	id := pool.Next()
	assert.Equal(t, DefaultUserAgent, id.UserAgent)
	assert.NotNil(t, id.Jar)
	assert.Equal(t, 0, pool.Size())
}

func TestWeightedRandom(t *testing.T) {
	pool, err := NewPool([]Spec{{UserAgent: "heavy", Weight: 3}, {UserAgent: "light", Weight: 1}}, WeightedRandom)
	require.NoError(t, err)

	picks := []int{0, 1, 2, 3}
	i := 0
	pool.intn = func(n int) int {
		assert.Equal(t, 4, n)
		v := picks[i%len(picks)]
		i++
		return v
	}

	var got []string
	for range picks {
		got = append(got, pool.Next().UserAgent)
	}
	assert.Equal(t, []string{"heavy", "heavy", "heavy", "light"}, got)
}

func TestFromConfigPairsProxies(t *testing.T) {
	pool, err := FromConfig([]string{"ua-1"}, []string{"http://proxy-1:3128", "http://proxy-2:3128"}, []int{2}, "round_robin")
	require.NoError(t, err)
	require.Equal(t, 2, pool.Size())

	first := pool.Next()
	second := pool.Next()
	assert.Equal(t, "ua-1", first.UserAgent)
	assert.Equal(t, "ua-1", second.UserAgent)
	assert.Equal(t, "proxy-1:3128", first.Proxy.Host)
	assert.Equal(t, "proxy-2:3128", second.Proxy.Host)
	assert.Equal(t, 2, first.Weight)
	assert.Equal(t, 1, second.Weight)
}

func TestInvalidPolicyAndProxy(t *testing.T) {
	_, err := NewPool(nil, "sticky")
	assert.Error(t, err)

	_, err = NewPool([]Spec{{ProxyURL: "://bad"}}, RoundRobin)
	assert.Error(t, err)
}

func TestConcurrentNext(t *testing.T) {
	pool, err := NewPool([]Spec{{UserAgent: "a"}, {UserAgent: "b"}}, RoundRobin)
	require.NoError(t, err)

	var wg sync.WaitGroup
	counts := make([]map[string]int, 8)
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			counts[g] = map[string]int{}
			for i := 0; i < 100; i++ {
				counts[g][pool.Next().UserAgent]++
			}
		}(g)
	}
	wg.Wait()

	total := map[string]int{}
	for _, c := range counts {
		for k, v := range c {
			total[k] += v
		}
	}
	assert.Equal(t, 400, total["a"])
	assert.Equal(t, 400, total["b"])
	assert.Equal(t, uint64(800), pool.Rotations())
}
