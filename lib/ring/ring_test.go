package ring

import (
	"sort"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
)

func TestNewPanics(t *testing.T) {
	assert.Panics(t, func() { New(0) })
	assert.Panics(t, func() { New(-3) })
	assert.Equal(t, 7, New(7).Size())
}

func TestWriteWraps(t *testing.T) {
	b := New(10)
	b.write = 6

	n, err := b.Write([]byte{1, 2, 3, 4, 5, 6})
	assert.NoError(t, err)
	assert.Equal(t, 6, n)
	assert.Equal(t, 2, b.WritePos())
	assert.Equal(t, []byte{5, 6, 0, 0, 0, 0, 1, 2, 3, 4}, b.data)
}

func TestWriteExactlyToEnd(t *testing.T) {
	b := New(8)
	b.Write([]byte{1, 2, 3})
	b.Write([]byte{4, 5, 6, 7, 8})
	assert.Equal(t, 0, b.WritePos())
	assert.Equal(t, []byte{1, 2, 3, 4, 5, 6, 7, 8}, b.data)
}

func TestWriteLongerThanBuffer(t *testing.T) {
	b := New(4)
	b.Write([]byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10})
	assert.Equal(t, 2, b.WritePos())
	assert.Equal(t, []byte{9, 10, 7, 8}, b.data)
}

func TestWriteCursorAndContent(t *testing.T) {
	for _, size := range []int{1, 3, 8, 10, 64, 20480} {
		b := New(size)
		shadow := make([]byte, size)

		total := 0
		value := byte(0)
		for _, length := range []int{0, 1, 5, 7, 2048, 13, 3, 100} {
			chunk := make([]byte, length)
			for i := range chunk {
				value++
				chunk[i] = value
				shadow[(total+i)%size] = value
			}
			b.Write(chunk)
			total += length

			assert.Equal(t, total%size, b.WritePos(), "size %d", size)
			if diff := cmp.Diff(shadow, b.data); diff != "" {
				t.Errorf("size %d after %d bytes - unexpected content:\n%s", size, total, diff)
			}
		}
	}
}

func TestWriteLeavesOtherBytesAlone(t *testing.T) {
	b := New(16)
	for i := range b.data {
		b.data[i] = 0xff
	}
	b.write = 14
	b.Write([]byte{1, 2, 3, 4})

	expected := []byte{3, 4, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 1, 2}
	assert.Equal(t, expected, b.data)
}

func TestClaim(t *testing.T) {
	b := New(20)
	assert.Equal(t, 0, b.Claim(8))
	assert.Equal(t, 8, b.Claim(8))
	// 16 + 8 >= 20, wraps to 0.
	assert.Equal(t, 16, b.Claim(8))
	assert.Equal(t, 0, b.Claim(8))
}

func TestClaimConcurrent(t *testing.T) {
	const workers = 16
	const perWorker = 64

	// One full cycle of claims: every offset must show up exactly once.
	b := New(8 * workers * perWorker)

	var lock sync.Mutex
	var offsets []int

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			local := make([]int, 0, perWorker)
			for j := 0; j < perWorker; j++ {
				local = append(local, b.Claim(8))
			}
			lock.Lock()
			offsets = append(offsets, local...)
			lock.Unlock()
		}()
	}
	wg.Wait()

	sort.Ints(offsets)
	for ix, offset := range offsets {
		assert.Equal(t, ix*8, offset)
	}
	assert.Equal(t, 0, b.Claim(8))
}

func TestReadAt(t *testing.T) {
	b := New(10)
	b.Write([]byte{0, 1, 2, 3, 4, 5, 6, 7, 8, 9})

	testCases := []struct {
		desc   string
		offset int
		length int
		want   []byte
	}{
		{desc: "start", offset: 0, length: 8, want: []byte{0, 1, 2, 3, 4, 5, 6, 7}},
		{desc: "tail", offset: 2, length: 8, want: []byte{2, 3, 4, 5, 6, 7, 8, 9}},
		{desc: "split", offset: 8, length: 8, want: []byte{8, 9, 0, 1, 2, 3, 4, 5}},
		{desc: "offset past the end", offset: 13, length: 2, want: []byte{3, 4}},
		{desc: "longer than buffer", offset: 9, length: 12, want: []byte{9, 0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 0}},
	}
	for _, tc := range testCases {
		t.Run(tc.desc, func(t *testing.T) {
			got := make([]byte, tc.length)
			b.ReadAt(got, tc.offset)
			assert.Equal(t, tc.want, got)
		})
	}
}
