package srand

import (
	"bufio"
	"crypto/rand"
	"encoding/binary"
	"sync"
)

var pool *sync.Pool

func init() {
	pool = &sync.Pool{
		New: func() interface{} {
			return bufio.NewReaderSize(rand.Reader, 4096)
		},
	}
}

// Crypto is a Sampler returning samples read from crypto/rand.
//
// Rather than reading from the kernel for each sample, it buffers entropy,
// keeping one buffer per pool entry to avoid a global lock.
type Crypto struct{}

func (c Crypto) Sample() int64 {
	var v uint64
	reader := pool.Get().(*bufio.Reader)
	if err := binary.Read(reader, binary.BigEndian, &v); err != nil {
		panic(err)
	}
	pool.Put(reader)
	return int64(v)
}

// Source is a thread safe Generator backed by crypto/rand. Use it as:
//
//	rng := rand.New(srand.Source)
var Source = New(Crypto{})
