package iteration

import (
	"github.com/spirit-labs/streamjoin/common"
)

type Iterator interface {
	Next() (bool, common.KV, error)
	Close()
}

type EmptyIterator struct {
}

func (e EmptyIterator) Next() (bool, common.KV, error) {
	return false, common.KV{}, nil
}

func (e EmptyIterator) Close() {
}
