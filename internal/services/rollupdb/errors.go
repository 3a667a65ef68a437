package rollupdb

import (
	"errors"
	"fmt"

	"github.com/based-rollup/sequencer/internal/rollup/account"
)

var errNilTransaction = errors.New("rollupdb: commit with nil transaction")

func errNotLocked(key account.Key) error {
	return fmt.Errorf("rollupdb: commit references key %s which is not locked", key)
}
