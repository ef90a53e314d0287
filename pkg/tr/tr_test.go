package tr

import (
	"context"
	"testing"

	"github.com/DRSN-tech/recommender/pkg/e"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeTx — pgx.Tx, у которого нужна только идентичность.
type fakeTx struct {
	pgx.Tx
}

func TestTxFromCtx(t *testing.T) {
	_, err := TxFromCtx(context.Background())
	assert.ErrorIs(t, err, e.ErrTransactionNotFound)

	tx := &fakeTx{}
	got, err := TxFromCtx(WithTx(context.Background(), tx))
	require.NoError(t, err)
	assert.Same(t, tx, got)
}

func TestTxFromCtx_IgnoresStringKey(t *testing.T) {
	ctx := context.WithValue(context.Background(), "tx", &fakeTx{}) //nolint:staticcheck

	_, err := TxFromCtx(ctx)
	assert.ErrorIs(t, err, e.ErrTransactionNotFound)
}
