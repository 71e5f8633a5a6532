package repository

import (
	"context"

	"github.com/jackc/pgx/v4"
)

// Tx is an opaque transaction handle passed through repository calls. The
// concrete type is infra-defined (pgx.Tx for Postgres); repositories must
// gracefully accept nil for the non-transactional path.
type Tx interface{}

// NoTX is passed where no enclosing transaction exists.
var NoTX Tx

// TransactionManager executes a function within one database transaction,
// handing the tx to the callback so repositories called inside it share the
// same handle. Keeps transaction types out of use-case interfaces.
type TransactionManager interface {
	WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx Tx) error) error
}
