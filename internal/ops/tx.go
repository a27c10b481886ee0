package ops

import (
	"github.com/jackc/pgx/v5"

	"github.com/marcus-qen/orchestra/internal/store"
)

func pgxReadWrite() pgx.TxOptions {
	return store.ReadWriteTx()
}
