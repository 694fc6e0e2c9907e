package pgadapter

import (
	"errors"
	"net"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"

	"github.com/mydevhero/cacherepo/internal/config"
	"github.com/mydevhero/cacherepo/internal/rerr"
)

func TestClassify_NilIsNil(t *testing.T) {
	assert.NoError(t, classify("op", nil))
}

func TestClassify_AdminShutdownIsBroken(t *testing.T) {
	err := classify("pgadapter.Execute", &pgconn.PgError{Code: "57P01", Message: "terminating connection"})
	assert.Equal(t, rerr.Broken, rerr.KindOf(err))
}

func TestClassify_TooManyConnectionsIsBroken(t *testing.T) {
	err := classify("pgadapter.Open", &pgconn.PgError{Code: "53300"})
	assert.Equal(t, rerr.Broken, rerr.KindOf(err))
}

func TestClassify_InvalidCatalogIsBroken(t *testing.T) {
	err := classify("pgadapter.Open", &pgconn.PgError{Code: "3D000"})
	assert.Equal(t, rerr.Broken, rerr.KindOf(err))
}

func TestClassify_OtherPgErrorIsSql(t *testing.T) {
	err := classify("pgadapter.Execute", &pgconn.PgError{Code: "23505", Message: "duplicate key"})
	assert.Equal(t, rerr.Sql, rerr.KindOf(err))
}

type fakeNetErr struct{}

func (fakeNetErr) Error() string   { return "dial tcp: connection refused" }
func (fakeNetErr) Timeout() bool   { return false }
func (fakeNetErr) Temporary() bool { return false }

var _ net.Error = fakeNetErr{}

func TestClassify_NetErrorIsBroken(t *testing.T) {
	err := classify("pgadapter.Open", fakeNetErr{})
	assert.Equal(t, rerr.Broken, rerr.KindOf(err))
}

func TestClassify_TxClosedIsSql(t *testing.T) {
	assert.Equal(t, rerr.Sql, rerr.KindOf(classify("pgadapter.Tx.Execute", pgx.ErrTxClosed)))
}

func TestClassify_UnrecognizedErrorIsUnknown(t *testing.T) {
	assert.Equal(t, rerr.Unknown, rerr.KindOf(classify("pgadapter.Execute", errors.New("boom"))))
}

func TestPlaceholder_IsNumbered(t *testing.T) {
	a := &Adapter{}
	assert.Equal(t, "$1", a.Placeholder(1))
	assert.Equal(t, "$2", a.Placeholder(2))
}

func TestConnString_IncludesResolvedFields(t *testing.T) {
	cfg := config.DatabaseConfig{
		Host: "db.internal", Port: 5432, Name: "cacherepo", User: "svc", Password: "secret",
		ConnectTimeout: 5 * time.Second, KeepaliveIdle: 30 * time.Second,
		KeepaliveInterval: 10 * time.Second, KeepaliveCount: 3,
	}
	s := connString(cfg)

	assert.Contains(t, s, "host=db.internal")
	assert.Contains(t, s, "dbname=cacherepo")
	assert.Contains(t, s, "connect_timeout=5")
	assert.Contains(t, s, "keepalives_count=3")
}
