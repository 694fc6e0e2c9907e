package mysqladapter

import (
	"database/sql"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"

	"github.com/mydevhero/cacherepo/internal/config"
	"github.com/mydevhero/cacherepo/internal/rerr"
)

func TestClassify_NilIsNil(t *testing.T) {
	assert.NoError(t, classify("op", nil))
}

func TestClassify_TooManyConnectionsIsBroken(t *testing.T) {
	err := classify("mysqladapter.Open", &mysql.MySQLError{Number: 1040, Message: "too many connections"})
	assert.Equal(t, rerr.Broken, rerr.KindOf(err))
}

func TestClassify_ServerGoneIsBroken(t *testing.T) {
	err := classify("mysqladapter.Execute", &mysql.MySQLError{Number: 2006, Message: "server has gone away"})
	assert.Equal(t, rerr.Broken, rerr.KindOf(err))
}

func TestClassify_OtherMySQLErrorIsSql(t *testing.T) {
	err := classify("mysqladapter.Execute", &mysql.MySQLError{Number: 1062, Message: "duplicate entry"})
	assert.Equal(t, rerr.Sql, rerr.KindOf(err))
}

func TestClassify_InvalidConnIsBroken(t *testing.T) {
	assert.Equal(t, rerr.Broken, rerr.KindOf(classify("mysqladapter.Execute", mysql.ErrInvalidConn)))
}

func TestClassify_BadConnectionStringIsBroken(t *testing.T) {
	err := classify("mysqladapter.Execute", errors.New("driver: bad connection"))
	assert.Equal(t, rerr.Broken, rerr.KindOf(err))
}

type fakeNetErr struct{}

func (fakeNetErr) Error() string   { return "dial tcp: i/o timeout" }
func (fakeNetErr) Timeout() bool   { return true }
func (fakeNetErr) Temporary() bool { return true }

var _ net.Error = fakeNetErr{}

func TestClassify_NetErrorIsBroken(t *testing.T) {
	assert.Equal(t, rerr.Broken, rerr.KindOf(classify("mysqladapter.Open", fakeNetErr{})))
}

func TestClassify_TxDoneIsSql(t *testing.T) {
	assert.Equal(t, rerr.Sql, rerr.KindOf(classify("mysqladapter.Tx.Commit", sql.ErrTxDone)))
}

func TestClassify_UnrecognizedErrorIsUnknown(t *testing.T) {
	assert.Equal(t, rerr.Unknown, rerr.KindOf(classify("mysqladapter.Execute", errors.New("boom"))))
}

func TestPlaceholder_IsUnnumbered(t *testing.T) {
	a := &Adapter{}
	assert.Equal(t, "?", a.Placeholder(1))
	assert.Equal(t, "?", a.Placeholder(2))
}

func TestIsAlive_TrueUntilABrokenErrorIsObserved(t *testing.T) {
	a := &Adapter{}
	hd := &handle{}
	assert.True(t, a.IsAlive(hd))

	markIfBroken(hd, rerr.New(rerr.Sql, "mysqladapter.Execute", errors.New("duplicate entry")))
	assert.True(t, a.IsAlive(hd), "a Sql-kind error must not flip liveness")

	markIfBroken(hd, rerr.New(rerr.Broken, "mysqladapter.Execute", errors.New("server has gone away")))
	assert.False(t, a.IsAlive(hd), "a Broken-kind error must flip liveness")
}

func TestNew_BuildsDSNFromConfig(t *testing.T) {
	cfg := config.DatabaseConfig{
		Driver: config.DriverMySQL, Host: "db.internal", Port: 3306, Name: "cacherepo",
		User: "svc", Password: "secret", ConnectTimeout: 5 * time.Second,
	}
	a := New(cfg)

	assert.Contains(t, a.dsn, "db.internal:3306")
	assert.Contains(t, a.dsn, "cacherepo")
	assert.Equal(t, 5*time.Second, a.connectTimeout)
}
