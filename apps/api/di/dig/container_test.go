package dig_container

import (
	"io"
	"log"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/dig"

	echoapi "github.com/toure-cloud/institutdeveloppement/apps/api/echo"
	"github.com/toure-cloud/institutdeveloppement/core"
	"github.com/toure-cloud/institutdeveloppement/core/enrollment"
	logsvc "github.com/toure-cloud/institutdeveloppement/services/logger"
)

func testConfig(t *testing.T) *core.Config {
	return &core.Config{
		AppName:   "Institut",
		Env:       "TEST",
		TestMode:  true,
		SecretKey: "secret",
		TimeZone:  "UTC",
		Server:    core.ServerConfig{JWTExpirationDelta: 10 * time.Minute},
		Media:     core.MediaConfig{Root: t.TempDir(), URL: "/media/", MaxUploadSize: 5 << 20},
		RateLimit: core.RateLimitConfig{Login: 5, Register: 5, PasswordReset: 5, Window: time.Minute},
	}
}

func TestNewContainer_testMode(t *testing.T) {
	c := newContainer(testConfig(t))

	type params struct {
		dig.In
		DB     *sqlx.DB `optional:"true"`
		Redis  *redis.Client
		Repo   enrollment.Repository
		Server *echoapi.Server
	}
	err := c.Invoke(func(p params) {
		assert.Nil(t, p.DB)
		assert.Nil(t, p.Redis)
		assert.NotNil(t, p.Repo)
		assert.NotNil(t, p.Server)
	})
	require.NoError(t, err)
}

func Test_newRedis(t *testing.T) {
	conf := testConfig(t)
	logger := logsvc.NewRollbarLogger(log.New(io.Discard, "", 0), conf)

	assert.Nil(t, newRedis(conf, logger))

	// an unreachable server is not fatal
	conf.Redis.URL = "redis://127.0.0.1:1/0"
	assert.Nil(t, newRedis(conf, logger))

	conf.Redis.URL = "lol://"
	assert.Nil(t, newRedis(conf, logger))
}
