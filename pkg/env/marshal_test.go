package env

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	Token    string        `env:"TELEGRAM_TOKEN,required,notEmpty"`
	Admins   []int64       `env:"ADMIN_IDS"`
	Timeout  time.Duration `env:"STORE_TIMEOUT" envDefault:"5s"`
	Debug    bool          `env:"DEBUG"`
	Empty    string        `env:"EMPTY"`
	internal string        `env:"INTERNAL"`
	NoTag    string
}

func TestMarshalEnv(t *testing.T) {
	s := &sample{
		Token:    "123:abc",
		Admins:   []int64{1, 42},
		Timeout:  3 * time.Second,
		Debug:    true,
		internal: "hidden",
		NoTag:    "skip",
	}

	out, err := MarshalEnv(s)
	require.NoError(t, err)

	assert.Equal(t, "TELEGRAM_TOKEN=123:abc\nADMIN_IDS=1,42\nSTORE_TIMEOUT=3s\nDEBUG=true\n", out)
}

func TestMarshalEnv_AllZero(t *testing.T) {
	out, err := MarshalEnv(&sample{})
	require.NoError(t, err)
	assert.Empty(t, out)
}
