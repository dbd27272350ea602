package utils

import (
	"fmt"
	"math/rand"
)

// RandomIPv4 returns a random dotted-quad address. Uniqueness is not
// guaranteed here; the account store retries against the unique index on
// the ip column, which is the authoritative backstop.
func RandomIPv4() string {
	return fmt.Sprintf("%d.%d.%d.%d",
		rand.Intn(256), rand.Intn(256), rand.Intn(256), rand.Intn(256))
}
