package app

import (
	"os"
	"sync"
)

const testModeEnv = "MERIDIAN_TEST_MODE"

var inTestMode = sync.OnceValue(func() bool {
	return os.Getenv(testModeEnv) == "1"
})

// InTestMode reports whether entrypoints should skip runtime side
// effects such as opening pools and sockets.
func InTestMode() bool {
	return inTestMode()
}
