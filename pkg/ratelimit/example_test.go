package ratelimit_test

import (
	"context"
	"fmt"
	"time"

	"github.com/Sternrassler/bulkfetch/pkg/ratelimit"
	"github.com/rs/zerolog"
)

func ExampleLimiter() {
	detail := ratelimit.New("detail", 250*time.Millisecond, zerolog.Nop())

	// Server answered 429 with Retry-After: 2 -> slow everyone down.
	detail.ThrottleTo(2 * time.Second)
	fmt.Println(detail.State().CurrentInterval)

	// Each success shaves 10% off until base is reached again.
	detail.OnSuccess()
	fmt.Println(detail.State().CurrentInterval)

	_ = detail.Wait(context.Background())
	// Output:
	// 2s
	// 1.8s
}
