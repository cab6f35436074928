package testutil

import (
	"bytes"
	"context"
	"io"
	"net/http"
)

type bodyKey struct{}

func withBody(ctx context.Context, body []byte) context.Context {
	return context.WithValue(ctx, bodyKey{}, body)
}

// RequestBody returns the body MockAPI read before dispatching r.
func RequestBody(r *http.Request) []byte {
	b, _ := r.Context().Value(bodyKey{}).([]byte)
	return b
}

func bytesReader(b []byte) io.Reader {
	return bytes.NewReader(b)
}
