// Package names generates the randomized names of issued resources.
package names

import (
	"context"
	"math/rand/v2"
	"strings"
)

// Prefix starts every generated name, making issued objects recognizable at
// a glance.
const Prefix = "kufefe-generated-"

const (
	suffixLength = 6
	alphabet     = "abcdefghijklmnopqrstuvwxyz0123456789"
)

// Taken probes whether a candidate name is already in use for the kind the
// name is generated for. It must use the same API the later create will
// use.
type Taken func(ctx context.Context, name string) (bool, error)

// Random returns a fresh candidate name.
func Random() string {
	var b strings.Builder
	b.Grow(len(Prefix) + suffixLength)
	b.WriteString(Prefix)
	for i := 0; i < suffixLength; i++ {
		b.WriteByte(alphabet[rand.IntN(len(alphabet))])
	}
	return b.String()
}

// Generate returns a name not yet in use, regenerating on collision. The
// 36^6 suffix space makes more than one round rare; the probe guards the
// remaining chance.
func Generate(ctx context.Context, taken Taken) (string, error) {
	for {
		name := Random()
		inUse, err := taken(ctx, name)
		if err != nil {
			return "", err
		}
		if !inUse {
			return name, nil
		}
	}
}
