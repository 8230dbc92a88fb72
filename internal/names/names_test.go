package names_test

import (
	"context"
	"errors"
	"regexp"

	"github.com/kufefe/kufefe/internal/names"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Names", func() {
	pattern := regexp.MustCompile(`^kufefe-generated-[a-z0-9]{6}$`)

	Context("Random", func() {
		It("matches the generated name pattern", func() {
			for i := 0; i < 100; i++ {
				Expect(names.Random()).To(MatchRegexp(pattern.String()))
			}
		})

		It("varies between calls", func() {
			seen := map[string]struct{}{}
			for i := 0; i < 50; i++ {
				seen[names.Random()] = struct{}{}
			}
			Expect(len(seen)).To(BeNumerically(">", 1))
		})
	})

	Context("Generate", func() {
		It("returns the first free name", func() {
			probes := 0
			name, err := names.Generate(context.Background(), func(_ context.Context, _ string) (bool, error) {
				probes++
				return false, nil
			})
			Expect(err).ToNot(HaveOccurred())
			Expect(name).To(MatchRegexp(pattern.String()))
			Expect(probes).To(Equal(1))
		})

		It("regenerates on collision", func() {
			taken := 2
			var probed []string
			name, err := names.Generate(context.Background(), func(_ context.Context, n string) (bool, error) {
				probed = append(probed, n)
				if taken > 0 {
					taken--
					return true, nil
				}
				return false, nil
			})
			Expect(err).ToNot(HaveOccurred())
			Expect(probed).To(HaveLen(3))
			Expect(name).To(Equal(probed[2]))
		})

		It("propagates probe errors", func() {
			boom := errors.New("probe failed")
			_, err := names.Generate(context.Background(), func(_ context.Context, _ string) (bool, error) {
				return false, boom
			})
			Expect(err).To(MatchError(boom))
		})
	})
})
