package metadata_test

import (
	"strconv"
	"time"

	"github.com/kufefe/kufefe/internal/metadata"
	v1 "github.com/kufefe/kufefe/pkg/apis/kufefe.io/v1"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/labels"
	"k8s.io/apimachinery/pkg/types"
)

var _ = Describe("Metadata", func() {
	var factory *metadata.Factory

	BeforeEach(func() {
		factory = &metadata.Factory{TTL: time.Hour}
	})

	Context("ObjectMeta", func() {
		It("stamps the managed-by label and expire-by annotation", func() {
			before := time.Now().Add(time.Hour).Unix()
			meta := factory.ObjectMeta("kufefe-generated-abc123", "default", nil)
			after := time.Now().Add(time.Hour).Unix()

			Expect(meta.Name).To(Equal("kufefe-generated-abc123"))
			Expect(meta.Namespace).To(Equal("default"))
			Expect(meta.Labels).To(HaveKeyWithValue(v1.ManagedByLabel, v1.ManagedByValue))

			at, err := strconv.ParseInt(meta.Annotations[v1.ExpireByAnnotation], 10, 64)
			Expect(err).ToNot(HaveOccurred())
			Expect(at).To(BeNumerically(">=", before))
			Expect(at).To(BeNumerically("<=", after))
		})

		It("references a persisted owning request", func() {
			req := &v1.Request{
				ObjectMeta: metav1.ObjectMeta{Name: "r1", UID: types.UID("uid-1")},
			}
			meta := factory.ObjectMeta("n", "default", req)
			Expect(meta.OwnerReferences).To(HaveLen(1))
			ref := meta.OwnerReferences[0]
			Expect(ref.APIVersion).To(Equal("kufefe.io/v1"))
			Expect(ref.Kind).To(Equal("Request"))
			Expect(ref.Name).To(Equal("r1"))
			Expect(ref.UID).To(Equal(types.UID("uid-1")))
		})

		It("skips the owner reference without a UID", func() {
			req := &v1.Request{ObjectMeta: metav1.ObjectMeta{Name: "r1"}}
			meta := factory.ObjectMeta("n", "default", req)
			Expect(meta.OwnerReferences).To(BeEmpty())
		})

		It("keeps expiry stamps monotone across calls", func() {
			first := factory.ObjectMeta("a", "default", nil)
			second := factory.ObjectMeta("b", "default", nil)

			fa, _ := strconv.ParseInt(first.Annotations[v1.ExpireByAnnotation], 10, 64)
			sa, _ := strconv.ParseInt(second.Annotations[v1.ExpireByAnnotation], 10, 64)
			Expect(sa).To(BeNumerically(">=", fa))
		})
	})

	Context("Expired", func() {
		now := time.Now()

		stamped := func(at string) *corev1.ServiceAccount {
			return &corev1.ServiceAccount{
				ObjectMeta: metav1.ObjectMeta{
					Name:        "sa",
					Annotations: map[string]string{v1.ExpireByAnnotation: at},
				},
			}
		}

		It("is true for timestamps in the past", func() {
			sa := stamped(strconv.FormatInt(now.Add(-time.Minute).Unix(), 10))
			Expect(metadata.Expired(sa, now)).To(BeTrue())
		})

		It("is false for timestamps in the future", func() {
			sa := stamped(strconv.FormatInt(now.Add(time.Minute).Unix(), 10))
			Expect(metadata.Expired(sa, now)).To(BeFalse())
		})

		It("never expires objects with an unparseable stamp", func() {
			Expect(metadata.Expired(stamped("soon"), now)).To(BeFalse())
		})

		It("never expires objects without a stamp", func() {
			sa := &corev1.ServiceAccount{ObjectMeta: metav1.ObjectMeta{Name: "sa"}}
			Expect(metadata.Expired(sa, now)).To(BeFalse())
		})
	})

	Context("ManagedSelector", func() {
		It("matches only managed label sets", func() {
			sel := metadata.ManagedSelector()
			Expect(sel.Matches(labels.Set{})).To(BeFalse())
			Expect(sel.Matches(labels.Set{v1.ManagedByLabel: v1.ManagedByValue})).To(BeTrue())
			Expect(sel.Matches(labels.Set{v1.ManagedByLabel: "other"})).To(BeFalse())
		})
	})
})
