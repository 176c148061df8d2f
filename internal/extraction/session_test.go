package extraction

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Session", func() {
	var session *Session

	BeforeEach(func() {
		session = NewSession()
	})

	It("should start empty", func() {
		_, ok := session.Current()
		Expect(ok).To(BeFalse())
	})

	It("should overwrite the current attempt", func() {
		session.Replace(&Attempt{ID: "a"})
		session.Replace(&Attempt{ID: "b"})

		current, ok := session.Current()
		Expect(ok).To(BeTrue())
		Expect(current.ID).To(Equal("b"))
	})

	It("should clear", func() {
		session.Replace(&Attempt{ID: "a"})
		session.Clear()
		_, ok := session.Current()
		Expect(ok).To(BeFalse())
	})

	Describe("ClearIf", func() {
		BeforeEach(func() {
			session.Replace(&Attempt{ID: "a"})
		})

		It("should keep a different attempt", func() {
			session.ClearIf("b")
			_, ok := session.Current()
			Expect(ok).To(BeTrue())
		})

		It("should drop the matching attempt", func() {
			session.ClearIf("a")
			_, ok := session.Current()
			Expect(ok).To(BeFalse())
		})
	})
})
