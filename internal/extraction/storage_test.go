package extraction

import (
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("LocalStorage", func() {
	var (
		tmpDir  string
		storage Storage
	)

	BeforeEach(func() {
		tmpDir = GinkgoT().TempDir()
		var err error
		storage, err = NewLocalStorage(filepath.Join(tmpDir, "uploads"))
		Expect(err).NotTo(HaveOccurred())
	})

	Describe("Save", func() {
		It("should write the file and return its name", func() {
			name, err := storage.Save("a_invoice.png", []byte("content"))
			Expect(err).NotTo(HaveOccurred())
			Expect(name).To(Equal("a_invoice.png"))
			Expect(filepath.Join(tmpDir, "uploads", "a_invoice.png")).To(BeAnExistingFile())
		})

		It("should reject names with directories", func() {
			_, err := storage.Save("../escape.png", []byte("content"))
			Expect(err).To(MatchError(ContainSubstring("invalid file name")))
			Expect(filepath.Join(tmpDir, "escape.png")).NotTo(BeAnExistingFile())
		})
	})

	Describe("Get", func() {
		It("should return saved data", func() {
			_, err := storage.Save("a.png", []byte("content"))
			Expect(err).NotTo(HaveOccurred())

			data, err := storage.Get("a.png")
			Expect(err).NotTo(HaveOccurred())
			Expect(string(data)).To(Equal("content"))
		})

		It("should fail for missing files", func() {
			_, err := storage.Get("missing.png")
			Expect(err).To(MatchError(ContainSubstring("reading file")))
		})
	})

	Describe("Delete", func() {
		It("should remove the file", func() {
			_, err := storage.Save("a.png", []byte("content"))
			Expect(err).NotTo(HaveOccurred())

			Expect(storage.Delete("a.png")).To(Succeed())
			Expect(filepath.Join(tmpDir, "uploads", "a.png")).NotTo(BeAnExistingFile())
		})

		It("should fail for missing files", func() {
			Expect(storage.Delete("missing.png")).To(MatchError(ContainSubstring("deleting file")))
		})
	})
})
