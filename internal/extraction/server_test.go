package extraction

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/onsi/gomega/ghttp"
)

var _ = Describe("Server", func() {
	var (
		db          *mockDB
		storage     *mockStorage
		scanner     *mockScanner
		service     *Service
		server      *Server
		auth        BasicAuth
		ghttpServer *ghttp.Server
	)

	setupServer := func() {
		if ghttpServer != nil {
			ghttpServer.Close()
		}
		server = NewServerWithMux(service, auth, http.NewServeMux())
		ghttpServer = ghttp.NewServer()
		ghttpServer.AppendHandlers(server.ServeHTTP)
	}

	upload := func(filename string, data []byte, fields map[string]string) *http.Response {
		body := &bytes.Buffer{}
		writer := multipart.NewWriter(body)
		if filename != "" {
			part, err := writer.CreateFormFile("file", filename)
			Expect(err).NotTo(HaveOccurred())
			_, err = part.Write(data)
			Expect(err).NotTo(HaveOccurred())
		}
		for k, v := range fields {
			Expect(writer.WriteField(k, v)).To(Succeed())
		}
		Expect(writer.Close()).To(Succeed())

		resp, err := http.Post(ghttpServer.URL()+"/api/invoices", writer.FormDataContentType(), body)
		Expect(err).NotTo(HaveOccurred())
		return resp
	}

	send := func(method, path string, body io.Reader) *http.Response {
		req, err := http.NewRequest(method, ghttpServer.URL()+path, body)
		Expect(err).NotTo(HaveOccurred())
		resp, err := http.DefaultClient.Do(req)
		Expect(err).NotTo(HaveOccurred())
		return resp
	}

	decode := func(resp *http.Response) map[string]any {
		defer resp.Body.Close()
		var out map[string]any
		Expect(json.NewDecoder(resp.Body).Decode(&out)).To(Succeed())
		return out
	}

	BeforeEach(func() {
		db = newMockDB()
		storage = newMockStorage()
		scanner = newMockScanner()
		service = NewServiceWithDeps(db, scanner, storage, NewSession(),
			&mockIDGenerator{id: "test-id-123"},
			&mockTimeSource{now: time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)},
		)
		auth = BasicAuth{}
		setupServer()
	})

	AfterEach(func() {
		if ghttpServer != nil {
			ghttpServer.Close()
		}
	})

	Describe("handleUploadInvoice", func() {
		When("upload succeeds", func() {
			It("should return the structured attempt", func() {
				resp := upload("invoice.jpg", []byte("fake image"), nil)
				Expect(resp.StatusCode).To(Equal(http.StatusCreated))
				Expect(resp.Header.Get("Content-Type")).To(Equal("application/json"))

				out := decode(resp)
				Expect(out["id"]).To(Equal("test-id-123"))
				Expect(out["kind"]).To(Equal("structured"))
				Expect(out["complete"]).To(BeTrue())
				data := out["data"].(map[string]any)
				Expect(data["invoice_number"]).To(Equal("INV-9"))
				Expect(data["total_amount"]).To(Equal("1080.00"))
			})

			It("should detect the content type from the extension", func() {
				resp := upload("invoice.pdf", []byte("%PDF"), nil)
				resp.Body.Close()
				Expect(resp.StatusCode).To(Equal(http.StatusCreated))
				Expect(scanner.lastContentType).To(Equal("application/pdf"))
			})
		})

		When("field groups are skipped", func() {
			It("should leave them out of the prompt", func() {
				resp := upload("invoice.jpg", []byte("fake image"), map[string]string{
					"skip_vendor": "on",
					"skip_items":  "true",
				})
				resp.Body.Close()
				Expect(resp.StatusCode).To(Equal(http.StatusCreated))
				Expect(scanner.lastPrompt).To(ContainSubstring("Extract: invoice date and due date, subtotal, tax, and total amounts\n"))
			})
		})

		When("no file is provided", func() {
			It("should return status Bad Request", func() {
				resp := upload("", nil, map[string]string{"skip_vendor": "on"})
				Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
				Expect(decode(resp)["error"]).To(ContainSubstring("No file was selected"))
			})
		})

		When("the form is not multipart", func() {
			It("should return status Bad Request", func() {
				resp, err := http.Post(ghttpServer.URL()+"/api/invoices", "text/plain", strings.NewReader("hello"))
				Expect(err).NotTo(HaveOccurred())
				Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
				Expect(decode(resp)["error"]).To(Equal("Error parsing form"))
			})
		})

		When("the upload exceeds the size limit", func() {
			BeforeEach(func() {
				server.uploadLimit = 1024
			})

			It("should reject it before reading the whole body", func() {
				resp := upload("invoice.jpg", bytes.Repeat([]byte("x"), 4096), nil)
				Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
				Expect(decode(resp)["error"]).To(HavePrefix("File is too large"))
				Expect(scanner.lastPrompt).To(BeEmpty())
			})
		})

		When("the reply cannot be decoded", func() {
			BeforeEach(func() {
				scanner.reply = `{"invoice_number": "A-1",}`
			})

			It("should return status Unprocessable Entity", func() {
				resp := upload("invoice.jpg", []byte("fake image"), nil)
				Expect(resp.StatusCode).To(Equal(http.StatusUnprocessableEntity))
				Expect(decode(resp)["error"]).To(HavePrefix("Could not parse the model response as JSON: "))
				Expect(db.attempts).To(BeEmpty())
			})
		})

		When("the scanner fails", func() {
			BeforeEach(func() {
				scanner.scanErr = errors.New("model unavailable")
			})

			It("should return status Bad Request", func() {
				resp := upload("invoice.jpg", []byte("fake image"), nil)
				Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
				Expect(decode(resp)["error"]).To(ContainSubstring("model unavailable"))
			})
		})
	})

	Describe("handleParseResponse", func() {
		When("the reply holds invoice JSON", func() {
			It("should return status Created", func() {
				resp := send(http.MethodPost, "/api/invoices/parse", strings.NewReader(structuredReply))
				Expect(resp.StatusCode).To(Equal(http.StatusCreated))
				Expect(decode(resp)["kind"]).To(Equal("structured"))
			})
		})

		When("the reply is prose", func() {
			It("should keep it as raw text", func() {
				resp := send(http.MethodPost, "/api/invoices/parse", strings.NewReader("I cannot read this image."))
				Expect(resp.StatusCode).To(Equal(http.StatusCreated))
				out := decode(resp)
				Expect(out["kind"]).To(Equal("raw"))
				Expect(out["data"]).To(HaveKeyWithValue("raw_response", "I cannot read this image."))
			})
		})

		When("the JSON is malformed", func() {
			It("should return status Unprocessable Entity", func() {
				resp := send(http.MethodPost, "/api/invoices/parse", strings.NewReader("{bad}"))
				Expect(resp.StatusCode).To(Equal(http.StatusUnprocessableEntity))
				resp.Body.Close()
			})
		})
	})

	Describe("handleImportRecord", func() {
		When("the document is an invoice", func() {
			It("should return status Created", func() {
				resp := send(http.MethodPost, "/api/invoices/import",
					strings.NewReader(`{"invoice_number": "INV-1", "vendor": {"name": "ACME"}}`))
				Expect(resp.StatusCode).To(Equal(http.StatusCreated))
				data := decode(resp)["data"].(map[string]any)
				Expect(data["invoice_number"]).To(Equal("INV-1"))
			})
		})

		When("the document is not an object", func() {
			It("should return status Bad Request", func() {
				resp := send(http.MethodPost, "/api/invoices/import", strings.NewReader(`[1, 2]`))
				Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
				Expect(decode(resp)["error"]).To(ContainSubstring("expected an object"))
			})
		})
	})

	Describe("handleListAttempts", func() {
		When("attempts exist", func() {
			BeforeEach(func() {
				db.attempts["a"] = &Attempt{ID: "a", CreatedAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
				db.attempts["b"] = &Attempt{ID: "b", CreatedAt: time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)}
			})

			It("should return them newest first", func() {
				resp := send(http.MethodGet, "/api/invoices", nil)
				Expect(resp.StatusCode).To(Equal(http.StatusOK))
				defer resp.Body.Close()

				var out []map[string]any
				Expect(json.NewDecoder(resp.Body).Decode(&out)).To(Succeed())
				Expect(out).To(HaveLen(2))
				Expect(out[0]["id"]).To(Equal("b"))
				Expect(out[1]["id"]).To(Equal("a"))
			})
		})

		When("the database fails", func() {
			BeforeEach(func() {
				db.listErr = errors.New("database error")
			})

			It("should return status Internal Server Error", func() {
				resp := send(http.MethodGet, "/api/invoices", nil)
				Expect(resp.StatusCode).To(Equal(http.StatusInternalServerError))
				Expect(decode(resp)["error"]).To(Equal("Internal server error"))
			})
		})
	})

	Describe("handleGetAttempt", func() {
		It("should return a stored attempt", func() {
			db.attempts["a"] = &Attempt{ID: "a"}
			resp := send(http.MethodGet, "/api/invoices/a", nil)
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(decode(resp)["id"]).To(Equal("a"))
		})

		It("should return status Not Found for unknown IDs", func() {
			resp := send(http.MethodGet, "/api/invoices/missing", nil)
			Expect(resp.StatusCode).To(Equal(http.StatusNotFound))
			Expect(decode(resp)["error"]).To(Equal("Invoice not found"))
		})
	})

	Describe("handleGetAttemptFile", func() {
		When("the attempt has a file", func() {
			BeforeEach(func() {
				db.attempts["a"] = &Attempt{ID: "a", Filename: "a_invoice.png", ContentType: "image/png"}
				storage.files["a_invoice.png"] = []byte("png bytes")
			})

			It("should return the file content", func() {
				resp := send(http.MethodGet, "/api/invoices/a/file", nil)
				Expect(resp.StatusCode).To(Equal(http.StatusOK))
				Expect(resp.Header.Get("Content-Type")).To(Equal("image/png"))
				defer resp.Body.Close()
				body, err := io.ReadAll(resp.Body)
				Expect(err).NotTo(HaveOccurred())
				Expect(string(body)).To(Equal("png bytes"))
			})
		})

		When("the attempt was parsed from text", func() {
			It("should return status Not Found", func() {
				db.attempts["a"] = &Attempt{ID: "a"}
				resp := send(http.MethodGet, "/api/invoices/a/file", nil)
				Expect(resp.StatusCode).To(Equal(http.StatusNotFound))
				resp.Body.Close()
			})
		})
	})

	Describe("handleDeleteAttempt", func() {
		It("should return status No Content", func() {
			db.attempts["a"] = &Attempt{ID: "a"}
			resp := send(http.MethodDelete, "/api/invoices/a", nil)
			resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusNoContent))
			Expect(db.attempts).NotTo(HaveKey("a"))
		})

		It("should return status Not Found for unknown IDs", func() {
			resp := send(http.MethodDelete, "/api/invoices/missing", nil)
			resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusNotFound))
		})

		It("should return status Internal Server Error when the database fails", func() {
			db.attempts["a"] = &Attempt{ID: "a"}
			db.deleteErr = errors.New("database error")
			resp := send(http.MethodDelete, "/api/invoices/a", nil)
			resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusInternalServerError))
		})
	})

	Describe("handleExportAttempt", func() {
		BeforeEach(func() {
			_, err := service.ParseResponse(structuredReply)
			Expect(err).NotTo(HaveOccurred())
		})

		It("should download CSV", func() {
			resp := send(http.MethodGet, "/api/invoices/test-id-123/export?format=csv", nil)
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(resp.Header.Get("Content-Type")).To(HavePrefix("text/csv"))
			Expect(resp.Header.Get("Content-Disposition")).To(HavePrefix(`attachment; filename="invoice_items_`))
			defer resp.Body.Close()
			body, err := io.ReadAll(resp.Body)
			Expect(err).NotTo(HaveOccurred())
			Expect(string(body)).To(ContainSubstring("Widget,2,540,1080,INV-9,2024-01-15,ACME,1080.00,USD"))
		})

		It("should default to JSON", func() {
			resp := send(http.MethodGet, "/api/invoices/test-id-123/export", nil)
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(resp.Header.Get("Content-Disposition")).To(ContainSubstring(`filename="invoice_data_`))
			Expect(decode(resp)["invoice_number"]).To(Equal("INV-9"))
		})

		It("should reject unknown formats", func() {
			resp := send(http.MethodGet, "/api/invoices/test-id-123/export?format=xml", nil)
			resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
		})

		It("should return status Not Found for unknown IDs", func() {
			resp := send(http.MethodGet, "/api/invoices/missing/export", nil)
			resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusNotFound))
		})

		It("should refuse raw text attempts", func() {
			db.attempts["raw"] = &Attempt{ID: "raw", Kind: "raw"}
			resp := send(http.MethodGet, "/api/invoices/raw/export", nil)
			Expect(resp.StatusCode).To(Equal(http.StatusUnprocessableEntity))
			Expect(decode(resp)["error"]).To(Equal(ErrNotStructured.Error()))
		})
	})

	Describe("handleGetCurrent", func() {
		When("nothing has been processed", func() {
			It("should return status Not Found", func() {
				resp := send(http.MethodGet, "/api/current", nil)
				Expect(resp.StatusCode).To(Equal(http.StatusNotFound))
				Expect(decode(resp)["error"]).To(Equal("No invoice has been processed yet"))
			})
		})

		When("an invoice has been processed", func() {
			BeforeEach(func() {
				_, err := service.ParseResponse(structuredReply)
				Expect(err).NotTo(HaveOccurred())
			})

			It("should return the current attempt", func() {
				resp := send(http.MethodGet, "/api/current", nil)
				Expect(resp.StatusCode).To(Equal(http.StatusOK))
				Expect(decode(resp)["id"]).To(Equal("test-id-123"))
			})
		})
	})

	Describe("handleClearCurrent", func() {
		It("should forget the current attempt and keep history", func() {
			_, err := service.ParseResponse(structuredReply)
			Expect(err).NotTo(HaveOccurred())

			resp := send(http.MethodDelete, "/api/current", nil)
			resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusNoContent))

			_, err = service.Current()
			Expect(err).To(MatchError(ErrNoCurrentRecord))
			Expect(db.attempts).To(HaveKey("test-id-123"))
		})
	})

	Describe("authentication", func() {
		BeforeEach(func() {
			auth = BasicAuth{Username: "admin", Password: "secret"}
			setupServer()
		})

		It("should reject requests without credentials", func() {
			resp := send(http.MethodGet, "/api/invoices", nil)
			Expect(resp.StatusCode).To(Equal(http.StatusUnauthorized))
			Expect(resp.Header.Get("WWW-Authenticate")).To(Equal(`Basic realm="Invoice Vision"`))
			Expect(decode(resp)["error"]).To(Equal("Unauthorized"))
		})

		It("should reject wrong credentials", func() {
			req, err := http.NewRequest(http.MethodGet, ghttpServer.URL()+"/api/invoices", nil)
			Expect(err).NotTo(HaveOccurred())
			req.SetBasicAuth("admin", "wrong")
			resp, err := http.DefaultClient.Do(req)
			Expect(err).NotTo(HaveOccurred())
			resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusUnauthorized))
		})

		It("should accept valid credentials", func() {
			req, err := http.NewRequest(http.MethodGet, ghttpServer.URL()+"/api/invoices", nil)
			Expect(err).NotTo(HaveOccurred())
			req.SetBasicAuth("admin", "secret")
			resp, err := http.DefaultClient.Do(req)
			Expect(err).NotTo(HaveOccurred())
			resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
		})

		It("should answer preflight requests without credentials", func() {
			resp := send(http.MethodOptions, "/api/invoices", nil)
			resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusNoContent))
			Expect(resp.Header.Get("Access-Control-Allow-Origin")).To(Equal("*"))
			Expect(resp.Header.Get("Access-Control-Allow-Methods")).To(ContainSubstring("DELETE"))
		})
	})
})
