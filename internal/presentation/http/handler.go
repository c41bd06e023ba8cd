// Package httppresentation exposes the circulation, catalog and payment use cases as JSON over HTTP.
package httppresentation

import (
	"context"
	"io"
	"net/http"
	"strconv"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/Zhima-Mochi/library-circulation/internal/application/catalog"
	"github.com/Zhima-Mochi/library-circulation/internal/application/circulation"
	"github.com/Zhima-Mochi/library-circulation/internal/application/ledger"
	"github.com/Zhima-Mochi/library-circulation/internal/application/payment"
	"github.com/Zhima-Mochi/library-circulation/internal/domain/fee"
	"github.com/Zhima-Mochi/library-circulation/internal/domain/library"
	"github.com/Zhima-Mochi/library-circulation/internal/domain/money"
	"github.com/Zhima-Mochi/library-circulation/internal/observability"
	"github.com/Zhima-Mochi/library-circulation/internal/observability/logctx"
)

const (
	componentHTTPHandler = "http_server"
	headerRequestID      = "X-Request-ID"
	tracerName           = "library-circulation.http"
	maxBodyBytes         = 1 << 20
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type Circulation interface {
	BorrowBook(ctx context.Context, patronID string, bookID int64) circulation.Outcome
	ReturnBook(ctx context.Context, patronID string, bookID int64) circulation.Outcome
	LateFee(ctx context.Context, patronID string, bookID int64) fee.Result
	PatronStatus(ctx context.Context, patronID string) circulation.StatusReport
}

type Catalog interface {
	AddBook(ctx context.Context, title, author, isbn string, totalCopies int) catalog.Outcome
	ListBooks(ctx context.Context) ([]library.Book, error)
	Search(ctx context.Context, term, kind string) []library.Book
}

type Payments interface {
	PayLateFee(ctx context.Context, patronID string, bookID int64) payment.PaymentOutcome
	RefundLateFee(ctx context.Context, transactionID string, amount money.Amount) payment.RefundOutcome
}

type LedgerReader interface {
	Totals() map[ledger.Kind]money.Amount
}

type Handler struct {
	circulation Circulation
	catalog     Catalog
	payments    Payments
	ledger      LedgerReader

	log            observability.Logger
	tracerProvider trace.TracerProvider
	reqCounter     observability.Counter   // http_requests_total{method,route,status}
	durHistogram   observability.Histogram // http_request_duration_seconds{method,route,status}
}

type Option func(*Handler)

// WithTracerProvider replaces the global provider for server spans.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(h *Handler) {
		if tp != nil {
			h.tracerProvider = tp
		}
	}
}

// WithLedger enables GET /ledger.
func WithLedger(l LedgerReader) Option {
	return func(h *Handler) { h.ledger = l }
}

func NewHandler(circ Circulation, cat Catalog, pay Payments, tel observability.Observability, opts ...Option) *Handler {
	if tel == nil {
		tel = observability.Nop()
	}
	h := &Handler{
		circulation:    circ,
		catalog:        cat,
		payments:       pay,
		log:            tel.Logger().With(observability.F("component", componentHTTPHandler)),
		tracerProvider: otel.GetTracerProvider(),
		reqCounter:     tel.Metrics().Counter(observability.MHTTPRequests),
		durHistogram:   tel.Metrics().Histogram(observability.MHTTPRequestDuration),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *Handler) Router() http.Handler {
	mux := http.NewServeMux()

	// Trace → Request Logger → Metrics → Access Log → Handler
	h.muxHandle(mux, http.MethodGet, "/health", h.handleHealth)
	h.muxHandle(mux, http.MethodGet, "/books", h.handleListBooks)
	h.muxHandle(mux, http.MethodPost, "/books", h.handleAddBook)
	h.muxHandle(mux, http.MethodGet, "/books/search", h.handleSearch)
	h.muxHandle(mux, http.MethodPost, "/borrow", h.handleBorrow)
	h.muxHandle(mux, http.MethodPost, "/return", h.handleReturn)
	h.muxHandle(mux, http.MethodGet, "/fees", h.handleLateFee)
	h.muxHandle(mux, http.MethodPost, "/fees/pay", h.handlePay)
	h.muxHandle(mux, http.MethodPost, "/fees/refund", h.handleRefund)
	h.muxHandle(mux, http.MethodGet, "/patrons/status", h.handlePatronStatus)
	if h.ledger != nil {
		h.muxHandle(mux, http.MethodGet, "/ledger", h.handleLedger)
	}

	return mux
}

func (h *Handler) muxHandle(mux *http.ServeMux, method, path string, handler http.HandlerFunc) {
	route := method + " " + path
	wrapped := h.withTrace(
		RequestLogger(h.log, func(r *http.Request) string { return r.Header.Get(headerRequestID) })(
			h.withHTTPMetrics(
				h.withAccessLog(handler),
			),
		),
	)
	mux.HandleFunc(route, func(w http.ResponseWriter, r *http.Request) {
		wrapped.ServeHTTP(w, r.WithContext(contextWithRoute(r.Context(), route)))
	})
}

// envelope is the body every route answers with.
type envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type loanRequest struct {
	PatronID string `json:"patron_id"`
	BookID   int64  `json:"book_id"`
}

type addBookRequest struct {
	Title       string `json:"title"`
	Author      string `json:"author"`
	ISBN        string `json:"isbn"`
	TotalCopies int    `json:"total_copies"`
}

type refundRequest struct {
	TransactionID string       `json:"transaction_id"`
	Amount        money.Amount `json:"amount"`
}

type booksResponse struct {
	envelope
	Books []library.Book `json:"books"`
}

type feeResponse struct {
	envelope
	fee.Result
}

type statusResponse struct {
	envelope
	circulation.StatusReport
}

type ledgerResponse struct {
	envelope
	Totals map[ledger.Kind]money.Amount `json:"totals"`
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, envelope{Success: true, Message: "ok"})
}

func (h *Handler) handleListBooks(w http.ResponseWriter, r *http.Request) {
	books, err := h.catalog.ListBooks(r.Context())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, envelope{Message: "Unable to load the catalog."})
		return
	}
	writeJSON(w, http.StatusOK, booksResponse{envelope: envelope{Success: true}, Books: books})
}

func (h *Handler) handleAddBook(w http.ResponseWriter, r *http.Request) {
	var req addBookRequest
	if !h.decode(w, r, &req) {
		return
	}
	out := h.catalog.AddBook(r.Context(), req.Title, req.Author, req.ISBN, req.TotalCopies)
	writeJSON(w, catalogStatus(out), out)
}

func (h *Handler) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	kind := q.Get("type")
	if kind == "" {
		kind = string(library.SearchTitle)
	}
	books := h.catalog.Search(r.Context(), q.Get("q"), kind)
	writeJSON(w, http.StatusOK, booksResponse{envelope: envelope{Success: true}, Books: books})
}

func (h *Handler) handleBorrow(w http.ResponseWriter, r *http.Request) {
	var req loanRequest
	if !h.decode(w, r, &req) {
		return
	}
	out := h.circulation.BorrowBook(r.Context(), req.PatronID, req.BookID)
	writeJSON(w, circulationStatus(out), out)
}

func (h *Handler) handleReturn(w http.ResponseWriter, r *http.Request) {
	var req loanRequest
	if !h.decode(w, r, &req) {
		return
	}
	out := h.circulation.ReturnBook(r.Context(), req.PatronID, req.BookID)
	writeJSON(w, circulationStatus(out), out)
}

func (h *Handler) handleLateFee(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	bookID, err := strconv.ParseInt(q.Get("book_id"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, envelope{Message: "book_id must be an integer."})
		return
	}
	res := h.circulation.LateFee(r.Context(), q.Get("patron_id"), bookID)
	status := feeStatus(res.Status)
	writeJSON(w, status, feeResponse{
		envelope: envelope{Success: status == http.StatusOK, Message: string(res.Status)},
		Result:   res,
	})
}

func (h *Handler) handlePay(w http.ResponseWriter, r *http.Request) {
	var req loanRequest
	if !h.decode(w, r, &req) {
		return
	}
	out := h.payments.PayLateFee(r.Context(), req.PatronID, req.BookID)
	writeJSON(w, paymentStatus(out.Reason), out)
}

func (h *Handler) handleRefund(w http.ResponseWriter, r *http.Request) {
	var req refundRequest
	if !h.decode(w, r, &req) {
		return
	}
	out := h.payments.RefundLateFee(r.Context(), req.TransactionID, req.Amount)
	writeJSON(w, paymentStatus(out.Reason), out)
}

func (h *Handler) handlePatronStatus(w http.ResponseWriter, r *http.Request) {
	report := h.circulation.PatronStatus(r.Context(), r.URL.Query().Get("patron_id"))
	status := http.StatusOK
	switch report.Status {
	case circulation.ReportOK:
	case circulation.ReportInvalidPatron:
		status = http.StatusBadRequest
	default:
		status = http.StatusInternalServerError
	}
	writeJSON(w, status, statusResponse{
		envelope:     envelope{Success: status == http.StatusOK, Message: report.Status},
		StatusReport: report,
	})
}

func (h *Handler) handleLedger(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, ledgerResponse{envelope: envelope{Success: true}, Totals: h.ledger.Totals()})
}

func circulationStatus(out circulation.Outcome) int {
	switch out.Reason {
	case circulation.ReasonOK:
		return http.StatusOK
	case circulation.ReasonInvalidPatron:
		return http.StatusBadRequest
	case circulation.ReasonBookNotFound:
		return http.StatusNotFound
	case circulation.ReasonUnavailable, circulation.ReasonLimitReached, circulation.ReasonNotBorrowed:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func catalogStatus(out catalog.Outcome) int {
	switch {
	case out.OK:
		return http.StatusCreated
	case out.Invalid:
		return http.StatusBadRequest
	case out.Message == catalog.MsgDuplicateISBN:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func feeStatus(s fee.Status) int {
	switch s {
	case fee.StatusOnTime, fee.StatusOverdue:
		return http.StatusOK
	case fee.StatusInvalidPatron:
		return http.StatusBadRequest
	case fee.StatusBookNotFound, fee.StatusNoRecord:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func paymentStatus(reason payment.Reason) int {
	switch reason {
	case payment.ReasonOK:
		return http.StatusOK
	case payment.ReasonInvalid:
		return http.StatusBadRequest
	case payment.ReasonBookNotFound:
		return http.StatusNotFound
	case payment.ReasonNoFee:
		return http.StatusConflict
	case payment.ReasonDeclined:
		return http.StatusPaymentRequired
	default:
		return http.StatusBadGateway
	}
}

// decode reads a JSON body, answering 400 itself when the body is malformed.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	decoder := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		logctx.FromOr(r.Context(), h.log).Debug("http_bad_request", observability.F("error", err.Error()))
		writeJSON(w, http.StatusBadRequest, envelope{Message: "Invalid request body: " + strings.TrimSpace(err.Error())})
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
