package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/mindrush/portal/pkg/auth"
	"github.com/mindrush/portal/pkg/httputil"
	"github.com/mindrush/portal/pkg/observability"
	"github.com/mindrush/portal/pkg/quotes"
)

// QuoteHandlers handles landed-cost quote input requests
type QuoteHandlers struct {
	store  *quotes.Store
	logger *observability.Logger
}

// NewQuoteHandlers creates the quote handler set
func NewQuoteHandlers(store *quotes.Store, logger *observability.Logger) *QuoteHandlers {
	return &QuoteHandlers{store: store, logger: logger}
}

// RegisterRoutes registers quote routes on a gated subrouter
func (h *QuoteHandlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/quotes", h.createQuote).Methods("POST")
	router.HandleFunc("/quotes", h.listQuotes).Methods("GET")
}

// createQuote handles POST /api/quotes
func (h *QuoteHandlers) createQuote(w http.ResponseWriter, r *http.Request) {
	identity := auth.IdentityFromRequest(r)
	if identity == nil {
		httputil.WriteUnauthorized(w, "Not authenticated")
		return
	}

	var req QuoteInputRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	if details := validateQuote(&req); len(details) > 0 {
		httputil.WriteValidationError(w, "Invalid quote input", details)
		return
	}

	input, err := h.store.Create(r.Context(), &quotes.Input{
		UserID:             identity.Claims.Subject,
		ProductName:        req.ProductName,
		HSCode:             req.HSCode,
		DeclaredValue:      req.DeclaredValue,
		Quantity:           req.Quantity,
		OriginCountry:      req.OriginCountry,
		DestinationCountry: req.DestinationCountry,
		Incoterm:           req.Incoterm,
	})
	if err != nil {
		h.logger.WithError(err).Error("failed to create quote input")
		httputil.WriteInternalError(w, "")
		return
	}

	httputil.WriteCreated(w, input)
}

// listQuotes handles GET /api/quotes
func (h *QuoteHandlers) listQuotes(w http.ResponseWriter, r *http.Request) {
	identity := auth.IdentityFromRequest(r)
	if identity == nil {
		httputil.WriteUnauthorized(w, "Not authenticated")
		return
	}

	inputs, err := h.store.ListByUser(r.Context(), identity.Claims.Subject)
	if err != nil {
		h.logger.WithError(err).Error("failed to list quote inputs")
		httputil.WriteInternalError(w, "")
		return
	}

	httputil.WriteSuccess(w, inputs)
}

func validateQuote(req *QuoteInputRequest) map[string]string {
	details := make(map[string]string)
	if req.ProductName == "" {
		details["productName"] = "Product name is required"
	}
	if req.DeclaredValue <= 0 {
		details["declaredValue"] = "Declared value must be positive"
	}
	if req.Quantity <= 0 {
		details["quantity"] = "Quantity must be positive"
	}
	if req.OriginCountry == "" {
		details["originCountry"] = "Origin country is required"
	}
	if req.DestinationCountry == "" {
		details["destinationCountry"] = "Destination country is required"
	}
	return details
}
