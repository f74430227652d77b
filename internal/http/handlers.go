package http

import (
	"errors"
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/go-chi/chi/v5"

	"quickaccounting/internal/core"
	"quickaccounting/internal/log"
)

const (
	msgTransactionAdded   = "Transaction added successfully"
	msgTransactionDeleted = "Transaction deleted successfully"
	msgStorageFailure     = "storage error, please retry later"
)

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := log.FromContext(ctx).WithComponent(log.ComponentHTTP)

	in, err := ParseTransactionRequest(w, r)
	if err != nil {
		logger.WarnContext(ctx, "Rejected transaction body", log.FieldError, err)
		BadRequestError(err.Error()).Write(w)
		return
	}

	tx, err := s.ledger.AddTransaction(ctx, in)
	if err != nil {
		// Storage failures on create are reported as 400 like validation errors.
		s.writeError(w, r, log.OpCreate, err, http.StatusBadRequest)
		return
	}

	s.events.LogTransactionCreated(ctx, tx.ID, string(tx.Type), tx.Category, tx.Amount, tx.Date)
	MessageResponse(http.StatusCreated, msgTransactionAdded, tx.ID).Write(w)
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")

	if err := s.ledger.DeleteTransaction(ctx, id); err != nil {
		s.writeError(w, r, log.OpDelete, err, http.StatusInternalServerError)
		return
	}

	s.events.LogTransactionDeleted(ctx, id)
	MessageResponse(http.StatusOK, msgTransactionDeleted, "").Write(w)
}

func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request) {
	expense, income := s.ledger.Categories()
	NewJSONResponse().Body(categoriesDTO{
		ExpenseCategories: expense,
		IncomeCategories:  income,
	}).Write(w)
}

func (s *Server) handleStatistics(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	periodType := chi.URLParam(r, "period_type")
	period := chi.URLParam(r, "period")

	stats, err := s.ledger.Statistics(ctx, periodType, period)
	if err != nil {
		s.writeError(w, r, log.OpStatistics, err, http.StatusInternalServerError)
		return
	}

	s.events.LogStatistics(ctx, periodType, period, len(stats.Transactions))
	NewJSONResponse().Body(newStatisticsDTO(stats)).Write(w)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().Body(healthDTO{Status: "ok"}).Write(w)
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.ready != nil {
		if err := s.ready.Ping(r.Context()); err != nil {
			log.FromContext(r.Context()).WarnContext(r.Context(), "Readiness check failed", log.FieldError, err)
			ServiceUnavailableError("storage unavailable").Write(w)
			return
		}
	}
	NewJSONResponse().Body(healthDTO{Status: "ready"}).Write(w)
}

// recoverPanic turns a handler panic into a JSON 500 and logs the stack.
// http.ErrAbortHandler is re-raised so net/http can abort the response.
func (s *Server) recoverPanic(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rvr := recover()
			if rvr == nil {
				return
			}
			if rvr == http.ErrAbortHandler {
				panic(rvr)
			}
			s.events.LogError(r.Context(), "Handler panicked", fmt.Errorf("panic: %v", rvr),
				log.ErrorTypeInternal, log.ComponentHTTP, r.Method+" "+r.URL.Path,
				log.LogFields{"stack": string(debug.Stack())})
			InternalServerError("internal server error").Write(w)
		}()
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	NotFoundError("Not Found").Write(w)
}

func (s *Server) handleMethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	MethodNotAllowedError("Method Not Allowed").Write(w)
}

// writeError maps a ledger error to its status code. Validation and lookup
// failures carry their own message; storage failures use storageStatus and a
// generic message, with the cause logged.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, op string, err error, storageStatus int) {
	ctx := r.Context()
	logger := log.FromContext(ctx).WithComponent(log.ComponentHTTP)

	switch {
	case errors.Is(err, core.ErrInvalidCategory),
		errors.Is(err, core.ErrInvalidDateFormat),
		errors.Is(err, core.ErrInvalidPeriodType):
		logger.WarnContext(ctx, "Validation failed", log.NewFields().
			WithOperation(op).
			WithError(err, log.ErrorTypeValidation).
			ToSlice()...)
		BadRequestError(err.Error()).Write(w)
	case errors.Is(err, core.ErrNotFound):
		logger.InfoContext(ctx, "Transaction not found", log.NewFields().
			WithOperation(op).
			WithError(err, log.ErrorTypeNotFound).
			ToSlice()...)
		NotFoundError(err.Error()).Write(w)
	default:
		errorType := log.ErrorTypeInternal
		if core.IsStorageError(err) {
			errorType = log.ErrorTypeDatabase
		}
		s.events.LogError(ctx, "Ledger operation failed", err, errorType, log.ComponentHTTP, op, nil)
		ErrorResponse(storageStatus, msgStorageFailure).Write(w)
	}
}
