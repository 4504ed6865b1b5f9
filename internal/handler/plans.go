package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/segyhp/installment-tracker/internal/analytics"
	"github.com/segyhp/installment-tracker/internal/domain"
	"github.com/segyhp/installment-tracker/internal/logger"
	"github.com/segyhp/installment-tracker/internal/service"
	customError "github.com/segyhp/installment-tracker/pkg/errors"
	"github.com/segyhp/installment-tracker/pkg/response"
	"github.com/segyhp/installment-tracker/pkg/utils"
)

type PlanHandler struct {
	service   *service.PlanService
	validator *validator.Validate
	log       *logrus.Entry
}

func NewPlanHandler(service *service.PlanService, log *logrus.Logger) *PlanHandler {
	return &PlanHandler{
		service:   service,
		validator: validator.New(),
		log:       logger.Component(log, "plan_handler"),
	}
}

// CreatePlan handles POST /plans
func (h *PlanHandler) CreatePlan(w http.ResponseWriter, r *http.Request) {
	var req CreatePlanRequest
	if err := h.decode(r, &req); err != nil {
		response.BadRequest(w, "Invalid request body", err)
		return
	}

	in, err := parseCreatePlan(req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	plan, err := h.service.CreatePlan(r.Context(), in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	response.Created(w, toPlanResponse(plan, h.service.Today()))
}

// ListPlans handles GET /plans
func (h *PlanHandler) ListPlans(w http.ResponseWriter, r *http.Request) {
	filter, err := parsePlanFilter(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	plans, err := h.service.ListPlans(r.Context(), filter)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	today := h.service.Today()
	out := make([]PlanResponse, 0, len(plans))
	for _, p := range plans {
		out = append(out, toPlanResponse(p, today))
	}
	response.Success(w, out)
}

// GetPlan handles GET /plans/{planId}
func (h *PlanHandler) GetPlan(w http.ResponseWriter, r *http.Request) {
	plan, err := h.service.GetPlan(r.Context(), mux.Vars(r)["planId"])
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	response.Success(w, toPlanResponse(plan, h.service.Today()))
}

// EditPlan handles PATCH /plans/{planId}
func (h *PlanHandler) EditPlan(w http.ResponseWriter, r *http.Request) {
	var req EditPlanRequest
	if err := h.decode(r, &req); err != nil {
		response.BadRequest(w, "Invalid request body", err)
		return
	}

	edit, err := parseEditPlan(req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	plan, err := h.service.EditPlan(r.Context(), mux.Vars(r)["planId"], edit)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	response.Success(w, toPlanResponse(plan, h.service.Today()))
}

// DeletePlan handles DELETE /plans/{planId}
func (h *PlanHandler) DeletePlan(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeletePlan(r.Context(), mux.Vars(r)["planId"]); err != nil {
		h.writeError(w, r, err)
		return
	}
	response.NoContent(w)
}

// MarkPaid handles POST /plans/{planId}/installments/{index}/pay
// An empty body pays the installment today.
func (h *PlanHandler) MarkPaid(w http.ResponseWriter, r *http.Request) {
	index, err := installmentIndex(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	var req MarkPaidRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		response.BadRequest(w, "Invalid request body", err)
		return
	}

	var paidOn time.Time
	if req.PaidDate != "" {
		if paidOn, err = parseDate("paid_date", req.PaidDate); err != nil {
			h.writeError(w, r, err)
			return
		}
	}

	plan, err := h.service.MarkPaid(r.Context(), mux.Vars(r)["planId"], index, paidOn)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	response.Success(w, toPlanResponse(plan, h.service.Today()))
}

// MarkUnpaid handles POST /plans/{planId}/installments/{index}/unpay
func (h *PlanHandler) MarkUnpaid(w http.ResponseWriter, r *http.Request) {
	index, err := installmentIndex(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	plan, err := h.service.MarkUnpaid(r.Context(), mux.Vars(r)["planId"], index)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	response.Success(w, toPlanResponse(plan, h.service.Today()))
}

// EditPaidDate handles PUT /plans/{planId}/installments/{index}/paid-date
func (h *PlanHandler) EditPaidDate(w http.ResponseWriter, r *http.Request) {
	index, err := installmentIndex(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	var req EditPaidDateRequest
	if err := h.decode(r, &req); err != nil {
		response.BadRequest(w, "Invalid request body", err)
		return
	}
	paidOn, err := parseDate("paid_date", req.PaidDate)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	plan, err := h.service.EditPaidDate(r.Context(), mux.Vars(r)["planId"], index, paidOn)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	response.Success(w, toPlanResponse(plan, h.service.Today()))
}

// ExportCSV handles GET /plans/{planId}/export.csv
func (h *PlanHandler) ExportCSV(w http.ResponseWriter, r *http.Request) {
	planID := mux.Vars(r)["planId"]

	// Look the plan up first so a missing plan still gets a JSON error.
	if _, err := h.service.GetPlan(r.Context(), planID); err != nil {
		h.writeError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", planID+".csv"))
	if err := h.service.ExportCSV(r.Context(), planID, w); err != nil {
		h.log.WithError(err).WithField(logger.FieldPlanID, planID).Error("csv export failed")
	}
}

// Dashboard handles GET /dashboard?date=YYYY-MM-DD
func (h *PlanHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	today, err := h.referenceDate(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	d, err := h.service.Dashboard(r.Context(), today)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	response.Success(w, toDashboardResponse(d))
}

// Payments handles GET /payments?date=YYYY-MM-DD&within=N
// Upcoming payments are limited to the next N days when within is given.
func (h *PlanHandler) Payments(w http.ResponseWriter, r *http.Request) {
	today, err := h.referenceDate(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	within := -1
	if raw := r.URL.Query().Get("within"); raw != "" {
		if within, err = strconv.Atoi(raw); err != nil || within < 0 {
			h.writeError(w, r, customError.NewValidationError("within must be a non-negative number of days, got %q", raw))
			return
		}
	}

	d, err := h.service.Dashboard(r.Context(), today)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	upcoming := d.Upcoming
	if within >= 0 {
		upcoming = []analytics.PaymentInfo{}
		for _, p := range d.Upcoming {
			if p.DaysUntilDue <= within {
				upcoming = append(upcoming, p)
			}
		}
	}

	response.Success(w, PaymentsResponse{
		Date:          utils.FormatDate(d.Today),
		Overdue:       toPaymentResponses(d.Overdue),
		Upcoming:      toPaymentResponses(upcoming),
		GroupedByDate: toPaymentGroups(upcoming),
	})
}

// Timeline handles GET /timeline?date=YYYY-MM-DD&windows=7,30
func (h *PlanHandler) Timeline(w http.ResponseWriter, r *http.Request) {
	today, err := h.referenceDate(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	var windows []int
	if raw := r.URL.Query().Get("windows"); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			n, err := strconv.Atoi(strings.TrimSpace(part))
			if err != nil {
				h.writeError(w, r, customError.NewValidationError("invalid window %q", part))
				return
			}
			windows = append(windows, n)
		}
	}

	totals, err := h.service.Timeline(r.Context(), today, windows...)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	out := make(map[int]string, len(totals))
	for window, total := range totals {
		out[window] = money(total)
	}
	response.Success(w, out)
}

func (h *PlanHandler) decode(r *http.Request, dst interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return err
	}
	return h.validator.Struct(dst)
}

func (h *PlanHandler) referenceDate(r *http.Request) (time.Time, error) {
	raw := r.URL.Query().Get("date")
	if raw == "" {
		return h.service.Today(), nil
	}
	return parseDate("date", raw)
}

// writeError maps error kinds onto HTTP status codes.
func (h *PlanHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	code, message := "", err.Error()
	var be *customError.BusinessError
	if errors.As(err, &be) {
		code, message = be.Code, be.Message
	}

	switch {
	case customError.IsValidation(err):
		response.ErrorWithCode(w, http.StatusBadRequest, code, message, nil)
	case customError.IsNotFound(err):
		response.ErrorWithCode(w, http.StatusNotFound, code, message, nil)
	case customError.IsInvalidState(err):
		response.ErrorWithCode(w, http.StatusConflict, code, message, nil)
	default:
		h.log.WithError(err).WithField(logger.FieldRequestID, response.RequestID(r.Context())).Error("request failed")
		response.ErrorWithCode(w, http.StatusInternalServerError, code, "Internal server error", nil)
	}
}

func installmentIndex(r *http.Request) (int, error) {
	raw := mux.Vars(r)["index"]
	index, err := strconv.Atoi(raw)
	if err != nil {
		return 0, customError.NewValidationError("installment index must be a number, got %q", raw)
	}
	return index, nil
}

func parseDate(field, raw string) (time.Time, error) {
	d, err := utils.ParseDate(raw)
	if err != nil {
		return time.Time{}, customError.NewValidationError("%s must be a date in YYYY-MM-DD format, got %q", field, raw)
	}
	return d, nil
}

func parseAmount(field, raw string) (decimal.Decimal, error) {
	d, err := utils.DecimalFromString(raw)
	if err != nil {
		return decimal.Zero, customError.NewValidationError("%s must be a decimal amount, got %q", field, raw)
	}
	return d, nil
}

func parseDates(field string, raw []string) ([]time.Time, error) {
	if raw == nil {
		return nil, nil
	}
	out := make([]time.Time, len(raw))
	for i, s := range raw {
		d, err := parseDate(fmt.Sprintf("%s[%d]", field, i), s)
		if err != nil {
			return nil, err
		}
		out[i] = d
	}
	return out, nil
}

func parseCreatePlan(req CreatePlanRequest) (service.CreatePlanInput, error) {
	total, err := parseAmount("total_amount", req.TotalAmount)
	if err != nil {
		return service.CreatePlanInput{}, err
	}
	purchase, err := parseDate("purchase_date", req.PurchaseDate)
	if err != nil {
		return service.CreatePlanInput{}, err
	}
	freq, err := domain.ParseFrequency(req.Frequency)
	if err != nil {
		return service.CreatePlanInput{}, err
	}
	dueDates, err := parseDates("due_dates", req.DueDates)
	if err != nil {
		return service.CreatePlanInput{}, err
	}

	return service.CreatePlanInput{
		MerchantName:     req.MerchantName,
		TotalAmount:      total,
		PurchaseDate:     purchase,
		InstallmentCount: req.InstallmentCount,
		Frequency:        freq,
		CustomDueDates:   dueDates,
	}, nil
}

func parseEditPlan(req EditPlanRequest) (domain.PlanEdit, error) {
	edit := domain.PlanEdit{MerchantName: req.MerchantName}

	if req.TotalAmount != nil {
		total, err := parseAmount("total_amount", *req.TotalAmount)
		if err != nil {
			return domain.PlanEdit{}, err
		}
		edit.TotalAmount = &total
	}

	if req.Amounts != nil {
		edit.Amounts = make([]decimal.Decimal, len(req.Amounts))
		for i, raw := range req.Amounts {
			amount, err := parseAmount(fmt.Sprintf("amounts[%d]", i), raw)
			if err != nil {
				return domain.PlanEdit{}, err
			}
			edit.Amounts[i] = amount
		}
	}

	dueDates, err := parseDates("due_dates", req.DueDates)
	if err != nil {
		return domain.PlanEdit{}, err
	}
	edit.DueDates = dueDates
	return edit, nil
}

func parsePlanFilter(r *http.Request) (service.PlanFilter, error) {
	q := r.URL.Query()
	f := service.PlanFilter{Merchant: q.Get("merchant")}

	bools := []struct {
		key string
		dst **bool
	}{
		{"fully_paid", &f.Status.FullyPaid},
		{"has_overdue", &f.Status.HasOverdue},
	}
	for _, b := range bools {
		if raw := q.Get(b.key); raw != "" {
			v, err := strconv.ParseBool(raw)
			if err != nil {
				return service.PlanFilter{}, customError.NewValidationError("%s must be true or false, got %q", b.key, raw)
			}
			*b.dst = &v
		}
	}

	amounts := []struct {
		key string
		dst **decimal.Decimal
	}{
		{"min_total", &f.Amount.MinTotal},
		{"max_total", &f.Amount.MaxTotal},
		{"min_remaining", &f.Amount.MinRemaining},
		{"max_remaining", &f.Amount.MaxRemaining},
	}
	for _, a := range amounts {
		if raw := q.Get(a.key); raw != "" {
			v, err := parseAmount(a.key, raw)
			if err != nil {
				return service.PlanFilter{}, err
			}
			*a.dst = &v
		}
	}

	dates := []struct {
		key string
		dst **time.Time
	}{
		{"purchase_after", &f.Date.PurchaseAfter},
		{"purchase_before", &f.Date.PurchaseBefore},
		{"next_payment_after", &f.Date.NextPaymentAfter},
		{"next_payment_before", &f.Date.NextPaymentBefore},
	}
	for _, d := range dates {
		if raw := q.Get(d.key); raw != "" {
			v, err := parseDate(d.key, raw)
			if err != nil {
				return service.PlanFilter{}, err
			}
			*d.dst = &v
		}
	}

	return f, nil
}
