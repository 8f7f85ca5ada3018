package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"arbitrage-detector/internal/application"
	"arbitrage-detector/internal/domain"
	"arbitrage-detector/internal/infrastructure/logx"

	"github.com/oapi-codegen/runtime"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Detections is the slice of application.DetectionService the API drives.
type Detections interface {
	Detect(ctx context.Context, req application.DetectionRequest) (domain.DetectionResult, error)
	RunDetection(ctx context.Context, req application.DetectionRequest, idem *string) (domain.DetectionResult, error)
	GetLastDetection(ctx context.Context) (domain.DetectionResult, error)
}

type Server struct {
	svc     Detections
	labels  map[domain.Exchange]string
	ping    func(ctx context.Context) error
	metrics http.Handler
}

func NewServer(svc Detections) *Server { return &Server{svc: svc} }

// SetReadyCheck installs the /readyz probe.
func (s *Server) SetReadyCheck(fn func(ctx context.Context) error) { s.ping = fn }

// SetExchangeLabels renders exchanges under venue names such as NSE and BSE.
func (s *Server) SetExchangeLabels(labels map[domain.Exchange]string) { s.labels = labels }

// SetMetricsHandler mounts a Prometheus handler on /metrics.
func (s *Server) SetMetricsHandler(h http.Handler) { s.metrics = h }

// GetOpportunities runs a pass without storing it.
func (s *Server) GetOpportunities(w http.ResponseWriter, r *http.Request) {
	var (
		threshold   *string
		instruments *[]string
	)
	q := r.URL.Query()
	if err := runtime.BindQueryParameter("form", false, false, "threshold", q, &threshold); err != nil {
		writeError(w, http.StatusBadRequest, "invalid threshold parameter")
		return
	}
	if err := runtime.BindQueryParameter("form", false, false, "instruments", q, &instruments); err != nil {
		writeError(w, http.StatusBadRequest, "invalid instruments parameter")
		return
	}

	req := application.DetectionRequest{}
	if threshold != nil {
		th, err := decimal.NewFromString(strings.TrimSpace(*threshold))
		if err != nil {
			writeError(w, http.StatusBadRequest, "threshold must be a decimal number")
			return
		}
		req.Threshold = &th
	}
	if instruments != nil {
		parsed, err := domain.ParseInstruments(*instruments)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		req.Instruments = parsed
	}

	res, err := s.svc.Detect(r.Context(), req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.toResponse(res))
}

type detectionRequestBody struct {
	Instruments *[]string        `json:"instruments"`
	Threshold   *decimal.Decimal `json:"threshold"`
}

// CreateDetection runs a pass and stores it as the latest result.
func (s *Server) CreateDetection(w http.ResponseWriter, r *http.Request) {
	var body detectionRequestBody
	if r.ContentLength != 0 {
		dec := json.NewDecoder(r.Body)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
	}
	req := application.DetectionRequest{Threshold: body.Threshold}
	if body.Instruments != nil {
		parsed, err := domain.ParseInstruments(*body.Instruments)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		req.Instruments = parsed
	}

	var idem *string
	if key := strings.TrimSpace(r.Header.Get("X-Idempotency-Key")); key != "" {
		idem = &key
	}
	res, err := s.svc.RunDetection(r.Context(), req, idem)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, s.toResponse(res))
}

func (s *Server) GetLastDetection(w http.ResponseWriter, r *http.Request) {
	res, err := s.svc.GetLastDetection(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.toResponse(res))
}

type opportunityJSON struct {
	Instrument           string `json:"instrument"`
	BuyExchange          string `json:"buy_exchange"`
	SellExchange         string `json:"sell_exchange"`
	BuyPrice             string `json:"buy_price"`
	SellPrice            string `json:"sell_price"`
	PriceDifference      string `json:"price_difference"`
	DifferencePercentage string `json:"difference_percentage"`
}

type skippedJSON struct {
	Instrument string `json:"instrument"`
	Reason     string `json:"reason"`
}

type summaryJSON struct {
	Count int    `json:"count"`
	Mean  string `json:"mean"`
	Max   string `json:"max"`
}

type detectionJSON struct {
	ID                 string            `json:"id"`
	Threshold          string            `json:"threshold"`
	Attempted          int               `json:"attempted"`
	Skipped            int               `json:"skipped"`
	SkippedInstruments []skippedJSON     `json:"skipped_instruments"`
	Opportunities      []opportunityJSON `json:"opportunities"`
	Summary            summaryJSON       `json:"summary"`
	StartedAt          time.Time         `json:"started_at"`
	CompletedAt        time.Time         `json:"completed_at"`
}

func (s *Server) label(e domain.Exchange) string {
	if l, ok := s.labels[e]; ok && l != "" {
		return l
	}
	return e.String()
}

func (s *Server) toResponse(res domain.DetectionResult) detectionJSON {
	sum := res.Summary()
	out := detectionJSON{
		ID:                 res.ID,
		Threshold:          res.Threshold.String(),
		Attempted:          res.Attempted,
		Skipped:            res.Skipped,
		SkippedInstruments: make([]skippedJSON, 0, len(res.SkippedInstruments)),
		Opportunities:      make([]opportunityJSON, 0, len(res.Opportunities)),
		Summary:            summaryJSON{Count: sum.Count, Mean: sum.Mean.StringFixed(4), Max: sum.Max.StringFixed(4)},
		StartedAt:          res.StartedAt,
		CompletedAt:        res.CompletedAt,
	}
	for _, sk := range res.SkippedInstruments {
		out.SkippedInstruments = append(out.SkippedInstruments, skippedJSON{Instrument: sk.Instrument.String(), Reason: sk.Reason})
	}
	for _, o := range res.Opportunities {
		out.Opportunities = append(out.Opportunities, opportunityJSON{
			Instrument:           o.Instrument.String(),
			BuyExchange:          s.label(o.BuyExchange),
			SellExchange:         s.label(o.SellExchange),
			BuyPrice:             o.BuyPrice.String(),
			SellPrice:            o.SellPrice.String(),
			PriceDifference:      o.PriceDifference.String(),
			DifferencePercentage: o.DifferencePercentage.StringFixed(4),
		})
	}
	return out
}

type errorJSON struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorJSON{Code: status, Message: msg})
}

func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, application.ErrNotFound):
		writeError(w, http.StatusNotFound, "no detection recorded yet")
	case errors.Is(err, application.ErrConflict):
		writeError(w, http.StatusConflict, "duplicate idempotency key")
	case errors.Is(err, context.Canceled):
		writeError(w, http.StatusServiceUnavailable, "request canceled")
	default:
		rid, _ := r.Context().Value(requestIDKey).(string)
		logx.L().Error("http.internal_error", zap.String("request_id", rid), zap.Error(err))
		writeError(w, http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError))
	}
}
