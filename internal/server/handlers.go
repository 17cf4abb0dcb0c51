package server

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/ArionMiles/parcelas/pkg/api"
	"github.com/ArionMiles/parcelas/pkg/calendar"
	"github.com/ArionMiles/parcelas/pkg/report"
)

type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type authResponse struct {
	User      api.User  `json:"user"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// chargeRequest is the body of POST /charges and PUT /installments/:id.
// The due date stays a string so a malformed date maps to InvalidDate
// instead of a generic binding error.
type chargeRequest struct {
	Category     string          `json:"category"`
	Description  string          `json:"description"`
	Amount       decimal.Decimal `json:"amount"`
	DueDate      string          `json:"due_date"`
	Installments int             `json:"installments"`
	Instrument   string          `json:"instrument"`
}

func (r chargeRequest) draft() (api.ChargeDraft, error) {
	due, err := calendar.Parse(r.DueDate)
	if err != nil {
		return api.ChargeDraft{}, fmt.Errorf("%w: %w", api.ErrInvalidDate, err)
	}
	return api.ChargeDraft{
		Category:     r.Category,
		Description:  r.Description,
		Amount:       r.Amount,
		DueDate:      due,
		Installments: r.Installments,
		Instrument:   r.Instrument,
	}, nil
}

type editResponse struct {
	Operations []api.Operation   `json:"operations"`
	Records    []api.Installment `json:"records"`
}

func (s *Server) health(c *gin.Context) {
	if err := s.ledger.Ping(c.Request.Context()); err != nil {
		s.logger.Warn("health check failed", "error", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "healthy", "time": time.Now().Format(time.RFC3339)})
}

func (s *Server) categories(c *gin.Context) {
	categories, err := s.ledger.Categories(c.Request.Context(), session(c))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"categories": categories})
}

func (s *Server) register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	user, err := s.ledger.Register(c.Request.Context(), req.Name, req.Email, req.Password)
	if err != nil {
		s.writeError(c, err)
		return
	}
	s.respondWithToken(c, http.StatusCreated, user)
}

func (s *Server) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	user, err := s.ledger.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		s.writeError(c, err)
		return
	}
	s.respondWithToken(c, http.StatusOK, user)
}

func (s *Server) respondWithToken(c *gin.Context, status int, user api.User) {
	token, expires, err := s.issuer.Issue(user)
	if err != nil {
		s.writeError(c, fmt.Errorf("issuing token: %w", err))
		return
	}
	c.JSON(status, authResponse{User: user, Token: token, ExpiresAt: expires})
}

func (s *Server) listInstallments(c *gin.Context) {
	filter := report.Filter{
		Category:   c.Query("category"),
		Instrument: c.Query("instrument"),
	}
	var err error
	if filter.From, err = queryDate(c, "from"); err != nil {
		s.writeError(c, err)
		return
	}
	if filter.To, err = queryDate(c, "to"); err != nil {
		s.writeError(c, err)
		return
	}

	records, err := s.ledger.List(c.Request.Context(), session(c), filter)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"installments": records,
		"total":        report.FormatBRL(report.Total(records)),
	})
}

func (s *Server) addCharge(c *gin.Context) {
	var req chargeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	draft, err := req.draft()
	if err != nil {
		s.writeError(c, err)
		return
	}

	records, err := s.ledger.AddCharge(c.Request.Context(), session(c), draft)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"installments": records})
}

func (s *Server) editInstallment(c *gin.Context) {
	var req chargeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	draft, err := req.draft()
	if err != nil {
		s.writeError(c, err)
		return
	}

	ctx := c.Request.Context()
	sess := session(c)
	ops, err := s.ledger.EditInstallment(ctx, sess, c.Param("id"), draft)
	if err != nil {
		s.writeError(c, err)
		return
	}

	// Ids of created records are only known after a re-read.
	records, err := s.ledger.List(ctx, sess, report.Filter{})
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, editResponse{Operations: ops, Records: records})
}

func (s *Server) deleteInstallment(c *gin.Context) {
	ctx := c.Request.Context()
	sess := session(c)
	id := c.Param("id")

	switch scope := c.DefaultQuery("scope", "installment"); scope {
	case "installment":
		if err := s.ledger.DeleteInstallment(ctx, sess, id); err != nil {
			s.writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"deleted": 1})
	case "charge":
		n, err := s.ledger.DeleteCharge(ctx, sess, id)
		if err != nil {
			s.writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"deleted": n})
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("unknown scope %q", scope)})
	}
}

func (s *Server) summary(c *gin.Context) {
	from, err := queryDate(c, "from")
	if err != nil {
		s.writeError(c, err)
		return
	}
	to, err := queryDate(c, "to")
	if err != nil {
		s.writeError(c, err)
		return
	}

	sum, err := s.ledger.Summary(c.Request.Context(), session(c), from, to)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, sum)
}

func queryDate(c *gin.Context, name string) (calendar.Date, error) {
	raw := c.Query(name)
	if raw == "" {
		return calendar.Date{}, nil
	}
	d, err := calendar.Parse(raw)
	if err != nil {
		return calendar.Date{}, fmt.Errorf("%w: %s: %w", api.ErrInvalidDate, name, err)
	}
	return d, nil
}

// writeError maps a ledger error to its HTTP status.
func (s *Server) writeError(c *gin.Context, err error) {
	status := statusFor(err)
	body := gin.H{"error": err.Error()}

	var pw *api.PartialWriteError
	if errors.As(err, &pw) {
		body["applied"] = pw.Applied
		body["total"] = pw.Total
	}
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "path", c.FullPath(), "error", err)
		if status == http.StatusInternalServerError {
			body["error"] = "internal error"
		}
	}
	c.JSON(status, body)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, api.ErrInvalidDraft),
		errors.Is(err, api.ErrInvalidDate),
		errors.Is(err, api.ErrInvalidAccount):
		return http.StatusBadRequest
	case errors.Is(err, api.ErrRejected):
		return http.StatusUnprocessableEntity
	case errors.Is(err, api.ErrRecordNotFound):
		return http.StatusNotFound
	case errors.Is(err, api.ErrEmailTaken):
		return http.StatusConflict
	case errors.Is(err, api.ErrInvalidCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, api.ErrStoreUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
