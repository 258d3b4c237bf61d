package api

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Aidin1998/ledgerd/internal/accounts"
	"github.com/Aidin1998/ledgerd/internal/gateway"
	"github.com/Aidin1998/ledgerd/pkg/models"
)

// createAccount opens a new account. The id may be supplied by the client;
// when absent a fresh one is generated.
func (s *Server) createAccount(c *gin.Context) {
	var req models.CreateAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Message: "invalid request body"})
		return
	}

	id := uuid.New()
	if req.ID != nil {
		id = *req.ID
	}

	acct, err := s.scheduler.CreateAccount(id)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, accountResponse(acct))
}

func (s *Server) getAccount(c *gin.Context) {
	id, ok := s.accountID(c)
	if !ok {
		return
	}
	acct, err := s.scheduler.Lookup(id)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, accountResponse(acct))
}

// addFunds credits the account asynchronously through the scheduler.
func (s *Server) addFunds(c *gin.Context) {
	id, ok := s.accountID(c)
	if !ok {
		return
	}
	if _, err := s.scheduler.Lookup(id); err != nil {
		s.writeError(c, err)
		return
	}

	var req models.AddFundsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Message: "invalid request body"})
		return
	}

	s.scheduler.Submit(id, func(a *accounts.Account) error {
		return a.Credit(req.Amount)
	}, s.operationErrorHandler(id))

	c.Status(http.StatusAccepted)
}

// createWithdrawal records the withdrawal on the owning shard and, when it
// is admitted, hands it to the external gateway. Rejections surface
// asynchronously as ERROR ledger entries, so the response is always 202.
func (s *Server) createWithdrawal(c *gin.Context) {
	accountID, ok := s.accountID(c)
	if !ok {
		return
	}
	if _, err := s.scheduler.Lookup(accountID); err != nil {
		s.writeError(c, err)
		return
	}

	var req models.WithdrawalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Message: "invalid request body"})
		return
	}

	s.scheduler.Submit(accountID, func(a *accounts.Account) error {
		w, err := a.RequestWithdrawal(req.Address, req.Amount)
		if err != nil {
			return err
		}
		if w.Status != accounts.StatusPending {
			// Settled on admission (insufficient funds); nothing to relay.
			return nil
		}
		s.gateway.Submit(gateway.Request{
			AccountID:    accountID,
			WithdrawalID: w.ID,
			Address:      w.Address,
			Amount:       w.Amount,
		}, s.resolveWithdrawal)
		return nil
	}, s.operationErrorHandler(accountID))

	c.Status(http.StatusAccepted)
}

func (s *Server) listWithdrawals(c *gin.Context) {
	id, ok := s.accountID(c)
	if !ok {
		return
	}
	acct, err := s.scheduler.Lookup(id)
	if err != nil {
		s.writeError(c, err)
		return
	}

	ledger := acct.Withdrawals()
	out := make([]models.WithdrawalResponse, 0, len(ledger))
	for _, w := range ledger {
		out = append(out, models.WithdrawalResponse{
			ID:      w.ID,
			Address: w.Address,
			Amount:  w.Amount,
			Status:  string(w.Status),
			Message: w.Message,
		})
	}
	c.JSON(http.StatusOK, out)
}

// resolveWithdrawal feeds an externally observed status back into the
// owning account's serialized operation stream. It never mutates the
// account directly.
func (s *Server) resolveWithdrawal(req gateway.Request, status accounts.WithdrawalStatus, message string) {
	s.scheduler.Submit(req.AccountID, func(a *accounts.Account) error {
		a.ApplyWithdrawalStatus(req.WithdrawalID, status, message)
		return nil
	}, s.operationErrorHandler(req.AccountID))
}

// operationErrorHandler reports asynchronous operation failures. These are
// fire-and-forget from the caller's perspective, so logging is the terminal
// sink.
func (s *Server) operationErrorHandler(accountID uuid.UUID) func(error) {
	return func(err error) {
		s.logger.Error("account operation failed",
			zap.String("account_id", accountID.String()),
			zap.Error(err))
	}
}

func (s *Server) accountID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Message: "invalid account id"})
		return uuid.UUID{}, false
	}
	return id, true
}

func (s *Server) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, accounts.ErrNotFound):
		c.JSON(http.StatusNotFound, models.ErrorResponse{Message: err.Error()})
	case errors.Is(err, accounts.ErrConflict):
		c.JSON(http.StatusConflict, models.ErrorResponse{Message: err.Error()})
	default:
		s.logger.Error("request failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Message: "unable to process your request at the moment",
		})
	}
}

func accountResponse(a *accounts.Account) models.AccountResponse {
	b := a.Balance()
	return models.AccountResponse{
		ID:            a.ID(),
		Balance:       b.Balance,
		LockedBalance: b.Locked,
	}
}
