package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/nao1215/scholarhub/internal/payment"
)

// paymentIntentRequest は支払いインテント作成リクエスト。
type paymentIntentRequest struct {
	ID string `json:"id" binding:"required"`
}

// handleCreatePaymentIntent は奨学金の応募料に対する支払いインテントを作成するハンドラを返す。
func (s *Server) handleCreatePaymentIntent() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req paymentIntentRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}

		sch, err := s.store.GetScholarship(c.Request.Context(), req.ID)
		if err != nil {
			fail(c, err, "奨学金")
			return
		}
		amount, err := payment.MinorUnits(sch.ApplicationFees)
		if err != nil {
			fail(c, err, "支払い")
			return
		}

		secret, err := s.payments.CreateIntent(c.Request.Context(), amount, s.cfg.PaymentCurrency)
		if err != nil {
			fail(c, err, "支払い")
			return
		}
		c.JSON(http.StatusOK, gin.H{"clientSecret": secret})
	}
}
