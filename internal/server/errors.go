package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/nao1215/scholarhub/internal/payment"
	"github.com/nao1215/scholarhub/internal/store"
	"github.com/nao1215/scholarhub/pkg/logger"
)

// fail はエラーの種類に応じたステータスコードとメッセージを返す。
// subject はメッセージに使う対象の名前（"奨学金" など）。
func fail(c *gin.Context, err error, subject string) {
	status, msg := classify(err, subject)
	if status >= http.StatusInternalServerError {
		logger.Errorf("%s %s: %v", c.Request.Method, c.Request.URL.Path, err)
	} else {
		logger.Debugf("%s %s: %v", c.Request.Method, c.Request.URL.Path, err)
	}
	c.JSON(status, gin.H{"error": msg})
}

// classify はエラーをHTTPステータスコードとメッセージに変換する。
func classify(err error, subject string) (int, string) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound, subject + "が見つかりません"
	case errors.Is(err, store.ErrConflict):
		return http.StatusConflict, subject + "は既に存在します"
	case errors.Is(err, store.ErrInvalidID):
		return http.StatusBadRequest, "IDの形式が不正です"
	case errors.Is(err, payment.ErrInvalidAmount):
		return http.StatusBadRequest, "支払い金額が不正です"
	case errors.Is(err, payment.ErrNotConfigured):
		return http.StatusServiceUnavailable, "決済サービスは現在利用できません"
	case errors.Is(err, payment.ErrUpstream):
		return http.StatusBadGateway, "決済サービスの呼び出しに失敗しました"
	default:
		return http.StatusInternalServerError, subject + "の処理に失敗しました"
	}
}

// badRequest はリクエストボディの検証エラーを返す。
func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": "リクエストが不正です: " + err.Error()})
}

// forbidden は所有者でも管理者でもない場合のエラーを返す。
func forbidden(c *gin.Context) {
	c.JSON(http.StatusForbidden, gin.H{"error": "この操作を行う権限がありません"})
}
