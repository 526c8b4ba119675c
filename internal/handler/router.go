package handler

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// SetupRouter 配置路由，gin 的运行模式由调用方设置
func SetupRouter(svc LedgerService, log *zap.Logger) *gin.Engine {
	httpLog := log.Named("http")

	r := gin.New()

	r.Use(RecoveryMiddleware(httpLog))
	r.Use(LoggerMiddleware(httpLog))
	r.Use(CORSMiddleware())

	h := NewHandler(svc, httpLog)

	api := r.Group("/api/v1")
	{
		api.POST("/transfer", h.Transfer)
		api.POST("/deposit", h.Deposit)
		api.GET("/balances", h.GetBalances)

		withdraw := api.Group("/withdraw")
		{
			withdraw.POST("", h.Withdraw)
			withdraw.GET("/:withdrawal_id", h.GetWithdrawal)
		}
	}

	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	return r
}
