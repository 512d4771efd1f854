package main

import (
	"net/http"

	"pms/src/common"
	"pms/src/types"

	"github.com/gin-gonic/gin"
)

func settingHandlers(g *gin.RouterGroup) *gin.RouterGroup {
	g.
		GET("/settings/rate", func(ctx *gin.Context) {
			ctx.JSON(http.StatusOK, gin.H{"price_per_minute": common.CurrentRate()})
		})
	return g
}

// managerSettingHandlers gate the rate change behind the manager role.
func managerSettingHandlers(g *gin.RouterGroup) *gin.RouterGroup {
	g.
		PUT("/settings/rate", func(ctx *gin.Context) {
			var body types.UpdateRateRequestBody
			if err := ctx.ShouldBindJSON(&body); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			if err := common.SetRate(body.PricePerMinute); err != nil {
				ctx.JSON(types.ErrorStatus(err), gin.H{"error": err.Error()})
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"price_per_minute": body.PricePerMinute})
		})
	return g
}
