package main

import (
	"net/http"

	"pms/src/common"
	"pms/src/types"

	"github.com/gin-gonic/gin"
)

func sessionHandlers(g *gin.RouterGroup) *gin.RouterGroup {
	g.
		POST("/sessions/assign", func(ctx *gin.Context) {
			var body types.AssignSlotRequestBody
			if err := ctx.ShouldBindJSON(&body); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			var err error
			var session any
			if body.SlotID != "" {
				session, err = common.AssignSlot(body.SlotID, body.VehicleNumber)
			} else {
				session, err = common.AutoAssignSlot(body.VehicleNumber, body.ZonePreference)
			}
			if err != nil {
				ctx.JSON(types.ErrorStatus(err), gin.H{"error": err.Error()})
				return
			}
			ctx.JSON(http.StatusCreated, gin.H{"data": session})
		}).
		POST("/sessions/end", func(ctx *gin.Context) {
			var body types.EndSessionByVehicleRequestBody
			if err := ctx.ShouldBindJSON(&body); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			session, err := common.EndSessionByVehicle(body.VehicleNumber)
			if err != nil {
				ctx.JSON(types.ErrorStatus(err), gin.H{"error": err.Error()})
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": session})
		}).
		GET("/sessions/lookup", func(ctx *gin.Context) {
			var query types.LookupQueryParams
			if err := ctx.ShouldBindQuery(&query); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			session, err := common.LookupCurrentSession(query.VehicleNumber)
			if err != nil {
				ctx.JSON(types.ErrorStatus(err), gin.H{"error": err.Error()})
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": session})
		}).
		GET("/sessions/history", func(ctx *gin.Context) {
			var query types.HistoryQueryParams
			if err := ctx.ShouldBindQuery(&query); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			sessions, err := common.SessionHistory(query.VehicleNumber, query.SlotID, query.Limit)
			if err != nil {
				ctx.JSON(types.ErrorStatus(err), gin.H{"error": err.Error()})
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": sessions, "count": len(sessions)})
		})
	return g
}
