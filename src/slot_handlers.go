package main

import (
	"log"
	"net/http"
	"time"

	"pms/src/common"
	"pms/src/config"
	"pms/src/types"

	"github.com/gin-gonic/gin"
)

// detectorRoutes are the unauthenticated ingress for occupancy signals.
// Camera gateways authenticate with a shared key when one is configured.
func detectorRoutes(g *gin.RouterGroup) *gin.RouterGroup {
	g.
		POST("/update-slot", func(ctx *gin.Context) {
			var body types.UpdateSlotRequestBody
			if err := ctx.ShouldBindJSON(&body); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			signal := common.OccupancySignal{
				SlotID:     body.SlotID,
				Occupied:   *body.IsOccupied,
				DetectorID: body.DetectorID,
			}
			if body.Timestamp != "" {
				ts, err := time.Parse(time.RFC3339, body.Timestamp)
				if err != nil {
					ts, err = time.Parse(config.TIME_PARSE_FORMAT, body.Timestamp)
				}
				if err != nil {
					ctx.JSON(http.StatusBadRequest, gin.H{"error": "unparseable timestamp"})
					return
				}
				signal.ObservedAt = ts
			}
			outcome, err := common.ReportOccupancy(signal)
			if err != nil {
				log.Printf("Error processing signal for %s: %s\n", body.SlotID, err.Error())
				ctx.JSON(types.ErrorStatus(err), gin.H{"error": err.Error()})
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": outcome})
		})
	return g
}

func slotHandlers(g *gin.RouterGroup) *gin.RouterGroup {
	g.
		GET("/slots", func(ctx *gin.Context) {
			var query types.SlotsQueryParams
			if err := ctx.ShouldBindQuery(&query); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			slots, err := common.ListSlots(query.Filter)
			if err != nil {
				ctx.JSON(types.ErrorStatus(err), gin.H{"error": err.Error()})
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": slots, "count": len(slots)})
		}).
		GET("/slots/status", func(ctx *gin.Context) {
			entries, err := common.SlotStatusReport()
			if err != nil {
				ctx.JSON(types.ErrorStatus(err), gin.H{"error": err.Error()})
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": entries, "count": len(entries)})
		}).
		GET("/slots/:slotId", func(ctx *gin.Context) {
			var params types.SlotURIParams
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.Status(http.StatusBadRequest)
				return
			}
			slot, err := common.GetSlot(params.SlotID)
			if err != nil {
				ctx.JSON(types.ErrorStatus(err), gin.H{"error": err.Error()})
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": slot})
		}).
		POST("/slots/sync", func(ctx *gin.Context) {
			var body types.SyncSlotsRequestBody
			if err := ctx.ShouldBindJSON(&body); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			created, err := common.SyncSlots(body.SlotIDs)
			if err != nil {
				ctx.JSON(types.ErrorStatus(err), gin.H{"error": err.Error()})
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"created": created})
		}).
		POST("/slots/:slotId/end-session", func(ctx *gin.Context) {
			var params types.SlotURIParams
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.Status(http.StatusBadRequest)
				return
			}
			session, err := common.EndSessionBySlot(params.SlotID)
			if err != nil {
				ctx.JSON(types.ErrorStatus(err), gin.H{"error": err.Error()})
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": session})
		})
	return g
}
