package main

import (
	"net/http"
	"time"

	"pms/src/common"
	"pms/src/config"
	"pms/src/types"

	"github.com/gin-gonic/gin"
)

func bookingHandlers(g *gin.RouterGroup) *gin.RouterGroup {
	g.
		GET("/bookings", func(ctx *gin.Context) {
			var query types.BookingsQueryParams
			if err := ctx.ShouldBindQuery(&query); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			bookings, err := common.ListBookings(query.CustomerID, query.Status)
			if err != nil {
				ctx.JSON(types.ErrorStatus(err), gin.H{"error": err.Error()})
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": bookings, "count": len(bookings)})
		}).
		POST("/bookings", func(ctx *gin.Context) {
			var body types.CreateBookingRequestBody
			if err := ctx.ShouldBindJSON(&body); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			arrival, err := time.Parse(config.TIME_PARSE_FORMAT, body.ScheduledArrival)
			if err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			booking, err := common.CreateBooking(common.CreateBookingParams{
				CustomerID:       body.CustomerID,
				CustomerEmail:    body.CustomerEmail,
				VehicleNumber:    body.VehicleNumber,
				SlotID:           body.SlotID,
				ScheduledArrival: arrival,
				DurationMinutes:  body.DurationMinutes,
				Notes:            body.Notes,
			})
			if err != nil {
				ctx.JSON(types.ErrorStatus(err), gin.H{"error": err.Error()})
				return
			}
			ctx.JSON(http.StatusCreated, gin.H{"data": booking})
		}).
		GET("/bookings/:id", func(ctx *gin.Context) {
			var params types.SimpleRequestParams
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.Status(http.StatusBadRequest)
				return
			}
			booking, err := common.GetBooking(params.ID)
			if err != nil {
				ctx.JSON(types.ErrorStatus(err), gin.H{"error": err.Error()})
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": booking})
		}).
		PUT("/bookings/:id/cancel", func(ctx *gin.Context) {
			var params types.SimpleRequestParams
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			role := ctx.GetString("role")
			staffOverride := role == string(types.ROLE_STAFF) || role == string(types.ROLE_MANAGER)
			booking, err := common.CancelBooking(params.ID, staffOverride)
			if err != nil {
				ctx.JSON(types.ErrorStatus(err), gin.H{"error": err.Error()})
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": booking})
		}).
		GET("/availability", func(ctx *gin.Context) {
			var query types.AvailabilityQueryParams
			if err := ctx.ShouldBindQuery(&query); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			arrival, err := time.Parse(config.TIME_PARSE_FORMAT, query.Arrival)
			if err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			slots, err := common.CheckAvailability(arrival, time.Duration(query.Duration)*time.Minute, query.Zone)
			if err != nil {
				ctx.JSON(types.ErrorStatus(err), gin.H{"error": err.Error()})
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": slots, "count": len(slots)})
		})
	return g
}

// staffBookingHandlers are the gate-side booking operations.
func staffBookingHandlers(g *gin.RouterGroup) *gin.RouterGroup {
	g.
		POST("/bookings/:id/confirm-arrival", func(ctx *gin.Context) {
			var params types.SimpleRequestParams
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			var body types.ConfirmArrivalRequestBody
			if err := ctx.ShouldBindJSON(&body); err != nil && err.Error() != "EOF" {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			booking, err := common.ConfirmArrival(params.ID, body.Force)
			if err != nil {
				ctx.JSON(types.ErrorStatus(err), gin.H{"error": err.Error()})
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": booking})
		})
	return g
}
