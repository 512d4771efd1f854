package common

import (
	"fmt"
	"log"
	"os"

	"pms/src/lib"
	"pms/src/models"
)

func mailSender() (string, string) {
	from := os.Getenv("MAIL_FROM")
	if from == "" {
		from = "noreply@parking.local"
	}
	return from, "Parking Management"
}

// NotifyBookingConfirmed emails the customer their booking details.
// Failures are logged only; mail never blocks or fails a booking.
func NotifyBookingConfirmed(booking *models.Booking) {
	if booking.CustomerEmail == "" {
		return
	}
	from, fromName := mailSender()
	slotID := ""
	if booking.Slot != nil {
		slotID = booking.Slot.SlotID
	}
	body := fmt.Sprintf(
		"Your booking %s is confirmed.\n\nSlot: %s\nVehicle: %s\nArrival: %s\nDuration: %d minutes\nEstimated fee: %.2f\n",
		booking.BookingID, slotID, booking.VehicleNumber,
		booking.ScheduledArrival.Format("2006-01-02 15:04"),
		booking.DurationMinutes, booking.EstimatedFee,
	)
	err := lib.SendMail(&lib.SendMailInput{
		From:     from,
		FromName: fromName,
		To:       []string{booking.CustomerEmail},
		Subject:  fmt.Sprintf("Booking %s confirmed", booking.BookingID),
		Body:     body,
	})
	if err != nil {
		log.Printf("Error sending confirmation for %s: %s\n", booking.BookingID, err.Error())
	}
}

// NotifyBookingCancelled emails the customer that their booking is void.
func NotifyBookingCancelled(booking *models.Booking) {
	if booking.CustomerEmail == "" {
		return
	}
	from, fromName := mailSender()
	err := lib.SendMail(&lib.SendMailInput{
		From:     from,
		FromName: fromName,
		To:       []string{booking.CustomerEmail},
		Subject:  fmt.Sprintf("Booking %s cancelled", booking.BookingID),
		Body:     fmt.Sprintf("Your booking %s has been cancelled.\n", booking.BookingID),
	})
	if err != nil {
		log.Printf("Error sending cancellation notice for %s: %s\n", booking.BookingID, err.Error())
	}
}

// NotifyArrivalReminder nudges a customer shortly before their window.
func NotifyArrivalReminder(booking *models.Booking) {
	if booking.CustomerEmail == "" {
		return
	}
	from, fromName := mailSender()
	slotID := ""
	if booking.Slot != nil {
		slotID = booking.Slot.SlotID
	}
	body := fmt.Sprintf(
		"Reminder: your parking booking %s starts at %s.\nSlot: %s\nVehicle: %s\n",
		booking.BookingID,
		booking.ScheduledArrival.Format("2006-01-02 15:04"),
		slotID, booking.VehicleNumber,
	)
	err := lib.SendMail(&lib.SendMailInput{
		From:     from,
		FromName: fromName,
		To:       []string{booking.CustomerEmail},
		Subject:  fmt.Sprintf("Upcoming booking %s", booking.BookingID),
		Body:     body,
	})
	if err != nil {
		log.Printf("Error sending reminder for %s: %s\n", booking.BookingID, err.Error())
	}
}
