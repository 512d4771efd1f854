package boot

import (
	"log"
	"time"

	"pms/src/common"
	"pms/src/config"
	"pms/src/db"
	"pms/src/lib"
	"pms/src/models"

	"gorm.io/gorm"
)

func InitDb() *gorm.DB {
	db := db.GetDb()

	err := db.AutoMigrate(
		&models.ParkingSlot{},
		&models.ParkingSession{},
		&models.Booking{},
		&models.Setting{},
	)
	if err != nil {
		log.Fatalf("error migration: %s", err.Error())
	}

	return db
}

// InitScheduler starts the background sweep that expires no-shows,
// cancels stale pending sessions and pre-reserves imminent bookings.
func InitScheduler() {
	sched, err := lib.GetScheduler()
	if err != nil {
		log.Println("An error has occurred. Check logs for info")
		return
	}
	_, err = lib.CreateRecurringJob("lifecycle-sweep", config.SweepInterval(), common.RunSweep)
	if err != nil {
		log.Printf("Error scheduling sweep: %s\n", err.Error())
		return
	}
	jobsWaitingInQueue := len(sched.Jobs())
	log.Println("Jobs in queue:", jobsWaitingInQueue)
	sched.Start()
}

func StopScheduler() {
	sched, err := lib.GetScheduler()
	if err != nil {
		log.Println("Error retrieving Scheduler. Check logs for info")
		return
	}
	err = sched.Shutdown()
	if err != nil {
		log.Println("An error has occurred while stopping Scheduler. Check logs for info")
		return
	}
}

// InitBroker wires the kafka consumer that receives occupancy signals
// from detector gateways publishing to the queue instead of the HTTP
// endpoint.
func InitBroker() {
	go lib.KafkaCreateTopics(lib.SLOT_EVENTS_TOPIC, lib.SLOT_STATE_TOPIC)
	lib.KafkaConsumer("pms-occupancy", func(payload map[string]any) {
		slotID, _ := payload["slot_id"].(string)
		occupied, ok := payload["is_occupied"].(bool)
		if slotID == "" || !ok {
			log.Printf("Discarding malformed occupancy event: %v\n", payload)
			return
		}
		signal := common.OccupancySignal{
			SlotID:   slotID,
			Occupied: occupied,
		}
		if detector, ok := payload["detector_id"].(string); ok {
			signal.DetectorID = detector
		}
		if raw, ok := payload["timestamp"].(string); ok && raw != "" {
			if ts, err := time.Parse(time.RFC3339, raw); err == nil {
				signal.ObservedAt = ts
			}
		}
		outcome, err := common.ReportOccupancy(signal)
		if err != nil {
			log.Printf("Error processing occupancy event for %s: %s\n", slotID, err.Error())
			return
		}
		log.Printf("Occupancy event for %s: %s\n", slotID, outcome.Message)
	})
}
