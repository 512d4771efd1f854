package common

import (
	"context"
	"errors"
	"log"
	"strconv"
	"time"

	"pms/src/db"
	"pms/src/lib"
	"pms/src/models"
	"pms/src/types"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	rateSettingKey = "price_per_minute"
	rateCacheKey   = "settings:price_per_minute"
	defaultRate    = 2.0
)

// CurrentRate returns the per-minute parking rate. The value lives in
// the settings table and is cached in redis for a minute so fee
// calculation does not hit the database on every request.
func CurrentRate() float64 {
	ctx := context.Background()
	if rdb := lib.GetRedisClient(); rdb != nil {
		if val, err := rdb.Get(ctx, rateCacheKey).Result(); err == nil {
			if rate, err := strconv.ParseFloat(val, 64); err == nil && rate > 0 {
				return rate
			}
		}
	}

	conn := db.GetDb()
	var setting models.Setting
	err := conn.Where(&models.Setting{SettingKey: rateSettingKey}).First(&setting).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return defaultRate
	} else if err != nil {
		log.Printf("Error loading rate setting: %s\n", err.Error())
		return defaultRate
	}
	rate, ok := setting.SettingValue.Inner.(float64)
	if !ok || rate <= 0 {
		return defaultRate
	}

	if rdb := lib.GetRedisClient(); rdb != nil {
		if err := rdb.Set(ctx, rateCacheKey, strconv.FormatFloat(rate, 'f', -1, 64), time.Minute).Err(); err != nil {
			log.Printf("Error caching rate: %s\n", err.Error())
		}
	}
	return rate
}

// SetRate updates the per-minute rate and drops the cached copy. Fees of
// sessions already completed are untouched.
func SetRate(rate float64) error {
	if rate <= 0 {
		return types.ErrInvalidState
	}
	conn := db.GetDb()
	setting := models.Setting{
		SettingKey:   rateSettingKey,
		SettingValue: types.JSONBAny{Inner: rate},
		Group:        "pricing",
	}
	err := conn.
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "setting_key"}, {Name: "group"}},
			DoUpdates: clause.AssignmentColumns([]string{"setting_value"}),
		}).
		Create(&setting).
		Error
	if err != nil {
		return err
	}
	if rdb := lib.GetRedisClient(); rdb != nil {
		if err := rdb.Del(context.Background(), rateCacheKey).Err(); err != nil {
			log.Printf("Error invalidating rate cache: %s\n", err.Error())
		}
	}
	log.Printf("Updated %s to %v\n", rateSettingKey, rate)
	return nil
}
