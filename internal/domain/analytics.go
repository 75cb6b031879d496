package domain

import "time"

// ChannelCounters holds per-channel outcome counters inside one
// analytics bucket
type ChannelCounters struct {
	Sent   int64 `json:"sent" bson:"sent"`
	Failed int64 `json:"failed" bson:"failed"`
}

// ReminderAnalytics is one (date, doctor) aggregate bucket. Buckets are
// created on first increment; counters are updated with atomic
// upsert-and-increment, never read-modify-write.
type ReminderAnalytics struct {
	Date      string                              `json:"date" bson:"date"` // "2026-08-31"
	DoctorID  string                              `json:"doctor_id" bson:"doctor_id"`
	Channels  map[ReminderChannel]ChannelCounters `json:"channels" bson:"channels"`
	UpdatedAt time.Time                           `json:"updated_at" bson:"updated_at"`
}

// AnalyticsDate formats a timestamp as a bucket date key
func AnalyticsDate(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}
