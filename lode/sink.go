// Package lode archives artifact snapshots and forwarded parts in a Lode
// dataset and reads them back for the history views.
//
// Records are Hive-partitioned by session_id, day and record_kind. The day
// is derived from each record's own timestamp, so a session that spans
// midnight lands in two day partitions.
package lode

import (
	"time"

	"github.com/justapithecus/lode/lode"
)

// DefaultDataset is the dataset id used when none is configured.
const DefaultDataset = "vantage"

// partitionKeys is the Hive layout shared by the write and read paths.
var partitionKeys = []string{"session_id", "day", "record_kind"}

// DeriveDay computes the partition day from a timestamp.
// Format: YYYY-MM-DD in UTC.
func DeriveDay(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

// Config holds archive configuration.
type Config struct {
	// Dataset is the Lode dataset ID.
	Dataset string
	// Policy is the persistence policy name, recorded on every record.
	Policy string
}

func (c Config) dataset() string {
	if c.Dataset == "" {
		return DefaultDataset
	}
	return c.Dataset
}

// newDataset opens a dataset with the archive layout and codec.
func newDataset(dataset string, factory lode.StoreFactory) (lode.Dataset, error) {
	return lode.NewDataset(
		lode.DatasetID(dataset),
		factory,
		lode.WithHiveLayout(partitionKeys...),
		lode.WithCodec(lode.NewJSONLCodec()),
	)
}
