package storage

import (
	"github.com/prometheus/client_golang/prometheus"
	bolt "go.etcd.io/bbolt"
)

var (
	boltWritesDesc = prometheus.NewDesc(
		"whiskey_boltdb_writes_total",
		"Total number of boltdb writes",
		nil, nil)

	boltReadsDesc = prometheus.NewDesc(
		"whiskey_boltdb_reads_total",
		"Total number of boltdb reads",
		nil, nil)

	boltKeysDesc = prometheus.NewDesc(
		"whiskey_boltdb_object_store_keys",
		"Number of records in each object store",
		[]string{"store"}, nil)
)

// Describe returns all descriptions of the collector.
func (s *BoltStore) Describe(ch chan<- *prometheus.Desc) {
	ch <- boltWritesDesc
	ch <- boltReadsDesc
	ch <- boltKeysDesc
}

// Collect returns the current state of all metrics of the collector.
func (s *BoltStore) Collect(ch chan<- prometheus.Metric) {
	if s.db == nil {
		return
	}
	stats := s.db.Stats()

	ch <- prometheus.MustNewConstMetric(boltReadsDesc, prometheus.CounterValue, float64(stats.TxN))
	ch <- prometheus.MustNewConstMetric(boltWritesDesc, prometheus.CounterValue, float64(stats.TxStats.Write))

	_ = s.db.View(func(tx *bolt.Tx) error {
		return tx.ForEach(func(name []byte, b *bolt.Bucket) error {
			if isBoltReserved(string(name)) {
				return nil
			}
			ch <- prometheus.MustNewConstMetric(boltKeysDesc, prometheus.GaugeValue, float64(b.Stats().KeyN), string(name))
			return nil
		})
	})
}
