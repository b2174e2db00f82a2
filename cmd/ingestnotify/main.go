// Command ingestnotify publishes one ingest event so running gateways drop
// the cached responses covering it.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/IBM/sarama"
	"github.com/goccy/go-json"

	"github.com/mohammed-shakir/gdelt-event-gateway/internal/core/model"
	"github.com/mohammed-shakir/gdelt-event-gateway/internal/invalidation"
)

func getenv(key, def string) string {
	value := os.Getenv(key)
	if value != "" {
		return value
	}
	return def
}

func main() {
	if err := run(os.Args[1:], os.Stdout, newProducer); err != nil {
		fmt.Fprintln(os.Stderr, "ingestnotify:", err)
		os.Exit(1)
	}
}

func newProducer(brokers []string) (sarama.SyncProducer, error) {
	cfg := sarama.NewConfig()
	cfg.Producer.Return.Successes = true
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Version = sarama.V2_5_0_0
	prod, err := sarama.NewSyncProducer(brokers, cfg)
	if err != nil {
		return nil, fmt.Errorf("producer create: %w", err)
	}
	return prod, nil
}

func run(args []string, out io.Writer, dial func([]string) (sarama.SyncProducer, error)) error {
	fs := flag.NewFlagSet("ingestnotify", flag.ContinueOnError)
	brokers := fs.String("brokers", getenv("KAFKA_BROKERS", "localhost:9092"), "comma separated brokers")
	topic := fs.String("topic", getenv("KAFKA_TOPIC", "gdelt-ingest"), "ingest topic")
	layer := fs.String("layer", "gdelt_Ukraine:gdelt", "layer the row belongs to")
	id := fs.String("id", "", "GLOBALEVENTID of the written row (required)")
	version := fs.Uint64("version", 1, "row version")
	op := fs.String("op", "insert", "insert|update|delete")
	point := fs.String("point", "", "lat,lon of the row")
	bbox := fs.String("bbox", "", "left,bottom,right,top of the rows")
	if err := fs.Parse(args); err != nil {
		return err
	}

	ev := invalidation.Event{
		Version: *version,
		Op:      *op,
		Layer:   *layer,
		ID:      *id,
		TS:      time.Now().UTC(),
	}
	if err := setGeometry(&ev, *point, *bbox); err != nil {
		return err
	}
	if err := ev.Validate(); err != nil {
		return err
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}

	prod, err := dial(splitCSV(*brokers))
	if err != nil {
		return err
	}
	defer func() { _ = prod.Close() }()

	partition, offset, err := prod.SendMessage(&sarama.ProducerMessage{
		Topic: *topic,
		Key:   sarama.StringEncoder(ev.DedupeKey()),
		Value: sarama.ByteEncoder(payload),
	})
	if err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	_, err = fmt.Fprintf(out, "published %s v%d to %s[%d]@%d\n", ev.DedupeKey(), ev.Version, *topic, partition, offset)
	return err
}

func setGeometry(ev *invalidation.Event, point, bbox string) error {
	switch {
	case point != "" && bbox != "":
		return errors.New("use one of -point or -bbox")
	case point != "":
		v, err := floats(point, 2)
		if err != nil {
			return fmt.Errorf("point: %w", err)
		}
		ev.Point = &invalidation.Point{Lat: v[0], Lon: v[1]}
	case bbox != "":
		v, err := floats(bbox, 4)
		if err != nil {
			return fmt.Errorf("bbox: %w", err)
		}
		ev.BBox = &model.Bounds{Left: v[0], Bottom: v[1], Right: v[2], Top: v[3]}
	default:
		return errors.New("one of -point or -bbox is required")
	}
	return nil
}

func floats(s string, n int) ([]float64, error) {
	parts := splitCSV(s)
	if len(parts) != n {
		return nil, fmt.Errorf("expected %d comma separated numbers, got %q", n, s)
	}
	out := make([]float64, n)
	for i, p := range parts {
		if _, err := fmt.Sscan(p, &out[i]); err != nil {
			return nil, fmt.Errorf("parse %q: %w", p, err)
		}
	}
	return out, nil
}

func splitCSV(s string) []string {
	var out []string
	for p := range strings.SplitSeq(s, ",") {
		if x := strings.TrimSpace(p); x != "" {
			out = append(out, x)
		}
	}
	return out
}
