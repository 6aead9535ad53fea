package nats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	natsgo "github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/getdevflow/core-sub003/core/es"
)

const (
	defaultSubjectPrefix = "devflow.es"
	defaultStreamName    = "DEVFLOW_ES"

	headerTransactionID = "x-transaction-id"
	headerAggregateID   = "x-aggregate-id"
	headerNextPlayhead  = "x-next-playhead"

	fetchBatch = 100
)

type EventStoreConfig struct {
	Connect       Connector    // Connect is used to create the underlying NATS connection. If nil, ConnectDefault() is used.
	Log           *slog.Logger // Log for diagnostics (optional)
	SubjectPrefix string       // SubjectPrefix is the prefix of every aggregate subject
	StreamName    string
	// Memory keeps the stream in memory instead of on disk.
	Memory bool
}

// EventStore is the es.EventStore backend on JetStream.
//
// Every aggregate of a site has its own subject "<prefix>.<site>.<id>". A
// commit publishes one message per aggregate holding that aggregate's records
// as a JSON array. The playhead check is done for every aggregate before the
// first publish, and each publish carries the expected last subject sequence
// so that a concurrent writer is rejected by the server.
type EventStore struct {
	nc            *natsgo.Conn
	closeNc       closeFunc
	js            jetstream.JetStream
	stream        jetstream.Stream
	log           *slog.Logger
	subjectPrefix string
}

func NewEventStore(ctx context.Context, cfg EventStoreConfig) (*EventStore, error) {
	doConnect := cfg.Connect
	if doConnect == nil {
		doConnect = ConnectDefault()
	}

	nc, closeNatsCon, err := doConnect()
	if err != nil {
		return nil, err
	}

	js, err := jetstream.New(nc)
	if err != nil {
		closeNatsCon()
		return nil, err
	}

	log := cfg.Log
	if log == nil {
		log = slog.Default()
	}

	streamName := strings.ToUpper(cfg.StreamName)
	if streamName == "" {
		streamName = defaultStreamName
	}
	subjectPrefix := cfg.SubjectPrefix
	if subjectPrefix == "" {
		subjectPrefix = defaultSubjectPrefix
	}
	storage := jetstream.FileStorage
	if cfg.Memory {
		storage = jetstream.MemoryStorage
	}

	log = log.With(
		slog.String("store", "nats_js"),
		slog.String("stream", streamName),
		slog.String("subjectPrefix", subjectPrefix),
	)

	stream, err := ensureStream(ctx, js, jetstream.StreamConfig{
		Name:       streamName,
		Subjects:   []string{subjectPrefix + ".>"},
		Storage:    storage,
		FirstSeq:   1,
		DenyDelete: true,
		DenyPurge:  true,
		Duplicates: time.Minute,
	})
	if err != nil {
		closeNatsCon()
		return nil, err
	}
	log.Debug("ensured stream")

	return &EventStore{
		nc:            nc,
		closeNc:       closeNatsCon,
		js:            js,
		stream:        stream,
		log:           log,
		subjectPrefix: subjectPrefix,
	}, nil
}

func (e *EventStore) Close() error {
	e.closeNc()
	e.log.Debug("closed event store")
	return nil
}

func (e *EventStore) Append(ctx context.Context, records []es.Record) error {
	if len(records) == 0 {
		return nil
	}

	groups := es.GroupRecords(records)
	lastSeqs := make([]uint64, len(groups))
	for i, g := range groups {
		next, seq, err := e.head(ctx, g.Records[0].Site, g.AggregateID)
		if err != nil {
			return fmt.Errorf("read playhead agg_id=%s: %w", g.AggregateID, err)
		}
		if err := es.ExpectNext(g, next); err != nil {
			return err
		}
		lastSeqs[i] = seq
	}

	for i, g := range groups {
		if err := e.publish(ctx, g, lastSeqs[i]); err != nil {
			return err
		}
	}
	e.log.Debug("append", slog.Int("num_events", len(records)), slog.Int("num_streams", len(groups)))
	return nil
}

func (e *EventStore) publish(ctx context.Context, g es.RecordGroup, lastSeq uint64) error {
	first := g.Records[0]
	last := g.Records[len(g.Records)-1]

	msg := natsgo.NewMsg(e.subject(first.Site, g.AggregateID))
	msg.Header.Set(headerTransactionID, first.TransactionID.String())
	msg.Header.Set(headerAggregateID, g.AggregateID.String())
	msg.Header.Set(headerNextPlayhead, strconv.FormatUint(uint64(last.Playhead)+1, 10))

	var err error
	msg.Data, err = json.Marshal(g.Records)
	if err != nil {
		return fmt.Errorf("marshal records agg_id=%s: %w", g.AggregateID, err)
	}

	_, err = e.js.PublishMsg(
		ctx, msg,
		jetstream.WithMsgID(first.TransactionID.String()+"."+g.AggregateID.String()),
		jetstream.WithExpectLastSequencePerSubject(lastSeq),
	)
	if err != nil {
		var apiErr *jetstream.APIError
		if errors.As(err, &apiErr) && apiErr.ErrorCode == jetstream.JSErrCodeStreamWrongLastSequence {
			return fmt.Errorf(
				"%w: agg_id=%s playhead %d written concurrently",
				es.ErrConcurrencyConflict, g.AggregateID, first.Playhead,
			)
		}
		return fmt.Errorf("publish agg_id=%s: %w", g.AggregateID, err)
	}
	return nil
}

func (e *EventStore) Load(ctx context.Context, site string, id es.ID, from es.Playhead) (loaded []es.Record, err error) {
	var (
		startAt = time.Now()
		subj    = e.subject(site, id)
	)
	defer func() {
		if err == nil {
			e.log.Debug(
				"loaded events",
				slog.Group("agg", slog.String("site", site), slog.String("id", id.String())),
				slog.Uint64("from", uint64(from)),
				slog.Int("num_events", len(loaded)),
				slog.Duration("duration", time.Since(startAt)),
			)
		}
	}()

	next, endSeq, err := e.head(ctx, site, id)
	if err != nil {
		return nil, err
	}
	if endSeq == 0 || from >= next {
		return []es.Record{}, nil
	}

	cc, err := e.stream.OrderedConsumer(ctx, jetstream.OrderedConsumerConfig{
		DeliverPolicy:  jetstream.DeliverAllPolicy,
		FilterSubjects: []string{subj},
	})
	if err != nil {
		return nil, err
	}

	loaded = []es.Record{}
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		mb, err := cc.FetchNoWait(fetchBatch)
		if err != nil {
			return nil, err
		}

		empty := true
		for msg := range mb.Messages() {
			empty = false
			md, err := msg.Metadata()
			if err != nil {
				return nil, err
			}
			var recs []es.Record
			if err := json.Unmarshal(msg.Data(), &recs); err != nil {
				return nil, fmt.Errorf("decode message seq=%d: %w", md.Sequence.Stream, err)
			}
			for _, r := range recs {
				if r.Playhead >= from {
					loaded = append(loaded, r)
				}
			}
			if md.Sequence.Stream >= endSeq {
				return loaded, nil
			}
		}
		if mb.Error() != nil {
			return nil, mb.Error()
		}
		if empty {
			return loaded, nil
		}
	}
}

// head returns the next playhead of an aggregate and the stream sequence of
// its last message. Both are zero for an unknown aggregate.
func (e *EventStore) head(ctx context.Context, site string, id es.ID) (es.Playhead, uint64, error) {
	lm, err := e.stream.GetLastMsgForSubject(ctx, e.subject(site, id))
	if err != nil {
		if errors.Is(err, jetstream.ErrMsgNotFound) {
			return 0, 0, nil
		}
		return 0, 0, err
	}
	next, err := strconv.ParseUint(lm.Header.Get(headerNextPlayhead), 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("message seq=%d has no valid %s header: %w", lm.Sequence, headerNextPlayhead, err)
	}
	return es.Playhead(next), lm.Sequence, nil
}

func (e *EventStore) subject(site string, id es.ID) string {
	return e.subjectPrefix + "." + site + "." + id.String()
}

func ensureStream(ctx context.Context, js jetstream.JetStream, cfg jetstream.StreamConfig) (jetstream.Stream, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*natsgo.DefaultTimeout)
	defer cancel()
	return js.CreateOrUpdateStream(ctx, cfg)
}

var _ es.EventStore = (*EventStore)(nil)
